package dummydb

import (
	"context"

	"github.com/trezcool/shule/core/school"
)

type schoolRepository struct {
	db *schoolTable
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db.school}
}

func (repo *schoolRepository) slugTaken(slug string) bool {
	for _, s := range repo.db.table {
		if s.Slug == slug {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) CheckSlugUniqueness(_ context.Context, slug string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if repo.slugTaken(slug) {
		return school.ErrSlugExists
	}
	return nil
}

func (repo *schoolRepository) CreateSchool(_ context.Context, sch school.School) (school.School, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.slugTaken(sch.Slug) {
		return school.School{}, school.ErrSlugExists
	}
	repo.db.table[sch.ID] = &sch
	return sch, nil
}

func (repo *schoolRepository) GetSchool(_ context.Context, f school.GetFilter) (school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.table {
		switch {
		case f.ID != "":
			if s.ID == f.ID {
				return *s, nil
			}
		case f.Slug != "":
			if s.Slug == f.Slug {
				return *s, nil
			}
		case f.IDOrSlug != "":
			if s.ID == f.IDOrSlug || s.Slug == f.IDOrSlug {
				return *s, nil
			}
		}
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) SetActive(_ context.Context, id string, active bool) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, ok := repo.db.table[id]
	if !ok {
		return school.ErrNotFound
	}
	s.IsActive = active
	return nil
}
