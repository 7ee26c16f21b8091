package dummydb

import (
	"context"
	"time"

	"github.com/trezcool/shule/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func isExcluded(id string, excludedIDs []string) bool {
	for _, excl := range excludedIDs {
		if id == excl {
			return true
		}
	}
	return false
}

func (repo *userRepository) conflict(usr user.User, excludedIDs ...string) error {
	for _, u := range repo.db.table {
		if u.TenantID != usr.TenantID || isExcluded(u.ID, excludedIDs) {
			continue
		}
		if usr.Username != "" && u.Username == usr.Username {
			return user.ErrUsernameExists
		}
		if usr.Email != "" && u.Email == usr.Email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CheckUniqueness(_ context.Context, tenantID, username, email string, excludedIDs ...string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.conflict(user.User{TenantID: tenantID, Username: username, Email: email}, excludedIDs...)
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.conflict(usr); err != nil {
		return user.User{}, err
	}
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, f user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, u := range repo.db.table {
		if u.TenantID != f.TenantID {
			continue
		}
		switch {
		case f.ID != "":
			if u.ID == f.ID {
				return *u, nil
			}
		case f.UsernameOrEmail != "":
			if u.Username == f.UsernameOrEmail || (u.Email != "" && u.Email == f.UsernameOrEmail) {
				return *u, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[usr.ID]
	if !ok || orig.TenantID != usr.TenantID {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.conflict(usr, usr.ID); err != nil {
		return user.User{}, err
	}
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) SetLastLogin(_ context.Context, tenantID, id string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	u, ok := repo.db.table[id]
	if !ok || u.TenantID != tenantID {
		return user.ErrNotFound
	}
	u.LastLogin = at
	return nil
}
