package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/shule/core/school"
)

type schoolRepository struct {
	coll *mongo.Collection
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *mongo.Database) school.Repository {
	return &schoolRepository{coll: db.Collection(schoolsCollection)}
}

func (repo *schoolRepository) CheckSlugUniqueness(ctx context.Context, slug string) error {
	n, err := repo.coll.CountDocuments(ctx, bson.M{"slug": slug}, options.Count().SetLimit(1))
	if err != nil {
		return errors.Wrap(err, "checking slug uniqueness")
	}
	if n > 0 {
		return school.ErrSlugExists
	}
	return nil
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	if _, err := repo.coll.InsertOne(ctx, sch); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return school.School{}, school.ErrSlugExists
		}
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return sch, nil
}

func (repo *schoolRepository) GetSchool(ctx context.Context, f school.GetFilter) (school.School, error) {
	var filter bson.M
	switch {
	case f.ID != "":
		filter = bson.M{"_id": f.ID}
	case f.Slug != "":
		filter = bson.M{"slug": f.Slug}
	case f.IDOrSlug != "":
		filter = bson.M{"$or": bson.A{bson.M{"_id": f.IDOrSlug}, bson.M{"slug": f.IDOrSlug}}}
	default:
		return school.School{}, school.ErrNotFound
	}

	var sch school.School
	if err := repo.coll.FindOne(ctx, filter).Decode(&sch); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return school.School{}, school.ErrNotFound
		}
		return school.School{}, errors.Wrap(err, "finding school")
	}
	return sch, nil
}

func (repo *schoolRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := repo.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"is_active": active}})
	if err != nil {
		return errors.Wrap(err, "setting is_active")
	}
	if res.MatchedCount == 0 {
		return school.ErrNotFound
	}
	return nil
}
