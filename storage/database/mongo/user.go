package mongodb

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/shule/core/user"
)

type userRepository struct {
	coll *mongo.Collection
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *mongo.Database) user.Repository {
	return &userRepository{coll: db.Collection(usersCollection)}
}

func (repo *userRepository) exists(ctx context.Context, filter bson.M, excludedIDs []string) (bool, error) {
	if len(excludedIDs) > 0 {
		filter["_id"] = bson.M{"$nin": excludedIDs}
	}
	n, err := repo.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, tenantID, username, email string, excludedIDs ...string) error {
	if username != "" {
		found, err := repo.exists(ctx, bson.M{"tenant_id": tenantID, "username": username}, excludedIDs)
		if err != nil {
			return errors.Wrap(err, "checking username uniqueness")
		}
		if found {
			return user.ErrUsernameExists
		}
	}
	if email != "" {
		found, err := repo.exists(ctx, bson.M{"tenant_id": tenantID, "email": email}, excludedIDs)
		if err != nil {
			return errors.Wrap(err, "checking email uniqueness")
		}
		if found {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if _, err := repo.coll.InsertOne(ctx, usr); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, duplicateUserErr(err)
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, f user.GetFilter) (user.User, error) {
	filter := bson.M{"tenant_id": f.TenantID}
	switch {
	case f.ID != "":
		filter["_id"] = f.ID
	case f.UsernameOrEmail != "":
		filter["$or"] = bson.A{
			bson.M{"username": f.UsernameOrEmail},
			bson.M{"email": f.UsernameOrEmail},
		}
	default:
		return user.User{}, user.ErrNotFound
	}

	var usr user.User
	if err := repo.coll.FindOne(ctx, filter).Decode(&usr); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "finding user")
	}
	return usr, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	res, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": usr.ID, "tenant_id": usr.TenantID}, usr)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, duplicateUserErr(err)
		}
		return user.User{}, errors.Wrap(err, "replacing user")
	}
	if res.MatchedCount == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) SetLastLogin(ctx context.Context, tenantID, id string, at time.Time) error {
	res, err := repo.coll.UpdateOne(
		ctx,
		bson.M{"_id": id, "tenant_id": tenantID},
		bson.M{"$set": bson.M{"last_login": at}},
	)
	if err != nil {
		return errors.Wrap(err, "setting last_login")
	}
	if res.MatchedCount == 0 {
		return user.ErrNotFound
	}
	return nil
}

func duplicateUserErr(err error) error {
	if strings.Contains(err.Error(), "tenant_email_unique") {
		return user.ErrEmailExists
	}
	return user.ErrUsernameExists
}
