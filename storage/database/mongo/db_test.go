package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

// prepareDB connects to the database named by SHULE_TEST_MONGO_URI, using a throwaway database per test.
func prepareDB(t *testing.T) *mongo.Database {
	uri := os.Getenv("SHULE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("SHULE_TEST_MONGO_URI not set")
	}

	conf := core.NewConfig()
	conf.Mongo.URI = uri
	conf.Mongo.Database = "shule_test_" + uuid.NewString()[:8]
	conf.Mongo.Timeout = 5 * time.Second

	ctx := context.Background()
	client, db, err := Open(ctx, conf)
	require.NoError(t, err)
	require.NoError(t, EnsureIndexes(ctx, db))

	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func newTestUser(tenantID, uname, email, role string) user.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	usr := user.User{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      uname,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.Normalize()
	return usr
}

func Test_schoolRepository(t *testing.T) {
	db := prepareDB(t)
	repo := NewSchoolRepository(db)
	ctx := context.Background()

	sch, err := repo.CreateSchool(ctx, school.School{ID: uuid.NewString(), Slug: "green-hill", Name: "Green Hill", IsActive: true})
	require.NoError(t, err)

	_, err = repo.CreateSchool(ctx, school.School{ID: uuid.NewString(), Slug: "green-hill", Name: "Dup"})
	assert.Equal(t, school.ErrSlugExists, err)
	assert.Equal(t, school.ErrSlugExists, repo.CheckSlugUniqueness(ctx, "green-hill"))
	assert.NoError(t, repo.CheckSlugUniqueness(ctx, "blue-lake"))

	for _, ref := range []string{sch.ID, sch.Slug} {
		got, err := repo.GetSchool(ctx, school.GetFilter{IDOrSlug: ref})
		require.NoError(t, err)
		assert.Equal(t, sch.ID, got.ID)
	}
	_, err = repo.GetSchool(ctx, school.GetFilter{Slug: "nope"})
	assert.Equal(t, school.ErrNotFound, err)

	require.NoError(t, repo.SetActive(ctx, sch.ID, false))
	got, err := repo.GetSchool(ctx, school.GetFilter{ID: sch.ID})
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, school.ErrNotFound, repo.SetActive(ctx, "nope", true))
}

func Test_userRepository(t *testing.T) {
	db := prepareDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	teacher := newTestUser("t1", "mwalimu", "mwalimu@test.cd", user.RoleTeacher)
	teacher.Teacher.Subjects = []string{"math"}
	_, err := repo.CreateUser(ctx, teacher)
	require.NoError(t, err)

	// same username in another tenant is fine
	_, err = repo.CreateUser(ctx, newTestUser("t2", "mwalimu", "mwalimu@test.cd", user.RoleTeacher))
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, newTestUser("t1", "mwalimu", "", user.RoleStudent))
	assert.Equal(t, user.ErrUsernameExists, err)
	_, err = repo.CreateUser(ctx, newTestUser("t1", "other", "mwalimu@test.cd", user.RoleStudent))
	assert.Equal(t, user.ErrEmailExists, err)

	// empty emails are not unique
	_, err = repo.CreateUser(ctx, newTestUser("t1", "kid1", "", user.RoleStudent))
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, newTestUser("t1", "kid2", "", user.RoleStudent))
	require.NoError(t, err)

	assert.Equal(t, user.ErrUsernameExists, repo.CheckUniqueness(ctx, "t1", "mwalimu", ""))
	assert.Equal(t, user.ErrEmailExists, repo.CheckUniqueness(ctx, "t1", "", "mwalimu@test.cd"))
	assert.NoError(t, repo.CheckUniqueness(ctx, "t1", "mwalimu", "mwalimu@test.cd", teacher.ID))

	for _, login := range []string{"mwalimu", "mwalimu@test.cd"} {
		got, err := repo.GetUser(ctx, user.GetFilter{TenantID: "t1", UsernameOrEmail: login})
		require.NoError(t, err)
		assert.Equal(t, teacher.ID, got.ID)
		assert.Equal(t, []string{"math"}, got.Teacher.Subjects)
		assert.Nil(t, got.Student)
	}
	_, err = repo.GetUser(ctx, user.GetFilter{TenantID: "t3", ID: teacher.ID})
	assert.Equal(t, user.ErrNotFound, err)

	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, repo.SetLastLogin(ctx, "t1", teacher.ID, at))
	got, err := repo.GetUser(ctx, user.GetFilter{TenantID: "t1", ID: teacher.ID})
	require.NoError(t, err)
	assert.True(t, at.Equal(got.LastLogin))
	assert.Equal(t, user.ErrNotFound, repo.SetLastLogin(ctx, "t2", teacher.ID, at))

	got.IsActive = false
	_, err = repo.UpdateUser(ctx, got)
	require.NoError(t, err)
	got, err = repo.GetUser(ctx, user.GetFilter{TenantID: "t1", ID: teacher.ID})
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}
