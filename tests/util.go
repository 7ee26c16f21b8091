// Package testutil holds helpers shared by the test suites.
package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	logsvc "github.com/trezcool/shule/services/logger"
)

// NewConfig returns the app config in test mode, with request logs & rate limiting off.
func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.Server.DisableReqLogs = true
	conf.Server.LoginRateLimit = 0
	return conf
}

// NewLogger returns a logger that reports nowhere.
func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

// NewRedis starts an in-memory Redis server, closed when the test ends.
func NewRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func CreateSchool(t *testing.T, repo school.Repository, slug, name string, isActive bool) school.School {
	t.Helper()
	sch, err := repo.CreateSchool(context.Background(), school.School{
		ID:        uuid.NewString(),
		Slug:      slug,
		Name:      name,
		IsActive:  isActive,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	return sch
}

// CreateUser stores a user bypassing validation. usr.ID, timestamps and the role profile are filled in when missing.
func CreateUser(t *testing.T, repo user.Repository, usr user.User, pwd string) user.User {
	t.Helper()
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	if usr.CreatedAt.IsZero() {
		usr.CreatedAt = time.Now().UTC()
		usr.UpdatedAt = usr.CreatedAt
	}
	usr.Normalize()
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}
