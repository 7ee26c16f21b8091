// Package dummydb is an in-memory implementation of the repositories, used by tests.
package dummydb

import (
	"sync"

	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type (
	DB struct {
		user   *userTable
		school *schoolTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	schoolTable struct {
		sync.RWMutex
		table map[string]*school.School
	}
)

func Open() *DB {
	return &DB{
		user:   &userTable{table: make(map[string]*user.User)},
		school: &schoolTable{table: make(map[string]*school.School)},
	}
}
