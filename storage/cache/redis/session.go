package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/shule/core/session"
)

const maxIDAttempts = 3

var errIDCollision = errors.New("could not allocate a unique session id")

// SessionStore stores sessions as JSON blobs under "<prefix>:<id>" with a TTL.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
}

var _ session.Store = (*SessionStore)(nil) // interface compliance check

func NewSessionStore(client redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{client: client, prefix: prefix}
}

func (st *SessionStore) key(id string) string {
	return st.prefix + ":" + id
}

func (st *SessionStore) Create(ctx context.Context, s session.Session, ttl time.Duration) (session.Session, error) {
	if ttl <= 0 {
		return session.Session{}, errors.Errorf("invalid session ttl %v", ttl)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "marshalling session")
	}

	for i := 0; i < maxIDAttempts; i++ {
		id, err := session.NewID()
		if err != nil {
			return session.Session{}, errors.Wrap(err, "generating session id")
		}
		ok, err := st.client.SetNX(ctx, st.key(id), data, ttl).Result()
		if err != nil {
			return session.Session{}, errors.Wrap(err, "storing session")
		}
		if ok {
			s.ID = id
			return s, nil
		}
	}
	return session.Session{}, errIDCollision
}

func (st *SessionStore) Get(ctx context.Context, id string) (session.Session, error) {
	if id == "" {
		return session.Session{}, session.ErrNotFound
	}
	data, err := st.client.Get(ctx, st.key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, errors.Wrap(err, "getting session")
	}

	var s session.Session
	if err = json.Unmarshal(data, &s); err != nil {
		return session.Session{}, errors.Wrap(err, "unmarshalling session")
	}
	s.ID = id
	return s, nil
}

func (st *SessionStore) Update(ctx context.Context, s session.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "marshalling session")
	}
	err = st.client.SetArgs(ctx, st.key(s.ID), data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if err != nil {
		if err == redis.Nil {
			return session.ErrNotFound
		}
		return errors.Wrap(err, "updating session")
	}
	return nil
}

func (st *SessionStore) Destroy(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	n, err := st.client.Del(ctx, st.key(id)).Result()
	if err != nil {
		return false, errors.Wrap(err, "deleting session")
	}
	return n == 1, nil
}

func (st *SessionStore) TTL(ctx context.Context, id string) (time.Duration, error) {
	d, err := st.client.TTL(ctx, st.key(id)).Result()
	if err != nil {
		return 0, errors.Wrap(err, "getting session ttl")
	}
	switch {
	case d == -2:
		return 0, session.ErrNotFound
	case d < 0:
		return 0, nil
	}
	return d, nil
}
