package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"geotag/internal/types"
)

// Store persists sessions. Update applies fn to the latest copy and bumps
// the version; a concurrent writer yields ErrConflict.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id types.ID) (*Session, error)
	Update(ctx context.Context, id types.ID, fn func(*Session) error) (*Session, error)
	Delete(ctx context.Context, id types.ID) error
}

const maxUpdateRetries = 3

// RedisStore keeps each session as a JSON value with a sliding TTL.
type RedisStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *goredis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func sessionKey(id types.ID) string {
	return fmt.Sprintf("session:%s", id)
}

func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ok, err := r.rdb.SetNX(ctx, sessionKey(s.ID), b, r.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id types.ID) (*Session, error) {
	return r.get(ctx, r.rdb, id)
}

func (r *RedisStore) get(ctx context.Context, c goredis.Cmdable, id types.ID) (*Session, error) {
	b, err := c.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

// Update runs fn inside WATCH/MULTI so two writers never interleave.
func (r *RedisStore) Update(ctx context.Context, id types.ID, fn func(*Session) error) (*Session, error) {
	key := sessionKey(id)
	var out *Session
	for range maxUpdateRetries {
		err := r.rdb.Watch(ctx, func(tx *goredis.Tx) error {
			s, err := r.get(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := fn(s); err != nil {
				return err
			}
			s.Version++
			s.UpdatedAt = time.Now().UTC()
			b, err := json.Marshal(s)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
				p.Set(ctx, key, b, r.ttl)
				return nil
			})
			if err != nil {
				return err
			}
			out = s
			return nil
		}, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, ErrConflict
}

func (r *RedisStore) Delete(ctx context.Context, id types.ID) error {
	return r.rdb.Del(ctx, sessionKey(id)).Err()
}

// MemoryStore is the single-instance store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[types.ID]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[types.ID]Session)}
}

func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return ErrConflict
	}
	m.sessions[s.ID] = *s
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id types.ID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

// Update holds the lock for the duration of fn.
func (m *MemoryStore) Update(_ context.Context, id types.ID, fn func(*Session) error) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := fn(&s); err != nil {
		return nil, err
	}
	s.Version++
	s.UpdatedAt = time.Now().UTC()
	m.sessions[id] = s
	out := s
	return &out, nil
}

func (m *MemoryStore) Delete(_ context.Context, id types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
