package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ateliemoda/backend-atelie/internal/tenant"
)

// ErrSessionNotFound is returned when no session exists for an event.
var ErrSessionNotFound = errors.New("reconcile: session not found")

// SessionStore persists in-progress reconciliation sessions. Sessions are
// working state, not records; confirmed results land in Postgres and the
// session is discarded.
type SessionStore interface {
	Get(ctx context.Context, eventID string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, eventID string) error
}

// RedisStore keeps sessions as JSON under tenant-prefixed keys with a TTL so
// abandoned counts expire on their own.
type RedisStore struct {
	R   *redis.Client
	TTL time.Duration
}

func (st *RedisStore) key(ctx context.Context, eventID string) (string, error) {
	tid, ok := tenant.FromContext(ctx)
	if !ok {
		return "", tenant.ErrMissingTenant
	}
	return tenant.PrefixKey(tid, "reconcile:"+eventID), nil
}

func (st *RedisStore) Get(ctx context.Context, eventID string) (*Session, error) {
	key, err := st.key(ctx, eventID)
	if err != nil {
		return nil, err
	}
	data, err := st.R.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (st *RedisStore) Save(ctx context.Context, s *Session) error {
	key, err := st.key(ctx, s.EventID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := st.R.Set(ctx, key, data, st.TTL).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (st *RedisStore) Delete(ctx context.Context, eventID string) error {
	key, err := st.key(ctx, eventID)
	if err != nil {
		return err
	}
	if err := st.R.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
