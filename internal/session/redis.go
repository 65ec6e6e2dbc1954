package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oggyb/matchbot/internal/cache"
	svcErr "github.com/oggyb/matchbot/internal/errors"
)

// RedisStore keeps sessions in Redis as JSON so several bot instances can
// share them. ttl 0 keeps sessions until the next reset.
type RedisStore struct {
	cache *cache.RedisCache
	ttl   time.Duration
}

func NewRedisStore(c *cache.RedisCache, ttl time.Duration) *RedisStore {
	return &RedisStore{cache: c, ttl: ttl}
}

func (r *RedisStore) Load(ctx context.Context, userID int64) (*Session, error) {
	raw, err := r.cache.Get(ctx, r.cache.KeyForSession(userID))
	if errors.Is(err, cache.ErrMiss) {
		return New(), nil
	}
	if err != nil {
		return nil, svcErr.Storage("failed to load session", err)
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil || !s.State.Valid() {
		// unreadable session: start over rather than wedge the user
		return New(), nil
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, userID int64, s *Session) error {
	key := r.cache.KeyForSession(userID)
	if s.Empty() {
		if err := r.cache.Del(ctx, key); err != nil {
			return svcErr.Storage("failed to clear session", err)
		}
		return nil
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return svcErr.Storage("failed to encode session", err)
	}
	if err := r.cache.Set(ctx, key, raw, r.ttl); err != nil {
		return svcErr.Storage("failed to save session", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, userID int64) error {
	if err := r.cache.Del(ctx, r.cache.KeyForSession(userID)); err != nil {
		return svcErr.Storage("failed to delete session", err)
	}
	return nil
}
