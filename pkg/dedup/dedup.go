// Package dedup remembers which deliveries a consumer has already handled so
// redelivered messages and replayed callbacks run once.
package dedup

import (
	"context"
	"errors"
	"strings"
	"time"
)

type store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Guard marks keys in Redis. Marks expire after ttl; a zero ttl keeps them.
type Guard struct {
	store store
	ttl   time.Duration
}

func NewGuard(s store, ttl time.Duration) (*Guard, error) {
	if s == nil {
		return nil, errors.New("dedup store is required")
	}
	if ttl < 0 {
		return nil, errors.New("dedup ttl must not be negative")
	}
	return &Guard{store: s, ttl: ttl}, nil
}

// Seen marks key for consumer and reports whether it was marked already.
func (g *Guard) Seen(ctx context.Context, consumer, key string) (bool, error) {
	full, err := g.key(consumer, key)
	if err != nil {
		return false, err
	}
	fresh, err := g.store.SetNX(ctx, full, "1", g.ttl)
	if err != nil {
		return false, err
	}
	return !fresh, nil
}

// Forget drops the mark so the next delivery of key is handled again.
func (g *Guard) Forget(ctx context.Context, consumer, key string) error {
	full, err := g.key(consumer, key)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, full)
}

func (g *Guard) key(consumer, key string) (string, error) {
	switch {
	case consumer == "":
		return "", errors.New("dedup consumer is required")
	case strings.TrimSpace(key) == "":
		return "", errors.New("dedup key is required")
	}
	return g.store.IdempotencyKey("processed:"+consumer, key), nil
}
