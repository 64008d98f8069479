package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/redis"
)

const deliveredScope = "outbox:delivered"

// Guard records which outbox rows have been handed to a sink. A claim is a
// Redis SETNX holding the claiming worker's id; it outlives the database
// transaction, so a row whose publish went out but whose published_at write was
// rolled back is not sent again. Keys look like
// shop:idempotency:outbox:delivered:<consumer>:<event_id>.
type Guard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	owner string
}

// NewGuard returns a guard whose claims expire after ttl. A zero ttl keeps
// claims until they are released.
func NewGuard(store redis.IdempotencyStore, ttl time.Duration, owner string) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if owner == "" {
		owner = "unknown"
	}
	return &Guard{store: store, ttl: ttl, owner: owner}, nil
}

// Claim reports true when the caller now owns delivery of eventID and false
// when an earlier claim is still live.
func (g *Guard) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	claimed, err := g.store.SetNX(ctx, key, g.owner, g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", eventID, err)
	}
	return claimed, nil
}

// Release drops a claim after a failed delivery so the retry can go out.
func (g *Guard) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

// Owner returns the worker id holding the claim, or "" when there is none.
func (g *Guard) Owner(ctx context.Context, consumer string, eventID uuid.UUID) (string, error) {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return "", err
	}
	owner, err := g.store.Get(ctx, key)
	if errors.Is(err, redis.ErrNotFound) {
		return "", nil
	}
	return owner, err
}

func (g *Guard) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey(deliveredScope+":"+consumer, eventID.String()), nil
}
