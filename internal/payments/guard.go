package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/feriando/feriando-backend/pkg/redis"
)

// WebhookGuard is the fast-path duplicate filter for payment notifications.
// It is best effort: the processed_payments unique constraint is what makes
// duplicate application impossible, the guard just keeps repeats from
// reaching the processor API.
type WebhookGuard struct {
	store    redis.IdempotencyStore
	ttl      time.Duration
	provider string
}

func NewWebhookGuard(store redis.IdempotencyStore, ttl time.Duration, provider string) (*WebhookGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if provider == "" {
		return nil, errors.New("provider is required")
	}
	return &WebhookGuard{
		store:    store,
		ttl:      ttl,
		provider: provider,
	}, nil
}

// CheckAndMark returns true when the payment id was already seen.
func (g *WebhookGuard) CheckAndMark(ctx context.Context, paymentID string) (bool, error) {
	if paymentID == "" {
		return false, errors.New("payment id is required")
	}
	key := g.store.WebhookGuardKey(g.provider, paymentID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set webhook guard key: %w", err)
	}
	return !set, nil
}

// Release drops the guard so a later delivery can retry the payment.
func (g *WebhookGuard) Release(ctx context.Context, paymentID string) error {
	if paymentID == "" {
		return errors.New("payment id is required")
	}
	key := g.store.WebhookGuardKey(g.provider, paymentID)
	return g.store.Del(ctx, key)
}
