package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"qr-payment-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// RedemptionStore implements ports.RedemptionStore using Redis SET NX.
// Each marker holds the JSON-encoded redemption under redeemed:<reference>.
type RedemptionStore struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration // 0 keeps markers forever
}

// NewRedemptionStore creates a new Redis-backed redemption store.
func NewRedemptionStore(client *goredis.Client, ttl time.Duration) *RedemptionStore {
	return &RedemptionStore{
		client: client,
		prefix: "redeemed:",
		ttl:    ttl,
	}
}

// MarkRedeemed atomically sets the marker if it does not exist.
// Returns true if this call created it, false if the reference was already redeemed.
func (s *RedemptionStore) MarkRedeemed(ctx context.Context, red *domain.Redemption) (bool, error) {
	val, err := json.Marshal(red)
	if err != nil {
		return false, fmt.Errorf("encode redemption: %w", err)
	}

	args := goredis.SetArgs{Mode: "NX"}
	if s.ttl > 0 {
		args.TTL = s.ttl
	}
	result, err := s.client.SetArgs(ctx, s.prefix+red.ReferenceID, val, args).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis mark redeemed: %w", err)
	}
	return result == "OK", nil
}

// Get returns the stored redemption, or nil if the reference has none.
func (s *RedemptionStore) Get(ctx context.Context, referenceID string) (*domain.Redemption, error) {
	val, err := s.client.Get(ctx, s.prefix+referenceID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get redemption: %w", err)
	}

	var red domain.Redemption
	if err := json.Unmarshal(val, &red); err != nil {
		return nil, fmt.Errorf("decode redemption %s: %w", referenceID, err)
	}
	return &red, nil
}
