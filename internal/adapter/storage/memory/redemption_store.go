package memory

import (
	"context"
	"sync"

	"qr-payment-ledger/internal/core/domain"
)

// RedemptionStore is an in-process ports.RedemptionStore keyed by payment reference.
type RedemptionStore struct {
	mu          sync.RWMutex
	redemptions map[string]domain.Redemption
}

// NewRedemptionStore creates an empty in-memory redemption store.
func NewRedemptionStore() *RedemptionStore {
	return &RedemptionStore{redemptions: make(map[string]domain.Redemption)}
}

// MarkRedeemed records the redemption unless the reference is already marked.
func (s *RedemptionStore) MarkRedeemed(ctx context.Context, r *domain.Redemption) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.redemptions[r.ReferenceID]; exists {
		return false, nil
	}
	s.redemptions[r.ReferenceID] = *r
	return true, nil
}

// Get returns the redemption for a reference, or nil if it has not been redeemed.
func (s *RedemptionStore) Get(ctx context.Context, referenceID string) (*domain.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.redemptions[referenceID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}
