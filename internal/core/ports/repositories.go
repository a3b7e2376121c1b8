package ports

//go:generate mockgen -source=repositories.go -destination=mocks/repositories_mock.go -package=mocks

import (
	"context"

	"qr-payment-ledger/internal/core/domain"
)

// BlockStore persists appended blocks. It is append-only: blocks are written
// once, in index order, and never updated or deleted.
type BlockStore interface {
	Append(ctx context.Context, block domain.Block) error
	LoadAll(ctx context.Context) ([]domain.Block, error)
}

// RedemptionStore records which payment references have been redeemed.
type RedemptionStore interface {
	// MarkRedeemed atomically records the redemption if the reference is not
	// yet marked. Returns false when it was already redeemed.
	MarkRedeemed(ctx context.Context, redemption *domain.Redemption) (bool, error)
	// Get returns the redemption for a reference, or nil if none exists.
	Get(ctx context.Context, referenceID string) (*domain.Redemption, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// SettlementRepository records settlement notice delivery attempts.
type SettlementRepository interface {
	Create(ctx context.Context, log *domain.SettlementDeliveryLog) error
	Update(ctx context.Context, log *domain.SettlementDeliveryLog) error
}
