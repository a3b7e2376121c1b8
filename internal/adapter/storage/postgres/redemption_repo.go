package postgres

import (
	"context"
	"errors"
	"fmt"

	"qr-payment-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// RedemptionRepo implements ports.RedemptionStore on ledger_redemptions.
type RedemptionRepo struct {
	pool Pool
}

// NewRedemptionRepo creates a new RedemptionRepo.
func NewRedemptionRepo(pool Pool) *RedemptionRepo {
	return &RedemptionRepo{pool: pool}
}

// MarkRedeemed inserts the redemption unless the reference already has one.
// The primary key on reference_id makes this an atomic check-and-set.
func (r *RedemptionRepo) MarkRedeemed(ctx context.Context, red *domain.Redemption) (bool, error) {
	query := `INSERT INTO ledger_redemptions (reference_id, id, block_index, block_hash, redeemed_by, redeemed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (reference_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		red.ReferenceID, red.ID, int64(red.BlockIndex),
		red.BlockHash.String(), red.RedeemedBy, red.RedeemedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert redemption: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Get fetches the redemption for a reference.
func (r *RedemptionRepo) Get(ctx context.Context, referenceID string) (*domain.Redemption, error) {
	query := `SELECT reference_id, id, block_index, block_hash, redeemed_by, redeemed_at
		FROM ledger_redemptions WHERE reference_id = $1`

	var (
		red   domain.Redemption
		idx   int64
		hashS string
	)
	err := r.pool.QueryRow(ctx, query, referenceID).Scan(
		&red.ReferenceID, &red.ID, &idx, &hashS, &red.RedeemedBy, &red.RedeemedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get redemption: %w", err)
	}

	red.BlockIndex = uint64(idx)
	if red.BlockHash, err = domain.ParseDigest(hashS); err != nil {
		return nil, fmt.Errorf("get redemption: %w", err)
	}
	return &red, nil
}
