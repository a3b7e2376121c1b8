package postgres

import (
	"context"
	"fmt"

	"qr-payment-ledger/internal/core/domain"
)

// SettlementRepo implements ports.SettlementRepository.
type SettlementRepo struct {
	pool Pool
}

// NewSettlementRepo creates a PostgreSQL-backed SettlementRepository.
func NewSettlementRepo(pool Pool) *SettlementRepo {
	return &SettlementRepo{pool: pool}
}

func (r *SettlementRepo) Create(ctx context.Context, log *domain.SettlementDeliveryLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO settlement_delivery_logs
		(id, redemption_id, reference_id, url, payload, http_status, attempt, status, last_error, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		log.ID, log.RedemptionID, log.ReferenceID, log.URL,
		log.Payload, log.HTTPStatus, log.Attempt, string(log.Status),
		log.LastError, log.CreatedAt, log.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert settlement log: %w", err)
	}
	return nil
}

func (r *SettlementRepo) Update(ctx context.Context, log *domain.SettlementDeliveryLog) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE settlement_delivery_logs
		 SET http_status=$1, attempt=$2, status=$3, last_error=$4, updated_at=$5
		 WHERE id=$6`,
		log.HTTPStatus, log.Attempt, string(log.Status),
		log.LastError, log.UpdatedAt, log.ID,
	)
	if err != nil {
		return fmt.Errorf("update settlement log: %w", err)
	}
	return nil
}
