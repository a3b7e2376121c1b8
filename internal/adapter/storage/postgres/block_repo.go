package postgres

import (
	"context"
	"errors"
	"fmt"

	"qr-payment-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// BlockRepo implements ports.BlockStore on the append-only ledger_blocks table.
type BlockRepo struct {
	pool Pool
}

// NewBlockRepo creates a new BlockRepo.
func NewBlockRepo(pool Pool) *BlockRepo {
	return &BlockRepo{pool: pool}
}

// Append inserts a sealed block. Rows are never updated.
func (r *BlockRepo) Append(ctx context.Context, block domain.Block) error {
	sealed, err := domain.EncodeSealed(block)
	if err != nil {
		return fmt.Errorf("encode block %d: %w", block.Index, err)
	}

	query := `INSERT INTO ledger_blocks (idx, reference_id, block_hash, previous_hash, sealed)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = r.pool.Exec(ctx, query,
		int64(block.Index), block.Payment.ReferenceID,
		block.Hash.String(), block.PreviousHash.String(), sealed,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			if pgErr.ConstraintName == "ledger_blocks_reference_id_key" {
				return fmt.Errorf("%w: %s", domain.ErrDuplicateReference, block.Payment.ReferenceID)
			}
			return fmt.Errorf("%w: block %d already stored", domain.ErrIndexMismatch, block.Index)
		}
		return fmt.Errorf("insert block %d: %w", block.Index, err)
	}
	return nil
}

// LoadAll reads every block in index order, decoding the stored canonical
// bytes. It does not validate the chain; the caller does.
func (r *BlockRepo) LoadAll(ctx context.Context) ([]domain.Block, error) {
	rows, err := r.pool.Query(ctx, `SELECT idx, sealed FROM ledger_blocks ORDER BY idx`)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()

	var blocks []domain.Block
	for rows.Next() {
		var (
			idx    int64
			sealed []byte
		)
		if err := rows.Scan(&idx, &sealed); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		b, err := domain.DecodeSealed(sealed)
		if err != nil {
			return nil, fmt.Errorf("decode block %d: %w", idx, err)
		}
		if b.Index != uint64(idx) {
			return nil, fmt.Errorf("%w: row %d holds block %d", domain.ErrIndexMismatch, idx, b.Index)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}
