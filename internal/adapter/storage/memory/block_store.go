package memory

import (
	"context"
	"fmt"
	"sync"

	"qr-payment-ledger/internal/core/domain"
)

// BlockStore is an in-process ports.BlockStore. Blocks do not survive a restart.
type BlockStore struct {
	mu     sync.RWMutex
	blocks []domain.Block
}

// NewBlockStore creates an empty in-memory block store.
func NewBlockStore() *BlockStore {
	return &BlockStore{}
}

// Append stores the next block. Blocks must arrive in index order.
func (s *BlockStore) Append(ctx context.Context, block domain.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if block.Index != uint64(len(s.blocks)) {
		return fmt.Errorf("%w: store holds %d blocks, got index %d", domain.ErrIndexMismatch, len(s.blocks), block.Index)
	}
	s.blocks = append(s.blocks, block)
	return nil
}

// LoadAll returns a copy of every stored block in index order.
func (s *BlockStore) LoadAll(ctx context.Context) ([]domain.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Block, len(s.blocks))
	copy(out, s.blocks)
	return out, nil
}
