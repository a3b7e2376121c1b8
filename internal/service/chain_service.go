package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"qr-payment-ledger/internal/core/domain"
	"qr-payment-ledger/internal/core/ports"
	"qr-payment-ledger/pkg/logger"

	"github.com/rs/zerolog"
)

var errChainEmpty = errors.New("chain has no genesis block")

// Chain implements ports.Ledger: an in-process, append-only sequence of
// sealed blocks. All mutation goes through Append; readers get copies.
type Chain struct {
	mu     sync.RWMutex
	blocks []domain.Block
	byRef  map[string]uint64

	difficulty uint8
	halted     atomic.Bool

	hasher ports.Hasher
	store  ports.BlockStore // nil = memory only
	log    zerolog.Logger
}

// NewChain creates an empty chain. Bootstrap must run before Append.
func NewChain(hasher ports.Hasher, store ports.BlockStore, difficulty uint8, log zerolog.Logger) (*Chain, error) {
	if err := domain.ValidateDifficulty(int(difficulty)); err != nil {
		return nil, err
	}
	return &Chain{
		byRef:      make(map[string]uint64),
		difficulty: difficulty,
		hasher:     hasher,
		store:      store,
		log:        logger.Component(log, "chain"),
	}, nil
}

// Bootstrap loads persisted blocks, or seeds a freshly mined genesis block
// when the store is empty. A persisted chain that fails validation halts the
// ledger and returns domain.ErrChainInvalid.
func (c *Chain) Bootstrap(ctx context.Context, miner ports.Miner) error {
	var loaded []domain.Block
	if c.store != nil {
		var err error
		loaded, err = c.store.LoadAll(ctx)
		if err != nil {
			return fmt.Errorf("loading blocks: %w", err)
		}
	}

	if len(loaded) == 0 {
		genesis, err := miner.Seal(ctx, domain.NewGenesisBlock(), c.difficulty)
		if err != nil {
			return fmt.Errorf("sealing genesis: %w", err)
		}
		if c.store != nil {
			if err := c.store.Append(ctx, genesis); err != nil {
				return fmt.Errorf("persisting genesis: %w", err)
			}
		}

		c.mu.Lock()
		c.blocks = []domain.Block{genesis}
		c.byRef = map[string]uint64{genesis.Payment.ReferenceID: 0}
		c.mu.Unlock()

		c.log.Info().Str("hash", genesis.Hash.String()).Uint8("difficulty", c.difficulty).Msg("genesis block created")
		return nil
	}

	c.mu.Lock()
	c.blocks = loaded
	c.byRef = make(map[string]uint64, len(loaded))
	// Keyed by position: a corrupt store may hold indexes that do not match.
	for i, b := range loaded {
		c.byRef[b.Payment.ReferenceID] = uint64(i)
	}
	c.mu.Unlock()

	report := c.Validate()
	if !report.Valid {
		return fmt.Errorf("%w: block %d: %s", domain.ErrChainInvalid, *report.FirstInvalid, report.Reason)
	}

	c.log.Info().Int("length", report.Length).Msg("chain loaded from store")
	return nil
}

// Append validates a sealed block against the current tail and, if every
// invariant holds, persists and appends it. The chain is unchanged on error.
// A block whose previous hash is no longer the tail fails with
// domain.ErrStaleTail so the caller can re-seal against the new tail.
func (c *Chain) Append(ctx context.Context, block domain.Block) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.halted.Load() {
		return 0, fmt.Errorf("%w: appends halted", domain.ErrChainInvalid)
	}
	if len(c.blocks) == 0 {
		return 0, errChainEmpty
	}

	tail := c.blocks[len(c.blocks)-1]
	if block.PreviousHash != tail.Hash {
		return 0, fmt.Errorf("%w: block links to %s, tail is %s", domain.ErrStaleTail, block.PreviousHash, tail.Hash)
	}
	if err := c.verifyBlock(block, &tail); err != nil {
		return 0, err
	}
	if _, dup := c.byRef[block.Payment.ReferenceID]; dup {
		return 0, fmt.Errorf("%w: %s", domain.ErrDuplicateReference, block.Payment.ReferenceID)
	}

	if c.store != nil {
		if err := c.store.Append(ctx, block); err != nil {
			return 0, fmt.Errorf("persisting block %d: %w", block.Index, err)
		}
	}

	c.blocks = append(c.blocks, block)
	c.byRef[block.Payment.ReferenceID] = block.Index

	c.log.Info().
		Uint64("index", block.Index).
		Str("hash", block.Hash.String()).
		Str("reference_id", block.Payment.ReferenceID).
		Msg("block appended")

	return block.Index, nil
}

// verifyBlock checks index, linkage, hash and work for b given its predecessor
// (nil for genesis). Callers hold at least the read lock.
func (c *Chain) verifyBlock(b domain.Block, prev *domain.Block) error {
	expectedIndex := uint64(0)
	expectedPrev := domain.ZeroDigest
	if prev != nil {
		expectedIndex = prev.Index + 1
		expectedPrev = prev.Hash
	}

	if b.Index != expectedIndex {
		return fmt.Errorf("%w: got %d, expected %d", domain.ErrIndexMismatch, b.Index, expectedIndex)
	}
	if b.PreviousHash != expectedPrev {
		return fmt.Errorf("%w: previous hash %s, expected %s", domain.ErrLinkageMismatch, b.PreviousHash, expectedPrev)
	}

	hash, err := HashBlock(c.hasher, b)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrHashMismatch, err)
	}
	if hash != b.Hash {
		return fmt.Errorf("%w: stored %s, derived %s", domain.ErrHashMismatch, b.Hash, hash)
	}

	if b.Difficulty < c.difficulty {
		return fmt.Errorf("%w: sealed at difficulty %d, minimum is %d", domain.ErrInsufficientWork, b.Difficulty, c.difficulty)
	}
	if !b.Hash.MeetsDifficulty(b.Difficulty) {
		return fmt.Errorf("%w: %d leading zero bits, need %d", domain.ErrInsufficientWork, b.Hash.LeadingZeroBits(), b.Difficulty)
	}
	return nil
}

// Validate re-walks the chain from genesis, re-deriving every hash and checking
// linkage, work and reference uniqueness. The first fault halts further appends.
func (c *Chain) Validate() *domain.ValidationReport {
	c.mu.RLock()
	defer c.mu.RUnlock()

	report := &domain.ValidationReport{Valid: true, Length: len(c.blocks)}
	if len(c.blocks) == 0 {
		return report
	}

	seen := make(map[string]struct{}, len(c.blocks))
	for i := range c.blocks {
		b := c.blocks[i]

		var prev *domain.Block
		if i > 0 {
			prev = &c.blocks[i-1]
		}

		err := c.verifyBlock(b, prev)
		if err == nil {
			if _, dup := seen[b.Payment.ReferenceID]; dup {
				err = fmt.Errorf("%w: %s", domain.ErrDuplicateReference, b.Payment.ReferenceID)
			}
		}
		if err != nil {
			idx := uint64(i)
			report.Valid = false
			report.FirstInvalid = &idx
			report.Reason = err.Error()

			c.halted.Store(true)
			c.log.Error().Err(err).Uint64("index", idx).Msg("chain validation failed, appends halted")
			return report
		}
		seen[b.Payment.ReferenceID] = struct{}{}
	}

	return report
}

// VerifyMember confirms that b is exactly the block stored at b.Index, that
// it is the block recorded for its reference, and that it still links to its
// predecessor with valid work. Any mismatch is domain.ErrUnknownBlock.
func (c *Chain) VerifyMember(b domain.Block) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if b.IsGenesis() {
		return fmt.Errorf("%w: genesis block is not redeemable", domain.ErrUnknownBlock)
	}
	if b.Index >= uint64(len(c.blocks)) {
		return fmt.Errorf("%w: no block at index %d", domain.ErrUnknownBlock, b.Index)
	}

	stored := c.blocks[b.Index]
	if subtle.ConstantTimeCompare(stored.Hash[:], b.Hash[:]) != 1 {
		return fmt.Errorf("%w: hash differs from block %d", domain.ErrUnknownBlock, b.Index)
	}
	if idx, ok := c.byRef[b.Payment.ReferenceID]; !ok || idx != b.Index {
		return fmt.Errorf("%w: reference %s not recorded at block %d", domain.ErrUnknownBlock, b.Payment.ReferenceID, b.Index)
	}
	if err := c.verifyBlock(b, &c.blocks[b.Index-1]); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUnknownBlock, err)
	}
	return nil
}

// FindByReference returns the block carrying a payment reference.
func (c *Chain) FindByReference(referenceID string) (domain.Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, ok := c.byRef[referenceID]
	if !ok || idx >= uint64(len(c.blocks)) {
		return domain.Block{}, false
	}
	return c.blocks[idx], true
}

// BlockAt returns the block at index.
func (c *Chain) BlockAt(index uint64) (domain.Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if index >= uint64(len(c.blocks)) {
		return domain.Block{}, false
	}
	return c.blocks[index], true
}

// Tail returns the most recently appended block.
func (c *Chain) Tail() domain.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.blocks) == 0 {
		return domain.Block{}
	}
	return c.blocks[len(c.blocks)-1]
}

// Blocks returns a copy of the chain in index order.
func (c *Chain) Blocks() []domain.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Block, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// Len returns the number of blocks including genesis.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

// Difficulty returns the minimum difficulty new blocks are sealed at.
func (c *Chain) Difficulty() uint8 {
	return c.difficulty
}

// Halted reports whether a validation fault has stopped appends.
func (c *Chain) Halted() bool {
	return c.halted.Load()
}
