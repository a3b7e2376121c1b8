package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"runtime"
	"time"

	"qr-payment-ledger/internal/core/domain"
	"qr-payment-ledger/internal/core/ports"
	"qr-payment-ledger/pkg/logger"

	"github.com/rs/zerolog"
)

const (
	// cancelCheckInterval is how many nonces are tried between context checks.
	cancelCheckInterval = 4096
	// progressLogInterval is how many nonces are tried between debug progress logs.
	progressLogInterval = 1 << 22
)

// PoWMiner implements ports.Miner with a brute-force nonce search.
// At most `workers` searches run at once; callers beyond that wait for a
// slot or for their context to end.
type PoWMiner struct {
	hasher ports.Hasher
	slots  chan struct{}
	now    func() time.Time
	log    zerolog.Logger
}

// NewPoWMiner creates a miner with a bounded pool of search workers.
// workers <= 0 uses runtime.NumCPU().
func NewPoWMiner(hasher ports.Hasher, workers int, log zerolog.Logger) *PoWMiner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &PoWMiner{
		hasher: hasher,
		slots:  make(chan struct{}, workers),
		now:    time.Now,
		log:    logger.Component(log, "miner"),
	}
}

type sealResult struct {
	block domain.Block
	err   error
}

// Seal stamps the block with the current time and searches for a nonce whose
// digest meets difficulty. The caller's block is not modified. If ctx ends
// first, Seal returns promptly with domain.ErrSealCancelled.
func (m *PoWMiner) Seal(ctx context.Context, block domain.Block, difficulty uint8) (domain.Block, error) {
	if err := domain.ValidateDifficulty(int(difficulty)); err != nil {
		return domain.Block{}, err
	}

	select {
	case m.slots <- struct{}{}:
	case <-ctx.Done():
		return domain.Block{}, fmt.Errorf("%w: waiting for worker: %w", domain.ErrSealCancelled, ctx.Err())
	}

	out := make(chan sealResult, 1)
	go func() {
		defer func() { <-m.slots }()
		sealed, err := m.search(ctx, block, difficulty)
		out <- sealResult{block: sealed, err: err}
	}()

	select {
	case r := <-out:
		return r.block, r.err
	case <-ctx.Done():
		return domain.Block{}, fmt.Errorf("%w: %w", domain.ErrSealCancelled, ctx.Err())
	}
}

// search is the proof-of-work loop. The nonce starts at a random point and
// increments until the digest has enough leading zero bits. The nonce bytes
// are patched into the encoded block in place.
func (m *PoWMiner) search(ctx context.Context, b domain.Block, difficulty uint8) (domain.Block, error) {
	b.Difficulty = difficulty
	b.Timestamp = domain.NormalizeTime(m.now())
	b.Hash = domain.Digest{}

	start, err := randomNonce()
	if err != nil {
		return domain.Block{}, err
	}
	b.Nonce = start

	buf, err := domain.CanonicalEncode(b)
	if err != nil {
		return domain.Block{}, err
	}
	nonceBytes := buf[domain.NonceOffset : domain.NonceOffset+8]

	m.log.Debug().
		Uint64("index", b.Index).
		Uint8("difficulty", difficulty).
		Str("reference_id", b.Payment.ReferenceID).
		Msg("mining started")

	nonce := start
	var attempts uint64
	for {
		attempts++
		if attempts%cancelCheckInterval == 0 {
			if ctx.Err() != nil {
				m.log.Debug().Uint64("index", b.Index).Uint64("attempts", attempts).Msg("mining cancelled")
				return domain.Block{}, fmt.Errorf("%w: %w", domain.ErrSealCancelled, ctx.Err())
			}
			if attempts%progressLogInterval == 0 {
				m.log.Debug().Uint64("index", b.Index).Uint64("attempts", attempts).Msg("mining in progress")
			}
		}

		binary.BigEndian.PutUint64(nonceBytes, nonce)
		hash := m.hasher.Sum(buf)
		if hash.MeetsDifficulty(difficulty) {
			if ctx.Err() != nil {
				return domain.Block{}, fmt.Errorf("%w: %w", domain.ErrSealCancelled, ctx.Err())
			}
			b.Nonce = nonce
			b.Hash = hash

			m.log.Info().
				Uint64("index", b.Index).
				Uint64("attempts", attempts).
				Str("hash", hash.String()).
				Msg("block sealed")
			return b, nil
		}

		nonce++
		if nonce == start {
			// Nonce space exhausted for this timestamp; move the clock and go again.
			b.Timestamp = domain.NormalizeTime(m.now())
			binary.BigEndian.PutUint64(buf[domain.TimestampOffset:domain.TimestampOffset+8], uint64(b.Timestamp.UnixNano()))
		}
	}
}

func randomNonce() (uint64, error) {
	var raw [8]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return 0, fmt.Errorf("generating start nonce: %w", err)
	}
	return binary.BigEndian.Uint64(raw[:]), nil
}
