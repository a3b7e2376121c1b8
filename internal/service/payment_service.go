package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qr-payment-ledger/internal/core/domain"
	"qr-payment-ledger/internal/core/ports"
	"qr-payment-ledger/pkg/logger"

	"github.com/rs/zerolog"
)

const (
	defaultMaxSealAttempts = 5
	defaultMineTimeout     = 30 * time.Second
)

// SealOptions bounds the work spent sealing one payment.
type SealOptions struct {
	MaxAttempts int           // re-seals allowed after a stale tail
	MineTimeout time.Duration // per attempt
}

// PaymentServiceImpl implements ports.PaymentService: it seals payment
// intents into the chain and wraps the appended block into a code.
type PaymentServiceImpl struct {
	ledger ports.Ledger
	miner  ports.Miner
	codec  ports.EnvelopeCodec
	opts   SealOptions
	log    zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	ledger ports.Ledger,
	miner ports.Miner,
	codec ports.EnvelopeCodec,
	opts SealOptions,
	log zerolog.Logger,
) *PaymentServiceImpl {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxSealAttempts
	}
	if opts.MineTimeout <= 0 {
		opts.MineTimeout = defaultMineTimeout
	}
	return &PaymentServiceImpl{
		ledger: ledger,
		miner:  miner,
		codec:  codec,
		opts:   opts,
		log:    logger.Component(log, "payments"),
	}
}

// IssuePayment seals the intent into a new block on the current tail and
// returns the scannable code for it. Mining happens outside the chain lock;
// if another block lands first, the seal is stale and is redone against the
// new tail, up to MaxAttempts times.
func (s *PaymentServiceImpl) IssuePayment(ctx context.Context, intent domain.Payment) (*domain.IssuedCode, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}

	var (
		block domain.Block
		err   error
	)
	attempt := 1
	for ; attempt <= s.opts.MaxAttempts; attempt++ {
		block, err = s.sealOnce(ctx, intent)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrStaleTail) {
			return nil, err
		}
		s.log.Warn().
			Str("reference_id", intent.ReferenceID).
			Int("attempt", attempt).
			Msg("tail moved during seal, retrying")
	}
	if err != nil {
		s.log.Error().
			Str("reference_id", intent.ReferenceID).
			Int("attempts", s.opts.MaxAttempts).
			Msg("seal attempts exhausted")
		return nil, fmt.Errorf("after %d attempts: %w", s.opts.MaxAttempts, err)
	}

	env, err := s.codec.Seal(block)
	if err != nil {
		return nil, fmt.Errorf("sealing envelope: %w", err)
	}

	issued := &domain.IssuedCode{
		Block:    block,
		Code:     s.codec.EncodeCode(env),
		Attempts: attempt,
	}
	if !env.ExpiresAt.IsZero() {
		exp := env.ExpiresAt
		issued.ExpiresAt = &exp
	}

	s.log.Info().
		Str("reference_id", intent.ReferenceID).
		Uint64("index", block.Index).
		Int("attempts", attempt).
		Msg("payment code issued")

	return issued, nil
}

// sealOnce captures the tail, mines a block on it and tries to append it.
func (s *PaymentServiceImpl) sealOnce(ctx context.Context, intent domain.Payment) (domain.Block, error) {
	if _, exists := s.ledger.FindByReference(intent.ReferenceID); exists {
		return domain.Block{}, fmt.Errorf("%w: %s", domain.ErrDuplicateReference, intent.ReferenceID)
	}
	if s.ledger.Halted() {
		return domain.Block{}, fmt.Errorf("%w: appends halted", domain.ErrChainInvalid)
	}

	tail := s.ledger.Tail()
	candidate, err := domain.NewBlock(tail.Index+1, tail.Hash, intent)
	if err != nil {
		return domain.Block{}, err
	}

	mineCtx, cancel := context.WithTimeout(ctx, s.opts.MineTimeout)
	defer cancel()

	sealed, err := s.miner.Seal(mineCtx, candidate, s.ledger.Difficulty())
	if err != nil {
		return domain.Block{}, err
	}

	if _, err := s.ledger.Append(ctx, sealed); err != nil {
		return domain.Block{}, err
	}
	return sealed, nil
}
