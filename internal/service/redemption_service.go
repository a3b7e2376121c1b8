package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"qr-payment-ledger/internal/core/domain"
	"qr-payment-ledger/internal/core/ports"
	"qr-payment-ledger/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RedemptionServiceImpl implements ports.RedemptionService. It is the single
// entry point for scanned codes: decode, authenticate, check chain membership,
// then enforce one-time use.
type RedemptionServiceImpl struct {
	ledger   ports.Ledger
	codec    ports.EnvelopeCodec
	store    ports.RedemptionStore
	notifier ports.SettlementNotifier // nil = no settlement collaborator

	// mu serializes redemption marks so at most one is in flight.
	mu  sync.Mutex
	now func() time.Time
	log zerolog.Logger
}

// NewRedemptionService creates a new redemption service.
func NewRedemptionService(
	ledger ports.Ledger,
	codec ports.EnvelopeCodec,
	store ports.RedemptionStore,
	notifier ports.SettlementNotifier,
	log zerolog.Logger,
) *RedemptionServiceImpl {
	return &RedemptionServiceImpl{
		ledger:   ledger,
		codec:    codec,
		store:    store,
		notifier: notifier,
		now:      time.Now,
		log:      logger.Component(log, "verifier"),
	}
}

// Redeem checks a code and, if every check passes, marks its payment
// reference redeemed and hands the payment to the settlement collaborator.
func (s *RedemptionServiceImpl) Redeem(ctx context.Context, req ports.RedeemRequest) (*domain.RedemptionResult, error) {
	block, env, err := s.check(req.Code)
	if err != nil {
		s.logDenied(err, block, req.ClientIP)
		return nil, err
	}

	redemption := &domain.Redemption{
		ID:          uuid.New(),
		ReferenceID: block.Payment.ReferenceID,
		BlockIndex:  block.Index,
		BlockHash:   block.Hash,
		RedeemedBy:  req.RedeemedBy,
		RedeemedAt:  s.now().UTC(),
	}

	s.mu.Lock()
	marked, err := s.store.MarkRedeemed(ctx, redemption)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("marking redemption: %w", err)
	}
	if !marked {
		err := fmt.Errorf("%w: reference %s", domain.ErrAlreadyRedeemed, block.Payment.ReferenceID)
		s.logDenied(err, block, req.ClientIP)
		return nil, err
	}

	s.log.Info().
		Str("reference_id", redemption.ReferenceID).
		Uint64("index", redemption.BlockIndex).
		Str("redeemed_by", redemption.RedeemedBy).
		Msg("payment redeemed")

	if s.notifier != nil {
		if err := s.notifier.NotifyRedeemed(ctx, *redemption, block); err != nil {
			// The mark stands even when settlement cannot be queued.
			s.log.Error().Err(err).Str("reference_id", redemption.ReferenceID).Msg("settlement notification failed")
		}
	}

	return &domain.RedemptionResult{
		Block:      block,
		Redeemed:   true,
		Redemption: redemption,
		ExpiresAt:  expiryPtr(env),
	}, nil
}

// Inspect runs the same checks as Redeem without consuming the code and
// reports whether it has already been redeemed.
func (s *RedemptionServiceImpl) Inspect(ctx context.Context, code string) (*domain.RedemptionResult, error) {
	block, env, err := s.check(code)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.Get(ctx, block.Payment.ReferenceID)
	if err != nil {
		return nil, fmt.Errorf("looking up redemption: %w", err)
	}

	return &domain.RedemptionResult{
		Block:      block,
		Redeemed:   existing != nil,
		Redemption: existing,
		ExpiresAt:  expiryPtr(env),
	}, nil
}

// check authenticates the code before trusting any recovered field, then
// confirms the block is exactly the one the chain holds.
func (s *RedemptionServiceImpl) check(code string) (domain.Block, domain.Envelope, error) {
	env, err := s.codec.DecodeCode(code)
	if err != nil {
		return domain.Block{}, env, err
	}
	block, err := s.codec.Open(env)
	if err != nil {
		return domain.Block{}, env, err
	}

	if env.Expired(s.now()) {
		return block, env, fmt.Errorf("%w: expired at %s", domain.ErrExpiredCode, env.ExpiresAt.Format(time.RFC3339))
	}
	if s.ledger.Halted() {
		return block, env, fmt.Errorf("%w: ledger halted, redemptions suspended", domain.ErrChainInvalid)
	}
	if err := s.ledger.VerifyMember(block); err != nil {
		return block, env, err
	}
	return block, env, nil
}

func (s *RedemptionServiceImpl) logDenied(err error, block domain.Block, ip string) {
	ev := s.log.Warn()
	if errors.Is(err, domain.ErrTamperedEnvelope) || errors.Is(err, domain.ErrUnknownBlock) {
		ev = s.log.Error()
	}
	ev.Err(err).
		Str("reference_id", block.Payment.ReferenceID).
		Uint64("index", block.Index).
		Str("ip", ip).
		Msg("redemption denied")
}

func expiryPtr(env domain.Envelope) *time.Time {
	if env.ExpiresAt.IsZero() {
		return nil
	}
	t := env.ExpiresAt
	return &t
}
