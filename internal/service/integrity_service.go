package service

import (
	"context"
	"fmt"
	"time"

	"qr-payment-ledger/internal/core/domain"
	"qr-payment-ledger/internal/core/ports"
	"qr-payment-ledger/pkg/logger"

	"github.com/rs/zerolog"
)

// IntegrityAuditor re-validates the whole chain on a fixed interval. A failed
// audit leaves the ledger halted; the auditor keeps running so operators can
// see the fault persist in logs.
type IntegrityAuditor struct {
	ledger   ports.Ledger
	interval time.Duration
	log      zerolog.Logger
}

// NewIntegrityAuditor creates an auditor. interval <= 0 disables it.
func NewIntegrityAuditor(ledger ports.Ledger, interval time.Duration, log zerolog.Logger) *IntegrityAuditor {
	return &IntegrityAuditor{
		ledger:   ledger,
		interval: interval,
		log:      logger.Component(log, "integrity"),
	}
}

// Run blocks until ctx ends.
func (a *IntegrityAuditor) Run(ctx context.Context) {
	if a.interval <= 0 {
		return
	}
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.auditOnce()
		}
	}
}

func (a *IntegrityAuditor) auditOnce() bool {
	start := time.Now()
	report := a.ledger.Validate()
	if !report.Valid {
		a.log.Error().
			Uint64("first_invalid", *report.FirstInvalid).
			Str("reason", report.Reason).
			Msg("integrity audit failed")
		return false
	}
	a.log.Debug().
		Int("length", report.Length).
		Dur("took", time.Since(start)).
		Msg("integrity audit passed")
	return true
}

// Ping reports the ledger unhealthy once it has halted.
func (a *IntegrityAuditor) Ping(context.Context) error {
	if a.ledger.Halted() {
		return fmt.Errorf("%w: ledger halted", domain.ErrChainInvalid)
	}
	return nil
}

// Name returns the dependency name.
func (a *IntegrityAuditor) Name() string {
	return "ledger"
}
