package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"qr-payment-ledger/internal/core/domain"
	"qr-payment-ledger/internal/core/ports"
	"qr-payment-ledger/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// settlementRetryIntervals are the waits between delivery attempts.
var settlementRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

const (
	HeaderSettlementSignature = "X-Ledger-Signature"
	HeaderSettlementTimestamp = "X-Ledger-Timestamp"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// SettlementService implements ports.SettlementNotifier. It posts a signed
// notice of each redemption to the funds-movement collaborator, retrying in
// the background.
type SettlementService struct {
	url        string
	secret     string
	sigSvc     ports.SignatureService
	repo       ports.SettlementRepository // nil = attempts are only logged
	httpClient HTTPClient
	intervals  []time.Duration
	wg         sync.WaitGroup
	log        zerolog.Logger
}

// NewSettlementService creates a new settlement notifier for url.
func NewSettlementService(
	url string,
	secret string,
	sigSvc ports.SignatureService,
	repo ports.SettlementRepository,
	httpClient HTTPClient,
	log zerolog.Logger,
) *SettlementService {
	return &SettlementService{
		url:        url,
		secret:     secret,
		sigSvc:     sigSvc,
		repo:       repo,
		httpClient: httpClient,
		intervals:  settlementRetryIntervals,
		log:        logger.Component(log, "settlement"),
	}
}

// NotifyRedeemed queues delivery of a settlement notice and returns once the
// notice is built. Delivery runs asynchronously with retries.
func (s *SettlementService) NotifyRedeemed(ctx context.Context, r domain.Redemption, block domain.Block) error {
	notice := domain.SettlementNotice{
		RedemptionID: r.ID.String(),
		ReferenceID:  r.ReferenceID,
		BlockIndex:   block.Index,
		BlockHash:    block.Hash.String(),
		SenderID:     block.Payment.SenderID,
		ReceiverID:   block.Payment.ReceiverID,
		Amount:       block.Payment.Amount,
		Currency:     block.Payment.Currency,
		RedeemedAt:   r.RedeemedAt.Unix(),
	}

	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshaling settlement notice: %w", err)
	}

	delivery := &domain.SettlementDeliveryLog{
		ID:           uuid.New(),
		RedemptionID: r.ID,
		ReferenceID:  r.ReferenceID,
		URL:          s.url,
		Payload:      string(body),
		Status:       domain.SettlementStatusPending,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if s.repo != nil {
		if err := s.repo.Create(ctx, delivery); err != nil {
			s.log.Warn().Err(err).Str("reference_id", r.ReferenceID).Msg("failed to record settlement delivery")
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.deliverWithRetries(body, delivery)
	}()
	return nil
}

// Wait blocks until every queued delivery has finished or ctx ends.
func (s *SettlementService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliverWithRetries attempts delivery until a 2xx response or the retry
// schedule runs out.
func (s *SettlementService) deliverWithRetries(body []byte, delivery *domain.SettlementDeliveryLog) {
	ref := delivery.ReferenceID

	for attempt := 0; attempt <= len(s.intervals); attempt++ {
		if attempt > 0 {
			time.Sleep(s.intervals[attempt-1])
		}
		delivery.Attempt = attempt + 1

		status, err := s.post(body)
		if err == nil && status >= 200 && status < 300 {
			s.log.Info().Str("reference_id", ref).Int("attempt", attempt+1).Int("status", status).Msg("settlement: delivered")
			s.record(delivery, domain.SettlementStatusDelivered, status, nil)
			return
		}

		if err == nil {
			err = fmt.Errorf("non-2xx response: %d", status)
		}
		s.log.Warn().Err(err).Str("reference_id", ref).Int("attempt", attempt+1).Msg("settlement: delivery failed")
		s.record(delivery, domain.SettlementStatusPending, status, err)
	}

	s.log.Error().Str("reference_id", ref).Msg("settlement: all retry attempts exhausted")
	s.record(delivery, domain.SettlementStatusFailed, 0, nil)
}

func (s *SettlementService) post(body []byte) (int, error) {
	ts := time.Now().Unix()
	signature := s.sigSvc.Sign(s.secret, s.sigSvc.BuildSignedPayload(ts, body))

	req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSettlementTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSettlementSignature, signature)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (s *SettlementService) record(d *domain.SettlementDeliveryLog, status domain.SettlementStatus, httpStatus int, deliveryErr error) {
	if s.repo == nil {
		return
	}
	d.Status = status
	d.UpdatedAt = time.Now()
	if httpStatus != 0 {
		code := httpStatus
		d.HTTPStatus = &code
	}
	if deliveryErr != nil {
		msg := deliveryErr.Error()
		d.LastError = &msg
	}
	if err := s.repo.Update(context.Background(), d); err != nil {
		s.log.Warn().Err(err).Str("reference_id", d.ReferenceID).Msg("failed to update settlement delivery")
	}
}
