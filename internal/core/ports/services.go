package ports

//go:generate mockgen -source=services.go -destination=mocks/services_mock.go -package=mocks

import (
	"context"
	"time"

	"qr-payment-ledger/internal/core/domain"
)

// Hasher computes block digests over canonical bytes.
type Hasher interface {
	Sum(data []byte) domain.Digest
}

// Miner searches for a nonce that makes a block's digest meet a difficulty.
type Miner interface {
	Seal(ctx context.Context, block domain.Block, difficulty uint8) (domain.Block, error)
}

// Ledger is the append-only chain of sealed blocks.
type Ledger interface {
	Append(ctx context.Context, block domain.Block) (uint64, error)
	Validate() *domain.ValidationReport
	VerifyMember(block domain.Block) error
	FindByReference(referenceID string) (domain.Block, bool)
	BlockAt(index uint64) (domain.Block, bool)
	Tail() domain.Block
	Blocks() []domain.Block
	Len() int
	Difficulty() uint8
	Halted() bool
}

// EnvelopeCodec encrypts blocks into scannable code payloads and back.
type EnvelopeCodec interface {
	Seal(block domain.Block) (domain.Envelope, error)
	Open(env domain.Envelope) (domain.Block, error)
	EncodeCode(env domain.Envelope) string
	DecodeCode(code string) (domain.Envelope, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildSignedPayload(timestamp int64, body []byte) string
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(subject string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
}

// --- Service Ports (Business Logic) ---

// PaymentService seals payment intents into the chain and issues codes.
type PaymentService interface {
	IssuePayment(ctx context.Context, intent domain.Payment) (*domain.IssuedCode, error)
}

// RedemptionService checks and redeems scanned codes.
type RedemptionService interface {
	Redeem(ctx context.Context, req RedeemRequest) (*domain.RedemptionResult, error)
	Inspect(ctx context.Context, code string) (*domain.RedemptionResult, error)
}

// RedeemRequest holds validated input for a redemption.
type RedeemRequest struct {
	Code       string
	RedeemedBy string
	ClientIP   string
}

// SettlementNotifier hands a redeemed payment to the funds-movement collaborator.
type SettlementNotifier interface {
	NotifyRedeemed(ctx context.Context, redemption domain.Redemption, block domain.Block) error
}

// AuditService records security-relevant ledger actions.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
