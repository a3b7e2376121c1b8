package dto

import (
	"strconv"
	"time"

	"qr-payment-ledger/internal/core/domain"
)

// --- Requests ---

// IssuePaymentRequest is the body of POST /api/v1/payments.
// Amount is in minor units.
type IssuePaymentRequest struct {
	SenderID    string `json:"sender_id" binding:"required,max=128,safe_id"`
	ReceiverID  string `json:"receiver_id" binding:"required,max=128,safe_id,nefield=SenderID"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Currency    string `json:"currency" binding:"required,currency_code"`
	ReferenceID string `json:"reference_id" binding:"required,safe_ref"`
}

// ToPayment converts the request into a payment intent.
func (r IssuePaymentRequest) ToPayment() domain.Payment {
	return domain.Payment{
		SenderID:    r.SenderID,
		ReceiverID:  r.ReceiverID,
		Amount:      r.Amount,
		Currency:    r.Currency,
		ReferenceID: r.ReferenceID,
	}
}

// CodeRequest carries a scanned code to redeem or inspect.
type CodeRequest struct {
	Code string `json:"code" binding:"required,max=2048,qr_code"`
}

// ChainQuery pages through GET /api/v1/chain.
type ChainQuery struct {
	Offset int `form:"offset" binding:"min=0"`
	Limit  int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// --- Responses ---

type PaymentResponse struct {
	SenderID    string `json:"sender_id"`
	ReceiverID  string `json:"receiver_id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	ReferenceID string `json:"reference_id"`
}

// BlockResponse renders a block. Nonce is a string so JavaScript clients do
// not lose precision above 2^53.
type BlockResponse struct {
	Index        uint64          `json:"index"`
	Timestamp    string          `json:"timestamp"`
	Difficulty   uint8           `json:"difficulty"`
	PreviousHash string          `json:"previous_hash"`
	Nonce        string          `json:"nonce"`
	Hash         string          `json:"hash"`
	Payment      PaymentResponse `json:"payment"`
}

type IssuePaymentResponse struct {
	Block     BlockResponse `json:"block"`
	Code      string        `json:"code"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	Attempts  int           `json:"attempts"`
}

type RedemptionResponse struct {
	Redeemed   bool          `json:"redeemed"`
	Block      BlockResponse `json:"block"`
	RedeemedBy string        `json:"redeemed_by,omitempty"`
	RedeemedAt *time.Time    `json:"redeemed_at,omitempty"`
	ExpiresAt  *time.Time    `json:"expires_at,omitempty"`
}

type ChainResponse struct {
	Length     int             `json:"length"`
	Difficulty uint8           `json:"difficulty"`
	Halted     bool            `json:"halted"`
	Offset     int             `json:"offset"`
	Blocks     []BlockResponse `json:"blocks"`
}

type ValidationResponse struct {
	Valid        bool    `json:"valid"`
	Length       int     `json:"length"`
	FirstInvalid *uint64 `json:"first_invalid,omitempty"`
	Reason       string  `json:"reason,omitempty"`
	Halted       bool    `json:"halted"`
}

// NewBlockResponse renders a domain block.
func NewBlockResponse(b domain.Block) BlockResponse {
	return BlockResponse{
		Index:        b.Index,
		Timestamp:    b.Timestamp.UTC().Format(time.RFC3339Nano),
		Difficulty:   b.Difficulty,
		PreviousHash: b.PreviousHash.String(),
		Nonce:        strconv.FormatUint(b.Nonce, 10),
		Hash:         b.Hash.String(),
		Payment: PaymentResponse{
			SenderID:    b.Payment.SenderID,
			ReceiverID:  b.Payment.ReceiverID,
			Amount:      b.Payment.Amount,
			Currency:    b.Payment.Currency,
			ReferenceID: b.Payment.ReferenceID,
		},
	}
}

// NewIssuePaymentResponse renders an issued code.
func NewIssuePaymentResponse(ic *domain.IssuedCode) IssuePaymentResponse {
	return IssuePaymentResponse{
		Block:     NewBlockResponse(ic.Block),
		Code:      ic.Code,
		ExpiresAt: ic.ExpiresAt,
		Attempts:  ic.Attempts,
	}
}

// NewRedemptionResponse renders a redemption or inspection result.
func NewRedemptionResponse(r *domain.RedemptionResult) RedemptionResponse {
	resp := RedemptionResponse{
		Redeemed:  r.Redeemed,
		Block:     NewBlockResponse(r.Block),
		ExpiresAt: r.ExpiresAt,
	}
	if r.Redemption != nil {
		at := r.Redemption.RedeemedAt
		resp.RedeemedAt = &at
		resp.RedeemedBy = r.Redemption.RedeemedBy
	}
	return resp
}

// NewValidationResponse renders a chain audit.
func NewValidationResponse(r *domain.ValidationReport, halted bool) ValidationResponse {
	return ValidationResponse{
		Valid:        r.Valid,
		Length:       r.Length,
		FirstInvalid: r.FirstInvalid,
		Reason:       r.Reason,
		Halted:       halted,
	}
}
