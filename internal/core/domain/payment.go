package domain

import (
	"fmt"
	"regexp"
)

// GenesisReference is reserved for the genesis block and never issued to callers.
const GenesisReference = "GENESIS"

var (
	currencyRe  = regexp.MustCompile(`^[A-Z]{3}$`)
	referenceRe = regexp.MustCompile(`^[A-Za-z0-9_.:\-]{1,128}$`)
)

// Payment is the payment intent carried by a block.
// Amount is in minor units (e.g. paise for INR); floating point never appears.
type Payment struct {
	SenderID    string `json:"sender_id"`
	ReceiverID  string `json:"receiver_id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	ReferenceID string `json:"reference_id"`
}

// Validate enforces construction-time rules for a caller-supplied intent.
func (p Payment) Validate() error {
	switch {
	case p.SenderID == "":
		return fmt.Errorf("%w: sender is required", ErrInvalidPayload)
	case p.ReceiverID == "":
		return fmt.Errorf("%w: receiver is required", ErrInvalidPayload)
	case p.SenderID == p.ReceiverID:
		return fmt.Errorf("%w: sender and receiver must differ", ErrInvalidPayload)
	case len(p.SenderID) > maxFieldLen || len(p.ReceiverID) > maxFieldLen:
		return fmt.Errorf("%w: party identifier too long", ErrInvalidPayload)
	case p.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidPayload, p.Amount)
	case !currencyRe.MatchString(p.Currency):
		return fmt.Errorf("%w: currency %q is not an ISO-4217 code", ErrInvalidPayload, p.Currency)
	case !referenceRe.MatchString(p.ReferenceID):
		return fmt.Errorf("%w: malformed reference id", ErrInvalidPayload)
	case p.ReferenceID == GenesisReference:
		return fmt.Errorf("%w: reference %q is reserved", ErrInvalidPayload, GenesisReference)
	}
	return nil
}

// genesisPayment is the fixed payload of block 0.
func genesisPayment() Payment {
	return Payment{Currency: "XXX", ReferenceID: GenesisReference}
}
