package domain

import "errors"

// Ledger error kinds. Services wrap these with context; callers match with errors.Is.
var (
	ErrInvalidPayload     = errors.New("invalid payload")
	ErrInvalidDifficulty  = errors.New("invalid difficulty")
	ErrSealCancelled      = errors.New("seal cancelled")
	ErrStaleTail          = errors.New("stale tail")
	ErrChainInvalid       = errors.New("chain invalid")
	ErrIndexMismatch      = errors.New("index mismatch")
	ErrLinkageMismatch    = errors.New("linkage mismatch")
	ErrHashMismatch       = errors.New("hash mismatch")
	ErrInsufficientWork   = errors.New("insufficient work")
	ErrDuplicateReference = errors.New("duplicate reference")
	ErrTamperedEnvelope   = errors.New("tampered envelope")
	ErrUnknownBlock       = errors.New("unknown block")
	ErrAlreadyRedeemed    = errors.New("already redeemed")
	ErrExpiredCode        = errors.New("expired code")
)
