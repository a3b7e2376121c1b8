package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"qr-payment-ledger/internal/core/domain"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Ledger / Sealing (LEDGER) ----

func ErrInvalidPayload(err error) *AppError {
	return Wrap("LEDGER_001", "Invalid payment payload", http.StatusBadRequest, err)
}

func ErrSealCancelled(err error) *AppError {
	return Wrap("LEDGER_002", "Sealing timed out or was cancelled", http.StatusServiceUnavailable, err)
}

func ErrStaleTail(err error) *AppError {
	return Wrap("LEDGER_003", "Ledger busy, seal attempts exhausted", http.StatusConflict, err)
}

func ErrChainInvalid(err error) *AppError {
	return Wrap("LEDGER_004", "Ledger integrity check failed; operations halted", http.StatusInternalServerError, err)
}

func ErrBlockRejected(err error) *AppError {
	return Wrap("LEDGER_005", "Block rejected by ledger", http.StatusUnprocessableEntity, err)
}

func ErrDuplicateReference() *AppError {
	return New("LEDGER_006", "Payment reference already on ledger", http.StatusConflict)
}

func ErrBlockNotFound() *AppError {
	return New("LEDGER_007", "Block not found", http.StatusNotFound)
}

// ---- Redemption (REDEEM) ----

func ErrTamperedEnvelope() *AppError {
	return New("REDEEM_001", "Code is corrupted or was not issued by this ledger", http.StatusBadRequest)
}

func ErrUnknownBlock() *AppError {
	return New("REDEEM_002", "Code does not match any block on the ledger", http.StatusNotFound)
}

func ErrAlreadyRedeemed() *AppError {
	return New("REDEEM_003", "Code has already been redeemed", http.StatusConflict)
}

func ErrExpiredCode() *AppError {
	return New("REDEEM_004", "Code has expired", http.StatusGone)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a LEDGER_001-style validation error.
func Validation(message string) *AppError {
	return New("LEDGER_001", message, http.StatusBadRequest)
}

// FromLedger maps a ledger error kind to its AppError. Errors that are
// already AppErrors pass through; anything unrecognised is SYS_001.
func FromLedger(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, domain.ErrInvalidPayload), errors.Is(err, domain.ErrInvalidDifficulty):
		return ErrInvalidPayload(err)
	case errors.Is(err, domain.ErrSealCancelled):
		return ErrSealCancelled(err)
	case errors.Is(err, domain.ErrStaleTail):
		return ErrStaleTail(err)
	case errors.Is(err, domain.ErrChainInvalid):
		return ErrChainInvalid(err)
	case errors.Is(err, domain.ErrDuplicateReference):
		return ErrDuplicateReference()
	case errors.Is(err, domain.ErrIndexMismatch),
		errors.Is(err, domain.ErrLinkageMismatch),
		errors.Is(err, domain.ErrHashMismatch),
		errors.Is(err, domain.ErrInsufficientWork):
		return ErrBlockRejected(err)
	case errors.Is(err, domain.ErrTamperedEnvelope):
		return ErrTamperedEnvelope()
	case errors.Is(err, domain.ErrUnknownBlock):
		return ErrUnknownBlock()
	case errors.Is(err, domain.ErrAlreadyRedeemed):
		return ErrAlreadyRedeemed()
	case errors.Is(err, domain.ErrExpiredCode):
		return ErrExpiredCode()
	}
	return InternalError(err)
}
