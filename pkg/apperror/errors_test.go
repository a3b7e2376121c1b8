package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"qr-payment-ledger/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("REDEEM_003", "Already redeemed", http.StatusConflict),
			expected: "[REDEEM_003] Already redeemed",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("REDEEM_001", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestFromLedger(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		code       string
		httpStatus int
	}{
		{"InvalidPayload", domain.ErrInvalidPayload, "LEDGER_001", 400},
		{"InvalidDifficulty", domain.ErrInvalidDifficulty, "LEDGER_001", 400},
		{"SealCancelled", domain.ErrSealCancelled, "LEDGER_002", 503},
		{"StaleTail", domain.ErrStaleTail, "LEDGER_003", 409},
		{"ChainInvalid", domain.ErrChainInvalid, "LEDGER_004", 500},
		{"IndexMismatch", domain.ErrIndexMismatch, "LEDGER_005", 422},
		{"LinkageMismatch", domain.ErrLinkageMismatch, "LEDGER_005", 422},
		{"HashMismatch", domain.ErrHashMismatch, "LEDGER_005", 422},
		{"InsufficientWork", domain.ErrInsufficientWork, "LEDGER_005", 422},
		{"DuplicateReference", domain.ErrDuplicateReference, "LEDGER_006", 409},
		{"TamperedEnvelope", domain.ErrTamperedEnvelope, "REDEEM_001", 400},
		{"UnknownBlock", domain.ErrUnknownBlock, "REDEEM_002", 404},
		{"AlreadyRedeemed", domain.ErrAlreadyRedeemed, "REDEEM_003", 409},
		{"ExpiredCode", domain.ErrExpiredCode, "REDEEM_004", 410},
		{"Unknown", errors.New("boom"), "SYS_001", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("context: %w", tt.err)
			appErr := FromLedger(wrapped)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.httpStatus, appErr.HTTPStatus)
		})
	}
}

func TestFromLedger_PassThrough(t *testing.T) {
	orig := ErrRateLimitExceeded()
	assert.Same(t, orig, FromLedger(fmt.Errorf("wrapped: %w", orig)))
	assert.Nil(t, FromLedger(nil))
}

func TestFromLedger_KeepsCauseForLogs(t *testing.T) {
	cause := fmt.Errorf("%w: context deadline exceeded", domain.ErrSealCancelled)
	appErr := FromLedger(cause)
	assert.True(t, errors.Is(appErr, domain.ErrSealCancelled))
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	dbErr := ErrDatabaseError(inner)
	assert.Equal(t, "SYS_001", dbErr.Code)
	assert.Equal(t, 500, dbErr.HTTPStatus)
	assert.True(t, errors.Is(dbErr, inner))

	encErr := ErrEncryptionFailure(inner)
	assert.Equal(t, "SYS_003", encErr.Code)
	assert.Equal(t, 500, encErr.HTTPStatus)
}

func TestRateLimitError(t *testing.T) {
	err := ErrRateLimitExceeded()
	assert.Equal(t, "RATE_001", err.Code)
	assert.Equal(t, 429, err.HTTPStatus)
}

func TestAuthError(t *testing.T) {
	err := ErrInvalidToken()
	assert.Equal(t, "AUTH_003", err.Code)
	assert.Equal(t, 401, err.HTTPStatus)
}

func TestBlockNotFound(t *testing.T) {
	err := ErrBlockNotFound()
	assert.Equal(t, "LEDGER_007", err.Code)
	assert.Equal(t, 404, err.HTTPStatus)
}
