package handler

import (
	"errors"
	"net/http"

	"qr-payment-ledger/internal/adapter/http/dto"
	"qr-payment-ledger/pkg/apperror"
	"qr-payment-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// bindJSON binds and sanitizes a request body, writing the error response
// itself when binding fails.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, apperror.New("LEDGER_001", "Request body too large", http.StatusRequestEntityTooLarge))
			return false
		}
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}
