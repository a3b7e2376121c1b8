package handler

import (
	"qr-payment-ledger/internal/adapter/http/dto"
	"qr-payment-ledger/internal/adapter/http/middleware"
	"qr-payment-ledger/internal/core/ports"
	"qr-payment-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// RedemptionHandler handles scanned codes.
type RedemptionHandler struct {
	redemptionSvc ports.RedemptionService
}

// NewRedemptionHandler creates a new RedemptionHandler.
func NewRedemptionHandler(redemptionSvc ports.RedemptionService) *RedemptionHandler {
	return &RedemptionHandler{redemptionSvc: redemptionSvc}
}

// Redeem handles POST /api/v1/redemptions.
func (h *RedemptionHandler) Redeem(c *gin.Context) {
	var req dto.CodeRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.redemptionSvc.Redeem(c.Request.Context(), ports.RedeemRequest{
		Code:       req.Code,
		RedeemedBy: c.GetString(middleware.CtxSubject),
		ClientIP:   c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, result.Block.Payment.ReferenceID)
	response.OK(c, dto.NewRedemptionResponse(result))
}

// Inspect handles POST /api/v1/codes/inspect. The code is checked but not consumed.
func (h *RedemptionHandler) Inspect(c *gin.Context) {
	var req dto.CodeRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.redemptionSvc.Inspect(c.Request.Context(), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewRedemptionResponse(result))
}
