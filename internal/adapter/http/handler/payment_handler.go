package handler

import (
	"qr-payment-ledger/internal/adapter/http/dto"
	"qr-payment-ledger/internal/adapter/http/middleware"
	"qr-payment-ledger/internal/core/ports"
	"qr-payment-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles code issuance.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// IssuePayment handles POST /api/v1/payments. It seals the intent into the
// chain and returns the block with its scannable code.
func (h *PaymentHandler) IssuePayment(c *gin.Context) {
	var req dto.IssuePaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	c.Set(middleware.CtxResourceID, req.ReferenceID)

	issued, err := h.paymentSvc.IssuePayment(c.Request.Context(), req.ToPayment())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewIssuePaymentResponse(issued))
}
