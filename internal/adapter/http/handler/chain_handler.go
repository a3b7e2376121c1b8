package handler

import (
	"strconv"

	"qr-payment-ledger/internal/adapter/http/dto"
	"qr-payment-ledger/internal/core/ports"
	"qr-payment-ledger/pkg/apperror"
	"qr-payment-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

const defaultChainPageSize = 100

// ChainHandler exposes read access to the ledger and on-demand audits.
type ChainHandler struct {
	ledger ports.Ledger
}

// NewChainHandler creates a new ChainHandler.
func NewChainHandler(ledger ports.Ledger) *ChainHandler {
	return &ChainHandler{ledger: ledger}
}

// ListBlocks handles GET /api/v1/chain?offset=&limit=.
func (h *ChainHandler) ListBlocks(c *gin.Context) {
	var q dto.ChainQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultChainPageSize
	}

	blocks := h.ledger.Blocks()
	start := min(q.Offset, len(blocks))
	end := min(start+q.Limit, len(blocks))

	page := make([]dto.BlockResponse, 0, end-start)
	for _, b := range blocks[start:end] {
		page = append(page, dto.NewBlockResponse(b))
	}

	response.OK(c, dto.ChainResponse{
		Length:     len(blocks),
		Difficulty: h.ledger.Difficulty(),
		Halted:     h.ledger.Halted(),
		Offset:     start,
		Blocks:     page,
	})
}

// Validate handles POST /api/v1/chain/validate. A failing audit halts the
// ledger; the report is still returned with 200.
func (h *ChainHandler) Validate(c *gin.Context) {
	report := h.ledger.Validate()
	response.OK(c, dto.NewValidationResponse(report, h.ledger.Halted()))
}

// GetBlock handles GET /api/v1/chain/blocks/:index.
func (h *ChainHandler) GetBlock(c *gin.Context) {
	index, err := strconv.ParseUint(c.Param("index"), 10, 64)
	if err != nil {
		response.Error(c, apperror.Validation("index must be a non-negative integer"))
		return
	}

	b, ok := h.ledger.BlockAt(index)
	if !ok {
		response.Error(c, apperror.ErrBlockNotFound())
		return
	}
	response.OK(c, dto.NewBlockResponse(b))
}

// GetByReference handles GET /api/v1/chain/references/:ref.
func (h *ChainHandler) GetByReference(c *gin.Context) {
	b, ok := h.ledger.FindByReference(c.Param("ref"))
	if !ok {
		response.Error(c, apperror.ErrBlockNotFound())
		return
	}
	response.OK(c, dto.NewBlockResponse(b))
}
