package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"qr-payment-ledger/internal/adapter/http/dto"
	"qr-payment-ledger/internal/adapter/http/middleware"
	"qr-payment-ledger/internal/core/domain"
	"qr-payment-ledger/internal/core/ports"
	"qr-payment-ledger/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testBlock(index uint64, ref string) domain.Block {
	return domain.Block{
		Index:        index,
		Timestamp:    time.Unix(0, 1708092000123456789).UTC(),
		Difficulty:   16,
		PreviousHash: domain.Digest{0x00, 0x00, 0x01},
		Nonce:        42,
		Payment: domain.Payment{
			SenderID:    "A",
			ReceiverID:  "B",
			Amount:      50000,
			Currency:    "INR",
			ReferenceID: ref,
		},
		Hash: domain.Digest{0x00, 0x00, 0x02},
	}
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]any)
	require.True(t, ok, "body: %s", w.Body.String())
	return data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

// --- Payment Handler Tests ---

func TestIssuePayment_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPayment := mocks.NewMockPaymentService(ctrl)
	h := NewPaymentHandler(mockPayment)

	block := testBlock(1, "R1")
	expires := time.Unix(1708092300, 0).UTC()
	mockPayment.EXPECT().IssuePayment(gomock.Any(), block.Payment).Return(&domain.IssuedCode{
		Block:     block,
		Code:      "AQEAAAAAZdJh4A",
		ExpiresAt: &expires,
		Attempts:  1,
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/payments", dto.IssuePaymentRequest{
		SenderID:    "A",
		ReceiverID:  "B",
		Amount:      50000,
		Currency:    "INR",
		ReferenceID: "R1",
	})

	h.IssuePayment(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "AQEAAAAAZdJh4A", data["code"])
	assert.Equal(t, float64(1), data["attempts"])
	blockData := data["block"].(map[string]any)
	assert.Equal(t, block.Hash.String(), blockData["hash"])
	assert.Equal(t, "42", blockData["nonce"])
	assert.Equal(t, "R1", c.GetString(middleware.CtxResourceID))
}

func TestIssuePayment_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPayment := mocks.NewMockPaymentService(ctrl)
	h := NewPaymentHandler(mockPayment)

	bodies := []any{
		map[string]any{},
		dto.IssuePaymentRequest{SenderID: "A", ReceiverID: "B", Amount: -1, Currency: "INR", ReferenceID: "R1"},
		dto.IssuePaymentRequest{SenderID: "A", ReceiverID: "A", Amount: 1, Currency: "INR", ReferenceID: "R1"},
		dto.IssuePaymentRequest{SenderID: "A", ReceiverID: "B", Amount: 1, Currency: "inr", ReferenceID: "R1"},
	}
	for i, body := range bodies {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = jsonRequest(t, http.MethodPost, "/api/v1/payments", body)

		h.IssuePayment(c)

		assert.Equal(t, http.StatusBadRequest, w.Code, "body %d", i)
		assert.Equal(t, "LEDGER_001", errorCode(t, w), "body %d", i)
	}
}

func TestIssuePayment_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"duplicate reference", fmt.Errorf("%w: R1", domain.ErrDuplicateReference), http.StatusConflict, "LEDGER_006"},
		{"seal cancelled", fmt.Errorf("%w: deadline", domain.ErrSealCancelled), http.StatusServiceUnavailable, "LEDGER_002"},
		{"stale tail exhausted", fmt.Errorf("after 5 attempts: %w", domain.ErrStaleTail), http.StatusConflict, "LEDGER_003"},
		{"halted", domain.ErrChainInvalid, http.StatusInternalServerError, "LEDGER_004"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "SYS_001"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockPayment := mocks.NewMockPaymentService(ctrl)
			mockPayment.EXPECT().IssuePayment(gomock.Any(), gomock.Any()).Return(nil, tc.err)

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = jsonRequest(t, http.MethodPost, "/api/v1/payments", dto.IssuePaymentRequest{
				SenderID: "A", ReceiverID: "B", Amount: 1, Currency: "INR", ReferenceID: "R1",
			})

			NewPaymentHandler(mockPayment).IssuePayment(c)

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, errorCode(t, w))
		})
	}
}

// --- Redemption Handler Tests ---

func TestRedeem_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRedeem := mocks.NewMockRedemptionService(ctrl)
	h := NewRedemptionHandler(mockRedeem)

	block := testBlock(1, "R1")
	mockRedeem.EXPECT().Redeem(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, req ports.RedeemRequest) (*domain.RedemptionResult, error) {
			assert.Equal(t, "AQEAAAAAZdJh4A", req.Code)
			assert.Equal(t, "terminal-7", req.RedeemedBy)
			return &domain.RedemptionResult{
				Block:    block,
				Redeemed: true,
				Redemption: &domain.Redemption{
					ReferenceID: "R1",
					RedeemedBy:  "terminal-7",
					RedeemedAt:  time.Now().UTC(),
				},
			}, nil
		})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.CtxSubject, "terminal-7")
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/redemptions", dto.CodeRequest{Code: "AQEAAAAAZdJh4A"})

	h.Redeem(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, true, data["redeemed"])
	assert.Equal(t, "terminal-7", data["redeemed_by"])
	assert.Equal(t, "R1", c.GetString(middleware.CtxResourceID))
}

func TestRedeem_Denied(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"tampered", fmt.Errorf("%w: authentication failed", domain.ErrTamperedEnvelope), http.StatusBadRequest, "REDEEM_001"},
		{"unknown block", fmt.Errorf("%w: no block at index 9", domain.ErrUnknownBlock), http.StatusNotFound, "REDEEM_002"},
		{"already redeemed", fmt.Errorf("%w: reference R1", domain.ErrAlreadyRedeemed), http.StatusConflict, "REDEEM_003"},
		{"expired", fmt.Errorf("%w: expired", domain.ErrExpiredCode), http.StatusGone, "REDEEM_004"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockRedeem := mocks.NewMockRedemptionService(ctrl)
			mockRedeem.EXPECT().Redeem(gomock.Any(), gomock.Any()).Return(nil, tc.err)

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = jsonRequest(t, http.MethodPost, "/api/v1/redemptions", dto.CodeRequest{Code: "AAAA"})

			NewRedemptionHandler(mockRedeem).Redeem(c)

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, errorCode(t, w))
		})
	}
}

func TestRedeem_MalformedCode(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRedeem := mocks.NewMockRedemptionService(ctrl)
	// Binding rejects the code before the service is reached.

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/redemptions", dto.CodeRequest{Code: "not a code!"})

	NewRedemptionHandler(mockRedeem).Redeem(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInspect_NotRedeemed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRedeem := mocks.NewMockRedemptionService(ctrl)
	mockRedeem.EXPECT().Inspect(gomock.Any(), "AQEAAAAAZdJh4A").Return(&domain.RedemptionResult{
		Block: testBlock(1, "R1"),
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/codes/inspect", dto.CodeRequest{Code: "AQEAAAAAZdJh4A"})

	NewRedemptionHandler(mockRedeem).Inspect(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, false, data["redeemed"])
	assert.NotContains(t, data, "redeemed_at")
}

// --- Chain Handler Tests ---

func TestListBlocks_Paging(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedger(ctrl)
	blocks := []domain.Block{testBlock(0, domain.GenesisReference), testBlock(1, "R1"), testBlock(2, "R2")}
	ledger.EXPECT().Blocks().Return(blocks).AnyTimes()
	ledger.EXPECT().Difficulty().Return(uint8(16)).AnyTimes()
	ledger.EXPECT().Halted().Return(false).AnyTimes()

	h := NewChainHandler(ledger)

	tests := []struct {
		query string
		want  []float64
	}{
		{"", []float64{0, 1, 2}},
		{"?offset=1&limit=1", []float64{1}},
		{"?offset=10", nil},
	}
	for _, tc := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/chain"+tc.query, nil)

		h.ListBlocks(c)

		require.Equal(t, http.StatusOK, w.Code, tc.query)
		data := decodeData(t, w)
		assert.Equal(t, float64(3), data["length"])
		var got []float64
		for _, b := range data["blocks"].([]any) {
			got = append(got, b.(map[string]any)["index"].(float64))
		}
		assert.Equal(t, tc.want, got, tc.query)
	}
}

func TestListBlocks_BadQuery(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/chain?limit=100000", nil)

	NewChainHandler(mocks.NewMockLedger(ctrl)).ListBlocks(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidate_ReportsFault(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedger(ctrl)
	idx := uint64(1)
	ledger.EXPECT().Validate().Return(&domain.ValidationReport{
		Valid:        false,
		Length:       3,
		FirstInvalid: &idx,
		Reason:       "hash mismatch",
	})
	ledger.EXPECT().Halted().Return(true)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/chain/validate", nil)

	NewChainHandler(ledger).Validate(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, false, data["valid"])
	assert.Equal(t, float64(1), data["first_invalid"])
	assert.Equal(t, true, data["halted"])
}

func TestGetBlock(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedger(ctrl)
	ledger.EXPECT().BlockAt(uint64(1)).Return(testBlock(1, "R1"), true)
	ledger.EXPECT().BlockAt(uint64(7)).Return(domain.Block{}, false)
	h := NewChainHandler(ledger)

	tests := []struct {
		index  string
		status int
	}{
		{"1", http.StatusOK},
		{"7", http.StatusNotFound},
		{"-1", http.StatusBadRequest},
		{"abc", http.StatusBadRequest},
	}
	for _, tc := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/chain/blocks/"+tc.index, nil)
		c.Params = gin.Params{{Key: "index", Value: tc.index}}

		h.GetBlock(c)

		assert.Equal(t, tc.status, w.Code, "index=%s", tc.index)
	}
}

func TestGetByReference(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedger(ctrl)
	ledger.EXPECT().FindByReference("R1").Return(testBlock(1, "R1"), true)
	ledger.EXPECT().FindByReference("R9").Return(domain.Block{}, false)
	h := NewChainHandler(ledger)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/chain/references/R1", nil)
	c.Params = gin.Params{{Key: "ref", Value: "R1"}}
	h.GetByReference(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "R1", decodeData(t, w)["payment"].(map[string]any)["reference_id"])

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/chain/references/R9", nil)
	c.Params = gin.Params{{Key: "ref", Value: "R9"}}
	h.GetByReference(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "LEDGER_007", errorCode(t, w))
}

// --- Router Tests ---

func TestRouter_RequiresToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r := SetupRouter(RouterDeps{
		PaymentSvc:    mocks.NewMockPaymentService(ctrl),
		RedemptionSvc: mocks.NewMockRedemptionService(ctrl),
		Ledger:        mocks.NewMockLedger(ctrl),
		TokenSvc:      mocks.NewMockTokenService(ctrl),
		Mode:          gin.TestMode,
	})

	for _, path := range []string{"/api/v1/chain", "/api/v1/chain/blocks/0"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
	}
}

func TestRouter_RedeemWithToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate("tok").Return(&ports.TokenClaims{Subject: "terminal-7"}, nil)

	redeemSvc := mocks.NewMockRedemptionService(ctrl)
	redeemSvc.EXPECT().Redeem(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, req ports.RedeemRequest) (*domain.RedemptionResult, error) {
			assert.Equal(t, "terminal-7", req.RedeemedBy)
			return nil, domain.ErrAlreadyRedeemed
		})

	auditSvc := mocks.NewMockAuditService(ctrl)
	auditSvc.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ any, entry *domain.AuditLog) {
		assert.Equal(t, domain.AuditActionRedeemDenied, entry.Action)
		assert.Equal(t, "terminal-7", entry.Subject)
	})

	r := SetupRouter(RouterDeps{
		PaymentSvc:    mocks.NewMockPaymentService(ctrl),
		RedemptionSvc: redeemSvc,
		Ledger:        mocks.NewMockLedger(ctrl),
		TokenSvc:      tokenSvc,
		AuditSvc:      auditSvc,
		Mode:          gin.TestMode,
	})

	req := jsonRequest(t, http.MethodPost, "/api/v1/redemptions", dto.CodeRequest{Code: "AQEAAAAAZdJh4A"})
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "REDEEM_003", errorCode(t, w))
}

func TestRouter_RejectsNonJSON(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate("tok").Return(&ports.TokenClaims{Subject: "app"}, nil).AnyTimes()

	r := SetupRouter(RouterDeps{
		PaymentSvc:    mocks.NewMockPaymentService(ctrl),
		RedemptionSvc: mocks.NewMockRedemptionService(ctrl),
		Ledger:        mocks.NewMockLedger(ctrl),
		TokenSvc:      tokenSvc,
		Mode:          gin.TestMode,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader("sender_id=A"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

// --- Health Check Tests ---

func TestHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck()(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestHealthCheck_Degraded(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pg := mocks.NewMockHealthChecker(ctrl)
	pg.EXPECT().Name().Return("postgresql").AnyTimes()
	pg.EXPECT().Ping(gomock.Any()).Return(nil)

	ledger := mocks.NewMockHealthChecker(ctrl)
	ledger.EXPECT().Name().Return("ledger").AnyTimes()
	ledger.EXPECT().Ping(gomock.Any()).Return(errors.New("ledger halted"))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(pg, ledger)(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
	deps := resp["dependencies"].(map[string]any)
	assert.Equal(t, "healthy", deps["postgresql"].(map[string]any)["status"])
	assert.Equal(t, "unhealthy", deps["ledger"].(map[string]any)["status"])
}

// --- Swagger Tests ---

func TestSwaggerUI(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/swagger", nil)

	SwaggerUI(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "swagger-ui")
	assert.Contains(t, w.Body.String(), "/swagger/spec")
}

func TestSwaggerSpec_Loaded(t *testing.T) {
	SetSwaggerSpec([]byte("openapi: '3.0.0'\ninfo:\n  title: Test"))
	defer SetSwaggerSpec(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/swagger/spec", nil)

	SwaggerSpec(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi")
}

func TestSwaggerSpec_NotLoaded(t *testing.T) {
	SetSwaggerSpec(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/swagger/spec", nil)

	SwaggerSpec(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
