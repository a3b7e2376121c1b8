package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"qr-payment-ledger/internal/core/domain"
	"qr-payment-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware for ledger writes. Successful issues,
// redemptions and chain audits are recorded, and so are refused redemptions.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		action, resourceType := mapPathToAction(c.Request.URL.Path, c.Request.Method, status)
		if action == "" {
			return
		}

		details, _ := json.Marshal(map[string]any{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			Subject:      c.GetString(CtxSubject),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.GetString(CtxResourceID),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapPathToAction(path, method string, status int) (domain.AuditAction, string) {
	ok := status >= http.StatusOK && status < http.StatusMultipleChoices
	switch {
	case path == "/api/v1/payments" && method == http.MethodPost && ok:
		return domain.AuditActionIssue, "block"
	case path == "/api/v1/redemptions" && method == http.MethodPost:
		if ok {
			return domain.AuditActionRedeem, "redemption"
		}
		if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
			return domain.AuditActionRedeemDenied, "redemption"
		}
	case path == "/api/v1/chain/validate" && method == http.MethodPost && ok:
		return domain.AuditActionChainValidate, "chain"
	}
	return "", ""
}
