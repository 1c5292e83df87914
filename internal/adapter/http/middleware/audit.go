package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that logs successful write operations.
// Actions are resolved from the matched route pattern.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		action, resourceType, resourceParam := mapPathToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		entry := &domain.AuditLog{
			ID:           uuid.New(),
			Action:       action,
			ResourceType: resourceType,
			IPAddress:    c.ClientIP(),
			CreatedAt:    time.Now().UTC(),
		}
		if resourceParam != "" {
			entry.ResourceID = c.Param(resourceParam)
		}
		if sub, org, ok := Identity(c); ok {
			entry.ActorID = &sub
			entry.OrganizationID = &org
		}
		if role, ok := c.Get(CtxRole); ok {
			if r, ok := role.(ports.Role); ok {
				entry.ActorRole = string(r)
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})
		entry.Details = string(details)

		auditSvc.Log(c.Request.Context(), entry)
	}
}

// mapPathToAction resolves a route pattern to its audit action, resource type
// and the path parameter naming the resource.
func mapPathToAction(route, method string) (domain.AuditAction, string, string) {
	if method != http.MethodPost && method != http.MethodPut {
		return "", "", ""
	}
	switch route {
	case "/api/v1/wallet/topup":
		return domain.AuditActionTopUp, "wallet", ""
	case "/api/v1/org/customers/:customer_id/wallet/topup":
		return domain.AuditActionTopUp, "wallet", "customer_id"
	case "/api/v1/wallet/pay":
		return domain.AuditActionPayment, "wallet", ""
	case "/api/v1/org/customers/:customer_id/wallet/pay":
		return domain.AuditActionPayment, "wallet", "customer_id"
	case "/api/v1/wallet/redeem":
		return domain.AuditActionRedeemCertificate, "gift_certificate", ""
	case "/api/v1/org/customers/:customer_id/wallet/redeem":
		return domain.AuditActionRedeemCertificate, "gift_certificate", "customer_id"
	case "/api/v1/org/wallets/:wallet_id/transactions":
		return domain.AuditActionApplyTransaction, "wallet", "wallet_id"
	case "/api/v1/org/wallets/:wallet_id/status":
		return domain.AuditActionWalletStatus, "wallet", "wallet_id"
	case "/api/v1/org/certificates":
		return domain.AuditActionIssueCertificate, "gift_certificate", ""
	case "/api/v1/org/certificates/:code/cancel":
		return domain.AuditActionCancelCertificate, "gift_certificate", "code"
	}
	return "", "", ""
}
