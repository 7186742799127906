package middleware

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var (
	connectRe        = regexp.MustCompile(`^/api/v1/bank-connections/[^/]+/connect$`)
	fetchAccountsRe  = regexp.MustCompile(`^/api/v1/bank-connections/[^/]+/fetch-accounts$`)
	importAccountRe  = regexp.MustCompile(`^/api/v1/bank-connections/[^/]+/import-account$`)
	confirmKeysRe    = regexp.MustCompile(`^/api/v1/bank-connections/[^/]+/confirm-bank-keys$`)
	createInitRe     = regexp.MustCompile(`^/api/v1/bank-accounts/[^/]+/payment-initiations$`)
	submitInitRe     = regexp.MustCompile(`^/api/v1/bank-accounts/[^/]+/payment-initiations/[^/]+/submit$`)
	submitAllInitRe  = regexp.MustCompile(`^/api/v1/bank-accounts/[^/]+/submit-all-payment-initiations$`)
	fetchTxRe        = regexp.MustCompile(`^/api/v1/bank-accounts/[^/]+/fetch-transactions$`)
	scheduleTaskRe   = regexp.MustCompile(`^/api/v1/bank-accounts/[^/]+/schedule$`)
)

// AuditLog creates an audit middleware that logs successful write operations
// against the Nexus HTTP API. It maps HTTP methods and paths to audit
// actions.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == "GET" || c.Request.Method == "HEAD" || c.Request.Method == "OPTIONS" {
			return
		}

		action, resourceType := mapPathToAction(c.Request.URL.Path, c.Request.Method)
		if action == "" {
			return
		}

		var apiUserID *uuid.UUID
		if uid, exists := c.Get(CtxAPIUserID); exists {
			if id, ok := uid.(uuid.UUID); ok {
				apiUserID = &id
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			APIUserID:    apiUserID,
			Action:       action,
			ResourceType: resourceType,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

func mapPathToAction(path, method string) (domain.AuditAction, string) {
	if method != "POST" {
		return "", ""
	}
	switch {
	case path == "/api/v1/bank-connections":
		return domain.AuditActionCreateConnection, "bank-connection"
	case connectRe.MatchString(path):
		return domain.AuditActionConnectKeys, "bank-connection"
	case fetchAccountsRe.MatchString(path):
		return domain.AuditActionFetchAccounts, "bank-connection"
	case importAccountRe.MatchString(path):
		return domain.AuditActionImportAccount, "bank-connection"
	case confirmKeysRe.MatchString(path):
		return domain.AuditActionConfirmKeys, "bank-connection"
	case createInitRe.MatchString(path):
		return domain.AuditActionCreateInitiation, "payment-initiation"
	case submitInitRe.MatchString(path), submitAllInitRe.MatchString(path):
		return domain.AuditActionSubmitInitiation, "payment-initiation"
	case fetchTxRe.MatchString(path):
		return domain.AuditActionFetchTransactions, "bank-account"
	case scheduleTaskRe.MatchString(path):
		return domain.AuditActionScheduleTask, "scheduled-task"
	}
	return "", ""
}
