package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/leuf-systems/nexus/internal/core/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type fakeAuditService struct {
	mu   sync.Mutex
	logs []*domain.AuditLog
}

func (f *fakeAuditService) Log(ctx context.Context, entry *domain.AuditLog) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, entry)
}

func (f *fakeAuditService) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logs)
}

func (f *fakeAuditService) last() *domain.AuditLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.logs) == 0 {
		return nil
	}
	return f.logs[len(f.logs)-1]
}

func TestAuditLog_CreateInitiationSuccess(t *testing.T) {
	audit := &fakeAuditService{}

	r := gin.New()
	r.Use(AuditLog(audit))
	r.POST("/api/v1/bank-accounts/:a/payment-initiations", func(c *gin.Context) {
		c.Set(CtxAPIUserID, uuid.New())
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bank-accounts/"+uuid.New().String()+"/payment-initiations", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Eventually(t, func() bool { return audit.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, domain.AuditActionCreateInitiation, audit.last().Action)
	assert.Equal(t, "payment-initiation", audit.last().ResourceType)
}

func TestAuditLog_SkipsGET(t *testing.T) {
	audit := &fakeAuditService{}

	r := gin.New()
	r.Use(AuditLog(audit))
	r.GET("/api/v1/bank-accounts/:a/transactions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"items": []string{}})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bank-accounts/"+uuid.New().String()+"/transactions", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, audit.count())
}

func TestAuditLog_SkipsFailedRequests(t *testing.T) {
	audit := &fakeAuditService{}

	r := gin.New()
	r.Use(AuditLog(audit))
	r.POST("/api/v1/bank-connections", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bank-connections", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, audit.count())
}

func TestMapPathToAction(t *testing.T) {
	connID := uuid.New().String()
	acctID := uuid.New().String()

	tests := []struct {
		path     string
		method   string
		action   domain.AuditAction
		resource string
	}{
		{"/api/v1/bank-connections", "POST", domain.AuditActionCreateConnection, "bank-connection"},
		{"/api/v1/bank-connections/" + connID + "/connect", "POST", domain.AuditActionConnectKeys, "bank-connection"},
		{"/api/v1/bank-connections/" + connID + "/fetch-accounts", "POST", domain.AuditActionFetchAccounts, "bank-connection"},
		{"/api/v1/bank-connections/" + connID + "/import-account", "POST", domain.AuditActionImportAccount, "bank-connection"},
		{"/api/v1/bank-connections/" + connID + "/confirm-bank-keys", "POST", domain.AuditActionConfirmKeys, "bank-connection"},
		{"/api/v1/bank-accounts/" + acctID + "/payment-initiations", "POST", domain.AuditActionCreateInitiation, "payment-initiation"},
		{"/api/v1/bank-accounts/" + acctID + "/payment-initiations/" + uuid.New().String() + "/submit", "POST", domain.AuditActionSubmitInitiation, "payment-initiation"},
		{"/api/v1/bank-accounts/" + acctID + "/submit-all-payment-initiations", "POST", domain.AuditActionSubmitInitiation, "payment-initiation"},
		{"/api/v1/bank-accounts/" + acctID + "/fetch-transactions", "POST", domain.AuditActionFetchTransactions, "bank-account"},
		{"/api/v1/bank-accounts/" + acctID + "/schedule", "POST", domain.AuditActionScheduleTask, "scheduled-task"},
		{"/unknown", "POST", "", ""},
		{"/api/v1/bank-connections", "GET", "", ""},
	}

	for _, tc := range tests {
		action, resource := mapPathToAction(tc.path, tc.method)
		assert.Equal(t, tc.action, action, "path=%s method=%s", tc.path, tc.method)
		assert.Equal(t, tc.resource, resource, "path=%s method=%s", tc.path, tc.method)
	}
}
