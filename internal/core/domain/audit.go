package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCreateConnection  AuditAction = "CREATE_CONNECTION"
	AuditActionConnectKeys       AuditAction = "CONNECT_KEYS"
	AuditActionConfirmKeys       AuditAction = "CONFIRM_KEYS"
	AuditActionFetchAccounts     AuditAction = "FETCH_ACCOUNTS"
	AuditActionImportAccount     AuditAction = "IMPORT_ACCOUNT"
	AuditActionCreateInitiation  AuditAction = "CREATE_INITIATION"
	AuditActionSubmitInitiation  AuditAction = "SUBMIT_INITIATION"
	AuditActionFetchTransactions AuditAction = "FETCH_TRANSACTIONS"
	AuditActionScheduleTask      AuditAction = "SCHEDULE_TASK"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	APIUserID    *uuid.UUID  `json:"api_user_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
