package domain

import (
	"time"

	"github.com/google/uuid"
)

// APIUser is an operator account authenticated via HTTP Basic against the
// Nexus HTTP API. Superuser accounts may call the
// superuser-only endpoints (connection and schedule management, submission,
// fetch triggers); non-superusers are restricted to the account-scoped
// payment-initiation and transaction-listing endpoints.
type APIUser struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Superuser    bool
	CreatedAt    time.Time
}
