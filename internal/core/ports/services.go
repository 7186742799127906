package ports

import (
	"context"

	"github.com/leuf-systems/nexus/internal/core/domain"
)

// HashService handles password hashing (Argon2id) for operator accounts
// authenticated via HTTP Basic.
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// AuditService records operator actions against the HTTP API. Log is
// fire-and-forget: a failure to persist an audit row must never fail the
// request it is auditing.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// AuditRepository persists AuditLog rows. A nil AuditRepository is valid:
// AuditServiceImpl still logs via zerolog, it just skips persistence.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}
