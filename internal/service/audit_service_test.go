package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/leuf-systems/nexus/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

func (r *fakeAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func TestAuditService_Log_PersistsToRepo(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := NewAuditService(repo, zerolog.Nop())

	apiUserID := uuid.New()
	svc.Log(context.Background(), &domain.AuditLog{
		ID:           uuid.New(),
		APIUserID:    &apiUserID,
		Action:       domain.AuditActionCreateInitiation,
		ResourceType: "payment-initiation",
		ResourceID:   uuid.New().String(),
		IPAddress:    "127.0.0.1",
		CreatedAt:    time.Now(),
	})

	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.entries) == 1 && repo.entries[0].Action == domain.AuditActionCreateInitiation
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAuditService_Log_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, zerolog.Nop())

	apiUserID := uuid.New()
	// Should not panic
	svc.Log(context.Background(), &domain.AuditLog{
		ID:           uuid.New(),
		APIUserID:    &apiUserID,
		Action:       domain.AuditActionConfirmKeys,
		ResourceType: "bank-connection",
		IPAddress:    "127.0.0.1",
		CreatedAt:    time.Now(),
	})

	time.Sleep(50 * time.Millisecond) // let goroutine run
}
