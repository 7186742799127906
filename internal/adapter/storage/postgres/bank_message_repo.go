package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/leuf-systems/nexus/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BankMessageRepo implements ports.BankMessageRepository.
type BankMessageRepo struct {
	pool Pool
}

// NewBankMessageRepo creates a new BankMessageRepo.
func NewBankMessageRepo(pool Pool) *BankMessageRepo {
	return &BankMessageRepo{pool: pool}
}

// Create inserts a new, immutable bank message.
func (r *BankMessageRepo) Create(ctx context.Context, msg *domain.BankMessage) error {
	query := `INSERT INTO bank_messages (id, bank_connection_id, fetch_level, message_id, raw_payload, errors, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		msg.ID, msg.BankConnectionID, msg.FetchLevel, msg.MessageID, msg.RawPayload, msg.Errors, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert bank message: %w", err)
	}
	return nil
}

// GetByID fetches a bank message by UUID.
func (r *BankMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BankMessage, error) {
	query := `SELECT id, bank_connection_id, fetch_level, message_id, raw_payload, errors, created_at
		FROM bank_messages WHERE id = $1`

	m := &domain.BankMessage{}
	err := r.pool.QueryRow(ctx, query, id).Scan(&m.ID, &m.BankConnectionID, &m.FetchLevel, &m.MessageID, &m.RawPayload, &m.Errors, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get bank message: %w", err)
	}
	return m, nil
}

// ListByConnection fetches the most recent bank messages for connID, newest
// first, capped at limit.
func (r *BankMessageRepo) ListByConnection(ctx context.Context, connID uuid.UUID, limit int) ([]domain.BankMessage, error) {
	query := `SELECT id, bank_connection_id, fetch_level, message_id, raw_payload, errors, created_at
		FROM bank_messages WHERE bank_connection_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, connID, limit)
	if err != nil {
		return nil, fmt.Errorf("list bank messages: %w", err)
	}
	defer rows.Close()

	var out []domain.BankMessage
	for rows.Next() {
		m := domain.BankMessage{}
		if err := rows.Scan(&m.ID, &m.BankConnectionID, &m.FetchLevel, &m.MessageID, &m.RawPayload, &m.Errors, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bank message row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bank message rows: %w", err)
	}
	return out, nil
}
