package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/leuf-systems/nexus/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BankConnectionRepo implements ports.BankConnectionRepository.
type BankConnectionRepo struct {
	pool Pool
}

// NewBankConnectionRepo creates a new BankConnectionRepo.
func NewBankConnectionRepo(pool Pool) *BankConnectionRepo {
	return &BankConnectionRepo{pool: pool}
}

// Create inserts a new bank connection.
func (r *BankConnectionRepo) Create(ctx context.Context, conn *domain.BankConnection) error {
	query := `INSERT INTO bank_connections (id, name, type, dialect, owner_id, keys_confirmed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		conn.ID, conn.Name, conn.Type, conn.Dialect, conn.OwnerID, conn.KeysConfirmed, conn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert bank connection: %w", err)
	}
	return nil
}

// GetByID fetches a bank connection by UUID.
func (r *BankConnectionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BankConnection, error) {
	query := `SELECT id, name, type, dialect, owner_id, keys_confirmed, created_at
		FROM bank_connections WHERE id = $1`

	return r.scan(r.pool.QueryRow(ctx, query, id))
}

// List fetches every bank connection owned by ownerID.
func (r *BankConnectionRepo) List(ctx context.Context, ownerID uuid.UUID) ([]domain.BankConnection, error) {
	query := `SELECT id, name, type, dialect, owner_id, keys_confirmed, created_at
		FROM bank_connections WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list bank connections: %w", err)
	}
	defer rows.Close()

	var conns []domain.BankConnection
	for rows.Next() {
		c := domain.BankConnection{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.Dialect, &c.OwnerID, &c.KeysConfirmed, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bank connection row: %w", err)
		}
		conns = append(conns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bank connection rows: %w", err)
	}
	return conns, nil
}

// SetKeysConfirmed updates a connection's keys_confirmed flag.
func (r *BankConnectionRepo) SetKeysConfirmed(ctx context.Context, id uuid.UUID, confirmed bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE bank_connections SET keys_confirmed = $1 WHERE id = $2`, confirmed, id)
	if err != nil {
		return fmt.Errorf("update keys_confirmed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bank connection not found: %s", id)
	}
	return nil
}

func (r *BankConnectionRepo) scan(row pgx.Row) (*domain.BankConnection, error) {
	c := &domain.BankConnection{}
	err := row.Scan(&c.ID, &c.Name, &c.Type, &c.Dialect, &c.OwnerID, &c.KeysConfirmed, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan bank connection: %w", err)
	}
	return c, nil
}
