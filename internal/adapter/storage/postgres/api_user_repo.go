package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/leuf-systems/nexus/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// APIUserRepo implements ports.APIUserRepository.
type APIUserRepo struct {
	pool Pool
}

// NewAPIUserRepo creates a new APIUserRepo.
func NewAPIUserRepo(pool Pool) *APIUserRepo {
	return &APIUserRepo{pool: pool}
}

// Create inserts a new operator account.
func (r *APIUserRepo) Create(ctx context.Context, u *domain.APIUser) error {
	query := `INSERT INTO api_users (id, username, password_hash, superuser, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, u.ID, u.Username, u.PasswordHash, u.Superuser, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert api user: %w", err)
	}
	return nil
}

// GetByUsername fetches an operator account by username, or (nil, nil) if
// none exists.
func (r *APIUserRepo) GetByUsername(ctx context.Context, username string) (*domain.APIUser, error) {
	query := `SELECT id, username, password_hash, superuser, created_at
		FROM api_users WHERE username = $1`
	u := &domain.APIUser{}
	err := r.pool.QueryRow(ctx, query, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Superuser, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get api user by username: %w", err)
	}
	return u, nil
}
