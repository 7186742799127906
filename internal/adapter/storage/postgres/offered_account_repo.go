package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/leuf-systems/nexus/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OfferedAccountRepo implements ports.OfferedBankAccountRepository.
type OfferedAccountRepo struct {
	pool Pool
}

// NewOfferedAccountRepo creates a new OfferedAccountRepo.
func NewOfferedAccountRepo(pool Pool) *OfferedAccountRepo {
	return &OfferedAccountRepo{pool: pool}
}

const offeredAccountColumns = `id, bank_connection_id, remote_account_id, iban, bic, holder_name, imported_bank_account_id`

// Replace deletes every not-yet-imported offered account row for connID and
// inserts offered in its place, inside one transaction, since HTD/HKD always
// returns the bank's complete current answer rather than a delta. Rows
// already imported are kept, and an offered account with the same remote
// account ID as a kept row is not inserted.
func (r *OfferedAccountRepo) Replace(ctx context.Context, connID uuid.UUID, offered []domain.OfferedBankAccount) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace offered accounts: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM offered_bank_accounts WHERE bank_connection_id = $1 AND imported_bank_account_id IS NULL`, connID); err != nil {
		return fmt.Errorf("clear offered accounts: %w", err)
	}

	for i := range offered {
		o := &offered[i]
		if o.ID == uuid.Nil {
			o.ID = uuid.New()
		}
		o.BankConnectionID = connID
		query := `INSERT INTO offered_bank_accounts (` + offeredAccountColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (bank_connection_id, remote_account_id) DO NOTHING`
		if _, err := tx.Exec(ctx, query, o.ID, o.BankConnectionID, o.RemoteAccountID, o.IBAN, o.BIC, o.HolderName, o.ImportedBankAccountID); err != nil {
			return fmt.Errorf("insert offered account: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ListByConnection fetches every offered account for connID.
func (r *OfferedAccountRepo) ListByConnection(ctx context.Context, connID uuid.UUID) ([]domain.OfferedBankAccount, error) {
	query := `SELECT ` + offeredAccountColumns + ` FROM offered_bank_accounts WHERE bank_connection_id = $1`

	rows, err := r.pool.Query(ctx, query, connID)
	if err != nil {
		return nil, fmt.Errorf("list offered accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.OfferedBankAccount
	for rows.Next() {
		o := domain.OfferedBankAccount{}
		if err := rows.Scan(&o.ID, &o.BankConnectionID, &o.RemoteAccountID, &o.IBAN, &o.BIC, &o.HolderName, &o.ImportedBankAccountID); err != nil {
			return nil, fmt.Errorf("scan offered account row: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offered account rows: %w", err)
	}
	return out, nil
}

// GetByID fetches one offered account.
func (r *OfferedAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.OfferedBankAccount, error) {
	query := `SELECT ` + offeredAccountColumns + ` FROM offered_bank_accounts WHERE id = $1`

	o := &domain.OfferedBankAccount{}
	err := r.pool.QueryRow(ctx, query, id).Scan(&o.ID, &o.BankConnectionID, &o.RemoteAccountID, &o.IBAN, &o.BIC, &o.HolderName, &o.ImportedBankAccountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get offered account: %w", err)
	}
	return o, nil
}

// MarkImported links an offered account to the bank account created from it.
func (r *OfferedAccountRepo) MarkImported(ctx context.Context, id uuid.UUID, bankAccountID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE offered_bank_accounts SET imported_bank_account_id = $1 WHERE id = $2`, bankAccountID, id)
	if err != nil {
		return fmt.Errorf("mark offered account imported: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("offered account not found: %s", id)
	}
	return nil
}
