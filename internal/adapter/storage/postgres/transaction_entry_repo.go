package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/leuf-systems/nexus/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionEntryRepo implements ports.BankTransactionEntryRepository.
type TransactionEntryRepo struct {
	pool Pool
}

// NewTransactionEntryRepo creates a new TransactionEntryRepo.
func NewTransactionEntryRepo(pool Pool) *TransactionEntryRepo {
	return &TransactionEntryRepo{pool: pool}
}

const transactionEntryColumns = `id, bank_account_id, transaction_id, credit_debit_indicator, currency, amount,
	status, transaction_json, updated_by_id, booking_date, created_at`

// CreateIfAbsent inserts entry unless a row with the same
// (BankAccountID, TransactionID) already exists, in which case it reports
// inserted=false without error.
func (r *TransactionEntryRepo) CreateIfAbsent(ctx context.Context, tx pgx.Tx, entry *domain.BankTransactionEntry) (bool, error) {
	query := `INSERT INTO bank_transaction_entries (` + transactionEntryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (bank_account_id, transaction_id) DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		entry.ID, entry.BankAccountID, entry.TransactionID, entry.CreditDebitIndicator, entry.Currency, entry.Amount,
		entry.Status, entry.TransactionJSON, entry.UpdatedByID, entry.BookingDate, entry.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert bank transaction entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetByID fetches an entry by UUID.
func (r *TransactionEntryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BankTransactionEntry, error) {
	query := `SELECT ` + transactionEntryColumns + ` FROM bank_transaction_entries WHERE id = $1`
	return r.scan(r.pool.QueryRow(ctx, query, id))
}

// GetByTransactionID fetches an entry by its dedup key.
func (r *TransactionEntryRepo) GetByTransactionID(ctx context.Context, bankAccountID uuid.UUID, transactionID string) (*domain.BankTransactionEntry, error) {
	query := `SELECT ` + transactionEntryColumns + ` FROM bank_transaction_entries WHERE bank_account_id = $1 AND transaction_id = $2`
	return r.scan(r.pool.QueryRow(ctx, query, bankAccountID, transactionID))
}

// ListSince returns entries for bankAccountID created after afterID (by
// insertion order), for the long-polling transactions endpoint.
func (r *TransactionEntryRepo) ListSince(ctx context.Context, bankAccountID uuid.UUID, afterID *uuid.UUID, limit int) ([]domain.BankTransactionEntry, error) {
	var rows pgx.Rows
	var err error

	if afterID == nil {
		query := `SELECT ` + transactionEntryColumns + ` FROM bank_transaction_entries
			WHERE bank_account_id = $1 ORDER BY created_at ASC LIMIT $2`
		rows, err = r.pool.Query(ctx, query, bankAccountID, limit)
	} else {
		query := `SELECT ` + transactionEntryColumns + ` FROM bank_transaction_entries
			WHERE bank_account_id = $1 AND created_at > (SELECT created_at FROM bank_transaction_entries WHERE id = $2)
			ORDER BY created_at ASC LIMIT $3`
		rows, err = r.pool.Query(ctx, query, bankAccountID, *afterID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list bank transaction entries: %w", err)
	}
	defer rows.Close()

	var out []domain.BankTransactionEntry
	for rows.Next() {
		e, err := scanTransactionEntryRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bank transaction entry rows: %w", err)
	}
	return out, nil
}

// MarkSuperseded points id's UpdatedByID at supersededBy within a transaction.
func (r *TransactionEntryRepo) MarkSuperseded(ctx context.Context, tx pgx.Tx, id uuid.UUID, supersededBy uuid.UUID) error {
	tag, err := tx.Exec(ctx, `UPDATE bank_transaction_entries SET updated_by_id = $1 WHERE id = $2`, supersededBy, id)
	if err != nil {
		return fmt.Errorf("mark entry superseded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bank transaction entry not found: %s", id)
	}
	return nil
}

func (r *TransactionEntryRepo) scan(row pgx.Row) (*domain.BankTransactionEntry, error) {
	e := &domain.BankTransactionEntry{}
	err := row.Scan(
		&e.ID, &e.BankAccountID, &e.TransactionID, &e.CreditDebitIndicator, &e.Currency, &e.Amount,
		&e.Status, &e.TransactionJSON, &e.UpdatedByID, &e.BookingDate, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan bank transaction entry: %w", err)
	}
	return e, nil
}

func scanTransactionEntryRow(row scanRows) (*domain.BankTransactionEntry, error) {
	e := &domain.BankTransactionEntry{}
	err := row.Scan(
		&e.ID, &e.BankAccountID, &e.TransactionID, &e.CreditDebitIndicator, &e.Currency, &e.Amount,
		&e.Status, &e.TransactionJSON, &e.UpdatedByID, &e.BookingDate, &e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan bank transaction entry row: %w", err)
	}
	return e, nil
}
