package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/leuf-systems/nexus/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BankAccountRepo implements ports.BankAccountRepository.
type BankAccountRepo struct {
	pool Pool
}

// NewBankAccountRepo creates a new BankAccountRepo.
func NewBankAccountRepo(pool Pool) *BankAccountRepo {
	return &BankAccountRepo{pool: pool}
}

const bankAccountColumns = `id, label, holder_name, iban, bic, default_connection_id,
	last_report_creation_ts, last_statement_creation_ts, last_notification_creation_ts,
	highest_seen_bank_message_serial_id, pain001_counter,
	closing_booked_balance, closing_balance_as_of, created_at`

// Create inserts a new bank account.
func (r *BankAccountRepo) Create(ctx context.Context, acct *domain.BankAccount) error {
	query := `INSERT INTO bank_accounts (` + bankAccountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		acct.ID, acct.Label, acct.HolderName, acct.IBAN, acct.BIC, acct.DefaultConnectionID,
		acct.LastReportCreationTimestamp, acct.LastStatementCreationTimestamp, acct.LastNotificationCreationTimestamp,
		acct.HighestSeenBankMessageSerialID, acct.Pain001Counter,
		acct.ClosingBookedBalance, acct.ClosingBalanceAsOf, acct.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert bank account: %w", err)
	}
	return nil
}

// GetByID fetches a bank account by UUID, without locking.
func (r *BankAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BankAccount, error) {
	query := `SELECT ` + bankAccountColumns + ` FROM bank_accounts WHERE id = $1`
	return r.scan(r.pool.QueryRow(ctx, query, id))
}

// GetByIBAN fetches a bank account by its IBAN.
func (r *BankAccountRepo) GetByIBAN(ctx context.Context, iban string) (*domain.BankAccount, error) {
	query := `SELECT ` + bankAccountColumns + ` FROM bank_accounts WHERE iban = $1`
	return r.scan(r.pool.QueryRow(ctx, query, iban))
}

// List fetches every bank account.
func (r *BankAccountRepo) List(ctx context.Context) ([]domain.BankAccount, error) {
	query := `SELECT ` + bankAccountColumns + ` FROM bank_accounts ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list bank accounts: %w", err)
	}
	defer rows.Close()

	var accts []domain.BankAccount
	for rows.Next() {
		a, err := scanBankAccountRow(rows)
		if err != nil {
			return nil, err
		}
		accts = append(accts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bank account rows: %w", err)
	}
	return accts, nil
}

// GetForUpdate fetches a bank account with pessimistic locking. Must be
// called within a transaction; callers hold the lock while advancing
// watermarks or the pain.001 counter so two concurrent fetches/submissions
// for the same account never interleave.
func (r *BankAccountRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.BankAccount, error) {
	query := `SELECT ` + bankAccountColumns + ` FROM bank_accounts WHERE id = $1 FOR UPDATE`
	return r.scan(tx.QueryRow(ctx, query, id))
}

// Update persists every mutable field of acct within a transaction.
func (r *BankAccountRepo) Update(ctx context.Context, tx pgx.Tx, acct *domain.BankAccount) error {
	query := `UPDATE bank_accounts SET
		label = $1, holder_name = $2, iban = $3, bic = $4, default_connection_id = $5,
		last_report_creation_ts = $6, last_statement_creation_ts = $7, last_notification_creation_ts = $8,
		highest_seen_bank_message_serial_id = $9, pain001_counter = $10,
		closing_booked_balance = $11, closing_balance_as_of = $12
		WHERE id = $13`

	tag, err := tx.Exec(ctx, query,
		acct.Label, acct.HolderName, acct.IBAN, acct.BIC, acct.DefaultConnectionID,
		acct.LastReportCreationTimestamp, acct.LastStatementCreationTimestamp, acct.LastNotificationCreationTimestamp,
		acct.HighestSeenBankMessageSerialID, acct.Pain001Counter,
		acct.ClosingBookedBalance, acct.ClosingBalanceAsOf,
		acct.ID,
	)
	if err != nil {
		return fmt.Errorf("update bank account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bank account not found: %s", acct.ID)
	}
	return nil
}

func (r *BankAccountRepo) scan(row pgx.Row) (*domain.BankAccount, error) {
	a := &domain.BankAccount{}
	err := row.Scan(
		&a.ID, &a.Label, &a.HolderName, &a.IBAN, &a.BIC, &a.DefaultConnectionID,
		&a.LastReportCreationTimestamp, &a.LastStatementCreationTimestamp, &a.LastNotificationCreationTimestamp,
		&a.HighestSeenBankMessageSerialID, &a.Pain001Counter,
		&a.ClosingBookedBalance, &a.ClosingBalanceAsOf, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan bank account: %w", err)
	}
	return a, nil
}

// scanRows is satisfied by both pgx.Rows and pgx.Row for the fields this
// repository scans.
type scanRows interface {
	Scan(dest ...any) error
}

func scanBankAccountRow(row scanRows) (*domain.BankAccount, error) {
	a := &domain.BankAccount{}
	err := row.Scan(
		&a.ID, &a.Label, &a.HolderName, &a.IBAN, &a.BIC, &a.DefaultConnectionID,
		&a.LastReportCreationTimestamp, &a.LastStatementCreationTimestamp, &a.LastNotificationCreationTimestamp,
		&a.HighestSeenBankMessageSerialID, &a.Pain001Counter,
		&a.ClosingBookedBalance, &a.ClosingBalanceAsOf, &a.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan bank account row: %w", err)
	}
	return a, nil
}
