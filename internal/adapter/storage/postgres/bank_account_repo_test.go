package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/leuf-systems/nexus/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBankAccount() *domain.BankAccount {
	connID := uuid.New()
	return &domain.BankAccount{
		ID:                  uuid.New(),
		Label:               "Main operating account",
		HolderName:          "Leuf Systems GmbH",
		IBAN:                "DE89370400440532013000",
		BIC:                 "COBADEFFXXX",
		DefaultConnectionID: &connID,
		CreatedAt:           time.Now().UTC().Truncate(time.Microsecond),
	}
}

func bankAccountColumnNames() []string {
	return []string{
		"id", "label", "holder_name", "iban", "bic", "default_connection_id",
		"last_report_creation_ts", "last_statement_creation_ts", "last_notification_creation_ts",
		"highest_seen_bank_message_serial_id", "pain001_counter",
		"closing_booked_balance", "closing_balance_as_of", "created_at",
	}
}

func bankAccountRow(a *domain.BankAccount) *pgxmock.Rows {
	return pgxmock.NewRows(bankAccountColumnNames()).AddRow(
		a.ID, a.Label, a.HolderName, a.IBAN, a.BIC, a.DefaultConnectionID,
		a.LastReportCreationTimestamp, a.LastStatementCreationTimestamp, a.LastNotificationCreationTimestamp,
		a.HighestSeenBankMessageSerialID, a.Pain001Counter,
		a.ClosingBookedBalance, a.ClosingBalanceAsOf, a.CreatedAt,
	)
}

func TestBankAccountRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBankAccountRepo(mock)
	a := newTestBankAccount()

	mock.ExpectExec("INSERT INTO bank_accounts").
		WithArgs(a.ID, a.Label, a.HolderName, a.IBAN, a.BIC, a.DefaultConnectionID,
			a.LastReportCreationTimestamp, a.LastStatementCreationTimestamp, a.LastNotificationCreationTimestamp,
			a.HighestSeenBankMessageSerialID, a.Pain001Counter,
			a.ClosingBookedBalance, a.ClosingBalanceAsOf, a.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), a)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBankAccountRepo_GetByIBAN(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBankAccountRepo(mock)
	a := newTestBankAccount()

	mock.ExpectQuery("SELECT .+ FROM bank_accounts WHERE iban").
		WithArgs(a.IBAN).
		WillReturnRows(bankAccountRow(a))

	result, err := repo.GetByIBAN(context.Background(), a.IBAN)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, a.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBankAccountRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBankAccountRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM bank_accounts WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(bankAccountColumnNames()))

	result, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBankAccountRepo_GetForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBankAccountRepo(mock)
	a := newTestBankAccount()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM bank_accounts WHERE id .+ FOR UPDATE").
		WithArgs(a.ID).
		WillReturnRows(bankAccountRow(a))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetForUpdate(context.Background(), tx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, a.IBAN, result.IBAN)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBankAccountRepo_Update_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBankAccountRepo(mock)
	a := newTestBankAccount()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE bank_accounts SET").
		WithArgs(a.Label, a.HolderName, a.IBAN, a.BIC, a.DefaultConnectionID,
			a.LastReportCreationTimestamp, a.LastStatementCreationTimestamp, a.LastNotificationCreationTimestamp,
			a.HighestSeenBankMessageSerialID, a.Pain001Counter,
			a.ClosingBookedBalance, a.ClosingBalanceAsOf, a.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Update(context.Background(), tx, a)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bank account not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
