package ports

import (
	"context"
	"time"

	"github.com/leuf-systems/nexus/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BankConnectionRepository persists BankConnection rows.
type BankConnectionRepository interface {
	Create(ctx context.Context, conn *domain.BankConnection) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BankConnection, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]domain.BankConnection, error)
	SetKeysConfirmed(ctx context.Context, id uuid.UUID, confirmed bool) error
}

// EbicsSubscriberRepository persists the 1:1 EbicsSubscriber row owned by a
// BankConnection. GetForUpdate takes a row lock for the duration of an EBICS
// transaction so NextOrderID and key state never race.
type EbicsSubscriberRepository interface {
	Create(ctx context.Context, sub *domain.EbicsSubscriber) error
	GetByConnectionID(ctx context.Context, connID uuid.UUID) (*domain.EbicsSubscriber, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, connID uuid.UUID) (*domain.EbicsSubscriber, error)
	Update(ctx context.Context, tx pgx.Tx, sub *domain.EbicsSubscriber) error
}

// BankAccountRepository persists BankAccount rows.
type BankAccountRepository interface {
	Create(ctx context.Context, acct *domain.BankAccount) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BankAccount, error)
	GetByIBAN(ctx context.Context, iban string) (*domain.BankAccount, error)
	List(ctx context.Context) ([]domain.BankAccount, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.BankAccount, error)
	Update(ctx context.Context, tx pgx.Tx, acct *domain.BankAccount) error
}

// OfferedBankAccountRepository persists accounts a bank connection reports
// as reachable but not yet imported into Nexus's own ledger.
type OfferedBankAccountRepository interface {
	Replace(ctx context.Context, connID uuid.UUID, offered []domain.OfferedBankAccount) error
	ListByConnection(ctx context.Context, connID uuid.UUID) ([]domain.OfferedBankAccount, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.OfferedBankAccount, error)
	MarkImported(ctx context.Context, id uuid.UUID, bankAccountID uuid.UUID) error
}

// BankMessageRepository persists the raw, immutable payload of every
// downloaded EBICS order.
type BankMessageRepository interface {
	Create(ctx context.Context, msg *domain.BankMessage) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BankMessage, error)
	ListByConnection(ctx context.Context, connID uuid.UUID, limit int) ([]domain.BankMessage, error)
}

// BankTransactionEntryRepository persists ingested, deduplicated camt
// entries. CreateIfAbsent returns (inserted=false, nil) without error when a
// row with the same (BankAccountID, TransactionID) already exists.
type BankTransactionEntryRepository interface {
	CreateIfAbsent(ctx context.Context, tx pgx.Tx, entry *domain.BankTransactionEntry) (inserted bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BankTransactionEntry, error)
	GetByTransactionID(ctx context.Context, bankAccountID uuid.UUID, transactionID string) (*domain.BankTransactionEntry, error)
	// ListSince returns entries for bankAccountID created after afterID,
	// ordered by creation, for the long-polling transactions endpoint.
	ListSince(ctx context.Context, bankAccountID uuid.UUID, afterID *uuid.UUID, limit int) ([]domain.BankTransactionEntry, error)
	MarkSuperseded(ctx context.Context, tx pgx.Tx, id uuid.UUID, supersededBy uuid.UUID) error
}

// PaymentInitiationRepository persists outgoing pain.001 requests.
type PaymentInitiationRepository interface {
	Create(ctx context.Context, p *domain.PaymentInitiation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentInitiation, error)
	GetByUID(ctx context.Context, bankAccountID uuid.UUID, uid string) (*domain.PaymentInitiation, error)
	GetByPaymentInformationID(ctx context.Context, bankAccountID uuid.UUID, paymentInformationID string) (*domain.PaymentInitiation, error)
	ListUnsubmitted(ctx context.Context, bankAccountID uuid.UUID) ([]domain.PaymentInitiation, error)
	MarkSubmitted(ctx context.Context, id uuid.UUID, submittedAt time.Time) error
	MarkInvalid(ctx context.Context, id uuid.UUID) error
	LinkConfirmation(ctx context.Context, id uuid.UUID, entryID uuid.UUID) error
}

// ScheduledTaskRepository persists cron-driven fetch/submit tasks.
type ScheduledTaskRepository interface {
	Create(ctx context.Context, t *domain.ScheduledTask) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledTask, error)
	ListByResource(ctx context.Context, resourceType string, resourceID uuid.UUID) ([]domain.ScheduledTask, error)
	ListAll(ctx context.Context) ([]domain.ScheduledTask, error)
	RecordExecution(ctx context.Context, id uuid.UUID, prevEpochSec int64, nextEpochSec int64) error
}

// APIUserRepository persists operator accounts used for HTTP Basic auth
// against the Nexus HTTP API.
type APIUserRepository interface {
	Create(ctx context.Context, u *domain.APIUser) error
	GetByUsername(ctx context.Context, username string) (*domain.APIUser, error)
}
