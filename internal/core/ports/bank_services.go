package ports

import (
	"context"
	"time"

	"github.com/leuf-systems/nexus/internal/core/domain"

	"github.com/google/uuid"
)

// EbicsKeyPair is one RSA key pair generated for a subscriber role
// (signing, authentication, or encryption).
type EbicsKeyPair struct {
	PrivateKeyPEM string
	PublicKeyPEM  string
}

// CryptoService implements the EBICS cryptographic primitives: A006 order
// data signing, E002 hybrid encryption, DEFLATE compression, and the
// restricted canonicalization EBICS needs over its signed request elements.
type CryptoService interface {
	GenerateKeyPair(bits int) (EbicsKeyPair, error)

	SignA006(privateKeyPEM string, orderDataDigest []byte) ([]byte, error)
	VerifyA006(publicKeyPEM string, orderDataDigest []byte, signature []byte) error

	// EncryptE002 compresses then encrypts plaintext order data, returning
	// the AES-encrypted payload, the per-transaction AES key RSA-wrapped to
	// the bank's encryption public key, and pubDigest, the SHA-256 digest of
	// that public key's DER encoding.
	EncryptE002(bankEncPublicKeyPEM string, plaintext []byte) (ciphertext []byte, encryptedKey []byte, pubDigest []byte, err error)
	DecryptE002(subscriberEncPrivateKeyPEM string, ciphertext []byte, encryptedKey []byte) (plaintext []byte, err error)

	Deflate(data []byte) ([]byte, error)
	Inflate(data []byte) ([]byte, error)

	// Digest returns the SHA-256 hash of its input. Upload applies it to the
	// raw order data before A006 signing, and request signing applies it to
	// the canonicalized request.
	Digest(canonicalXML []byte) []byte

	// DigestPublicKeyPEM hashes the DER encoding of a PEM-encoded public
	// key, the BankPubKeyDigests value EBICS carries to identify which bank
	// key version a signed request assumes.
	DigestPublicKeyPEM(publicKeyPEM string) ([]byte, error)
}

// Iso20022Service builds outgoing pain.001 documents and parses incoming
// camt.052/053/054 documents into canonical entries.
type Iso20022Service interface {
	BuildPain001(dialect domain.EbicsDialect, initiation *domain.PaymentInitiation, debtor domain.BankAccount) ([]byte, error)
	ParseCamt(level domain.FetchLevel, raw []byte) (ParsedCamtDocument, error)
}

// ParsedCamtDocument is the result of parsing one camt document: the bank
// message id, its own GrpHdr/CreDtTm creation timestamp (the watermark
// advances to this, not to wall-clock time), the canonical entries found,
// and a best-effort closing balance if the document carried one (camt.053
// Bal/CLBD).
type ParsedCamtDocument struct {
	MessageID            string
	CreatedAt            time.Time
	Entries              []domain.CanonicalEntry
	ClosingBookedBalance *string
	ClosingBalanceAsOf   *time.Time
}

// EbicsClient drives one subscriber's conversation with a bank EBICS host:
// key management, HEV version probing, and the download/upload state
// machines.
type EbicsClient interface {
	// HEV probes which EBICS protocol versions the host advertises.
	HEV(ctx context.Context, url, hostID string) ([]string, error)

	INI(ctx context.Context, sub *domain.EbicsSubscriber) error
	HIA(ctx context.Context, sub *domain.EbicsSubscriber) error
	HPB(ctx context.Context, sub *domain.EbicsSubscriber) (bankAuthPubPEM, bankEncPubPEM string, err error)

	// Download runs one full INIT/TRANSFER.../RECEIPT/DONE cycle for
	// orderType (H004) or btf (H005) and returns the decrypted, inflated
	// order data.
	Download(ctx context.Context, sub *domain.EbicsSubscriber, req DownloadRequest) ([]byte, error)

	// Upload runs one full INIT/TRANSFER.../DONE cycle carrying orderData
	// and returns the order ID the client assigned to it from the
	// subscriber's NextOrderID counter.
	Upload(ctx context.Context, sub *domain.EbicsSubscriber, req UploadRequest) (orderID string, err error)

	// FetchAccounts downloads and parses HTD/HKD to enumerate the accounts
	// reachable under this subscriber.
	FetchAccounts(ctx context.Context, sub *domain.EbicsSubscriber) ([]domain.OfferedBankAccount, error)
}

// DownloadRequest parametrizes one EBICS download transaction.
type DownloadRequest struct {
	Level    domain.FetchLevel
	From, To *time.Time
}

// UploadRequest parametrizes one EBICS upload transaction.
type UploadRequest struct {
	OrderData []byte
}

// FacadeBus decouples ledger ingestion from initiation confirmation
// matching: the ledger service publishes every freshly-inserted entry, and
// the initiation service subscribes to look for a matching pending
// PaymentInitiation. Modeled on an in-process pub/sub
// rather than a broker since both sides run in the same service.
type FacadeBus interface {
	PublishIngested(ctx context.Context, entry *domain.BankTransactionEntry)
	OnIngested(handler func(ctx context.Context, entry *domain.BankTransactionEntry))

	// Register binds a facade name to the hooks that select_initiations_for
	// and its siblings use. A facade that never registers simply never gets
	// a callback; the bus itself does not assume a caller exists.
	Register(name string, hooks FacadeHooks)

	// SelectInitiationsFor returns the pending payment initiations facade
	// has registered an interest in via FacadeHooks.SelectInitiations.
	SelectInitiationsFor(ctx context.Context, facade string) ([]domain.PaymentInitiation, error)
}

// FacadeHooks is what a facade registers with the bus: currently just the
// callback backing select_initiations_for(facade). Kept as a struct rather
// than a bare function so a facade can grow more hooks later without
// changing the Register signature.
type FacadeHooks struct {
	SelectInitiations func(ctx context.Context) ([]domain.PaymentInitiation, error)
}

// TransactionNotifier wakes long-polling GET /bank-accounts/{a}/transactions
// callers as soon as the ledger ingests a new entry for that account.
type TransactionNotifier interface {
	Publish(ctx context.Context, bankAccountID uuid.UUID) error
	Wait(ctx context.Context, bankAccountID uuid.UUID, timeout time.Duration) (bool, error)
}

// SchedulerService runs cron-scheduled fetch/submit tasks.
type SchedulerService interface {
	Start(ctx context.Context) error
	Stop()
	// ScheduleTask registers or re-registers t's cron spec immediately.
	ScheduleTask(t domain.ScheduledTask) error
	Unschedule(taskID uuid.UUID)
}

// ConnectionService orchestrates the operator-facing connection lifecycle:
// key generation, INI/HIA/HPB, account discovery, and key confirmation.
type ConnectionService interface {
	CreateConnection(ctx context.Context, name string, dialect domain.EbicsDialect, url, hostID, partnerID, userID string, ownerID uuid.UUID) (*domain.BankConnection, error)
	SendINI(ctx context.Context, connID uuid.UUID) error
	SendHIA(ctx context.Context, connID uuid.UUID) error
	FetchHPB(ctx context.Context, connID uuid.UUID) error
	ConfirmKeys(ctx context.Context, connID uuid.UUID) error
	DiscoverAccounts(ctx context.Context, connID uuid.UUID) ([]domain.OfferedBankAccount, error)
	ImportAccount(ctx context.Context, offeredID uuid.UUID, label string) (*domain.BankAccount, error)
}

// LedgerService fetches, parses, and ingests camt documents for one bank
// account, advancing its watermarks.
type LedgerService interface {
	Fetch(ctx context.Context, bankAccountID uuid.UUID, level domain.FetchLevel, rng domain.RangeType, number *int) error
	ListTransactions(ctx context.Context, bankAccountID uuid.UUID, afterID *uuid.UUID, limit int) ([]domain.BankTransactionEntry, error)
}

// InitiationService creates idempotent outgoing payment requests and
// submits them over EBICS.
type InitiationService interface {
	Create(ctx context.Context, req CreateInitiationRequest) (*domain.PaymentInitiation, error)
	Submit(ctx context.Context, bankAccountID uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*domain.PaymentInitiation, error)
}

// CreateInitiationRequest is the validated input to InitiationService.Create.
type CreateInitiationRequest struct {
	BankAccountID uuid.UUID
	Amount        string
	Currency      string
	Subject       string
	Creditor      domain.Creditor
	UID           *string
}
