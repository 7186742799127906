package domain

import (
	"time"

	"github.com/google/uuid"
)

// CreditDebitIndicator is the ISO 20022 CdtDbtInd value.
type CreditDebitIndicator string

const (
	CreditDebitIndicatorCredit CreditDebitIndicator = "CRDT"
	CreditDebitIndicatorDebit  CreditDebitIndicator = "DBIT"
)

// EntryStatus mirrors the ISO 20022 Sts value on a camt Ntry.
type EntryStatus string

const (
	EntryStatusBooked  EntryStatus = "BOOK"
	EntryStatusPending EntryStatus = "PDNG"
	EntryStatusInfo    EntryStatus = "INFO"
)

// AcctSvcrRefPrefix is prepended to the bank-assigned AcctSvcrRef to build
// the bank-side transaction identifier used for deduplication.
const AcctSvcrRefPrefix = "AcctSvcrRef:"

// BuildTransactionID constructs the canonical dedup key for a camt entry
// carrying AcctSvcrRef ref.
func BuildTransactionID(ref string) string {
	return AcctSvcrRefPrefix + ref
}

// BankTransactionEntry is one ingested, canonicalized camt Ntry. Rows are
// never mutated after insert except to point Status at a superseding row
// via UpdatedByID.
type BankTransactionEntry struct {
	ID            uuid.UUID
	BankAccountID uuid.UUID

	// TransactionID is "AcctSvcrRef:<ref>"; unique per (BankAccountID,
	// TransactionID).
	TransactionID string

	CreditDebitIndicator CreditDebitIndicator
	Currency             string
	Amount               string // decimal string, always > 0
	Status               EntryStatus

	// TransactionJSON is the canonical JSON form of the parsed Ntry,
	// including BkTxCd, NtryDtls/TxDtls, and any PmtInfId reference found.
	TransactionJSON []byte

	// UpdatedByID points at the entry that supersedes this one's status,
	// if any. Never forms a cycle; only the newer row points at the older.
	UpdatedByID *uuid.UUID

	// ConfirmationOfInitiationID is set by a PaymentInitiation pointing
	// back at this entry — modeled here only as the inverse lookup; the
	// authoritative FK lives on
	// PaymentInitiation.ConfirmationTransactionID.

	BookingDate time.Time
	CreatedAt   time.Time
}

// CanonicalEntry is the intermediate, bank-agnostic representation produced
// by the camt parser before it is persisted as a BankTransactionEntry. It
// exists separately so round-tripping a camt entry through canonical JSON
// and back yields a structurally equal result, with a fixed
// point to serialize.
type CanonicalEntry struct {
	AcctSvcrRef          string                 `json:"acctSvcrRef"`
	Amount               string                 `json:"amount"`
	Currency             string                 `json:"currency"`
	CreditDebitIndicator CreditDebitIndicator   `json:"creditDebitIndicator"`
	Status               EntryStatus            `json:"status"`
	BookingDate          time.Time              `json:"bookingDate"`
	BankTransactionCode  string                 `json:"bankTransactionCode,omitempty"`
	UnstructuredRemittanceInformation string    `json:"unstructuredRemittanceInformation,omitempty"`
	PaymentInformationID string                 `json:"paymentInformationId,omitempty"`
	EndToEndID           string                 `json:"endToEndId,omitempty"`
	DebtorIBAN           string                 `json:"debtorIban,omitempty"`
	CreditorIBAN         string                 `json:"creditorIban,omitempty"`
	Batch                bool                   `json:"batch"`
	RawDetails           map[string]interface{} `json:"rawDetails,omitempty"`
}
