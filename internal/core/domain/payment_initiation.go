package domain

import (
	"time"

	"github.com/google/uuid"
)

// Creditor holds the beneficiary details of an outgoing credit transfer.
type Creditor struct {
	IBAN string
	BIC  string
	Name string
}

// PaymentInitiation is a one-shot, idempotent outgoing credit transfer
// request. It is created with Submitted=false and later either submitted
// (pain.001 uploaded over EBICS) or left pending; a confirming camt entry
// is linked asynchronously by ingestion.
type PaymentInitiation struct {
	ID            uuid.UUID
	BankAccountID uuid.UUID

	PreparedAt     time.Time
	SubmittedAt    *time.Time
	Submitted      bool
	Invalid        bool

	Amount   string // decimal string, at most 2 fractional digits
	Currency string
	Subject  string
	Creditor Creditor

	// EndToEndID, MessageID, PaymentInformationID, InstructionID are all
	// generated from a fixed template and unique across initiations of
	// the same connection.
	EndToEndID           string
	MessageID            string
	PaymentInformationID string
	InstructionID        string

	// UID is the optional client-supplied idempotency deduper.
	UID *string

	// ConfirmationTransactionID is set once a matching DBIT
	// BankTransactionEntry is ingested.
	ConfirmationTransactionID *uuid.UUID
}

// EqualRequest reports whether other was built from the same logical
// request as p — i.e. every field the client controls matches. Used to
// decide conflict vs idempotent-replay on a repeated uid.
func (p *PaymentInitiation) EqualRequest(other *PaymentInitiation) bool {
	return p.Amount == other.Amount &&
		p.Currency == other.Currency &&
		p.Subject == other.Subject &&
		p.Creditor == other.Creditor &&
		p.BankAccountID == other.BankAccountID
}
