package domain

import (
	"time"

	"github.com/google/uuid"
)

// FetchLevel identifies which camt document family a fetch or watermark
// applies to.
type FetchLevel string

const (
	FetchLevelReport       FetchLevel = "report"       // camt.052
	FetchLevelStatement    FetchLevel = "statement"     // camt.053
	FetchLevelNotification FetchLevel = "notification"  // camt.054
)

// BankAccount is a Nexus-side account ledger root: one IBAN, its own
// watermarks, and its own ingested BankTransactionEntry rows.
type BankAccount struct {
	ID         uuid.UUID
	Label      string
	HolderName string
	IBAN       string
	BIC        string

	// DefaultConnectionID is nullable: an account can exist before any
	// connection is bound to it (e.g. while still an OfferedBankAccount).
	DefaultConnectionID *uuid.UUID

	LastReportCreationTimestamp       *time.Time
	LastStatementCreationTimestamp    *time.Time
	LastNotificationCreationTimestamp *time.Time

	// HighestSeenBankMessageSerialID lets a resumed fetch skip bank
	// messages already ingested even when creation timestamps collide.
	HighestSeenBankMessageSerialID int64

	Pain001Counter int64

	// ClosingBookedBalance is a denormalized, best-effort balance lifted
	// from the most recent camt.053 `Bal` element. It is
	// never authoritative; BankTransactionEntry rows are.
	ClosingBookedBalance *string
	ClosingBalanceAsOf   *time.Time

	CreatedAt time.Time
}

// Watermark returns the current watermark for level, or nil if none yet.
func (a *BankAccount) Watermark(level FetchLevel) *time.Time {
	switch level {
	case FetchLevelReport:
		return a.LastReportCreationTimestamp
	case FetchLevelStatement:
		return a.LastStatementCreationTimestamp
	case FetchLevelNotification:
		return a.LastNotificationCreationTimestamp
	default:
		return nil
	}
}

// AdvanceWatermark sets the watermark for level to t if t is later than the
// current value; watermarks are non-decreasing.
func (a *BankAccount) AdvanceWatermark(level FetchLevel, t time.Time) {
	cur := a.Watermark(level)
	if cur != nil && !t.After(*cur) {
		return
	}
	switch level {
	case FetchLevelReport:
		a.LastReportCreationTimestamp = &t
	case FetchLevelStatement:
		a.LastStatementCreationTimestamp = &t
	case FetchLevelNotification:
		a.LastNotificationCreationTimestamp = &t
	}
}

// OfferedBankAccount is an account the bank reports as reachable by a
// connection (via HTD/HKD) but not yet imported into Nexus's own ledger.
type OfferedBankAccount struct {
	ID                   uuid.UUID
	BankConnectionID     uuid.UUID
	RemoteAccountID      string
	IBAN                 string
	BIC                  string
	HolderName           string
	ImportedBankAccountID *uuid.UUID
}
