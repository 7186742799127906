package domain

import (
	"time"

	"github.com/google/uuid"
)

// BankMessage is the raw, immutable payload downloaded from the bank in one
// EBICS download transaction (one camt document, typically). It is kept
// forever for forensics even when parsing later fails.
type BankMessage struct {
	ID               uuid.UUID
	BankConnectionID uuid.UUID
	FetchLevel       FetchLevel
	MessageID        *string // camt MsgId, once parsed
	RawPayload       []byte
	Errors           bool
	CreatedAt        time.Time
}
