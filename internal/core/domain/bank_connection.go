package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionType enumerates the transport protocols a BankConnection can
// speak. Only "ebics" is implemented; the type exists so the schema and the
// wiring anticipate other connection types without Nexus claiming to
// support them (spec Non-goal (b)).
type ConnectionType string

const ConnectionTypeEBICS ConnectionType = "ebics"

// EbicsDialect distinguishes the EBICS protocol generation in use, since
// H004 and H005 differ in order-type addressing (OrderType string vs BTF
// service descriptor) and in the pain.001 variant produced.
type EbicsDialect string

const (
	EbicsDialectH004 EbicsDialect = "H004"
	EbicsDialectH005 EbicsDialect = "H005"
)

// BankConnection is the top-level handle an operator creates to reach one
// bank account provider. It owns exactly one EbicsSubscriber (1:1) when
// Type is ebics.
type BankConnection struct {
	ID        uuid.UUID
	Name      string
	Type      ConnectionType
	Dialect   EbicsDialect
	OwnerID   uuid.UUID
	CreatedAt time.Time

	// KeysConfirmed gates fetch/submit operations: the operator must
	// confirm the bank's HPB-downloaded key fingerprints out-of-band
	// before the connection is usable.
	KeysConfirmed bool
}

// KeyState tracks an EBICS key-management order's delivery status as seen
// by Nexus; it is not the bank's own acknowledgement, only "did we send it".
type KeyState string

const (
	KeyStateNotSent KeyState = "NOT_SENT"
	KeyStateSent    KeyState = "SENT"
	KeyStateUnknown KeyState = "UNKNOWN"
)

// EbicsSubscriber holds everything needed to address and authenticate to
// one bank host under the EBICS protocol. It is 1:1 with a BankConnection
// of Type ebics.
type EbicsSubscriber struct {
	BankConnectionID uuid.UUID

	// Dialect mirrors the owning BankConnection's Dialect. It is
	// denormalized onto the subscriber because every wire operation needs
	// it and the subscriber is the unit the EBICS client operates on.
	Dialect EbicsDialect

	URL       string
	HostID    string
	PartnerID string
	UserID    string

	// PEM-encoded RSA private keys, one per EBICS role. Never serialized
	// to JSON or logged.
	SignPrivateKeyPEM string // A006 order-data signing (INI)
	AuthPrivateKeyPEM string // request-envelope authentication signing (HIA)
	EncPrivateKeyPEM  string // E002 hybrid decryption (HIA)

	// Bank public keys, populated only after a successful HPB. Nil until
	// then — callers must check before attempting any download/upload.
	BankAuthPublicKeyPEM *string
	BankEncPublicKeyPEM  *string

	IniState KeyState
	HiaState KeyState

	// NextOrderID is the subscriber-scoped counter EBICS uploads increment
	// to produce the wire orderID. It is persisted so restarts do not
	// replay an order ID once the alphabet is exhausted.
	NextOrderID int64

	// Pain001Counter assigns the monotonically increasing suffix used when
	// building identifier triplets for outgoing pain.001 documents
	Pain001Counter int64
}

// Ready reports whether this subscriber has completed key exchange: INI and
// HIA sent and both bank public keys stored. It does not check the
// operator's confirmation of the bank keys; that is
// BankConnection.KeysConfirmed, which fetch and submit check separately.
func (s *EbicsSubscriber) Ready() bool {
	return s.IniState == KeyStateSent &&
		s.HiaState == KeyStateSent &&
		s.BankAuthPublicKeyPEM != nil &&
		s.BankEncPublicKeyPEM != nil
}
