// Package ebicssandbox implements a minimal in-memory EBICS bank host used
// by integration tests in place of a real bank: it speaks the same
// HEV/INI/HIA/HPB/HTD/download/upload wire protocol internal/ebics drives,
// so a test can exercise the whole connection lifecycle (including
// signing, E002 encryption and the multi-phase transaction state machine)
// against an in-process http.Handler instead of a mock at the service
// layer.
//
// It deliberately does not implement A006 signature verification or order
// ID uniqueness enforcement a real accredited EBICS host would: those are
// bank-side concerns Nexus never needs to emulate to test its own client
// behavior.
package ebicssandbox

import (
	"fmt"
	"sync"

	"github.com/leuf-systems/nexus/internal/crypto"
)

// subscriberKey identifies one EBICS subscriber the way the protocol does:
// by host, partner and user ID together.
type subscriberKey struct {
	hostID, partnerID, userID string
}

// subscriber is the sandbox's view of one registered EBICS user: the
// public keys it has submitted via INI/HIA.
type subscriber struct {
	signPubKeyPEM string // submitted via INI
	authPubKeyPEM string // submitted via HIA
	encPubKeyPEM  string // submitted via HIA, alongside the authentication key
}

// transactionState tracks one in-flight INIT/TRANSFER/RECEIPT cycle,
// addressed by the TransactionID the sandbox assigns at INIT.
type transactionState struct {
	kind string // "download" or "upload"

	// download: the segments still owed to the client, in order. segment 0
	// has already gone out in the INIT response.
	pending [][]byte

	// upload: the order ID this transaction will be filed under once the
	// TRANSFER phase confirms it, and the order data decrypted at INIT.
	orderID   string
	orderData []byte
}

// Bank is the sandbox EBICS host. One Bank instance is one bank partner;
// tests typically spin up one per test server.
type Bank struct {
	mu sync.Mutex

	hostID string
	crypto *crypto.Service

	authPrivateKeyPEM string
	authPublicKeyPEM  string
	encPrivateKeyPEM  string
	encPublicKeyPEM   string

	subscribers map[subscriberKey]*subscriber

	// downloads holds pre-seeded response payloads keyed by order
	// type/BTF message name (e.g. "C53", "camt.053"); Seed populates it.
	downloads map[string][]byte

	// uploads records every accepted upload's decrypted order data, keyed
	// by the order ID the client assigned, so a test can assert on what
	// Nexus actually sent.
	uploads map[string][]byte

	// transactions tracks every in-flight INIT/TRANSFER/RECEIPT cycle by
	// the TransactionID the sandbox hands back from INIT.
	transactions map[string]*transactionState

	nextTransactionSeq int

	// accounts is returned verbatim by HTD/HKD.
	accounts []OfferedAccount
}

// OfferedAccount is the account info the sandbox reports via HTD/HKD.
type OfferedAccount struct {
	ID         string
	IBAN       string
	BIC        string
	HolderName string
}

// NewBank creates a Bank with freshly generated authentication and
// encryption key pairs.
func NewBank(hostID string) (*Bank, error) {
	svc := crypto.New()

	authPair, err := svc.GenerateKeyPair(2048)
	if err != nil {
		return nil, err
	}
	encPair, err := svc.GenerateKeyPair(2048)
	if err != nil {
		return nil, err
	}

	return &Bank{
		hostID:            hostID,
		crypto:            svc,
		authPrivateKeyPEM: authPair.PrivateKeyPEM,
		authPublicKeyPEM:  authPair.PublicKeyPEM,
		encPrivateKeyPEM:  encPair.PrivateKeyPEM,
		encPublicKeyPEM:   encPair.PublicKeyPEM,
		subscribers:       make(map[subscriberKey]*subscriber),
		downloads:         make(map[string][]byte),
		uploads:           make(map[string][]byte),
		transactions:      make(map[string]*transactionState),
	}, nil
}

// Seed registers raw order data (an uncompressed camt document, typically)
// to be returned the next time a download addresses orderKey — either an
// H004 OrderType ("C52", "C53", "C54") or an H005 BTF MsgName
// ("camt.052", "camt.053", "camt.054").
func (b *Bank) Seed(orderKey string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.downloads[orderKey] = payload
}

// SeedAccounts sets the accounts HTD/HKD reports as reachable.
func (b *Bank) SeedAccounts(accounts []OfferedAccount) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts = accounts
}

// Upload returns the decrypted order data the sandbox received for the
// given assigned order ID, and whether any was recorded.
func (b *Bank) Upload(orderID string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw, ok := b.uploads[orderID]
	return raw, ok
}

func (b *Bank) subscriberFor(hostID, partnerID, userID string) *subscriber {
	key := subscriberKey{hostID, partnerID, userID}
	sub, ok := b.subscribers[key]
	if !ok {
		sub = &subscriber{}
		b.subscribers[key] = sub
	}
	return sub
}

// nextTransactionID mints a TransactionID for a new INIT phase. The real
// protocol requires 32 hex characters; the sandbox only needs uniqueness.
func (b *Bank) nextTransactionID() string {
	b.nextTransactionSeq++
	return fmt.Sprintf("%032X", b.nextTransactionSeq)
}
