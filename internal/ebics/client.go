// Package ebics drives one subscriber's EBICS H004/H005 conversation with a
// bank host: key management (INI/HIA/HPB), HEV version probing, and the
// download/upload transaction state machines.
package ebics

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/core/ports"
	"github.com/leuf-systems/nexus/internal/crypto"
	"github.com/leuf-systems/nexus/internal/isoxml"

	"github.com/rs/zerolog"
)

// Client implements ports.EbicsClient over HTTP with a retrying, circuit
// breaking transport (see transport.go).
type Client struct {
	transport *transport
	crypto    *crypto.Service
	log       zerolog.Logger
}

// New constructs a Client. httpClient is typically http.DefaultClient in
// production and a fake in tests.
func New(httpClient *http.Client, cryptoSvc *crypto.Service, log zerolog.Logger) *Client {
	return &Client{
		transport: newTransport(httpClient, log),
		crypto:    cryptoSvc,
		log:       log,
	}
}

var _ ports.EbicsClient = (*Client)(nil)

func (c *Client) logFor(sub *domain.EbicsSubscriber) zerolog.Logger {
	return c.log.With().
		Str("host_id", sub.HostID).
		Str("partner_id", sub.PartnerID).
		Str("user_id", sub.UserID).
		Logger()
}

var errNotImplementedForDialect = fmt.Errorf("order type not available for this EBICS dialect")

// bankPubKeyDigests builds the BankPubKeyDigests header element, identifying
// the bank authentication/encryption key versions this request assumes.
// Requires sub to have completed HPB (both bank public keys known).
func (c *Client) bankPubKeyDigests(sub *domain.EbicsSubscriber) (*isoxml.BankPubKeyDigests, error) {
	if sub.BankAuthPublicKeyPEM == nil || sub.BankEncPublicKeyPEM == nil {
		return nil, fmt.Errorf("bank public keys not yet known, run HPB first")
	}

	authDigest, err := c.crypto.DigestPublicKeyPEM(*sub.BankAuthPublicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("digesting bank authentication key: %w", err)
	}
	encDigest, err := c.crypto.DigestPublicKeyPEM(*sub.BankEncPublicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("digesting bank encryption key: %w", err)
	}

	return &isoxml.BankPubKeyDigests{
		Authentication: isoxml.DigestValue{Version: "A006", Value: base64.StdEncoding.EncodeToString(authDigest)},
		Encryption:     isoxml.DigestValue{Version: "E002", Value: base64.StdEncoding.EncodeToString(encDigest)},
	}, nil
}
