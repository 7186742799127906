package ebics

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"

	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/crypto"
	"github.com/leuf-systems/nexus/internal/isoxml"
)

// signAndMarshal canonicalizes the authenticate="true" subset of req
// (everything but the AuthSignature element itself), signs its digest with
// the subscriber's authentication key, fills in AuthSignature, and
// marshals the complete envelope.
func (c *Client) signAndMarshal(sub *domain.EbicsSubscriber, req *isoxml.Request) ([]byte, error) {
	unsigned, err := xml.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request for signing: %w", err)
	}

	canonical, err := crypto.Canonicalize(unsigned)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing request: %w", err)
	}

	digest := c.crypto.Digest(canonical)
	sig, err := c.crypto.SignA006(sub.AuthPrivateKeyPEM, digest)
	if err != nil {
		return nil, fmt.Errorf("signing request: %w", err)
	}
	req.AuthSignature.SignatureValue = base64.StdEncoding.EncodeToString(sig)

	signed, err := xml.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling signed request: %w", err)
	}
	return append([]byte(xml.Header), signed...), nil
}
