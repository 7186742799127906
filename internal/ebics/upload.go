package ebics

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"

	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/core/ports"
	"github.com/leuf-systems/nexus/internal/isoxml"

	"github.com/leuf-systems/nexus/pkg/apperror"
)

const uploadOrderTypeH004 = "CCT" // SEPA credit transfer, H004 dialect
var uploadBTFH005 = isoxml.BTFDescriptor{ServiceName: "SCT", Scope: "CH", MsgName: "pain.001"}

// Upload runs one full upload transaction: INIT carrying the whole signed,
// encrypted order data (Nexus never produces an order large enough to need
// multiple upload segments, since it only ever uploads a single-transaction
// pain.001 document), then TRANSFER carrying the final segment marker.
func (c *Client) Upload(ctx context.Context, sub *domain.EbicsSubscriber, ureq ports.UploadRequest) (string, error) {
	orderID, err := nextOrderID(sub.NextOrderID)
	if err != nil {
		return "", err
	}
	sub.NextOrderID++

	if sub.BankEncPublicKeyPEM == nil {
		return "", apperror.ErrConnectionNotReady()
	}

	digest := c.crypto.Digest(ureq.OrderData)
	signature, err := c.crypto.SignA006(sub.SignPrivateKeyPEM, digest)
	if err != nil {
		return "", fmt.Errorf("signing order data: %w", err)
	}

	cipher, encKey, encPubDigest, err := c.crypto.EncryptE002(*sub.BankEncPublicKeyPEM, ureq.OrderData)
	if err != nil {
		return "", fmt.Errorf("encrypting order data: %w", err)
	}

	digests, err := c.bankPubKeyDigests(sub)
	if err != nil {
		return "", err
	}

	details := &isoxml.OrderDetails{OrderID: orderID, OrderAttribute: "OZHNN"}
	if sub.Dialect == domain.EbicsDialectH005 {
		btf := uploadBTFH005
		details.BTF = &btf
	} else {
		details.OrderType = uploadOrderTypeH004
	}

	req := isoxml.Request{
		Version: versionFor(sub.Dialect),
		Xmlns:   namespaceFor(sub.Dialect),
		Header: isoxml.RequestHeader{
			Authenticate: "true",
			Static: isoxml.StaticHeader{
				HostID:            sub.HostID,
				PartnerID:         sub.PartnerID,
				UserID:            sub.UserID,
				OrderDetails:      details,
				BankPubKeyDigests: digests,
				SecurityMedium:    "0000",
			},
			Mutable: isoxml.MutableHeader{TransactionPhase: "Initialisation"},
		},
		Body: isoxml.RequestBody{
			DataTransfer: &isoxml.RequestDataTransfer{
				SignatureData:          &isoxml.SignatureData{AuthorisationLevel: "T", Value: base64.StdEncoding.EncodeToString(signature)},
				EncryptionPubKeyDigest: &isoxml.DigestValue{Version: "E002", Value: base64.StdEncoding.EncodeToString(encPubDigest)},
				TransactionKey:         base64.StdEncoding.EncodeToString(encKey),
				OrderData:              base64.StdEncoding.EncodeToString(cipher),
			},
		},
	}

	body, err := c.signAndMarshal(sub, &req)
	if err != nil {
		return "", err
	}

	respBody, err := c.transport.post(ctx, sub.URL, body)
	if err != nil {
		return "", err
	}

	var resp isoxml.Response
	if err := xml.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("unmarshaling upload INIT response: %w", err)
	}
	if code := resp.Body.ReturnCode; code != "" && code != "000000" {
		return "", apperror.ErrProtocol(apperror.NewProtocolError(code, resp.Header.Mutable.ReportText))
	}

	transactionID := resp.Header.Static.TransactionID
	if err := c.sendUploadTransfer(ctx, sub, transactionID); err != nil {
		return "", err
	}

	return orderID, nil
}

func (c *Client) sendUploadTransfer(ctx context.Context, sub *domain.EbicsSubscriber, transactionID string) error {
	req := isoxml.Request{
		Version: versionFor(sub.Dialect),
		Xmlns:   namespaceFor(sub.Dialect),
		Header: isoxml.RequestHeader{
			Authenticate: "true",
			Static:       isoxml.StaticHeader{HostID: sub.HostID, TransactionID: transactionID},
			Mutable: isoxml.MutableHeader{
				TransactionPhase: "Transfer",
				SegmentNumber:    &isoxml.SegmentNumber{LastSegment: "true", Value: "1"},
			},
		},
	}
	body, err := c.signAndMarshal(sub, &req)
	if err != nil {
		return err
	}

	respBody, err := c.transport.post(ctx, sub.URL, body)
	if err != nil {
		return err
	}

	var resp isoxml.Response
	if err := xml.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("unmarshaling upload TRANSFER response: %w", err)
	}
	if code := resp.Body.ReturnCode; code != "" && code != "000000" {
		return apperror.ErrProtocol(apperror.NewProtocolError(code, resp.Header.Mutable.ReportText))
	}
	return nil
}
