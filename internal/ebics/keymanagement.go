package ebics

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"

	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/isoxml"

	"github.com/leuf-systems/nexus/pkg/apperror"
)

const ebicsNamespaceH004 = "urn:org:ebics:H004"
const ebicsNamespaceH005 = "urn:org:ebics:H005"

func namespaceFor(dialect domain.EbicsDialect) string {
	if dialect == domain.EbicsDialectH005 {
		return ebicsNamespaceH005
	}
	return ebicsNamespaceH004
}

func versionFor(dialect domain.EbicsDialect) string {
	return string(dialect)
}

// HEV sends an ebicsHEVRequest and returns the protocol versions the host
// advertises, used by operators to pick H004 vs H005 up front.
func (c *Client) HEV(ctx context.Context, url, hostID string) ([]string, error) {
	req := isoxml.HEVRequest{Xmlns: "http://www.ebics.org/H000", HostID: hostID}
	body, err := xml.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling HEV request: %w", err)
	}

	respBody, err := c.transport.post(ctx, url, append([]byte(xml.Header), body...))
	if err != nil {
		return nil, err
	}

	var resp isoxml.HEVResponse
	if err := xml.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling HEV response: %w", err)
	}
	if resp.SystemReturnCode.Code != "" && resp.SystemReturnCode.Code != "000000" {
		return nil, apperror.ErrProtocol(apperror.NewProtocolError(resp.SystemReturnCode.Code, resp.SystemReturnCode.ReportText))
	}

	versions := make([]string, 0, len(resp.VersionNumber))
	for _, v := range resp.VersionNumber {
		versions = append(versions, v.ProtocolVersion)
	}
	return versions, nil
}

// INI uploads the subscriber's A006 signature public key in the clear, the
// first step of EBICS key exchange.
func (c *Client) INI(ctx context.Context, sub *domain.EbicsSubscriber) error {
	if err := c.sendPublicKeyOrder(ctx, sub, "INI", sub.SignPrivateKeyPEM); err != nil {
		return err
	}
	sub.IniState = domain.KeyStateSent
	return nil
}

// HIA uploads the subscriber's authentication and encryption public keys
// together, the only point in the protocol where the encryption key is
// ever transmitted.
func (c *Client) HIA(ctx context.Context, sub *domain.EbicsSubscriber) error {
	orderData, err := buildHIAOrderData(sub.AuthPrivateKeyPEM, sub.EncPrivateKeyPEM)
	if err != nil {
		return fmt.Errorf("building HIA order data: %w", err)
	}
	if err := c.sendOrderData(ctx, sub, "HIA", orderData); err != nil {
		return err
	}
	sub.HiaState = domain.KeyStateSent
	return nil
}

func (c *Client) sendPublicKeyOrder(ctx context.Context, sub *domain.EbicsSubscriber, orderType string, privateKeyPEM string) error {
	orderData, err := buildPubKeyOrderData(privateKeyPEM)
	if err != nil {
		return fmt.Errorf("building %s order data: %w", orderType, err)
	}
	return c.sendOrderData(ctx, sub, orderType, orderData)
}

func (c *Client) sendOrderData(ctx context.Context, sub *domain.EbicsSubscriber, orderType string, orderData []byte) error {
	req := isoxml.UnsecuredRequest{
		Version: versionFor(sub.Dialect),
		Xmlns:   namespaceFor(sub.Dialect),
		Header: isoxml.UnsecuredHeader{
			Authenticate: "true",
			Static: isoxml.UnsecuredStaticHeader{
				HostID:    sub.HostID,
				PartnerID: sub.PartnerID,
				UserID:    sub.UserID,
				OrderDetails: isoxml.UnsecuredOrderDetails{
					OrderType:      orderType,
					OrderAttribute: "DZNNN",
				},
				SecurityMedium: "0000",
			},
		},
		Body: isoxml.UnsecuredBody{
			DataTransfer: isoxml.UnsecuredDataTransfer{
				OrderData: base64.StdEncoding.EncodeToString(orderData),
			},
		},
	}

	body, err := xml.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling %s request: %w", orderType, err)
	}

	respBody, err := c.transport.post(ctx, sub.URL, append([]byte(xml.Header), body...))
	if err != nil {
		return err
	}

	var resp isoxml.KeyManagementResponse
	if err := xml.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("unmarshaling %s response: %w", orderType, err)
	}
	code := resp.Header.Mutable.ReturnCode
	if code != "" && code != "000000" {
		return apperror.ErrProtocol(apperror.NewProtocolError(code, resp.Header.Mutable.ReportText))
	}
	return nil
}

// HPB downloads the bank's authentication and encryption public keys. The
// response order data is E002-encrypted to the subscriber's own encryption
// key, which the bank learned from the prior HIA order.
func (c *Client) HPB(ctx context.Context, sub *domain.EbicsSubscriber) (string, string, error) {
	req := isoxml.UnsecuredRequest{
		Version: versionFor(sub.Dialect),
		Xmlns:   namespaceFor(sub.Dialect),
		Header: isoxml.UnsecuredHeader{
			Authenticate: "true",
			Static: isoxml.UnsecuredStaticHeader{
				HostID:    sub.HostID,
				PartnerID: sub.PartnerID,
				UserID:    sub.UserID,
				OrderDetails: isoxml.UnsecuredOrderDetails{
					OrderType:      "HPB",
					OrderAttribute: "DZHNN",
				},
				SecurityMedium: "0000",
			},
		},
	}

	body, err := xml.Marshal(req)
	if err != nil {
		return "", "", fmt.Errorf("marshaling HPB request: %w", err)
	}

	respBody, err := c.transport.post(ctx, sub.URL, append([]byte(xml.Header), body...))
	if err != nil {
		return "", "", err
	}

	var resp isoxml.KeyManagementResponse
	if err := xml.Unmarshal(respBody, &resp); err != nil {
		return "", "", fmt.Errorf("unmarshaling HPB response: %w", err)
	}
	if resp.Header.Mutable.ReturnCode != "000000" {
		return "", "", apperror.ErrProtocol(apperror.NewProtocolError(resp.Header.Mutable.ReturnCode, resp.Header.Mutable.ReportText))
	}
	if resp.Body.DataTransfer == nil {
		return "", "", fmt.Errorf("HPB response carried no data transfer")
	}

	cipherAndKey, err := base64.StdEncoding.DecodeString(resp.Body.DataTransfer.OrderData)
	if err != nil {
		return "", "", fmt.Errorf("decoding HPB order data: %w", err)
	}
	encryptedKey, err := base64.StdEncoding.DecodeString(resp.Body.DataTransfer.DataEncryptionInfo.TransactionKey)
	if err != nil {
		return "", "", fmt.Errorf("decoding HPB transaction key: %w", err)
	}

	plain, err := c.crypto.DecryptE002(sub.EncPrivateKeyPEM, cipherAndKey, encryptedKey)
	if err != nil {
		return "", "", fmt.Errorf("decrypting HPB order data: %w", err)
	}

	var doc isoxml.HPBPubKeyDocument
	if err := xml.Unmarshal(plain, &doc); err != nil {
		return "", "", fmt.Errorf("unmarshaling HPB key document: %w", err)
	}

	authPEM, err := rsaComponentsToPEM(doc.BankPubKeyDigests.AuthenticationPubKeyInfo.PubKeyValue)
	if err != nil {
		return "", "", fmt.Errorf("decoding bank authentication key: %w", err)
	}
	encPEM, err := rsaComponentsToPEM(doc.BankPubKeyDigests.EncryptionPubKeyInfo.PubKeyValue)
	if err != nil {
		return "", "", fmt.Errorf("decoding bank encryption key: %w", err)
	}

	return authPEM, encPEM, nil
}
