package ebics

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"

	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/isoxml"

	"github.com/leuf-systems/nexus/pkg/apperror"

	"github.com/google/uuid"
)

// htdDocument is the subset of the HTD (H004) / HKD (H005) response Nexus
// reads: the list of accounts the subscriber may address.
type htdDocument struct {
	XMLName         xml.Name         `xml:"HTDResponseOrderData"`
	PartnerInfo     htdPartnerInfo   `xml:"PartnerInfo"`
}

type htdPartnerInfo struct {
	AccountInfo []htdAccountInfo `xml:"AccountInfoList>AccountInfo"`
}

type htdAccountInfo struct {
	ID          string `xml:"ID,attr"`
	AccountNumber []htdIDWithAttr `xml:"AccountNumber"`
	BankCode      []htdIDWithAttr `xml:"BankCode"`
	AccountHolder string          `xml:"AccountHolder"`
}

type htdIDWithAttr struct {
	International string `xml:"international,attr"`
	Value         string `xml:",chardata"`
}

// FetchAccounts downloads HTD (H004) / HKD (H005) and parses the accounts
// the bank reports as reachable under sub. Both order types return the
// same HTDResponseOrderData shape in practice, so one parser serves both
// dialects.
func (c *Client) FetchAccounts(ctx context.Context, sub *domain.EbicsSubscriber) ([]domain.OfferedBankAccount, error) {
	orderType := "HTD"
	if sub.Dialect == domain.EbicsDialectH005 {
		orderType = "HKD"
	}

	raw, err := c.downloadAdminOrder(ctx, sub, orderType)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", orderType, err)
	}

	var doc htdDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling %s response: %w", orderType, err)
	}

	accounts := make([]domain.OfferedBankAccount, 0, len(doc.PartnerInfo.AccountInfo))
	for _, a := range doc.PartnerInfo.AccountInfo {
		offered := domain.OfferedBankAccount{
			ID:               uuid.New(),
			BankConnectionID: sub.BankConnectionID,
			RemoteAccountID:  a.ID,
			HolderName:       a.AccountHolder,
		}
		for _, n := range a.AccountNumber {
			if n.International == "true" {
				offered.IBAN = n.Value
			}
		}
		for _, n := range a.BankCode {
			if n.International == "true" {
				offered.BIC = n.Value
			}
		}
		accounts = append(accounts, offered)
	}
	return accounts, nil
}

// downloadAdminOrder runs a single-segment download for an administrative
// order type (HTD/HKD). These responses are small enough that Nexus never
// needs the multi-segment TRANSFER loop Download implements for camt
// fetches, so this is a leaner INIT-then-RECEIPT exchange.
func (c *Client) downloadAdminOrder(ctx context.Context, sub *domain.EbicsSubscriber, orderType string) ([]byte, error) {
	digests, err := c.bankPubKeyDigests(sub)
	if err != nil {
		return nil, err
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
				OrderDetails:      &isoxml.OrderDetails{OrderType: orderType, OrderAttribute: "DZHNN"},
				BankPubKeyDigests: digests,
				SecurityMedium:    "0000",
			},
			Mutable: isoxml.MutableHeader{TransactionPhase: "Initialisation"},
		},
	}

	body, err := c.signAndMarshal(sub, &req)
	if err != nil {
		return nil, err
	}

	respBody, err := c.transport.post(ctx, sub.URL, body)
	if err != nil {
		return nil, err
	}

	var resp isoxml.Response
	if err := xml.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling %s response: %w", orderType, err)
	}
	if code := resp.Body.ReturnCode; code != "" && code != "000000" {
		return nil, apperror.ErrProtocol(apperror.NewProtocolError(code, resp.Header.Mutable.ReportText))
	}
	if resp.Body.DataTransfer == nil {
		return nil, fmt.Errorf("%s response carried no data transfer", orderType)
	}

	cipher, err := base64.StdEncoding.DecodeString(resp.Body.DataTransfer.OrderData)
	if err != nil {
		return nil, fmt.Errorf("decoding %s order data: %w", orderType, err)
	}
	encKey, err := base64.StdEncoding.DecodeString(resp.Body.DataTransfer.DataEncryptionInfo.TransactionKey)
	if err != nil {
		return nil, fmt.Errorf("decoding %s transaction key: %w", orderType, err)
	}

	plain, err := c.crypto.DecryptE002(sub.EncPrivateKeyPEM, cipher, encKey)
	if err != nil {
		return nil, fmt.Errorf("decrypting %s order data: %w", orderType, err)
	}

	if err := c.sendReceipt(ctx, sub, resp.Header.Static.TransactionID); err != nil {
		c.logFor(sub).Warn().Err(err).Str("order_type", orderType).Msg("ebics: admin order RECEIPT failed, payload already decrypted")
	}

	return plain, nil
}
