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

// ebicsNoDownloadDataAvailable is the technical return code a bank sends
// when a download has nothing new to offer; the transaction terminates
// cleanly with a nil payload rather than as an error.
const ebicsNoDownloadDataAvailable = "090005"

// orderTypeForLevel maps a fetch level to its H004 OrderType. H005 hosts
// address the same content via BTF instead (btfForLevel).
func orderTypeForLevel(level domain.FetchLevel) string {
	switch level {
	case domain.FetchLevelReport:
		return "C52"
	case domain.FetchLevelStatement:
		return "C53"
	case domain.FetchLevelNotification:
		return "C54"
	default:
		return ""
	}
}

func btfForLevel(level domain.FetchLevel) isoxml.BTFDescriptor {
	switch level {
	case domain.FetchLevelReport:
		return isoxml.BTFDescriptor{ServiceName: "BTC", Scope: "CH", MsgName: "camt.052"}
	case domain.FetchLevelStatement:
		return isoxml.BTFDescriptor{ServiceName: "EOP", Scope: "CH", MsgName: "camt.053"}
	case domain.FetchLevelNotification:
		return isoxml.BTFDescriptor{ServiceName: "BTC", Scope: "CH", MsgName: "camt.054"}
	default:
		return isoxml.BTFDescriptor{}
	}
}

// Download runs one full download transaction: INIT, as many TRANSFER
// segments as the bank announces, then RECEIPT. Nexus never splits a
// request into multiple segments on the way up, but a bank response can
// span many on the way down, so the TRANSFER loop is the part that really
// matters here.
func (c *Client) Download(ctx context.Context, sub *domain.EbicsSubscriber, req ports.DownloadRequest) ([]byte, error) {
	log := c.logFor(sub)

	initReq, err := c.buildDownloadInit(sub, req)
	if err != nil {
		return nil, fmt.Errorf("building download INIT request: %w", err)
	}

	respBody, err := c.transport.post(ctx, sub.URL, initReq)
	if err != nil {
		return nil, err
	}

	var resp isoxml.Response
	if err := xml.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling download INIT response: %w", err)
	}
	if code := resp.Body.ReturnCode; code == ebicsNoDownloadDataAvailable {
		return nil, nil
	} else if code != "" && code != "000000" {
		return nil, apperror.ErrProtocol(apperror.NewProtocolError(code, resp.Header.Mutable.ReportText))
	}

	if resp.Body.DataTransfer == nil {
		return nil, fmt.Errorf("download INIT response carried no data transfer")
	}

	transactionID := resp.Header.Static.TransactionID
	encryptedKey, err := base64.StdEncoding.DecodeString(resp.Body.DataTransfer.DataEncryptionInfo.TransactionKey)
	if err != nil {
		return nil, fmt.Errorf("decoding transaction key: %w", err)
	}

	firstSegment, err := base64.StdEncoding.DecodeString(resp.Body.DataTransfer.OrderData)
	if err != nil {
		return nil, fmt.Errorf("decoding first segment: %w", err)
	}
	segments := [][]byte{firstSegment}

	numSegments := 1
	fmt.Sscanf(resp.Header.Static.NumSegments, "%d", &numSegments)

	for segNum := 2; segNum <= numSegments; segNum++ {
		segReq, err := c.buildDownloadTransfer(sub, transactionID, segNum, segNum == numSegments)
		if err != nil {
			return nil, fmt.Errorf("building download TRANSFER request for segment %d: %w", segNum, err)
		}
		segRespBody, err := c.transport.post(ctx, sub.URL, segReq)
		if err != nil {
			return nil, err
		}
		var segResp isoxml.Response
		if err := xml.Unmarshal(segRespBody, &segResp); err != nil {
			return nil, fmt.Errorf("unmarshaling TRANSFER response for segment %d: %w", segNum, err)
		}
		if segResp.Body.DataTransfer == nil {
			return nil, fmt.Errorf("TRANSFER response for segment %d carried no data", segNum)
		}
		chunk, err := base64.StdEncoding.DecodeString(segResp.Body.DataTransfer.OrderData)
		if err != nil {
			return nil, fmt.Errorf("decoding segment %d: %w", segNum, err)
		}
		segments = append(segments, chunk)
	}

	var full []byte
	for _, s := range segments {
		full = append(full, s...)
	}

	plain, err := c.crypto.DecryptE002(sub.EncPrivateKeyPEM, full, encryptedKey)
	if err != nil {
		return nil, fmt.Errorf("decrypting download payload: %w", err)
	}

	if err := c.sendReceipt(ctx, sub, transactionID); err != nil {
		log.Warn().Err(err).Str("transaction_id", transactionID).Msg("ebics: download RECEIPT failed, payload already decrypted")
		return plain, nil
	}

	return plain, nil
}

func (c *Client) buildDownloadInit(sub *domain.EbicsSubscriber, dreq ports.DownloadRequest) ([]byte, error) {
	details := &isoxml.OrderDetails{OrderAttribute: "DZHNN"}
	if sub.Dialect == domain.EbicsDialectH005 {
		btf := btfForLevel(dreq.Level)
		details.BTF = &btf
	} else {
		details.OrderType = orderTypeForLevel(dreq.Level)
	}

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
				OrderDetails:      details,
				BankPubKeyDigests: digests,
				SecurityMedium:    "0000",
			},
			Mutable: isoxml.MutableHeader{TransactionPhase: "Initialisation"},
		},
	}

	return c.signAndMarshal(sub, &req)
}

func (c *Client) buildDownloadTransfer(sub *domain.EbicsSubscriber, transactionID string, segmentNumber int, last bool) ([]byte, error) {
	req := isoxml.Request{
		Version: versionFor(sub.Dialect),
		Xmlns:   namespaceFor(sub.Dialect),
		Header: isoxml.RequestHeader{
			Authenticate: "true",
			Static:       isoxml.StaticHeader{HostID: sub.HostID, TransactionID: transactionID},
			Mutable: isoxml.MutableHeader{
				TransactionPhase: "Transfer",
				SegmentNumber: &isoxml.SegmentNumber{
					LastSegment: boolAttr(last),
					Value:       fmt.Sprintf("%d", segmentNumber),
				},
			},
		},
	}
	return c.signAndMarshal(sub, &req)
}

func (c *Client) sendReceipt(ctx context.Context, sub *domain.EbicsSubscriber, transactionID string) error {
	req := isoxml.Request{
		Version: versionFor(sub.Dialect),
		Xmlns:   namespaceFor(sub.Dialect),
		Header: isoxml.RequestHeader{
			Authenticate: "true",
			Static:       isoxml.StaticHeader{HostID: sub.HostID, TransactionID: transactionID},
			Mutable:      isoxml.MutableHeader{TransactionPhase: "Receipt"},
		},
	}
	body, err := c.signAndMarshal(sub, &req)
	if err != nil {
		return err
	}
	_, err = c.transport.post(ctx, sub.URL, body)
	return err
}

func boolAttr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
