package ebicssandbox

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"net/http"

	"github.com/leuf-systems/nexus/internal/isoxml"
)

// ebicsNoDownloadDataAvailable mirrors internal/ebics's constant of the
// same name: the technical return code a bank sends when a download has
// nothing new to offer.
const ebicsNoDownloadDataAvailable = "090005"

// handleSecured dispatches every ebicsRequest envelope: download (camt
// fetches, H004 OrderType "C52"/"C53"/"C54" or the H005 BTF equivalent),
// upload ("CCT"/pain.001) and the HTD/HKD admin order. Downloads run INIT,
// TRANSFER and RECEIPT, uploads run INIT and TRANSFER, and the admin order
// runs INIT and RECEIPT with no TRANSFER. Nexus's own
// A006 request signature is never checked here; verifying it is a
// bank-side concern the sandbox has no need to emulate.
func (b *Bank) handleSecured(w http.ResponseWriter, raw []byte) {
	var req isoxml.Request
	if err := xml.Unmarshal(raw, &req); err != nil {
		http.Error(w, "malformed EBICS request", http.StatusBadRequest)
		return
	}

	switch req.Header.Mutable.TransactionPhase {
	case "Initialisation":
		b.handleInit(w, &req)
	case "Transfer":
		b.handleTransfer(w, &req)
	case "Receipt":
		b.handleReceipt(w, &req)
	default:
		http.Error(w, "unknown transaction phase: "+req.Header.Mutable.TransactionPhase, http.StatusBadRequest)
	}
}

func (b *Bank) handleInit(w http.ResponseWriter, req *isoxml.Request) {
	static := req.Header.Static
	details := static.OrderDetails
	if details == nil {
		http.Error(w, "sandbox: INIT carried no OrderDetails", http.StatusBadRequest)
		return
	}

	if details.OrderAttribute == "OZHNN" {
		b.handleUploadInit(w, static, req)
		return
	}

	switch orderKeyFor(details) {
	case "HTD", "HKD":
		b.handleAdminInit(w, static)
	default:
		b.handleDownloadInit(w, static, details)
	}
}

// orderKeyFor resolves the key used for downloads.Seed/downloads lookups:
// the H004 OrderType, or the H005 BTF message name.
func orderKeyFor(details *isoxml.OrderDetails) string {
	if details.BTF != nil {
		return details.BTF.MsgName
	}
	return details.OrderType
}

func (b *Bank) handleDownloadInit(w http.ResponseWriter, static isoxml.StaticHeader, details *isoxml.OrderDetails) {
	sub := b.subscriberFor(static.HostID, static.PartnerID, static.UserID)
	if sub.encPubKeyPEM == "" {
		http.Error(w, "sandbox: subscriber has not submitted HIA", http.StatusBadRequest)
		return
	}

	orderKey := orderKeyFor(details)

	b.mu.Lock()
	payload, ok := b.downloads[orderKey]
	b.mu.Unlock()

	if !ok {
		writeDownloadResponse(w, "", "", ebicsNoDownloadDataAvailable, nil, nil)
		return
	}

	cipher, encKey, _, err := b.crypto.EncryptE002(sub.encPubKeyPEM, payload)
	if err != nil {
		http.Error(w, "sandbox: encrypting download payload", http.StatusInternalServerError)
		return
	}

	segments := splitSegments(cipher, downloadSegmentSize)

	txID := b.nextTransactionID()
	b.mu.Lock()
	b.transactions[txID] = &transactionState{kind: "download", pending: segments[1:]}
	b.mu.Unlock()

	writeDownloadResponse(w, txID, fmt.Sprintf("%d", len(segments)), ebicsOK, segments[0], encKey)
}

// downloadSegmentSize is deliberately small so tests can exercise the
// multi-segment TRANSFER loop without needing a multi-megabyte seed
// payload.
const downloadSegmentSize = 4096

func splitSegments(data []byte, size int) [][]byte {
	if len(data) == 0 {
		return [][]byte{{}}
	}
	var segments [][]byte
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		segments = append(segments, data[:n])
		data = data[n:]
	}
	return segments
}

func (b *Bank) handleAdminInit(w http.ResponseWriter, static isoxml.StaticHeader) {
	sub := b.subscriberFor(static.HostID, static.PartnerID, static.UserID)
	if sub.encPubKeyPEM == "" {
		http.Error(w, "sandbox: subscriber has not submitted HIA", http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	accounts := b.accounts
	b.mu.Unlock()

	doc := htdResponseDocument{}
	for i, a := range accounts {
		info := htdAccountInfo{ID: fmt.Sprintf("A%03d", i+1), AccountHolder: a.HolderName}
		info.AccountNumber = append(info.AccountNumber, htdIDWithAttr{International: "true", Value: a.IBAN})
		info.BankCode = append(info.BankCode, htdIDWithAttr{International: "true", Value: a.BIC})
		doc.PartnerInfo.AccountInfo = append(doc.PartnerInfo.AccountInfo, info)
	}

	plain, err := xml.Marshal(doc)
	if err != nil {
		http.Error(w, "sandbox: marshaling admin order document", http.StatusInternalServerError)
		return
	}

	cipher, encKey, _, err := b.crypto.EncryptE002(sub.encPubKeyPEM, plain)
	if err != nil {
		http.Error(w, "sandbox: encrypting admin order document", http.StatusInternalServerError)
		return
	}

	writeDownloadResponse(w, b.nextTransactionID(), "1", ebicsOK, cipher, encKey)
}

func (b *Bank) handleUploadInit(w http.ResponseWriter, static isoxml.StaticHeader, req *isoxml.Request) {
	sub := b.subscriberFor(static.HostID, static.PartnerID, static.UserID)
	if sub.encPubKeyPEM == "" {
		http.Error(w, "sandbox: subscriber has not submitted HIA", http.StatusBadRequest)
		return
	}
	if req.Body.DataTransfer == nil {
		http.Error(w, "sandbox: upload INIT carried no data transfer", http.StatusBadRequest)
		return
	}

	cipher, err := base64.StdEncoding.DecodeString(req.Body.DataTransfer.OrderData)
	if err != nil {
		http.Error(w, "sandbox: malformed upload order data", http.StatusBadRequest)
		return
	}
	encKey, err := base64.StdEncoding.DecodeString(req.Body.DataTransfer.TransactionKey)
	if err != nil {
		http.Error(w, "sandbox: malformed upload transaction key", http.StatusBadRequest)
		return
	}

	plain, err := b.crypto.DecryptE002(b.encPrivateKeyPEM, cipher, encKey)
	if err != nil {
		// The order was encrypted to the bank's own encryption key only if
		// the sandbox correctly advertised it via HPB; any other failure
		// here means the test is exercising a scenario the sandbox does
		// not model.
		http.Error(w, "sandbox: decrypting upload order data", http.StatusBadRequest)
		return
	}

	orderID := static.OrderDetails.OrderID

	txID := b.nextTransactionID()
	b.mu.Lock()
	b.transactions[txID] = &transactionState{kind: "upload", orderID: orderID, orderData: plain}
	b.mu.Unlock()

	writePhaseOK(w, txID, "Initialisation")
}

func (b *Bank) handleTransfer(w http.ResponseWriter, req *isoxml.Request) {
	txID := req.Header.Static.TransactionID

	b.mu.Lock()
	tx, ok := b.transactions[txID]
	b.mu.Unlock()
	if !ok {
		http.Error(w, "sandbox: unknown transaction "+txID, http.StatusBadRequest)
		return
	}

	switch tx.kind {
	case "download":
		b.mu.Lock()
		var chunk []byte
		if len(tx.pending) > 0 {
			chunk = tx.pending[0]
			tx.pending = tx.pending[1:]
		}
		b.mu.Unlock()
		writeSecuredDataResponse(w, txID, base64.StdEncoding.EncodeToString(chunk))
	case "upload":
		b.mu.Lock()
		b.uploads[tx.orderID] = tx.orderData
		b.mu.Unlock()
		writeSecuredOK(w, txID)
	default:
		http.Error(w, "sandbox: unknown transaction kind", http.StatusInternalServerError)
	}
}

func (b *Bank) handleReceipt(w http.ResponseWriter, req *isoxml.Request) {
	txID := req.Header.Static.TransactionID
	b.mu.Lock()
	delete(b.transactions, txID)
	b.mu.Unlock()
	writeSecuredOK(w, txID)
}

// htdResponseDocument mirrors internal/ebics.htdDocument, the HTD/HKD
// response shape; it is re-declared here since that parser type is
// unexported.
type htdResponseDocument struct {
	XMLName     xml.Name           `xml:"HTDResponseOrderData"`
	PartnerInfo htdResponsePartner `xml:"PartnerInfo"`
}

type htdResponsePartner struct {
	AccountInfo []htdAccountInfo `xml:"AccountInfoList>AccountInfo"`
}

type htdAccountInfo struct {
	ID            string          `xml:"ID,attr"`
	AccountNumber []htdIDWithAttr `xml:"AccountNumber"`
	BankCode      []htdIDWithAttr `xml:"BankCode"`
	AccountHolder string          `xml:"AccountHolder"`
}

type htdIDWithAttr struct {
	International string `xml:"international,attr"`
	Value         string `xml:",chardata"`
}

func writeDownloadResponse(w http.ResponseWriter, transactionID, numSegments, returnCode string, orderData, encKey []byte) {
	resp := isoxml.Response{
		Header: isoxml.ResponseHeader{
			Static: isoxml.ResponseStaticHeader{TransactionID: transactionID, NumSegments: numSegments},
			Mutable: isoxml.ResponseMutableHeader{
				TransactionPhase: "Initialisation",
				ReturnCode:       returnCode,
				ReportText:       reportTextFor(returnCode),
			},
		},
		Body: isoxml.ResponseBody{ReturnCode: returnCode},
	}
	if orderData != nil {
		resp.Body.DataTransfer = &isoxml.ResponseDataTransfer{
			DataEncryptionInfo: &isoxml.ResponseDataEncryptionInfo{TransactionKey: base64.StdEncoding.EncodeToString(encKey)},
			OrderData:          base64.StdEncoding.EncodeToString(orderData),
		}
	}
	writeXML(w, resp)
}

func writeSecuredDataResponse(w http.ResponseWriter, transactionID, orderDataB64 string) {
	resp := isoxml.Response{
		Header: isoxml.ResponseHeader{
			Static:  isoxml.ResponseStaticHeader{TransactionID: transactionID},
			Mutable: isoxml.ResponseMutableHeader{TransactionPhase: "Transfer", ReturnCode: ebicsOK, ReportText: ebicsOKText},
		},
		Body: isoxml.ResponseBody{
			ReturnCode:   ebicsOK,
			DataTransfer: &isoxml.ResponseDataTransfer{OrderData: orderDataB64},
		},
	}
	writeXML(w, resp)
}

func writeSecuredOK(w http.ResponseWriter, transactionID string) {
	writePhaseOK(w, transactionID, "Transfer")
}

func writePhaseOK(w http.ResponseWriter, transactionID, phase string) {
	resp := isoxml.Response{
		Header: isoxml.ResponseHeader{
			Static:  isoxml.ResponseStaticHeader{TransactionID: transactionID},
			Mutable: isoxml.ResponseMutableHeader{TransactionPhase: phase, ReturnCode: ebicsOK, ReportText: ebicsOKText},
		},
		Body: isoxml.ResponseBody{ReturnCode: ebicsOK},
	}
	writeXML(w, resp)
}

func reportTextFor(returnCode string) string {
	if returnCode == ebicsOK {
		return ebicsOKText
	}
	return "EBICS_NO_DOWNLOAD_DATA_AVAILABLE"
}
