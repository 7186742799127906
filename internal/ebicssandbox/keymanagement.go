package ebicssandbox

import (
	"encoding/base64"
	"encoding/xml"
	"net/http"

	"github.com/leuf-systems/nexus/internal/isoxml"
)

const ebicsOK = "000000"
const ebicsOKText = "EBICS_OK"

func (b *Bank) handleHEV(w http.ResponseWriter, raw []byte) {
	var req isoxml.HEVRequest
	if err := xml.Unmarshal(raw, &req); err != nil {
		http.Error(w, "malformed HEV request", http.StatusBadRequest)
		return
	}

	resp := isoxml.HEVResponse{
		SystemReturnCode: isoxml.ReturnCode{Code: ebicsOK, ReportText: ebicsOKText},
		VersionNumber: []isoxml.HEVVersionNumber{
			{ProtocolVersion: "H004", Value: "02.50"},
			{ProtocolVersion: "H005", Value: "03.00"},
		},
	}
	writeXML(w, resp)
}

// handleUnsecured serves INI, HIA and HPB: INI and HIA carry their payload
// in the clear, HPB returns E002-encrypted data keyed off the encryption
// key the subscriber submitted via HIA.
func (b *Bank) handleUnsecured(w http.ResponseWriter, raw []byte) {
	var req isoxml.UnsecuredRequest
	if err := xml.Unmarshal(raw, &req); err != nil {
		http.Error(w, "malformed unsecured request", http.StatusBadRequest)
		return
	}

	static := req.Header.Static
	sub := b.subscriberFor(static.HostID, static.PartnerID, static.UserID)

	switch static.OrderDetails.OrderType {
	case "INI":
		pubPEM, err := decodeSubmittedKey(req.Body.DataTransfer.OrderData)
		if err != nil {
			http.Error(w, "malformed INI order data", http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		sub.signPubKeyPEM = pubPEM
		b.mu.Unlock()
		writeKeyManagementOK(w)
	case "HIA":
		authPEM, encPEM, err := decodeHIAOrderData(req.Body.DataTransfer.OrderData)
		if err != nil {
			http.Error(w, "malformed HIA order data", http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		sub.authPubKeyPEM = authPEM
		sub.encPubKeyPEM = encPEM
		b.mu.Unlock()
		writeKeyManagementOK(w)
	case "HPB":
		b.handleHPB(w, sub)
	default:
		http.Error(w, "unknown unsecured order type: "+static.OrderDetails.OrderType, http.StatusBadRequest)
	}
}

// handleHPB returns the bank's own authentication and encryption public
// keys, E002-encrypted to the encryption key the subscriber submitted via
// HIA.
func (b *Bank) handleHPB(w http.ResponseWriter, sub *subscriber) {
	if sub.encPubKeyPEM == "" {
		http.Error(w, "sandbox: subscriber has not submitted HIA", http.StatusBadRequest)
		return
	}

	doc := isoxml.HPBPubKeyDocument{}

	authPub, err := pemToRSAPubKeyValue(b.authPublicKeyPEM)
	if err != nil {
		http.Error(w, "sandbox: encoding auth key", http.StatusInternalServerError)
		return
	}
	encPub, err := pemToRSAPubKeyValue(b.encPublicKeyPEM)
	if err != nil {
		http.Error(w, "sandbox: encoding enc key", http.StatusInternalServerError)
		return
	}
	doc.BankPubKeyDigests.AuthenticationPubKeyInfo = isoxml.PubKeyInfo{PubKeyValue: authPub}
	doc.BankPubKeyDigests.EncryptionPubKeyInfo = isoxml.PubKeyInfo{PubKeyValue: encPub}

	plain, err := xml.Marshal(doc)
	if err != nil {
		http.Error(w, "sandbox: marshaling HPB document", http.StatusInternalServerError)
		return
	}

	cipher, encKey, _, err := b.crypto.EncryptE002(sub.encPubKeyPEM, plain)
	if err != nil {
		http.Error(w, "sandbox: encrypting HPB document", http.StatusInternalServerError)
		return
	}

	resp := isoxml.KeyManagementResponse{
		Body: isoxml.KeyManagementResponseBody{
			ReturnCode: ebicsOK,
			DataTransfer: &isoxml.ResponseDataTransfer{
				DataEncryptionInfo: &isoxml.ResponseDataEncryptionInfo{
					TransactionKey: base64.StdEncoding.EncodeToString(encKey),
				},
				OrderData: base64.StdEncoding.EncodeToString(cipher),
			},
		},
	}
	resp.Header.Mutable.ReturnCode = ebicsOK
	resp.Header.Mutable.ReportText = ebicsOKText
	writeXML(w, resp)
}

func writeKeyManagementOK(w http.ResponseWriter) {
	resp := isoxml.KeyManagementResponse{Body: isoxml.KeyManagementResponseBody{ReturnCode: ebicsOK}}
	resp.Header.Mutable.ReturnCode = ebicsOK
	resp.Header.Mutable.ReportText = ebicsOKText
	writeXML(w, resp)
}

func writeXML(w http.ResponseWriter, v any) {
	body, err := xml.Marshal(v)
	if err != nil {
		http.Error(w, "sandbox: marshaling response", http.StatusInternalServerError)
		return
	}
	w.Write([]byte(xml.Header))
	w.Write(body)
}
