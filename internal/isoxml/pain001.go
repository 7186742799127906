// Package isoxml builds and parses the ISO 20022 payloads EBICS carries:
// pain.001 credit transfer initiations and camt.052/053/054 account
// reports, statements, and notifications.
package isoxml

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/leuf-systems/nexus/internal/core/domain"

	"github.com/shopspring/decimal"
)

// pain001Document is the EBICS 3 / H005 variant (pain.001.001.09).
type pain001Document struct {
	XMLName xml.Name    `xml:"Document"`
	XMLNS   string      `xml:"xmlns,attr"`
	CstmrCdtTrfInitn pain001Body `xml:"CstmrCdtTrfInitn"`
}

type pain001Body struct {
	GrpHdr pain001GroupHeader `xml:"GrpHdr"`
	PmtInf pain001PaymentInfo `xml:"PmtInf"`
}

type pain001GroupHeader struct {
	MsgId    string `xml:"MsgId"`
	CreDtTm  string `xml:"CreDtTm"`
	NbOfTxs  string `xml:"NbOfTxs"`
	CtrlSum  string `xml:"CtrlSum"`
	InitgPty pain001Party `xml:"InitgPty"`
}

type pain001Party struct {
	Nm string `xml:"Nm"`
}

type pain001PaymentInfo struct {
	PmtInfId        string             `xml:"PmtInfId"`
	PmtMtd          string             `xml:"PmtMtd"`
	NbOfTxs         string             `xml:"NbOfTxs"`
	CtrlSum         string             `xml:"CtrlSum"`
	ReqdExctnDt     string             `xml:"ReqdExctnDt"`
	Dbtr            pain001Party       `xml:"Dbtr"`
	DbtrAcct        pain001Account     `xml:"DbtrAcct"`
	DbtrAgt         pain001Agent       `xml:"DbtrAgt"`
	CdtTrfTxInf     pain001TxInfo      `xml:"CdtTrfTxInf"`
}

type pain001Account struct {
	Id pain001AccountId `xml:"Id"`
}

type pain001AccountId struct {
	IBAN string `xml:"IBAN"`
}

type pain001Agent struct {
	FinInstnId pain001FinInstnId `xml:"FinInstnId"`
}

type pain001FinInstnId struct {
	BICFI string `xml:"BICFI"`
}

type pain001TxInfo struct {
	PmtId       pain001PaymentID `xml:"PmtId"`
	Amt         pain001Amount    `xml:"Amt"`
	CdtrAgt     pain001Agent     `xml:"CdtrAgt"`
	Cdtr        pain001Party     `xml:"Cdtr"`
	CdtrAcct    pain001Account   `xml:"CdtrAcct"`
	RmtInf      pain001Remit     `xml:"RmtInf"`
}

type pain001PaymentID struct {
	InstrId    string `xml:"InstrId"`
	EndToEndId string `xml:"EndToEndId"`
}

type pain001Amount struct {
	InstdAmt pain001InstdAmt `xml:"InstdAmt"`
}

type pain001InstdAmt struct {
	Ccy   string `xml:"Ccy,attr"`
	Value string `xml:",chardata"`
}

type pain001Remit struct {
	Ustrd string `xml:"Ustrd"`
}

const xmlnsPain001V09 = "urn:iso:std:iso:20022:tech:xsd:pain.001.001.09"
const xmlnsPain001V03 = "urn:iso:std:iso:20022:tech:xsd:pain.001.001.03"

// BuildPain001 renders a single-transaction pain.001 credit transfer
// initiation document for the dialect in force (EBICS 3 hosts expect
// pain.001.001.09, EBICS 2 hosts pain.001.001.03 — the two schemas differ
// only in namespace and a handful of optional elements Nexus never uses).
//
// InstdAmt is rendered with exactly two fractional digits regardless of the
// precision initiation.Amount was stored with, since EBICS hosts reject
// amounts with more than two.
func BuildPain001(dialect domain.EbicsDialect, initiation *domain.PaymentInitiation, debtor domain.BankAccount) ([]byte, error) {
	amt, err := decimal.NewFromString(initiation.Amount)
	if err != nil {
		return nil, fmt.Errorf("parsing initiation amount %q: %w", initiation.Amount, err)
	}
	amtStr := amt.StringFixed(2)

	ns := xmlnsPain001V09
	if dialect == domain.EbicsDialectH004 {
		ns = xmlnsPain001V03
	}

	now := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	doc := pain001Document{
		XMLNS: ns,
		CstmrCdtTrfInitn: pain001Body{
			GrpHdr: pain001GroupHeader{
				MsgId:    initiation.MessageID,
				CreDtTm:  now,
				NbOfTxs:  "1",
				CtrlSum:  amtStr,
				InitgPty: pain001Party{Nm: debtor.HolderName},
			},
			PmtInf: pain001PaymentInfo{
				PmtInfId:    initiation.PaymentInformationID,
				PmtMtd:      "TRF",
				NbOfTxs:     "1",
				CtrlSum:     amtStr,
				ReqdExctnDt: now[:10],
				Dbtr:        pain001Party{Nm: debtor.HolderName},
				DbtrAcct:    pain001Account{Id: pain001AccountId{IBAN: debtor.IBAN}},
				DbtrAgt:     pain001Agent{FinInstnId: pain001FinInstnId{BICFI: debtor.BIC}},
				CdtTrfTxInf: pain001TxInfo{
					PmtId: pain001PaymentID{
						InstrId:    initiation.InstructionID,
						EndToEndId: initiation.EndToEndID,
					},
					Amt:     pain001Amount{InstdAmt: pain001InstdAmt{Ccy: initiation.Currency, Value: amtStr}},
					CdtrAgt: pain001Agent{FinInstnId: pain001FinInstnId{BICFI: initiation.Creditor.BIC}},
					Cdtr:    pain001Party{Nm: initiation.Creditor.Name},
					CdtrAcct: pain001Account{Id: pain001AccountId{IBAN: initiation.Creditor.IBAN}},
					RmtInf:  pain001Remit{Ustrd: initiation.Subject},
				},
			},
		},
	}

	out, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling pain.001 document: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
