package isoxml

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/core/ports"
)

// camtDocument covers the union of elements Nexus reads across
// camt.052.001.08 (BkToCstmrAcctRpt), camt.053.001.08 (BkToCstmrStmt), and
// camt.054.001.08 (BkToCstmrDbtCdtNtfctn); the three schemas share the same
// Ntry shape and differ only in the wrapping element name and cardinality,
// which this struct tolerates by making every branch optional.
type camtDocument struct {
	XMLName xml.Name `xml:"Document"`
	Rpt     camtBody `xml:"BkToCstmrAcctRpt"`
	Stmt    camtBody `xml:"BkToCstmrStmt"`
	Ntfctn  camtBody `xml:"BkToCstmrDbtCdtNtfctn"`
}

type camtBody struct {
	GrpHdr camtGroupHeader `xml:"GrpHdr"`
	Rpt    []camtStatement `xml:"Rpt"`
	Stmt   []camtStatement `xml:"Stmt"`
	Ntfctn []camtStatement `xml:"Ntfctn"`
}

type camtGroupHeader struct {
	MsgId   string `xml:"MsgId"`
	CreDtTm string `xml:"CreDtTm"`
}

type camtStatement struct {
	Bal []camtBalance `xml:"Bal"`
	Ntry []camtEntry  `xml:"Ntry"`
}

type camtBalance struct {
	Tp  camtBalanceType `xml:"Tp"`
	Amt camtAmount      `xml:"Amt"`
	Dt  camtDate        `xml:"Dt"`
}

type camtBalanceType struct {
	CdOrPrtry camtCodeOrProprietary `xml:"CdOrPrtry"`
}

type camtCodeOrProprietary struct {
	Cd string `xml:"Cd"`
}

type camtDate struct {
	Dt   string `xml:"Dt"`
	DtTm string `xml:"DtTm"`
}

type camtAmount struct {
	Ccy   string `xml:"Ccy,attr"`
	Value string `xml:",chardata"`
}

type camtEntry struct {
	NtryRef   string        `xml:"NtryRef"`
	Amt       camtAmount    `xml:"Amt"`
	CdtDbtInd string        `xml:"CdtDbtInd"`
	Sts       camtStatus    `xml:"Sts"`
	BookgDt   camtDate      `xml:"BookgDt"`
	AcctSvcrRef string      `xml:"AcctSvcrRef"`
	BkTxCd    camtBkTxCd    `xml:"BkTxCd"`
	NtryDtls  []camtNtryDtl `xml:"NtryDtls"`
}

// camtStatus tolerates both the pre-2019 plain <Sts>BOOK</Sts> form and the
// newer <Sts><Cd>BOOK</Cd></Sts> wrapped form.
type camtStatus struct {
	Cd   string `xml:"Cd"`
	Text string `xml:",chardata"`
}

func (s camtStatus) value() string {
	if s.Cd != "" {
		return s.Cd
	}
	return s.Text
}

type camtBkTxCd struct {
	Prtry camtProprietaryCode `xml:"Prtry"`
}

type camtProprietaryCode struct {
	Cd string `xml:"Cd"`
}

type camtNtryDtl struct {
	TxDtls []camtTxDtl `xml:"TxDtls"`
}

type camtTxDtl struct {
	Refs       camtRefs     `xml:"Refs"`
	RltdPties  camtParties  `xml:"RltdPties"`
	RmtInf     camtRemit    `xml:"RmtInf"`
}

type camtRefs struct {
	EndToEndId string `xml:"EndToEndId"`
	PmtInfId   string `xml:"PmtInfId"`
}

type camtParties struct {
	Dbtr     camtPartyName `xml:"Dbtr"`
	DbtrAcct camtAcctRef   `xml:"DbtrAcct"`
	Cdtr     camtPartyName `xml:"Cdtr"`
	CdtrAcct camtAcctRef   `xml:"CdtrAcct"`
}

type camtPartyName struct {
	Nm string `xml:"Nm"`
}

type camtAcctRef struct {
	Id camtAcctId `xml:"Id"`
}

type camtAcctId struct {
	IBAN string `xml:"IBAN"`
}

type camtRemit struct {
	Ustrd string `xml:"Ustrd"`
}

type parser struct{}

// NewParser constructs the camt Iso20022Service half. It is stateless.
func NewParser() *parser { return &parser{} }

// ParseCamt decodes raw as a camt document of the given fetch level and
// projects every Ntry into a domain.CanonicalEntry. Unparseable or
// unexpected input returns an error; the caller is responsible for storing
// raw in a BankMessage with Errors=true rather than discarding it (spec
// §4.1, §7).
func (p *parser) ParseCamt(level domain.FetchLevel, raw []byte) (ports.ParsedCamtDocument, error) {
	var doc camtDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return ports.ParsedCamtDocument{}, fmt.Errorf("unmarshaling camt document: %w", err)
	}

	msgID := doc.Rpt.GrpHdr.MsgId
	creDtTm := doc.Rpt.GrpHdr.CreDtTm
	if msgID == "" {
		msgID = doc.Stmt.GrpHdr.MsgId
		creDtTm = doc.Stmt.GrpHdr.CreDtTm
	}
	if msgID == "" {
		msgID = doc.Ntfctn.GrpHdr.MsgId
		creDtTm = doc.Ntfctn.GrpHdr.CreDtTm
	}
	result := ports.ParsedCamtDocument{MessageID: msgID}

	if creDtTm != "" {
		createdAt, err := time.Parse(time.RFC3339, creDtTm)
		if err != nil {
			return ports.ParsedCamtDocument{}, fmt.Errorf("parsing group header CreDtTm: %w", err)
		}
		result.CreatedAt = createdAt
	}

	var statements []camtStatement
	statements = append(statements, doc.Rpt.Rpt...)
	statements = append(statements, doc.Stmt.Stmt...)
	statements = append(statements, doc.Ntfctn.Ntfctn...)
	for _, stmt := range statements {
		for _, bal := range stmt.Bal {
			if bal.Tp.CdOrPrtry.Cd != "CLBD" {
				continue
			}
			balance := bal.Amt.Value
			result.ClosingBookedBalance = &balance
			if asOf, err := parseCamtDate(bal.Dt); err == nil {
				result.ClosingBalanceAsOf = &asOf
			}
		}
		for _, ntry := range stmt.Ntry {
			entry, err := canonicalizeEntry(ntry)
			if err != nil {
				return ports.ParsedCamtDocument{}, err
			}
			result.Entries = append(result.Entries, entry)
		}
	}

	return result, nil
}

func canonicalizeEntry(ntry camtEntry) (domain.CanonicalEntry, error) {
	if ntry.AcctSvcrRef == "" {
		return domain.CanonicalEntry{}, fmt.Errorf("camt entry missing AcctSvcrRef")
	}

	bookingDate, err := parseCamtDate(ntry.BookgDt)
	if err != nil {
		return domain.CanonicalEntry{}, fmt.Errorf("parsing booking date for entry %s: %w", ntry.AcctSvcrRef, err)
	}

	entry := domain.CanonicalEntry{
		AcctSvcrRef:          ntry.AcctSvcrRef,
		Amount:               ntry.Amt.Value,
		Currency:             ntry.Amt.Ccy,
		CreditDebitIndicator: domain.CreditDebitIndicator(ntry.CdtDbtInd),
		Status:               domain.EntryStatus(ntry.Sts.value()),
		BookingDate:          bookingDate,
		BankTransactionCode:  ntry.BkTxCd.Prtry.Cd,
	}

	if len(ntry.NtryDtls) > 0 && len(ntry.NtryDtls[0].TxDtls) > 0 {
		tx := ntry.NtryDtls[0].TxDtls[0]
		entry.EndToEndID = tx.Refs.EndToEndId
		entry.PaymentInformationID = tx.Refs.PmtInfId
		entry.UnstructuredRemittanceInformation = tx.RmtInf.Ustrd
		entry.DebtorIBAN = tx.RltdPties.DbtrAcct.Id.IBAN
		entry.CreditorIBAN = tx.RltdPties.CdtrAcct.Id.IBAN
	}
	entry.Batch = len(ntry.NtryDtls) > 0 && len(ntry.NtryDtls[0].TxDtls) > 1

	raw, err := json.Marshal(ntry)
	if err != nil {
		return domain.CanonicalEntry{}, fmt.Errorf("marshaling raw entry details: %w", err)
	}
	var rawMap map[string]interface{}
	if err := json.Unmarshal(raw, &rawMap); err == nil {
		entry.RawDetails = rawMap
	}

	return entry, nil
}

func parseCamtDate(d camtDate) (time.Time, error) {
	if d.DtTm != "" {
		return time.Parse(time.RFC3339, d.DtTm)
	}
	if d.Dt != "" {
		return time.Parse("2006-01-02", d.Dt)
	}
	return time.Time{}, fmt.Errorf("camt date element carried neither Dt nor DtTm")
}
