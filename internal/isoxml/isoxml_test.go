package isoxml

import (
	"testing"

	"github.com/leuf-systems/nexus/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPain001_H005_RendersTwoFractionalDigits(t *testing.T) {
	initiation := &domain.PaymentInitiation{
		ID:                   uuid.New(),
		Amount:               "42.5",
		Currency:             "EUR",
		Subject:              "invoice 1001",
		Creditor:             domain.Creditor{IBAN: "DE89370400440532013000", BIC: "COBADEFFXXX", Name: "Creditor GmbH"},
		EndToEndID:           "leuf-e2e-abc123",
		MessageID:            "leuf-msg-abc123",
		PaymentInformationID: "leuf-pmt-abc123",
		InstructionID:        "leuf-instr-abc123",
	}
	debtor := domain.BankAccount{IBAN: "DE02500105170137075030", BIC: "INGDDEFFXXX", HolderName: "Debtor AG"}

	out, err := BuildPain001(domain.EbicsDialectH005, initiation, debtor)
	require.NoError(t, err)

	doc := string(out)
	assert.Contains(t, doc, "pain.001.001.09")
	assert.Contains(t, doc, `Ccy="EUR"`)
	assert.Contains(t, doc, "42.50")
	assert.Contains(t, doc, "DE89370400440532013000")
	assert.Contains(t, doc, "leuf-e2e-abc123")
}

func TestBuildPain001_H004_UsesLegacyNamespace(t *testing.T) {
	initiation := &domain.PaymentInitiation{
		Amount:               "1.00",
		Currency:             "EUR",
		Creditor:             domain.Creditor{IBAN: "DE89370400440532013000", BIC: "COBADEFFXXX", Name: "Creditor"},
		EndToEndID:           "leuf-e2e-1",
		MessageID:            "leuf-msg-1",
		PaymentInformationID: "leuf-pmt-1",
		InstructionID:        "leuf-instr-1",
	}
	debtor := domain.BankAccount{IBAN: "DE02500105170137075030", BIC: "INGDDEFFXXX", HolderName: "Debtor"}

	out, err := BuildPain001(domain.EbicsDialectH004, initiation, debtor)
	require.NoError(t, err)
	assert.Contains(t, string(out), "pain.001.001.03")
}

func TestBuildPain001_RejectsUnparseableAmount(t *testing.T) {
	initiation := &domain.PaymentInitiation{
		Amount:   "not-a-number",
		Currency: "EUR",
		Creditor: domain.Creditor{IBAN: "DE1", BIC: "X", Name: "Y"},
	}
	_, err := BuildPain001(domain.EbicsDialectH005, initiation, domain.BankAccount{})
	assert.Error(t, err)
}

const sampleCamt053 = `<?xml version="1.0" encoding="UTF-8"?>
<Document xmlns="urn:iso:std:iso:20022:tech:xsd:camt.053.001.08">
  <BkToCstmrStmt>
    <GrpHdr><MsgId>STMT-0001</MsgId></GrpHdr>
    <Stmt>
      <Bal>
        <Tp><CdOrPrtry><Cd>CLBD</Cd></CdOrPrtry></Tp>
        <Amt Ccy="EUR">1234.56</Amt>
        <Dt><Dt>2026-07-30</Dt></Dt>
      </Bal>
      <Ntry>
        <NtryRef>REF1</NtryRef>
        <Amt Ccy="EUR">42.50</Amt>
        <CdtDbtInd>CRDT</CdtDbtInd>
        <Sts><Cd>BOOK</Cd></Sts>
        <BookgDt><Dt>2026-07-30</Dt></BookgDt>
        <AcctSvcrRef>BANKREF-0001</AcctSvcrRef>
        <BkTxCd><Prtry><Cd>PMNT-RCDT-ESCT</Cd></Prtry></BkTxCd>
        <NtryDtls>
          <TxDtls>
            <Refs><EndToEndId>leuf-e2e-abc123</EndToEndId><PmtInfId>leuf-pmt-abc123</PmtInfId></Refs>
            <RltdPties>
              <Dbtr><Nm>Debtor GmbH</Nm></Dbtr>
              <DbtrAcct><Id><IBAN>DE89370400440532013000</IBAN></Id></DbtrAcct>
            </RltdPties>
            <RmtInf><Ustrd>invoice 1001</Ustrd></RmtInf>
          </TxDtls>
        </NtryDtls>
      </Ntry>
    </Stmt>
  </BkToCstmrStmt>
</Document>`

func TestParseCamt_StatementWithBalance(t *testing.T) {
	p := NewParser()
	result, err := p.ParseCamt(domain.FetchLevelStatement, []byte(sampleCamt053))
	require.NoError(t, err)

	assert.Equal(t, "STMT-0001", result.MessageID)
	require.NotNil(t, result.ClosingBookedBalance)
	assert.Equal(t, "1234.56", *result.ClosingBookedBalance)
	require.NotNil(t, result.ClosingBalanceAsOf)

	require.Len(t, result.Entries, 1)
	entry := result.Entries[0]
	assert.Equal(t, "BANKREF-0001", entry.AcctSvcrRef)
	assert.Equal(t, domain.CreditDebitIndicatorCredit, entry.CreditDebitIndicator)
	assert.Equal(t, domain.EntryStatusBooked, entry.Status)
	assert.Equal(t, "42.50", entry.Amount)
	assert.Equal(t, "leuf-e2e-abc123", entry.EndToEndID)
	assert.Equal(t, "leuf-pmt-abc123", entry.PaymentInformationID)
	assert.Equal(t, "invoice 1001", entry.UnstructuredRemittanceInformation)
	assert.False(t, entry.Batch)
}

func TestParseCamt_RejectsEntryMissingAcctSvcrRef(t *testing.T) {
	p := NewParser()
	malformed := `<Document><BkToCstmrAcctRpt><GrpHdr><MsgId>M1</MsgId></GrpHdr>
		<Rpt><Ntry><Amt Ccy="EUR">1.00</Amt><CdtDbtInd>CRDT</CdtDbtInd><Sts>BOOK</Sts><BookgDt><Dt>2026-01-01</Dt></BookgDt></Ntry></Rpt>
	</BkToCstmrAcctRpt></Document>`
	_, err := p.ParseCamt(domain.FetchLevelReport, []byte(malformed))
	assert.Error(t, err)
}
