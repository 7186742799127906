package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := CreateConnectionRequest{
		Name: "  Acme Bank  ",
		Type: "ebics",
		Data: CreateConnectionData{
			HostID:    "  HOST01  ",
			PartnerID: " PARTNER1 ",
		},
	}
	SanitizeStruct(&req)

	assert.Equal(t, "Acme Bank", req.Name)
	assert.Equal(t, "HOST01", req.Data.HostID)
	assert.Equal(t, "PARTNER1", req.Data.PartnerID)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	subject := "invoice <script>alert('x')</script> payout"
	req := CreateInitiationRequest{
		IBAN:    "DE89370400440532013000",
		Name:    "beneficiary",
		Amount:  "10.00",
		Subject: subject,
	}
	SanitizeStruct(&req)

	assert.Contains(t, req.Subject, "&lt;script&gt;")
	assert.NotContains(t, req.Subject, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	bic := "  DEUTDEFF  "
	req := CreateInitiationRequest{
		IBAN:    "DE89370400440532013000",
		Name:    "beneficiary",
		Amount:  "10.00",
		Subject: "payout",
		BIC:     &bic,
	}
	SanitizeStruct(&req)

	assert.Equal(t, "DEUTDEFF", *req.BIC)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	req := CreateInitiationRequest{
		IBAN:    "DE89370400440532013000",
		Name:    "beneficiary",
		Amount:  "10.00",
		Subject: "payout",
		BIC:     nil,
	}
	SanitizeStruct(&req)
	assert.Nil(t, req.BIC)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"ref-001",
		"REF_002",
		"a.b.c",
		"simple123",
		"ABC-def_GHI.123",
	}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"ref 001",     // space
		"ref<001>",    // angle brackets
		"ref;DROP",    // semicolon
		"",            // empty
		"hello world", // space
		"ref\n001",    // newline
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

func TestSanitizeStruct_FetchTransactionsRequest(t *testing.T) {
	req := FetchTransactionsRequest{
		RangeType: "  latest  ",
		Level:     " statement ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "latest", req.RangeType)
	assert.Equal(t, "statement", req.Level)
}
