package isoxml

import "encoding/xml"

// The structs below model the EBICS H004/H005 request and response
// envelopes closely enough to build and parse every order type Nexus uses:
// INI, HIA, HPB, HTD/HKD, download (C52/C53/C54 order types under H004,
// BTF-addressed under H005), and upload (CCT-style order types / BTF). Only
// the elements Nexus reads or writes are modeled; anything else round-trips
// through xml.Name-keyed structs untouched where it must be preserved (the
// signature value), and is simply ignored elsewhere.

// UnsecuredRequest wraps INI and HIA, which carry their order data in the
// clear (it is the subscriber's own public key, so no encryption applies).
type UnsecuredRequest struct {
	XMLName xml.Name `xml:"ebicsUnsecuredRequest"`
	Version string   `xml:"Version,attr"`
	Xmlns   string   `xml:"xmlns,attr"`
	Header  UnsecuredHeader `xml:"header"`
	Body    UnsecuredBody   `xml:"body"`
}

type UnsecuredHeader struct {
	Authenticate string             `xml:"authenticate,attr"`
	Static       UnsecuredStaticHeader `xml:"static"`
	Mutable      struct{}           `xml:"mutable"`
}

type UnsecuredStaticHeader struct {
	HostID     string `xml:"HostID"`
	PartnerID  string `xml:"PartnerID"`
	UserID     string `xml:"UserID"`
	OrderDetails UnsecuredOrderDetails `xml:"OrderDetails"`
	SecurityMedium string `xml:"SecurityMedium"`
}

type UnsecuredOrderDetails struct {
	OrderType     string `xml:"OrderType"`
	OrderAttribute string `xml:"OrderAttribute"`
}

type UnsecuredBody struct {
	DataTransfer UnsecuredDataTransfer `xml:"DataTransfer"`
}

type UnsecuredDataTransfer struct {
	OrderData string `xml:"OrderData"` // base64 of the raw (uncompressed) public key order data
}

// HEVRequest probes which protocol versions a host supports.
type HEVRequest struct {
	XMLName   xml.Name `xml:"ebicsHEVRequest"`
	Xmlns     string   `xml:"xmlns,attr"`
	HostID    string   `xml:"HostID"`
}

// HEVResponse lists the versions the host advertises.
type HEVResponse struct {
	XMLName              xml.Name               `xml:"ebicsHEVResponse"`
	SystemReturnCode     ReturnCode             `xml:"SystemReturnCode"`
	VersionNumber        []HEVVersionNumber     `xml:"VersionNumber"`
}

type HEVVersionNumber struct {
	ProtocolVersion string `xml:"ProtocolVersion,attr"`
	Value           string `xml:",chardata"`
}

type ReturnCode struct {
	ReportText string `xml:"ReportText"`
	Code       string `xml:"ReturnCode"`
}

// Request is the secured envelope shape shared by download INIT/TRANSFER
// and upload INIT/TRANSFER phases. The authenticate="true" subset that gets
// canonicalized and signed is exactly header.static, header.mutable, and
// body — never the AuthSignature element itself.
type Request struct {
	XMLName xml.Name      `xml:"ebicsRequest"`
	Version string        `xml:"Version,attr"`
	Xmlns   string        `xml:"xmlns,attr"`
	Header  RequestHeader `xml:"header"`
	AuthSignature AuthSignature `xml:"AuthSignature"`
	Body    RequestBody   `xml:"body"`
}

type RequestHeader struct {
	Authenticate string        `xml:"authenticate,attr"`
	Static       StaticHeader  `xml:"static"`
	Mutable      MutableHeader `xml:"mutable"`
}

type StaticHeader struct {
	HostID        string        `xml:"HostID"`
	Nonce         string        `xml:"Nonce,omitempty"`
	Timestamp     string        `xml:"Timestamp,omitempty"`
	PartnerID     string        `xml:"PartnerID,omitempty"`
	UserID        string        `xml:"UserID,omitempty"`
	OrderDetails  *OrderDetails `xml:"OrderDetails,omitempty"`
	BankPubKeyDigests *BankPubKeyDigests `xml:"BankPubKeyDigests,omitempty"`
	SecurityMedium string       `xml:"SecurityMedium,omitempty"`
	TransactionID string        `xml:"TransactionID,omitempty"`
	NumSegments   string        `xml:"NumSegments,omitempty"`
}

type OrderDetails struct {
	OrderType      string `xml:"OrderType,omitempty"`
	OrderID        string `xml:"OrderID,omitempty"`
	OrderAttribute string `xml:"OrderAttribute,omitempty"`
	// BTF replaces OrderType under H005.
	BTF *BTFDescriptor `xml:"BTF,omitempty"`
}

// BTFDescriptor is the H005 Business Transaction Format service descriptor
// that replaces the H004 OrderType string.
type BTFDescriptor struct {
	ServiceName    string `xml:"ServiceName"`
	Scope          string `xml:"Scope,omitempty"`
	MsgName        string `xml:"MsgName"`
}

type BankPubKeyDigests struct {
	Authentication DigestValue `xml:"Authentication"`
	Encryption     DigestValue `xml:"Encryption"`
}

type DigestValue struct {
	Version string `xml:"Version,attr"`
	Value   string `xml:",chardata"`
}

type MutableHeader struct {
	TransactionPhase string `xml:"TransactionPhase"`
	SegmentNumber    *SegmentNumber `xml:"SegmentNumber,omitempty"`
}

type SegmentNumber struct {
	LastSegment string `xml:"lastSegment,attr"`
	Value       string `xml:",chardata"`
}

type AuthSignature struct {
	SignatureValue string `xml:"SignatureValue"`
}

type RequestBody struct {
	DataTransfer *RequestDataTransfer `xml:"DataTransfer,omitempty"`
}

type RequestDataTransfer struct {
	SignatureData   *SignatureData `xml:"SignatureData,omitempty"`
	EncryptionPubKeyDigest *DigestValue `xml:"DataEncryptionInfo>EncryptionPubKeyDigest,omitempty"`
	TransactionKey  string         `xml:"DataEncryptionInfo>TransactionKey,omitempty"`
	OrderData       string         `xml:"OrderData"`
}

type SignatureData struct {
	AuthorisationLevel string `xml:"authorisationLevel,attr"`
	Value              string `xml:",chardata"`
}

// Response is the secured envelope shape returned for download/upload
// INIT/TRANSFER phases.
type Response struct {
	XMLName xml.Name       `xml:"ebicsResponse"`
	Header  ResponseHeader `xml:"header"`
	Body    ResponseBody   `xml:"body"`
}

type ResponseHeader struct {
	Static  ResponseStaticHeader  `xml:"static"`
	Mutable ResponseMutableHeader `xml:"mutable"`
}

type ResponseStaticHeader struct {
	TransactionID string `xml:"TransactionID,omitempty"`
	NumSegments   string `xml:"NumSegments,omitempty"`
}

type ResponseMutableHeader struct {
	TransactionPhase string     `xml:"TransactionPhase"`
	SegmentNumber    *SegmentNumber `xml:"SegmentNumber,omitempty"`
	ReturnCode       string     `xml:"ReturnCode"`
	ReportText       string     `xml:"ReportText"`
}

type ResponseBody struct {
	DataTransfer *ResponseDataTransfer `xml:"DataTransfer,omitempty"`
	ReturnCode   string                `xml:"ReturnCode"`
}

type ResponseDataTransfer struct {
	DataEncryptionInfo *ResponseDataEncryptionInfo `xml:"DataEncryptionInfo,omitempty"`
	OrderData          string                      `xml:"OrderData"`
}

type ResponseDataEncryptionInfo struct {
	TransactionKey string `xml:"TransactionKey"`
}

// KeyManagementResponse wraps INI/HIA/HPB responses, whose body either is
// empty (INI/HIA) or carries the bank's public keys (HPB, itself E002
// encrypted order data containing a HPB pubkey document).
type KeyManagementResponse struct {
	XMLName xml.Name                   `xml:"ebicsKeyManagementResponse"`
	Header  KeyManagementResponseHeader `xml:"header"`
	Body    KeyManagementResponseBody   `xml:"body"`
}

type KeyManagementResponseHeader struct {
	Mutable struct {
		ReturnCode string `xml:"ReturnCode"`
		ReportText string `xml:"ReportText"`
	} `xml:"mutable"`
}

type KeyManagementResponseBody struct {
	DataTransfer *ResponseDataTransfer `xml:"DataTransfer,omitempty"`
	ReturnCode   string                `xml:"ReturnCode"`
}

// HPBPubKeyDocument is the inner order data HPB returns once decrypted: the
// bank's authentication and encryption public keys, each with its own
// digest.
type HPBPubKeyDocument struct {
	XMLName xml.Name `xml:"HPBExportedKeys"`
	BankPubKeyDigests struct {
		AuthenticationPubKeyInfo PubKeyInfo `xml:"AuthenticationPubKeyInfo"`
		EncryptionPubKeyInfo     PubKeyInfo `xml:"EncryptionPubKeyInfo"`
	} `xml:"PubKeyDigestsSegment"`
}

type PubKeyInfo struct {
	PubKeyValue RSAPubKeyValue `xml:"PubKeyValue"`
	AuthorisationLevel string  `xml:"AuthorisationLevel,omitempty"`
}

type RSAPubKeyValue struct {
	Modulus  RSAComponent `xml:"Modulus"`
	Exponent RSAComponent `xml:"Exponent"`
}

type RSAComponent struct {
	Value string `xml:",chardata"`
}

// HIAOrderData is the order data an HIA request carries: the subscriber's
// authentication and encryption public keys together, the same
// two-key shape HPB's response uses for the bank's side of the exchange.
type HIAOrderData struct {
	XMLName xml.Name `xml:"HIARequestOrderData"`
	AuthenticationPubKeyInfo PubKeyInfo `xml:"AuthenticationPubKeyInfo"`
	EncryptionPubKeyInfo     PubKeyInfo `xml:"EncryptionPubKeyInfo"`
}
