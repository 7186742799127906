package ebicssandbox

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"encoding/xml"
	"fmt"
	"math/big"

	"github.com/leuf-systems/nexus/internal/isoxml"
)

// decodeSubmittedKey decodes the base64 PubKeyValue order data an INI or
// HIA request carries into a PKCS1 public key PEM.
func decodeSubmittedKey(base64OrderData string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(base64OrderData)
	if err != nil {
		return "", fmt.Errorf("decoding order data: %w", err)
	}
	var v isoxml.RSAPubKeyValue
	if err := xml.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("unmarshaling public key: %w", err)
	}
	return rsaPubKeyValueToPEM(v)
}

// decodeHIAOrderData decodes HIA's combined authentication+encryption
// order data into the two PKCS1 public key PEMs it carries.
func decodeHIAOrderData(base64OrderData string) (authPEM, encPEM string, err error) {
	raw, err := base64.StdEncoding.DecodeString(base64OrderData)
	if err != nil {
		return "", "", fmt.Errorf("decoding order data: %w", err)
	}
	var doc isoxml.HIAOrderData
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return "", "", fmt.Errorf("unmarshaling HIA order data: %w", err)
	}
	authPEM, err = rsaPubKeyValueToPEM(doc.AuthenticationPubKeyInfo.PubKeyValue)
	if err != nil {
		return "", "", fmt.Errorf("decoding authentication key: %w", err)
	}
	encPEM, err = rsaPubKeyValueToPEM(doc.EncryptionPubKeyInfo.PubKeyValue)
	if err != nil {
		return "", "", fmt.Errorf("decoding encryption key: %w", err)
	}
	return authPEM, encPEM, nil
}

// pemToRSAPubKeyValue renders a PKCS1 public key PEM as the
// Modulus/Exponent pair EBICS transmits for HPB and INI/HIA order data.
func pemToRSAPubKeyValue(pubPEM string) (isoxml.RSAPubKeyValue, error) {
	block, _ := pem.Decode([]byte(pubPEM))
	if block == nil {
		return isoxml.RSAPubKeyValue{}, fmt.Errorf("no PEM block found")
	}
	pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return isoxml.RSAPubKeyValue{}, fmt.Errorf("parsing public key: %w", err)
	}
	return isoxml.RSAPubKeyValue{
		Modulus:  isoxml.RSAComponent{Value: base64.StdEncoding.EncodeToString(pub.N.Bytes())},
		Exponent: isoxml.RSAComponent{Value: base64.StdEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes())},
	}, nil
}

// rsaPubKeyValueToPEM is the inverse of pemToRSAPubKeyValue: it reconstructs
// a PKCS1 public key PEM from the base64 modulus/exponent pair a submitted
// INI/HIA order carries.
func rsaPubKeyValueToPEM(v isoxml.RSAPubKeyValue) (string, error) {
	modulus, err := base64.StdEncoding.DecodeString(v.Modulus.Value)
	if err != nil {
		return "", fmt.Errorf("decoding modulus: %w", err)
	}
	exponent, err := base64.StdEncoding.DecodeString(v.Exponent.Value)
	if err != nil {
		return "", fmt.Errorf("decoding exponent: %w", err)
	}

	pub := &rsa.PublicKey{N: new(big.Int).SetBytes(modulus), E: int(new(big.Int).SetBytes(exponent).Int64())}
	block := &pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(pub)}
	return string(pem.EncodeToMemory(block)), nil
}
