package ebics

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

// publicKeyValueFromPrivatePEM extracts the public half of a PKCS1 private
// key PEM as the Modulus/Exponent pair EBICS transmits for public keys.
func publicKeyValueFromPrivatePEM(privateKeyPEM string) (isoxml.RSAPubKeyValue, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return isoxml.RSAPubKeyValue{}, fmt.Errorf("no PEM block found")
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return isoxml.RSAPubKeyValue{}, fmt.Errorf("parsing private key: %w", err)
	}
	return rsaPubKeyToComponents(&key.PublicKey), nil
}

// buildPubKeyOrderData renders the INI order data payload: the public half
// of privateKeyPEM as an RSAPubKeyValue-shaped XML fragment matching what
// HPB itself returns, base64 of the modulus and exponent.
func buildPubKeyOrderData(privateKeyPEM string) ([]byte, error) {
	components, err := publicKeyValueFromPrivatePEM(privateKeyPEM)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf(
		`<PubKeyValue><Modulus>%s</Modulus><Exponent>%s</Exponent></PubKeyValue>`,
		components.Modulus.Value,
		components.Exponent.Value,
	)), nil
}

// buildHIAOrderData renders HIA's order data: the subscriber's
// authentication and encryption public keys together, since EBICS
// transmits the encryption key only here, never over an unsecured channel
// of its own.
func buildHIAOrderData(authPrivateKeyPEM, encPrivateKeyPEM string) ([]byte, error) {
	authPub, err := publicKeyValueFromPrivatePEM(authPrivateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("encoding authentication key: %w", err)
	}
	encPub, err := publicKeyValueFromPrivatePEM(encPrivateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("encoding encryption key: %w", err)
	}
	doc := isoxml.HIAOrderData{
		AuthenticationPubKeyInfo: isoxml.PubKeyInfo{PubKeyValue: authPub},
		EncryptionPubKeyInfo:     isoxml.PubKeyInfo{PubKeyValue: encPub},
	}
	return xml.Marshal(doc)
}

func rsaPubKeyToComponents(pub *rsa.PublicKey) isoxml.RSAPubKeyValue {
	return isoxml.RSAPubKeyValue{
		Modulus:  isoxml.RSAComponent{Value: base64.StdEncoding.EncodeToString(pub.N.Bytes())},
		Exponent: isoxml.RSAComponent{Value: base64.StdEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes())},
	}
}

// rsaComponentsToPEM reconstructs a PKCS1 public key PEM block from the
// base64 modulus/exponent pair EBICS transmits for bank keys.
func rsaComponentsToPEM(v isoxml.RSAPubKeyValue) (string, error) {
	modulus, err := base64.StdEncoding.DecodeString(v.Modulus.Value)
	if err != nil {
		return "", fmt.Errorf("decoding modulus: %w", err)
	}
	exponent, err := base64.StdEncoding.DecodeString(v.Exponent.Value)
	if err != nil {
		return "", fmt.Errorf("decoding exponent: %w", err)
	}

	n := new(big.Int).SetBytes(modulus)
	e := new(big.Int).SetBytes(exponent)

	pub := &rsa.PublicKey{N: n, E: int(e.Int64())}
	pemBlock := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PUBLIC KEY",
		Bytes: x509.MarshalPKCS1PublicKey(pub),
	})
	return string(pemBlock), nil
}
