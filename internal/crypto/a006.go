package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
)

// Digest hashes canonicalXML with SHA-256, the algorithm EBICS A006
// signatures are computed over.
func (s *Service) Digest(canonicalXML []byte) []byte {
	sum := sha256.Sum256(canonicalXML)
	return sum[:]
}

// SignA006 signs a pre-computed SHA-256 digest with RSASSA-PKCS1-v1_5, the
// EBICS A006 order-data signature algorithm.
func (s *Service) SignA006(privateKeyPEM string, orderDataDigest []byte) ([]byte, error) {
	key, err := parsePrivateKeyPEM(privateKeyPEM)
	if err != nil {
		return nil, err
	}
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, orderDataDigest)
	if err != nil {
		return nil, fmt.Errorf("signing A006 digest: %w", err)
	}
	return sig, nil
}

// VerifyA006 checks a signature produced by SignA006.
func (s *Service) VerifyA006(publicKeyPEM string, orderDataDigest []byte, signature []byte) error {
	key, err := parsePublicKeyPEM(publicKeyPEM)
	if err != nil {
		return err
	}
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, orderDataDigest, signature); err != nil {
		return fmt.Errorf("verifying A006 signature: %w", err)
	}
	return nil
}
