package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"io"
)

// e002KeySize is the AES key length EBICS E002 mandates (128 bit).
const e002KeySize = 16

// EncryptE002 deflates plaintext, encrypts it with a fresh random AES-128
// key under CBC, and wraps that key with RSA PKCS#1 v1.5 to
// bankEncPublicKeyPEM. EBICS E002 fixes the CBC IV to all-zero (the
// transaction key is never reused, so a random IV adds nothing); the
// returned ciphertext carries no IV prefix as a result. pubDigest is the
// SHA-256 digest of bankEncPublicKeyPEM's DER encoding, identifying which
// bank key version this transaction key was wrapped to.
func (s *Service) EncryptE002(bankEncPublicKeyPEM string, plaintext []byte) (ciphertext, encryptedKey, pubDigest []byte, err error) {
	pub, err := parsePublicKeyPEM(bankEncPublicKeyPEM)
	if err != nil {
		return nil, nil, nil, err
	}

	compressed, err := s.Deflate(plaintext)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("deflating order data: %w", err)
	}

	key := make([]byte, e002KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, nil, nil, fmt.Errorf("generating AES key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)

	padded := pkcs7Pad(compressed, aes.BlockSize)
	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	encryptedKey, err = rsa.EncryptPKCS1v15(rand.Reader, pub, key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("wrapping AES key: %w", err)
	}

	digest := sha256.Sum256(x509.MarshalPKCS1PublicKey(pub))
	return ciphertext, encryptedKey, digest[:], nil
}

// DecryptE002 is the inverse of EncryptE002: it unwraps the AES key with the
// subscriber's encryption private key, decrypts, strips padding, and
// inflates the result back to the original order data.
func (s *Service) DecryptE002(subscriberEncPrivateKeyPEM string, ciphertext []byte, encryptedKey []byte) ([]byte, error) {
	priv, err := parsePrivateKeyPEM(subscriberEncPrivateKeyPEM)
	if err != nil {
		return nil, err
	}

	key, err := rsa.DecryptPKCS1v15(rand.Reader, priv, encryptedKey)
	if err != nil {
		return nil, fmt.Errorf("unwrapping AES key: %w", err)
	}

	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext not a multiple of the AES block size")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	plainPadded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plainPadded, ciphertext)

	plain, err := pkcs7Unpad(plainPadded)
	if err != nil {
		return nil, err
	}

	inflated, err := s.Inflate(plain)
	if err != nil {
		return nil, fmt.Errorf("inflating order data: %w", err)
	}
	return inflated, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(data, padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unpad empty data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("invalid PKCS7 padding")
	}
	return data[:len(data)-padLen], nil
}
