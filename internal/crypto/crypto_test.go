package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyPair(t *testing.T) {
	s := New()
	kp, err := s.GenerateKeyPair(2048)
	require.NoError(t, err)
	assert.Contains(t, kp.PrivateKeyPEM, "RSA PRIVATE KEY")
	assert.Contains(t, kp.PublicKeyPEM, "RSA PUBLIC KEY")
}

func TestSignAndVerifyA006(t *testing.T) {
	s := New()
	kp, err := s.GenerateKeyPair(2048)
	require.NoError(t, err)

	digest := s.Digest([]byte("<xml>order data</xml>"))
	sig, err := s.SignA006(kp.PrivateKeyPEM, digest)
	require.NoError(t, err)

	err = s.VerifyA006(kp.PublicKeyPEM, digest, sig)
	assert.NoError(t, err)
}

func TestVerifyA006_RejectsTamperedDigest(t *testing.T) {
	s := New()
	kp, err := s.GenerateKeyPair(2048)
	require.NoError(t, err)

	digest := s.Digest([]byte("<xml>order data</xml>"))
	sig, err := s.SignA006(kp.PrivateKeyPEM, digest)
	require.NoError(t, err)

	tamperedDigest := s.Digest([]byte("<xml>tampered</xml>"))
	err = s.VerifyA006(kp.PublicKeyPEM, tamperedDigest, sig)
	assert.Error(t, err)
}

func TestDeflateInflateRoundTrip(t *testing.T) {
	s := New()
	original := []byte("<Document>pain.001.001.09 payload</Document>")

	compressed, err := s.Deflate(original)
	require.NoError(t, err)
	assert.NotEqual(t, original, compressed)

	decompressed, err := s.Inflate(compressed)
	require.NoError(t, err)
	assert.Equal(t, original, decompressed)
}

func TestEncryptDecryptE002_RoundTrip(t *testing.T) {
	s := New()
	kp, err := s.GenerateKeyPair(2048)
	require.NoError(t, err)

	plaintext := []byte("<CustomerCreditTransferInitiationV09>...</CustomerCreditTransferInitiationV09>")
	ciphertext, encryptedKey, pubDigest, err := s.EncryptE002(kp.PublicKeyPEM, plaintext)
	require.NoError(t, err)
	assert.NotEmpty(t, ciphertext)
	assert.NotEmpty(t, encryptedKey)
	assert.Len(t, pubDigest, 32)

	decrypted, err := s.DecryptE002(kp.PrivateKeyPEM, ciphertext, encryptedKey)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptE002_DifferentKeyFailsToDecrypt(t *testing.T) {
	s := New()
	kp1, err := s.GenerateKeyPair(2048)
	require.NoError(t, err)
	kp2, err := s.GenerateKeyPair(2048)
	require.NoError(t, err)

	ciphertext, encryptedKey, _, err := s.EncryptE002(kp1.PublicKeyPEM, []byte("secret order data"))
	require.NoError(t, err)

	_, err = s.DecryptE002(kp2.PrivateKeyPEM, ciphertext, encryptedKey)
	assert.Error(t, err)
}

func TestCanonicalize_SortsAttributesAndExpandsEmptyElements(t *testing.T) {
	input := `<root><a z="1" a="2" authenticate="true"/><b>text &amp; more</b></root>`
	out, err := Canonicalize([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, `<root><a a="2" authenticate="true" z="1"></a><b>text &amp; more</b></root>`, string(out))
}

func TestCanonicalize_Deterministic(t *testing.T) {
	input := `<header c="3" a="1" b="2"></header>`
	out1, err := Canonicalize([]byte(input))
	require.NoError(t, err)
	out2, err := Canonicalize([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, out1, out2)
}
