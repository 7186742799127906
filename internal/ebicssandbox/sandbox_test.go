package ebicssandbox

import (
	"context"
	"math/rand"
	"net/http/httptest"
	"testing"

	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/core/ports"
	"github.com/leuf-systems/nexus/internal/crypto"
	"github.com/leuf-systems/nexus/internal/ebics"
	"github.com/leuf-systems/nexus/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSubscriber builds an EbicsSubscriber with freshly generated keys,
// addressed at srv, ready to run INI/HIA/HPB against bank.
func newTestSubscriber(t *testing.T, bank *Bank, srv *httptest.Server, dialect domain.EbicsDialect) (*domain.EbicsSubscriber, *crypto.Service) {
	t.Helper()
	svc := crypto.New()

	signPair, err := svc.GenerateKeyPair(2048)
	require.NoError(t, err)
	authPair, err := svc.GenerateKeyPair(2048)
	require.NoError(t, err)
	encPair, err := svc.GenerateKeyPair(2048)
	require.NoError(t, err)

	return &domain.EbicsSubscriber{
		Dialect:           dialect,
		URL:               srv.URL,
		HostID:            bank.hostID,
		PartnerID:         "PARTNER1",
		UserID:            "USER1",
		SignPrivateKeyPEM: signPair.PrivateKeyPEM,
		AuthPrivateKeyPEM: authPair.PrivateKeyPEM,
		EncPrivateKeyPEM:  encPair.PrivateKeyPEM,
	}, svc
}

// onboard runs INI, HIA and HPB against bank and returns the ready
// subscriber. Every test in this file except TestSandbox_HEV starts from
// here, mirroring the connection service's own onboarding sequence.
func onboard(t *testing.T, bank *Bank, srv *httptest.Server, dialect domain.EbicsDialect) (*ebics.Client, *domain.EbicsSubscriber) {
	t.Helper()
	sub, svc := newTestSubscriber(t, bank, srv, dialect)
	client := ebics.New(srv.Client(), svc, logger.New("error", false))

	require.NoError(t, client.INI(context.Background(), sub))
	require.NoError(t, client.HIA(context.Background(), sub))

	authPEM, encPEM, err := client.HPB(context.Background(), sub)
	require.NoError(t, err)
	sub.BankAuthPublicKeyPEM = &authPEM
	sub.BankEncPublicKeyPEM = &encPEM

	assert.True(t, sub.Ready())
	return client, sub
}

func TestSandbox_KeyExchange(t *testing.T) {
	bank, err := NewBank("HOST1")
	require.NoError(t, err)
	srv := httptest.NewServer(bank)
	defer srv.Close()

	_, sub := onboard(t, bank, srv, domain.EbicsDialectH004)
	assert.Equal(t, domain.KeyStateSent, sub.IniState)
	assert.Equal(t, domain.KeyStateSent, sub.HiaState)
}

func TestSandbox_HEV(t *testing.T) {
	bank, err := NewBank("HOST1")
	require.NoError(t, err)
	srv := httptest.NewServer(bank)
	defer srv.Close()

	client := ebics.New(srv.Client(), crypto.New(), logger.New("error", false))
	versions, err := client.HEV(context.Background(), srv.URL, "HOST1")
	require.NoError(t, err)
	assert.Contains(t, versions, "H004")
	assert.Contains(t, versions, "H005")
}

func TestSandbox_FetchAccounts(t *testing.T) {
	bank, err := NewBank("HOST1")
	require.NoError(t, err)
	bank.SeedAccounts([]OfferedAccount{
		{IBAN: "CH9300762011623852957", BIC: "ABCDCHZZ", HolderName: "Acme GmbH"},
	})
	srv := httptest.NewServer(bank)
	defer srv.Close()

	client, sub := onboard(t, bank, srv, domain.EbicsDialectH004)
	accounts, err := client.FetchAccounts(context.Background(), sub)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "CH9300762011623852957", accounts[0].IBAN)
	assert.Equal(t, "Acme GmbH", accounts[0].HolderName)
}

func TestSandbox_DownloadSingleSegment(t *testing.T) {
	bank, err := NewBank("HOST1")
	require.NoError(t, err)
	bank.Seed("C53", []byte("<Document>camt.053 statement</Document>"))
	srv := httptest.NewServer(bank)
	defer srv.Close()

	client, sub := onboard(t, bank, srv, domain.EbicsDialectH004)
	data, err := client.Download(context.Background(), sub, ports.DownloadRequest{Level: domain.FetchLevelStatement})
	require.NoError(t, err)
	assert.Equal(t, "<Document>camt.053 statement</Document>", string(data))
}

func TestSandbox_DownloadMultiSegment(t *testing.T) {
	bank, err := NewBank("HOST1")
	require.NoError(t, err)

	// Seeded random bytes barely compress, so the encrypted payload still
	// spans several download segments after deflate.
	rng := rand.New(rand.NewSource(1))
	payload := make([]byte, downloadSegmentSize*3+17)
	for i := range payload {
		payload[i] = byte(rng.Intn(256))
	}
	bank.Seed("camt.053", payload)
	srv := httptest.NewServer(bank)
	defer srv.Close()

	client, sub := onboard(t, bank, srv, domain.EbicsDialectH005)
	data, err := client.Download(context.Background(), sub, ports.DownloadRequest{Level: domain.FetchLevelStatement})
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestSandbox_DownloadNoDataAvailable(t *testing.T) {
	bank, err := NewBank("HOST1")
	require.NoError(t, err)
	srv := httptest.NewServer(bank)
	defer srv.Close()

	client, sub := onboard(t, bank, srv, domain.EbicsDialectH004)
	data, err := client.Download(context.Background(), sub, ports.DownloadRequest{Level: domain.FetchLevelReport})
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSandbox_Upload(t *testing.T) {
	bank, err := NewBank("HOST1")
	require.NoError(t, err)
	srv := httptest.NewServer(bank)
	defer srv.Close()

	client, sub := onboard(t, bank, srv, domain.EbicsDialectH004)

	payload := []byte("<Document>pain.001 credit transfer</Document>")
	orderID, err := client.Upload(context.Background(), sub, ports.UploadRequest{OrderData: payload})
	require.NoError(t, err)
	assert.NotEmpty(t, orderID)

	stored, ok := bank.Upload(orderID)
	require.True(t, ok)
	assert.Equal(t, payload, stored)
}
