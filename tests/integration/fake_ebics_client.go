package integration

import (
	"context"
	"fmt"

	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/core/ports"
)

// fakeEbicsClient stands in for a real bank host in tests that exercise the
// HTTP layer end to end: it never touches a network and records just enough
// state to make SendINI/SendHIA/FetchHPB/ConfirmKeys/Submit behave like a
// bank that always cooperates. Order-level wire behavior (HEV negotiation,
// signed/encrypted transfer phases) belongs to the EBICS sandbox, not here.
type fakeEbicsClient struct {
	nextOrderID int

	// downloads, if set, is returned verbatim by Download regardless of
	// the requested level; tests populate it to control what ledger
	// ingestion sees.
	downloads map[domain.FetchLevel][]byte

	// offered is returned by FetchAccounts.
	offered []domain.OfferedBankAccount
}

func newFakeEbicsClient() *fakeEbicsClient {
	return &fakeEbicsClient{downloads: make(map[domain.FetchLevel][]byte)}
}

var _ ports.EbicsClient = (*fakeEbicsClient)(nil)

func (f *fakeEbicsClient) HEV(ctx context.Context, url, hostID string) ([]string, error) {
	return []string{"H004", "H005"}, nil
}

func (f *fakeEbicsClient) INI(ctx context.Context, sub *domain.EbicsSubscriber) error {
	sub.IniState = domain.KeyStateSent
	return nil
}

func (f *fakeEbicsClient) HIA(ctx context.Context, sub *domain.EbicsSubscriber) error {
	sub.HiaState = domain.KeyStateSent
	return nil
}

func (f *fakeEbicsClient) HPB(ctx context.Context, sub *domain.EbicsSubscriber) (string, string, error) {
	return fakeBankAuthPubPEM, fakeBankEncPubPEM, nil
}

func (f *fakeEbicsClient) Download(ctx context.Context, sub *domain.EbicsSubscriber, req ports.DownloadRequest) ([]byte, error) {
	raw, ok := f.downloads[req.Level]
	if !ok {
		return nil, fmt.Errorf("fake ebics client: no canned download for level %s", req.Level)
	}
	return raw, nil
}

func (f *fakeEbicsClient) Upload(ctx context.Context, sub *domain.EbicsSubscriber, req ports.UploadRequest) (string, error) {
	f.nextOrderID++
	return fmt.Sprintf("FAKE%05d", f.nextOrderID), nil
}

func (f *fakeEbicsClient) FetchAccounts(ctx context.Context, sub *domain.EbicsSubscriber) ([]domain.OfferedBankAccount, error) {
	return f.offered, nil
}

// fakeBankAuthPubPEM / fakeBankEncPubPEM are not real keys; FetchHPB only
// needs to populate non-nil pointers so EbicsSubscriber.Ready() passes.
const (
	fakeBankAuthPubPEM = "-----BEGIN PUBLIC KEY-----\nfake-auth-key\n-----END PUBLIC KEY-----\n"
	fakeBankEncPubPEM  = "-----BEGIN PUBLIC KEY-----\nfake-enc-key\n-----END PUBLIC KEY-----\n"
)
