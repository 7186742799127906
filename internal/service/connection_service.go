package service

import (
	"context"
	"fmt"

	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/core/ports"
	"github.com/leuf-systems/nexus/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// rsaKeyBits is the modulus size Nexus generates for every EBICS subscriber
// key, matching common bank accreditation minimums.
const rsaKeyBits = 2048

// ConnectionServiceImpl implements ports.ConnectionService: the operator
// facing lifecycle of a bank connection from creation through key exchange
// to account discovery.
type ConnectionServiceImpl struct {
	connRepo    ports.BankConnectionRepository
	subRepo     ports.EbicsSubscriberRepository
	offeredRepo ports.OfferedBankAccountRepository
	accountRepo ports.BankAccountRepository
	ebicsClient ports.EbicsClient
	cryptoSvc   ports.CryptoService
	transactor  ports.DBTransactor
	clock       domain.Clock
	log         zerolog.Logger
}

// NewConnectionService constructs a ConnectionServiceImpl.
func NewConnectionService(
	connRepo ports.BankConnectionRepository,
	subRepo ports.EbicsSubscriberRepository,
	offeredRepo ports.OfferedBankAccountRepository,
	accountRepo ports.BankAccountRepository,
	ebicsClient ports.EbicsClient,
	cryptoSvc ports.CryptoService,
	transactor ports.DBTransactor,
	clock domain.Clock,
	log zerolog.Logger,
) *ConnectionServiceImpl {
	return &ConnectionServiceImpl{
		connRepo:    connRepo,
		subRepo:     subRepo,
		offeredRepo: offeredRepo,
		accountRepo: accountRepo,
		ebicsClient: ebicsClient,
		cryptoSvc:   cryptoSvc,
		transactor:  transactor,
		clock:       clock,
		log:         log,
	}
}

var _ ports.ConnectionService = (*ConnectionServiceImpl)(nil)

// CreateConnection probes the host's EBICS version support with HEV, then
// generates a fresh sign/auth/enc key triplet and registers the connection
// and its subscriber. No key is sent to the bank yet; that happens in
// SendINI/SendHIA.
func (s *ConnectionServiceImpl) CreateConnection(ctx context.Context, name string, dialect domain.EbicsDialect, url, hostID, partnerID, userID string, ownerID uuid.UUID) (*domain.BankConnection, error) {
	versions, err := s.ebicsClient.HEV(ctx, url, hostID)
	if err != nil {
		s.log.Warn().Err(err).Str("host_id", hostID).Msg("connection: HEV probe failed, proceeding with requested dialect unverified")
	} else if !containsVersion(versions, string(dialect)) {
		return nil, apperror.Validation(fmt.Sprintf("host %s does not advertise EBICS dialect %s (advertises %v)", hostID, dialect, versions))
	}

	signPair, err := s.cryptoSvc.GenerateKeyPair(rsaKeyBits)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generating signing key: %w", err))
	}
	authPair, err := s.cryptoSvc.GenerateKeyPair(rsaKeyBits)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generating authentication key: %w", err))
	}
	encPair, err := s.cryptoSvc.GenerateKeyPair(rsaKeyBits)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generating encryption key: %w", err))
	}

	conn := &domain.BankConnection{
		ID:        uuid.New(),
		Name:      name,
		Type:      domain.ConnectionTypeEBICS,
		Dialect:   dialect,
		OwnerID:   ownerID,
		CreatedAt: s.clock.Now(),
	}
	sub := &domain.EbicsSubscriber{
		BankConnectionID:  conn.ID,
		Dialect:           dialect,
		URL:               url,
		HostID:            hostID,
		PartnerID:         partnerID,
		UserID:            userID,
		SignPrivateKeyPEM: signPair.PrivateKeyPEM,
		AuthPrivateKeyPEM: authPair.PrivateKeyPEM,
		EncPrivateKeyPEM:  encPair.PrivateKeyPEM,
		IniState:          domain.KeyStateNotSent,
		HiaState:          domain.KeyStateNotSent,
	}

	if err := s.connRepo.Create(ctx, conn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("creating bank connection: %w", err))
	}
	if err := s.subRepo.Create(ctx, sub); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("creating ebics subscriber: %w", err))
	}
	return conn, nil
}

// SendINI uploads the subscriber's signing public key.
func (s *ConnectionServiceImpl) SendINI(ctx context.Context, connID uuid.UUID) error {
	return s.withLockedSubscriber(ctx, connID, func(sub *domain.EbicsSubscriber) error {
		return s.ebicsClient.INI(ctx, sub)
	})
}

// SendHIA uploads the subscriber's authentication and encryption public keys.
func (s *ConnectionServiceImpl) SendHIA(ctx context.Context, connID uuid.UUID) error {
	return s.withLockedSubscriber(ctx, connID, func(sub *domain.EbicsSubscriber) error {
		return s.ebicsClient.HIA(ctx, sub)
	})
}

// FetchHPB downloads and stores the bank's authentication and encryption
// public keys. Keys remain unconfirmed until ConfirmKeys runs.
func (s *ConnectionServiceImpl) FetchHPB(ctx context.Context, connID uuid.UUID) error {
	return s.withLockedSubscriber(ctx, connID, func(sub *domain.EbicsSubscriber) error {
		authPEM, encPEM, err := s.ebicsClient.HPB(ctx, sub)
		if err != nil {
			return err
		}
		sub.BankAuthPublicKeyPEM = &authPEM
		sub.BankEncPublicKeyPEM = &encPEM
		return nil
	})
}

func containsVersion(versions []string, want string) bool {
	for _, v := range versions {
		if v == want {
			return true
		}
	}
	return false
}

// withLockedSubscriber loads connID's subscriber under a row lock, runs fn,
// and persists whatever fn mutated on the subscriber within the same
// transaction. The lock serializes SendINI/SendHIA/FetchHPB against each
// other for the same subscriber; the download and upload paths load the
// subscriber without taking it.
func (s *ConnectionServiceImpl) withLockedSubscriber(ctx context.Context, connID uuid.UUID, fn func(sub *domain.EbicsSubscriber) error) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	sub, err := s.subRepo.GetForUpdate(ctx, dbTx, connID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("locking subscriber: %w", err))
	}
	if sub == nil {
		return apperror.ErrNotFound("ebics subscriber")
	}

	if err := fn(sub); err != nil {
		return err
	}

	if err := s.subRepo.Update(ctx, dbTx, sub); err != nil {
		return apperror.InternalError(fmt.Errorf("persisting subscriber: %w", err))
	}
	return dbTx.Commit(ctx)
}

// ConfirmKeys marks the connection usable for fetch/submit, gated on the
// operator having verified the bank's HPB key fingerprints out of band.
func (s *ConnectionServiceImpl) ConfirmKeys(ctx context.Context, connID uuid.UUID) error {
	sub, err := s.subRepo.GetByConnectionID(ctx, connID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("loading subscriber: %w", err))
	}
	if sub == nil || !sub.Ready() {
		return apperror.ErrConnectionNotReady()
	}
	return s.connRepo.SetKeysConfirmed(ctx, connID, true)
}

// DiscoverAccounts downloads HTD/HKD and replaces connID's offered account
// list with the bank's current answer.
func (s *ConnectionServiceImpl) DiscoverAccounts(ctx context.Context, connID uuid.UUID) ([]domain.OfferedBankAccount, error) {
	sub, err := s.subRepo.GetByConnectionID(ctx, connID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("loading subscriber: %w", err))
	}
	if sub == nil || !sub.Ready() {
		return nil, apperror.ErrConnectionNotReady()
	}

	offered, err := s.ebicsClient.FetchAccounts(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("fetching accounts: %w", err)
	}

	if err := s.offeredRepo.Replace(ctx, connID, offered); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("persisting offered accounts: %w", err))
	}
	return offered, nil
}

// ImportAccount creates a BankAccount from a previously discovered
// OfferedBankAccount, binding it to the offering connection.
func (s *ConnectionServiceImpl) ImportAccount(ctx context.Context, offeredID uuid.UUID, label string) (*domain.BankAccount, error) {
	offered, err := s.offeredRepo.GetByID(ctx, offeredID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("loading offered account: %w", err))
	}
	if offered == nil {
		return nil, apperror.ErrNotFound("offered bank account")
	}
	if offered.ImportedBankAccountID != nil {
		existing, err := s.accountRepo.GetByID(ctx, *offered.ImportedBankAccountID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("loading imported account: %w", err))
		}
		return existing, nil
	}

	account := &domain.BankAccount{
		ID:                  uuid.New(),
		Label:               label,
		HolderName:          offered.HolderName,
		IBAN:                offered.IBAN,
		BIC:                 offered.BIC,
		DefaultConnectionID: &offered.BankConnectionID,
		CreatedAt:           s.clock.Now(),
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("creating bank account: %w", err))
	}
	if err := s.offeredRepo.MarkImported(ctx, offeredID, account.ID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marking offered account imported: %w", err))
	}
	return account, nil
}
