package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/core/ports"
	"github.com/leuf-systems/nexus/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// InitiationServiceImpl implements ports.InitiationService: idempotent
// creation of outgoing payment requests and their submission over EBICS.
type InitiationServiceImpl struct {
	initRepo    ports.PaymentInitiationRepository
	accountRepo ports.BankAccountRepository
	connRepo    ports.BankConnectionRepository
	subRepo     ports.EbicsSubscriberRepository
	ebicsClient ports.EbicsClient
	isoSvc      ports.Iso20022Service
	transactor  ports.DBTransactor
	clock       domain.Clock
	log         zerolog.Logger
}

// NewInitiationService constructs an InitiationServiceImpl.
func NewInitiationService(
	initRepo ports.PaymentInitiationRepository,
	accountRepo ports.BankAccountRepository,
	connRepo ports.BankConnectionRepository,
	subRepo ports.EbicsSubscriberRepository,
	ebicsClient ports.EbicsClient,
	isoSvc ports.Iso20022Service,
	transactor ports.DBTransactor,
	clock domain.Clock,
	log zerolog.Logger,
) *InitiationServiceImpl {
	return &InitiationServiceImpl{
		initRepo:    initRepo,
		accountRepo: accountRepo,
		connRepo:    connRepo,
		subRepo:     subRepo,
		ebicsClient: ebicsClient,
		isoSvc:      isoSvc,
		transactor:  transactor,
		clock:       clock,
		log:         log,
	}
}

var _ ports.InitiationService = (*InitiationServiceImpl)(nil)

// Create validates req and inserts a new PaymentInitiation, or, when req.UID
// was already used for this bank account, returns the existing row if the
// request matches it exactly, or a conflict error if it does not.
func (s *InitiationServiceImpl) Create(ctx context.Context, req ports.CreateInitiationRequest) (*domain.PaymentInitiation, error) {
	if req.Amount == "" || req.Currency == "" {
		return nil, apperror.Validation("amount and currency are required")
	}

	amt, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, apperror.Validation("amount must be a valid decimal number")
	}
	if amt.Exponent() < -2 {
		return nil, apperror.Validation("amount must have at most 2 fractional digits")
	}

	account, err := s.accountRepo.GetByID(ctx, req.BankAccountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("loading bank account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("bank account")
	}

	candidate := &domain.PaymentInitiation{
		ID:            uuid.New(),
		BankAccountID: req.BankAccountID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Subject:       req.Subject,
		Creditor:      req.Creditor,
		UID:           req.UID,
		PreparedAt:    s.clock.Now(),
	}

	if req.UID != nil {
		existing, err := s.initRepo.GetByUID(ctx, req.BankAccountID, *req.UID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("checking existing uid: %w", err))
		}
		if existing != nil {
			if existing.EqualRequest(candidate) {
				return existing, nil
			}
			return nil, apperror.ErrInitiationConflict()
		}
	}

	account.Pain001Counter++
	ids := buildIdentifierTriplet(account, account.Pain001Counter)
	candidate.EndToEndID = ids.endToEnd
	candidate.MessageID = ids.message
	candidate.PaymentInformationID = ids.paymentInfo
	candidate.InstructionID = ids.instruction

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.accountRepo.Update(ctx, dbTx, account); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("persisting pain001 counter: %w", err))
	}
	if err := s.initRepo.Create(ctx, candidate); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("creating payment initiation: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("committing initiation creation: %w", err))
	}

	return candidate, nil
}

type identifierTriplet struct {
	endToEnd    string
	message     string
	paymentInfo string
	instruction string
}

// buildIdentifierTriplet renders the leuf-<role>-<timestampHex>-<counterHex>-<accountHex>
// template: unique per (bank account, counter) pair
// since counter is monotonically increasing per bank account.
func buildIdentifierTriplet(account *domain.BankAccount, counter int64) identifierTriplet {
	ts := fmt.Sprintf("%x", account.CreatedAt.Unix())
	ctr := fmt.Sprintf("%x", counter)
	acct := fmt.Sprintf("%x", account.ID[:4])
	build := func(role string) string {
		return fmt.Sprintf("leuf-%s-%s-%s-%s", role, ts, ctr, acct)
	}
	return identifierTriplet{
		endToEnd:    build("e2e"),
		message:     build("msg"),
		paymentInfo: build("pmt"),
		instruction: build("instr"),
	}
}

// Submit builds and uploads a pain.001 document for every unsubmitted,
// non-invalid PaymentInitiation of bankAccountID. A submission failure on
// one initiation does not block the others.
func (s *InitiationServiceImpl) Submit(ctx context.Context, bankAccountID uuid.UUID) error {
	account, err := s.accountRepo.GetByID(ctx, bankAccountID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("loading bank account: %w", err))
	}
	if account == nil {
		return apperror.ErrNotFound("bank account")
	}
	if account.DefaultConnectionID == nil {
		return apperror.ErrConnectionNotReady()
	}

	conn, err := s.connRepo.GetByID(ctx, *account.DefaultConnectionID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("loading bank connection: %w", err))
	}
	if conn == nil || !conn.KeysConfirmed {
		return apperror.ErrKeysNotConfirmed()
	}

	sub, err := s.subRepo.GetByConnectionID(ctx, conn.ID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("loading subscriber: %w", err))
	}
	if sub == nil || !sub.Ready() {
		return apperror.ErrConnectionNotReady()
	}

	pending, err := s.initRepo.ListUnsubmitted(ctx, bankAccountID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("listing unsubmitted initiations: %w", err))
	}

	for i := range pending {
		init := &pending[i]
		if init.Invalid {
			continue
		}
		if err := s.submitOne(ctx, sub, account, init); err != nil {
			s.log.Error().Err(err).Str("initiation_id", init.ID.String()).Msg("initiation: submission failed")
		}
	}
	return nil
}

func (s *InitiationServiceImpl) submitOne(ctx context.Context, sub *domain.EbicsSubscriber, account *domain.BankAccount, init *domain.PaymentInitiation) error {
	orderData, err := s.isoSvc.BuildPain001(sub.Dialect, init, *account)
	if err != nil {
		if markErr := s.initRepo.MarkInvalid(ctx, init.ID); markErr != nil {
			s.log.Error().Err(markErr).Msg("initiation: failed to mark invalid")
		}
		return fmt.Errorf("building pain.001 for %s: %w", init.ID, err)
	}

	// Persist the advanced order ID counter before the wire request, so a
	// later submission never reuses this upload's order ID.
	persisted := *sub
	persisted.NextOrderID++
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck
	if err := s.subRepo.Update(ctx, dbTx, &persisted); err != nil {
		return apperror.InternalError(fmt.Errorf("persisting order id counter: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("committing order id counter: %w", err))
	}

	if _, err := s.ebicsClient.Upload(ctx, sub, ports.UploadRequest{OrderData: orderData}); err != nil {
		return fmt.Errorf("uploading pain.001 for %s: %w", init.ID, err)
	}

	if err := s.initRepo.MarkSubmitted(ctx, init.ID, s.clock.Now()); err != nil {
		return apperror.InternalError(fmt.Errorf("marking initiation submitted: %w", err))
	}
	return nil
}

// HandleIngested matches a freshly ingested debit entry against a
// previously submitted PaymentInitiation sharing the same
// PaymentInformationID and links them. Registered
// with the FacadeBus at wiring time; errors are logged, not returned,
// since ingestion must not be blocked by a confirmation-matching failure.
func (s *InitiationServiceImpl) HandleIngested(ctx context.Context, entry *domain.BankTransactionEntry) {
	if entry.CreditDebitIndicator != domain.CreditDebitIndicatorDebit {
		return
	}

	var canonical domain.CanonicalEntry
	if err := json.Unmarshal(entry.TransactionJSON, &canonical); err != nil {
		s.log.Warn().Err(err).Str("entry_id", entry.ID.String()).Msg("initiation: could not decode entry for confirmation matching")
		return
	}
	if canonical.PaymentInformationID == "" {
		return
	}

	init, err := s.initRepo.GetByPaymentInformationID(ctx, entry.BankAccountID, canonical.PaymentInformationID)
	if err != nil {
		s.log.Error().Err(err).Msg("initiation: confirmation lookup failed")
		return
	}
	if init == nil || init.ConfirmationTransactionID != nil {
		return
	}

	if err := s.initRepo.LinkConfirmation(ctx, init.ID, entry.ID); err != nil {
		s.log.Error().Err(err).Str("initiation_id", init.ID.String()).Msg("initiation: failed to link confirmation")
	}
}

// Get returns a payment initiation by ID.
func (s *InitiationServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.PaymentInitiation, error) {
	init, err := s.initRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("loading initiation: %w", err))
	}
	if init == nil {
		return nil, apperror.ErrNotFound("payment initiation")
	}
	return init, nil
}
