package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leuf-systems/nexus/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InitiationRepo implements ports.PaymentInitiationRepository.
type InitiationRepo struct {
	pool Pool
}

// NewInitiationRepo creates a new InitiationRepo.
func NewInitiationRepo(pool Pool) *InitiationRepo {
	return &InitiationRepo{pool: pool}
}

const initiationColumns = `id, bank_account_id, prepared_at, submitted_at, submitted, invalid,
	amount, currency, subject, creditor_iban, creditor_bic, creditor_name,
	end_to_end_id, message_id, payment_information_id, instruction_id, uid, confirmation_transaction_id`

// Create inserts a new payment initiation. It writes through the pool, not
// through a caller's transaction, so the insert commits on its own,
// separately from the bank account's pain001_counter bump.
func (r *InitiationRepo) Create(ctx context.Context, p *domain.PaymentInitiation) error {
	query := `INSERT INTO payment_initiations (` + initiationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.BankAccountID, p.PreparedAt, p.SubmittedAt, p.Submitted, p.Invalid,
		p.Amount, p.Currency, p.Subject, p.Creditor.IBAN, p.Creditor.BIC, p.Creditor.Name,
		p.EndToEndID, p.MessageID, p.PaymentInformationID, p.InstructionID, p.UID, p.ConfirmationTransactionID,
	)
	if err != nil {
		return fmt.Errorf("insert payment initiation: %w", err)
	}
	return nil
}

// GetByID fetches a payment initiation by UUID.
func (r *InitiationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentInitiation, error) {
	query := `SELECT ` + initiationColumns + ` FROM payment_initiations WHERE id = $1`
	return r.scan(r.pool.QueryRow(ctx, query, id))
}

// GetByUID looks up a previously created initiation by its client-supplied
// idempotency key.
func (r *InitiationRepo) GetByUID(ctx context.Context, bankAccountID uuid.UUID, uid string) (*domain.PaymentInitiation, error) {
	query := `SELECT ` + initiationColumns + ` FROM payment_initiations WHERE bank_account_id = $1 AND uid = $2`
	return r.scan(r.pool.QueryRow(ctx, query, bankAccountID, uid))
}

// GetByPaymentInformationID looks up an initiation by the identifier its
// own outgoing pain.001 carried, for confirmation matching.
func (r *InitiationRepo) GetByPaymentInformationID(ctx context.Context, bankAccountID uuid.UUID, paymentInformationID string) (*domain.PaymentInitiation, error) {
	query := `SELECT ` + initiationColumns + ` FROM payment_initiations WHERE bank_account_id = $1 AND payment_information_id = $2`
	return r.scan(r.pool.QueryRow(ctx, query, bankAccountID, paymentInformationID))
}

// ListUnsubmitted fetches every initiation for bankAccountID that has not
// yet been submitted.
func (r *InitiationRepo) ListUnsubmitted(ctx context.Context, bankAccountID uuid.UUID) ([]domain.PaymentInitiation, error) {
	query := `SELECT ` + initiationColumns + ` FROM payment_initiations
		WHERE bank_account_id = $1 AND submitted = FALSE ORDER BY prepared_at ASC`

	rows, err := r.pool.Query(ctx, query, bankAccountID)
	if err != nil {
		return nil, fmt.Errorf("list unsubmitted initiations: %w", err)
	}
	defer rows.Close()

	var out []domain.PaymentInitiation
	for rows.Next() {
		p, err := scanInitiationRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate initiation rows: %w", err)
	}
	return out, nil
}

// MarkSubmitted flags an initiation as submitted at submittedAt.
func (r *InitiationRepo) MarkSubmitted(ctx context.Context, id uuid.UUID, submittedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE payment_initiations SET submitted = TRUE, submitted_at = $1 WHERE id = $2`, submittedAt, id)
	if err != nil {
		return fmt.Errorf("mark initiation submitted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment initiation not found: %s", id)
	}
	return nil
}

// MarkInvalid flags an initiation as invalid (e.g. pain.001 build failed)
// so Submit stops retrying it.
func (r *InitiationRepo) MarkInvalid(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE payment_initiations SET invalid = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark initiation invalid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment initiation not found: %s", id)
	}
	return nil
}

// LinkConfirmation sets the ingested entry that confirms an initiation.
func (r *InitiationRepo) LinkConfirmation(ctx context.Context, id uuid.UUID, entryID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE payment_initiations SET confirmation_transaction_id = $1 WHERE id = $2`, entryID, id)
	if err != nil {
		return fmt.Errorf("link initiation confirmation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment initiation not found: %s", id)
	}
	return nil
}

func (r *InitiationRepo) scan(row pgx.Row) (*domain.PaymentInitiation, error) {
	p := &domain.PaymentInitiation{}
	err := row.Scan(
		&p.ID, &p.BankAccountID, &p.PreparedAt, &p.SubmittedAt, &p.Submitted, &p.Invalid,
		&p.Amount, &p.Currency, &p.Subject, &p.Creditor.IBAN, &p.Creditor.BIC, &p.Creditor.Name,
		&p.EndToEndID, &p.MessageID, &p.PaymentInformationID, &p.InstructionID, &p.UID, &p.ConfirmationTransactionID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment initiation: %w", err)
	}
	return p, nil
}

func scanInitiationRow(row scanRows) (*domain.PaymentInitiation, error) {
	p := &domain.PaymentInitiation{}
	err := row.Scan(
		&p.ID, &p.BankAccountID, &p.PreparedAt, &p.SubmittedAt, &p.Submitted, &p.Invalid,
		&p.Amount, &p.Currency, &p.Subject, &p.Creditor.IBAN, &p.Creditor.BIC, &p.Creditor.Name,
		&p.EndToEndID, &p.MessageID, &p.PaymentInformationID, &p.InstructionID, &p.UID, &p.ConfirmationTransactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("scan payment initiation row: %w", err)
	}
	return p, nil
}
