package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/leuf-systems/nexus/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EbicsSubscriberRepo implements ports.EbicsSubscriberRepository.
type EbicsSubscriberRepo struct {
	pool Pool
}

// NewEbicsSubscriberRepo creates a new EbicsSubscriberRepo.
func NewEbicsSubscriberRepo(pool Pool) *EbicsSubscriberRepo {
	return &EbicsSubscriberRepo{pool: pool}
}

const ebicsSubscriberColumns = `bank_connection_id, dialect, url, host_id, partner_id, user_id,
	sign_private_key_pem, auth_private_key_pem, enc_private_key_pem,
	bank_auth_public_key_pem, bank_enc_public_key_pem,
	ini_state, hia_state, next_order_id, pain001_counter`

// Create inserts the 1:1 subscriber row for a bank connection.
func (r *EbicsSubscriberRepo) Create(ctx context.Context, sub *domain.EbicsSubscriber) error {
	query := `INSERT INTO ebics_subscribers (` + ebicsSubscriberColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.pool.Exec(ctx, query,
		sub.BankConnectionID, sub.Dialect, sub.URL, sub.HostID, sub.PartnerID, sub.UserID,
		sub.SignPrivateKeyPEM, sub.AuthPrivateKeyPEM, sub.EncPrivateKeyPEM,
		sub.BankAuthPublicKeyPEM, sub.BankEncPublicKeyPEM,
		sub.IniState, sub.HiaState, sub.NextOrderID, sub.Pain001Counter,
	)
	if err != nil {
		return fmt.Errorf("insert ebics subscriber: %w", err)
	}
	return nil
}

// GetByConnectionID fetches a subscriber without locking.
func (r *EbicsSubscriberRepo) GetByConnectionID(ctx context.Context, connID uuid.UUID) (*domain.EbicsSubscriber, error) {
	query := `SELECT ` + ebicsSubscriberColumns + ` FROM ebics_subscribers WHERE bank_connection_id = $1`
	return r.scan(r.pool.QueryRow(ctx, query, connID))
}

// GetForUpdate fetches a subscriber row with pessimistic locking. Must be
// called within a transaction; callers hold the lock for the duration of
// one EBICS key-management or fetch/submit operation so NextOrderID and key
// state never race.
func (r *EbicsSubscriberRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, connID uuid.UUID) (*domain.EbicsSubscriber, error) {
	query := `SELECT ` + ebicsSubscriberColumns + ` FROM ebics_subscribers WHERE bank_connection_id = $1 FOR UPDATE`
	return r.scan(tx.QueryRow(ctx, query, connID))
}

// Update persists every mutable field of sub within a transaction.
func (r *EbicsSubscriberRepo) Update(ctx context.Context, tx pgx.Tx, sub *domain.EbicsSubscriber) error {
	query := `UPDATE ebics_subscribers SET
		bank_auth_public_key_pem = $1, bank_enc_public_key_pem = $2,
		ini_state = $3, hia_state = $4, next_order_id = $5, pain001_counter = $6
		WHERE bank_connection_id = $7`

	tag, err := tx.Exec(ctx, query,
		sub.BankAuthPublicKeyPEM, sub.BankEncPublicKeyPEM,
		sub.IniState, sub.HiaState, sub.NextOrderID, sub.Pain001Counter,
		sub.BankConnectionID,
	)
	if err != nil {
		return fmt.Errorf("update ebics subscriber: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ebics subscriber not found: %s", sub.BankConnectionID)
	}
	return nil
}

func (r *EbicsSubscriberRepo) scan(row pgx.Row) (*domain.EbicsSubscriber, error) {
	s := &domain.EbicsSubscriber{}
	err := row.Scan(
		&s.BankConnectionID, &s.Dialect, &s.URL, &s.HostID, &s.PartnerID, &s.UserID,
		&s.SignPrivateKeyPEM, &s.AuthPrivateKeyPEM, &s.EncPrivateKeyPEM,
		&s.BankAuthPublicKeyPEM, &s.BankEncPublicKeyPEM,
		&s.IniState, &s.HiaState, &s.NextOrderID, &s.Pain001Counter,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan ebics subscriber: %w", err)
	}
	return s, nil
}
