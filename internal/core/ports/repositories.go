package ports

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// DBTransactor provides database transaction management shared by every
// service that needs more than one repository call inside a single
// pessimistic-locking transaction.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
