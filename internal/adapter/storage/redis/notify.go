package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Notifier wakes long-polling GET /transactions callers as soon as the
// ledger service ingests a new entry, instead of making every open request
// re-poll Postgres on a timer.
type Notifier struct {
	client *goredis.Client
	prefix string
}

// NewNotifier creates a new Redis-backed Notifier.
func NewNotifier(client *goredis.Client) *Notifier {
	return &Notifier{client: client, prefix: "tx-notify:"}
}

func (n *Notifier) channel(bankAccountID uuid.UUID) string {
	return n.prefix + bankAccountID.String()
}

// Publish announces that bankAccountID has new transaction entries.
func (n *Notifier) Publish(ctx context.Context, bankAccountID uuid.UUID) error {
	if err := n.client.Publish(ctx, n.channel(bankAccountID), "1").Err(); err != nil {
		return fmt.Errorf("redis publish transaction notification: %w", err)
	}
	return nil
}

// Wait blocks until bankAccountID receives a notification, the timeout
// elapses, or ctx is cancelled. It returns true only when a notification
// arrived before the timeout; the caller should re-query the ledger
// regardless, since a notification and a caller's poll can race.
func (n *Notifier) Wait(ctx context.Context, bankAccountID uuid.UUID, timeout time.Duration) (bool, error) {
	sub := n.client.Subscribe(ctx, n.channel(bankAccountID))
	defer sub.Close()

	// Confirm the subscription is live before the caller proceeds, so a
	// Publish racing this call is never missed.
	if _, err := sub.Receive(ctx); err != nil {
		return false, fmt.Errorf("redis subscribe transaction notification: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-sub.Channel():
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
