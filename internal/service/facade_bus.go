package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/core/ports"

	"github.com/rs/zerolog"
)

// InProcessFacadeBus implements ports.FacadeBus as a simple synchronous
// in-process fan-out: every handler runs on the publishing goroutine.
// Nexus only ever runs one facade (or none) in a given process, so a real
// message broker would add operational weight for no benefit.
type InProcessFacadeBus struct {
	mu       sync.RWMutex
	handlers []func(ctx context.Context, entry *domain.BankTransactionEntry)
	facades  map[string]ports.FacadeHooks
	log      zerolog.Logger
}

// NewInProcessFacadeBus constructs an InProcessFacadeBus.
func NewInProcessFacadeBus(log zerolog.Logger) *InProcessFacadeBus {
	return &InProcessFacadeBus{
		facades: make(map[string]ports.FacadeHooks),
		log:     log,
	}
}

var _ ports.FacadeBus = (*InProcessFacadeBus)(nil)

// OnIngested registers handler to run on every future PublishIngested call.
func (b *InProcessFacadeBus) OnIngested(handler func(ctx context.Context, entry *domain.BankTransactionEntry)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// PublishIngested runs every registered handler with entry. A handler
// panic is recovered and logged so one broken facade cannot take down
// ingestion for every other subscriber.
func (b *InProcessFacadeBus) PublishIngested(ctx context.Context, entry *domain.BankTransactionEntry) {
	b.mu.RLock()
	handlers := make([]func(ctx context.Context, entry *domain.BankTransactionEntry), len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.runHandler(ctx, h, entry)
	}
}

func (b *InProcessFacadeBus) runHandler(ctx context.Context, handler func(ctx context.Context, entry *domain.BankTransactionEntry), entry *domain.BankTransactionEntry) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Str("entry_id", entry.ID.String()).Msg("facade bus: handler panicked")
		}
	}()
	handler(ctx, entry)
}

// Register binds name to hooks, replacing any hooks previously registered
// under the same name.
func (b *InProcessFacadeBus) Register(name string, hooks ports.FacadeHooks) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.facades[name] = hooks
}

// SelectInitiationsFor calls the SelectInitiations hook facade registered,
// implementing select_initiations_for(facade). It returns an error if no
// facade by that name has registered, or if that facade never set the hook.
func (b *InProcessFacadeBus) SelectInitiationsFor(ctx context.Context, facade string) ([]domain.PaymentInitiation, error) {
	b.mu.RLock()
	hooks, ok := b.facades[facade]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("facade bus: no facade registered as %q", facade)
	}
	if hooks.SelectInitiations == nil {
		return nil, fmt.Errorf("facade bus: facade %q registered no SelectInitiations hook", facade)
	}
	return hooks.SelectInitiations(ctx)
}
