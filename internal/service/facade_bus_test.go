package service

import (
	"context"
	"testing"

	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/core/ports"
	"github.com/leuf-systems/nexus/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcessFacadeBus_PublishIngestedRunsAllHandlers(t *testing.T) {
	bus := NewInProcessFacadeBus(logger.New("error", false))

	var got1, got2 *domain.BankTransactionEntry
	bus.OnIngested(func(ctx context.Context, entry *domain.BankTransactionEntry) { got1 = entry })
	bus.OnIngested(func(ctx context.Context, entry *domain.BankTransactionEntry) { got2 = entry })

	entry := &domain.BankTransactionEntry{ID: uuid.New()}
	bus.PublishIngested(context.Background(), entry)

	assert.Same(t, entry, got1)
	assert.Same(t, entry, got2)
}

func TestInProcessFacadeBus_PublishIngestedRecoversHandlerPanic(t *testing.T) {
	bus := NewInProcessFacadeBus(logger.New("error", false))

	var ranAfterPanic bool
	bus.OnIngested(func(ctx context.Context, entry *domain.BankTransactionEntry) { panic("boom") })
	bus.OnIngested(func(ctx context.Context, entry *domain.BankTransactionEntry) { ranAfterPanic = true })

	assert.NotPanics(t, func() {
		bus.PublishIngested(context.Background(), &domain.BankTransactionEntry{ID: uuid.New()})
	})
	assert.True(t, ranAfterPanic)
}

func TestInProcessFacadeBus_SelectInitiationsForRegisteredFacade(t *testing.T) {
	bus := NewInProcessFacadeBus(logger.New("error", false))

	want := []domain.PaymentInitiation{{ID: uuid.New()}, {ID: uuid.New()}}
	bus.Register("taler", ports.FacadeHooks{
		SelectInitiations: func(ctx context.Context) ([]domain.PaymentInitiation, error) {
			return want, nil
		},
	})

	got, err := bus.SelectInitiationsFor(context.Background(), "taler")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestInProcessFacadeBus_SelectInitiationsForUnregisteredFacade(t *testing.T) {
	bus := NewInProcessFacadeBus(logger.New("error", false))

	_, err := bus.SelectInitiationsFor(context.Background(), "does-not-exist")
	assert.Error(t, err)
}

func TestInProcessFacadeBus_RegisterReplacesPriorHooks(t *testing.T) {
	bus := NewInProcessFacadeBus(logger.New("error", false))

	bus.Register("taler", ports.FacadeHooks{
		SelectInitiations: func(ctx context.Context) ([]domain.PaymentInitiation, error) {
			return []domain.PaymentInitiation{{ID: uuid.New()}}, nil
		},
	})
	want := []domain.PaymentInitiation{}
	bus.Register("taler", ports.FacadeHooks{
		SelectInitiations: func(ctx context.Context) ([]domain.PaymentInitiation, error) {
			return want, nil
		},
	})

	got, err := bus.SelectInitiationsFor(context.Background(), "taler")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
