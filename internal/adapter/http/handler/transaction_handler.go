package handler

import (
	"strconv"
	"time"

	"github.com/leuf-systems/nexus/internal/adapter/http/dto"
	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/core/ports"
	"github.com/leuf-systems/nexus/pkg/apperror"
	"github.com/leuf-systems/nexus/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxTransactionWait bounds the ?wait= query parameter on ListTransactions
// so one slow client cannot hold a handler goroutine open indefinitely.
const maxTransactionWait = 30 * time.Second

// TransactionHandler exposes ingested bank transaction entries: triggering
// an EBICS fetch-and-ingest cycle and listing the result.
type TransactionHandler struct {
	ledgerSvc ports.LedgerService
	notifier  ports.TransactionNotifier // nil disables ?wait= long-polling
}

// NewTransactionHandler creates a new TransactionHandler. notifier may be
// nil, in which case ?wait= is accepted but has no effect.
func NewTransactionHandler(ledgerSvc ports.LedgerService, notifier ports.TransactionNotifier) *TransactionHandler {
	return &TransactionHandler{ledgerSvc: ledgerSvc, notifier: notifier}
}

// FetchTransactions handles POST /api/v1/bank-accounts/{a}/fetch-transactions.
func (h *TransactionHandler) FetchTransactions(c *gin.Context) {
	bankAccountID, err := parseUUIDParam(c, "a")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.FetchTransactionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	levels := []domain.FetchLevel{domain.FetchLevel(req.Level)}
	if req.Level == string(domain.FetchLevelAll) {
		levels = []domain.FetchLevel{domain.FetchLevelReport, domain.FetchLevelStatement, domain.FetchLevelNotification}
	}

	ctx := c.Request.Context()
	for _, level := range levels {
		if err := h.ledgerSvc.Fetch(ctx, bankAccountID, level, domain.RangeType(req.RangeType), req.Number); err != nil {
			response.Error(c, err)
			return
		}
	}
	response.OK(c, gin.H{"status": "fetched"})
}

// ListTransactions handles GET /api/v1/bank-accounts/{a}/transactions. It
// accepts an optional ?after=<uuid> cursor, ?limit= page size, and ?wait=
// seconds: when the initial query returns nothing new and wait>0, the
// request blocks on the transaction notifier until either a new entry
// arrives or wait elapses, then queries once more before responding.
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	bankAccountID, err := parseUUIDParam(c, "a")
	if err != nil {
		response.Error(c, err)
		return
	}

	var afterID *uuid.UUID
	if raw := c.Query("after"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(c, apperror.Validation("after must be a UUID"))
			return
		}
		afterID = &id
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.Error(c, apperror.Validation("limit must be a positive integer"))
			return
		}
		limit = n
	}

	wait := time.Duration(0)
	if raw := c.Query("wait"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.Error(c, apperror.Validation("wait must be a non-negative integer number of seconds"))
			return
		}
		wait = time.Duration(n) * time.Second
		if wait > maxTransactionWait {
			wait = maxTransactionWait
		}
	}

	ctx := c.Request.Context()
	entries, err := h.ledgerSvc.ListTransactions(ctx, bankAccountID, afterID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	if len(entries) == 0 && wait > 0 && h.notifier != nil {
		// Wait's own return value is ignored: a Publish can race this
		// call's subscription, so the only reliable signal is re-querying.
		if _, waitErr := h.notifier.Wait(ctx, bankAccountID, wait); waitErr != nil && ctx.Err() == nil {
			response.Error(c, apperror.InternalError(waitErr))
			return
		}
		entries, err = h.ledgerSvc.ListTransactions(ctx, bankAccountID, afterID, limit)
		if err != nil {
			response.Error(c, err)
			return
		}
	}

	items := make([]dto.TransactionEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.TransactionEntryResponse{
			ID:                   e.ID.String(),
			TransactionID:        e.TransactionID,
			CreditDebitIndicator: string(e.CreditDebitIndicator),
			Currency:             e.Currency,
			Amount:               e.Amount,
			Status:               string(e.Status),
			BookingDate:          e.BookingDate.Format(timeFormat),
		})
	}
	response.OK(c, dto.TransactionListResponse{Items: items})
}
