package handler

import (
	"github.com/leuf-systems/nexus/internal/adapter/http/dto"
	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/core/ports"
	"github.com/leuf-systems/nexus/pkg/apperror"
	"github.com/leuf-systems/nexus/pkg/response"

	"github.com/gin-gonic/gin"
)

// InitiationHandler exposes outgoing payment initiation creation and
// submission.
type InitiationHandler struct {
	initSvc ports.InitiationService
}

// NewInitiationHandler creates a new InitiationHandler.
func NewInitiationHandler(initSvc ports.InitiationService) *InitiationHandler {
	return &InitiationHandler{initSvc: initSvc}
}

// Create handles POST /api/v1/bank-accounts/{a}/payment-initiations.
func (h *InitiationHandler) Create(c *gin.Context) {
	bankAccountID, err := parseUUIDParam(c, "a")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.CreateInitiationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	creditor := domain.Creditor{IBAN: req.IBAN, Name: req.Name}
	if req.BIC != nil {
		creditor.BIC = *req.BIC
	}

	init, err := h.initSvc.Create(c.Request.Context(), ports.CreateInitiationRequest{
		BankAccountID: bankAccountID,
		Amount:        req.Amount,
		Currency:      "EUR",
		Subject:       req.Subject,
		Creditor:      creditor,
		UID:           req.UID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, initiationResponse(init))
}

// Submit handles POST /api/v1/bank-accounts/{a}/payment-initiations/{uuid}/submit.
// It submits every pending initiation on the bank account since the EBICS
// upload transaction is account-scoped, not per-initiation; the path id is
// validated but Submit's effect always covers the whole account.
func (h *InitiationHandler) Submit(c *gin.Context) {
	bankAccountID, err := parseUUIDParam(c, "a")
	if err != nil {
		response.Error(c, err)
		return
	}
	if _, err := parseUUIDParam(c, "uuid"); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.initSvc.Submit(c.Request.Context(), bankAccountID); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"status": "submitted"})
}

// SubmitAll handles POST /api/v1/bank-accounts/{a}/submit-all-payment-initiations.
func (h *InitiationHandler) SubmitAll(c *gin.Context) {
	bankAccountID, err := parseUUIDParam(c, "a")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.initSvc.Submit(c.Request.Context(), bankAccountID); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"status": "submitted"})
}

// Get handles GET /api/v1/bank-accounts/{a}/payment-initiations/{uuid}.
func (h *InitiationHandler) Get(c *gin.Context) {
	id, err := parseUUIDParam(c, "uuid")
	if err != nil {
		response.Error(c, err)
		return
	}
	init, err := h.initSvc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, initiationResponse(init))
}

func initiationResponse(p *domain.PaymentInitiation) dto.InitiationResponse {
	resp := dto.InitiationResponse{
		ID:         p.ID.String(),
		IBAN:       p.Creditor.IBAN,
		BIC:        p.Creditor.BIC,
		Name:       p.Creditor.Name,
		Amount:     p.Amount,
		Subject:    p.Subject,
		Submitted:  p.Submitted,
		PreparedAt: p.PreparedAt.Format(timeFormat),
		EndToEndID: p.EndToEndID,
	}
	if p.SubmittedAt != nil {
		s := p.SubmittedAt.Format(timeFormat)
		resp.SubmittedAt = &s
	}
	return resp
}
