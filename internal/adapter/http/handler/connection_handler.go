package handler

import (
	"github.com/leuf-systems/nexus/internal/adapter/http/dto"
	"github.com/leuf-systems/nexus/internal/adapter/http/middleware"
	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/core/ports"
	"github.com/leuf-systems/nexus/pkg/apperror"
	"github.com/leuf-systems/nexus/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ConnectionHandler exposes the operator-facing bank connection lifecycle:
// creation, INI/HIA/HPB key exchange, key confirmation, and account
// discovery/import.
type ConnectionHandler struct {
	connSvc ports.ConnectionService
}

// NewConnectionHandler creates a new ConnectionHandler.
func NewConnectionHandler(connSvc ports.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{connSvc: connSvc}
}

// Create handles POST /api/v1/bank-connections.
func (h *ConnectionHandler) Create(c *gin.Context) {
	var req dto.CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	dialect := domain.EbicsDialectH004
	if req.Data.Dialect == string(domain.EbicsDialectH005) {
		dialect = domain.EbicsDialectH005
	}

	ownerID := currentAPIUserID(c)
	conn, err := h.connSvc.CreateConnection(c.Request.Context(), req.Name, dialect,
		req.Data.EbicsURL, req.Data.HostID, req.Data.PartnerID, req.Data.UserID, ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, connectionResponse(conn))
}

// Connect handles POST /api/v1/bank-connections/{n}/connect: runs
// INI -> HIA -> HPB in sequence, stopping at the first failure.
func (h *ConnectionHandler) Connect(c *gin.Context) {
	connID, err := parseUUIDParam(c, "n")
	if err != nil {
		response.Error(c, err)
		return
	}
	ctx := c.Request.Context()

	if err := h.connSvc.SendINI(ctx, connID); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.connSvc.SendHIA(ctx, connID); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.connSvc.FetchHPB(ctx, connID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"status": "connected"})
}

// ConfirmKeys handles POST /api/v1/bank-connections/{n}/confirm-bank-keys.
func (h *ConnectionHandler) ConfirmKeys(c *gin.Context) {
	connID, err := parseUUIDParam(c, "n")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.connSvc.ConfirmKeys(c.Request.Context(), connID); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"status": "confirmed"})
}

// FetchAccounts handles POST /api/v1/bank-connections/{n}/fetch-accounts.
func (h *ConnectionHandler) FetchAccounts(c *gin.Context) {
	connID, err := parseUUIDParam(c, "n")
	if err != nil {
		response.Error(c, err)
		return
	}
	offered, err := h.connSvc.DiscoverAccounts(c.Request.Context(), connID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.OfferedAccountResponse, 0, len(offered))
	for _, o := range offered {
		items = append(items, offeredAccountResponse(o))
	}
	response.OK(c, gin.H{"items": items})
}

// ImportAccount handles POST /api/v1/bank-connections/{n}/import-account.
func (h *ConnectionHandler) ImportAccount(c *gin.Context) {
	if _, err := parseUUIDParam(c, "n"); err != nil {
		response.Error(c, err)
		return
	}

	var req dto.ImportAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	offeredID, err := uuid.Parse(req.OfferedAccountID)
	if err != nil {
		response.Error(c, apperror.Validation("offeredAccountId must be a UUID"))
		return
	}

	account, err := h.connSvc.ImportAccount(c.Request.Context(), offeredID, req.Label)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, bankAccountResponse(account))
}

func connectionResponse(conn *domain.BankConnection) dto.ConnectionResponse {
	return dto.ConnectionResponse{
		ID:            conn.ID.String(),
		Name:          conn.Name,
		Type:          string(conn.Type),
		Dialect:       string(conn.Dialect),
		KeysConfirmed: conn.KeysConfirmed,
		CreatedAt:     conn.CreatedAt.Format(timeFormat),
	}
}

func offeredAccountResponse(o domain.OfferedBankAccount) dto.OfferedAccountResponse {
	resp := dto.OfferedAccountResponse{
		ID:              o.ID.String(),
		RemoteAccountID: o.RemoteAccountID,
		IBAN:            o.IBAN,
		BIC:             o.BIC,
		HolderName:      o.HolderName,
	}
	if o.ImportedBankAccountID != nil {
		s := o.ImportedBankAccountID.String()
		resp.ImportedBankAccountID = &s
	}
	return resp
}

func bankAccountResponse(a *domain.BankAccount) dto.BankAccountResponse {
	return dto.BankAccountResponse{
		ID:         a.ID.String(),
		Label:      a.Label,
		HolderName: a.HolderName,
		IBAN:       a.IBAN,
		BIC:        a.BIC,
	}
}

// parseUUIDParam parses gin path parameter name as a uuid.UUID, returning a
// validation AppError on failure.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.UUID{}, apperror.Validation(name + " must be a UUID")
	}
	return id, nil
}

// currentAPIUserID reads the authenticated caller's id set by
// middleware.BasicAuth.
func currentAPIUserID(c *gin.Context) uuid.UUID {
	v, ok := c.Get(middleware.CtxAPIUserID)
	if !ok {
		return uuid.UUID{}
	}
	id, _ := v.(uuid.UUID)
	return id
}

const timeFormat = "2006-01-02T15:04:05Z07:00"
