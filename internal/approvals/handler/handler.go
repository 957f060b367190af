package handler

import (
	"errors"
	"io"
	"net/http"

	"procurement_backend/internal/approvals/service"
	"procurement_backend/internal/approvals/transport"
	"procurement_backend/platform/httpkit"
	"procurement_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest    = "invalid request"
	msgValidationFailed  = "validation failed"
	msgInvalidQuoteID    = "invalid quote id"
	msgInvalidResponseID = "invalid response id"
	msgInvalidApprovalID = "invalid approval id"
)

// Handler handles award and approval HTTP requests.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new approvals handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterQuoteRoutes mounts the award route under /quotes.
func (h *Handler) RegisterQuoteRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/responses/:responseId/award", h.Award)
}

// RegisterRoutes mounts the approval routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/decision", h.Decide)
}

func (h *Handler) Award(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	tenantID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}
	quoteID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidQuoteID, nil)
		return
	}
	responseID, err := uuid.Parse(c.Param("responseId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidResponseID, nil)
		return
	}

	var req transport.AwardRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Details(err))
		return
	}

	result, err := h.svc.SelectProposalForAward(c.Request.Context(), tenantID, identity.UserID(), quoteID, responseID, req.Comments)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Decide(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	tenantID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}
	approvalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidApprovalID, nil)
		return
	}

	var req transport.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Details(err))
		return
	}

	result, err := h.svc.DecideApproval(c.Request.Context(), tenantID, identity.UserID(), approvalID, *req.Approve, req.Comments)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
