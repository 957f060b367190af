package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"procurement_backend/internal/negotiation/service"
	"procurement_backend/internal/negotiation/transport"
	"procurement_backend/platform/httpkit"
	"procurement_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest       = "invalid request"
	msgValidationFailed     = "validation failed"
	msgInvalidNegotiationID = "invalid negotiation id"
)

// Handler handles negotiation HTTP requests.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new negotiation handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the authenticated negotiation routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.Analyze)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/initiate", h.Initiate)
	rg.POST("/:id/approve", h.Approve)
	rg.POST("/:id/reject", h.Reject)
}

// RegisterWebhookRoutes mounts the chat gateway callback.
func (h *Handler) RegisterWebhookRoutes(rg *gin.RouterGroup) {
	rg.POST("/whatsapp", h.Webhook)
}

func (h *Handler) Analyze(c *gin.Context) {
	tenantID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}

	var req transport.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Details(err))
		return
	}

	result, err := h.svc.Analyze(c.Request.Context(), tenantID, req.QuoteID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Get(c *gin.Context) {
	tenantID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidNegotiationID, nil)
		return
	}

	result, err := h.svc.Get(c.Request.Context(), tenantID, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Initiate(c *gin.Context) {
	tenantID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidNegotiationID, nil)
		return
	}

	result, err := h.svc.Initiate(c.Request.Context(), tenantID, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Approve(c *gin.Context) {
	h.override(c, h.svc.Approve)
}

func (h *Handler) Reject(c *gin.Context) {
	h.override(c, h.svc.Reject)
}

type overrideFunc func(ctx context.Context, tenantID, actorID, negotiationID uuid.UUID, comments string) (*transport.NegotiationResponse, error)

func (h *Handler) override(c *gin.Context, fn overrideFunc) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	tenantID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidNegotiationID, nil)
		return
	}

	var req transport.OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Details(err))
		return
	}

	result, err := fn(c.Request.Context(), tenantID, identity.UserID(), id, req.Comments)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Webhook always answers 200 with what happened to the event, so the
// gateway never retries a delivery.
func (h *Handler) Webhook(c *gin.Context) {
	var payload transport.EvolutionWebhook
	if err := c.ShouldBindJSON(&payload); err != nil {
		httpkit.OK(c, transport.IngestResponse{Status: transport.IngestIgnored, Reason: "unreadable payload"})
		return
	}
	httpkit.OK(c, h.svc.Ingest(c.Request.Context(), payload))
}
