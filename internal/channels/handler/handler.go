package handler

import (
	"net/http"

	"procurement_backend/internal/channels/service"
	"procurement_backend/internal/channels/transport"
	"procurement_backend/platform/httpkit"
	"procurement_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts integration routes on an admin group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:kind", h.Get)
	rg.PUT("/:kind", h.Save)
}

func (h *Handler) Save(c *gin.Context) {
	var req transport.SaveIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Details(err))
		return
	}

	orgID, ok := scopeOrganization(c, req.Scope)
	if !ok {
		return
	}

	result, err := h.svc.Save(c.Request.Context(), orgID, c.Param("kind"), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Get(c *gin.Context) {
	orgID, ok := scopeOrganization(c, c.Query("scope"))
	if !ok {
		return
	}

	result, err := h.svc.Get(c.Request.Context(), orgID, c.Param("kind"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// scopeOrganization returns nil for the global scope and the caller's
// organization otherwise.
func scopeOrganization(c *gin.Context, scope string) (*uuid.UUID, bool) {
	if scope == "global" {
		return nil, true
	}
	tenantID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return nil, false
	}
	return &tenantID, true
}
