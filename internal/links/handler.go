package links

import (
	"context"
	"net/http"

	"procurement_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// CodeResolver looks up the long URL behind a short code.
type CodeResolver interface {
	Resolve(ctx context.Context, code string) (string, error)
}

// Handler serves short-link redirects and their QR codes.
type Handler struct {
	resolver CodeResolver
}

func NewHandler(resolver CodeResolver) *Handler {
	return &Handler{resolver: resolver}
}

func (h *Handler) RegisterRoutes(rg gin.IRoutes) {
	rg.GET("/s/:code", h.Redirect)
	rg.GET("/s/:code/qr", h.QRCode)
}

func (h *Handler) Redirect(c *gin.Context) {
	target, err := h.resolver.Resolve(c.Request.Context(), c.Param("code"))
	if httpkit.HandleError(c, err) {
		return
	}
	c.Redirect(http.StatusFound, target)
}

func (h *Handler) QRCode(c *gin.Context) {
	target, err := h.resolver.Resolve(c.Request.Context(), c.Param("code"))
	if httpkit.HandleError(c, err) {
		return
	}

	png, err := qrcode.Encode(target, qrcode.Medium, qrSize)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "qr generation failed", nil)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, "image/png", png)
}
