package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/store-ops/internal/extraction"
)

type imageRequest struct {
	ImageBase64 string `json:"image_base64"`
}

type bulletinImageResponse struct {
	Success bool                     `json:"success"`
	Blocks  []extraction.VisionBlock `json:"blocks"`
	Usage   extraction.Usage         `json:"usage"`
}

type manifestImageResponse struct {
	Success  bool                           `json:"success"`
	Items    []extraction.VisionLineItem    `json:"termekek"`
	Warnings []extraction.ValidationWarning `json:"warnings,omitempty"`
	Usage    extraction.Usage               `json:"usage"`
}

func (h *Handlers) readImage(c *gin.Context) ([]byte, error) {
	var req imageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, bindError(err)
	}
	return decodeBase64(req.ImageBase64)
}

// ProcessBulletinImage handles POST /api/process-napi-info
func (h *Handlers) ProcessBulletinImage(c *gin.Context) {
	data, err := h.readImage(c)
	if err != nil {
		h.failPassthrough(c, err)
		return
	}

	res, err := h.extraction.ExtractBulletin(c.Request.Context(), data)
	if err != nil {
		h.failPassthrough(c, err)
		return
	}
	h.logger.Info("Daily info extracted",
		zap.Int("blocks", len(res.Blocks)),
		zap.Int("input_tokens", res.Usage.InputTokens),
		zap.Int("output_tokens", res.Usage.OutputTokens))

	c.JSON(http.StatusOK, bulletinImageResponse{Success: true, Blocks: res.Blocks, Usage: res.Usage})
}

// ProcessManifestImage handles POST /api/process-nf-visszakuldes
func (h *Handlers) ProcessManifestImage(c *gin.Context) {
	data, err := h.readImage(c)
	if err != nil {
		h.failPassthrough(c, err)
		return
	}

	res, err := h.extraction.ExtractManifest(c.Request.Context(), data)
	if err != nil {
		h.failPassthrough(c, err)
		return
	}
	h.logger.Info("Nonfood return extracted",
		zap.Int("items", len(res.Items)),
		zap.Int("warnings", len(res.Warnings)),
		zap.Int("input_tokens", res.Usage.InputTokens),
		zap.Int("output_tokens", res.Usage.OutputTokens))

	c.JSON(http.StatusOK, manifestImageResponse{
		Success:  true,
		Items:    res.Items,
		Warnings: res.Warnings,
		Usage:    res.Usage,
	})
}

// failPassthrough writes {success:false, error, details}, with details naming the vision status when known
func (h *Handlers) failPassthrough(c *gin.Context, err error) {
	status := statusFor(err)
	det := details(err)
	if det == "" {
		det = "Unknown error"
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Extraction failed", zap.Int("status", status), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, Response{Success: false, Error: err.Error(), Details: det})
}
