package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/store-ops/internal/domain/entity"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type startSessionRequest struct {
	Year int `json:"year"`
	Week int `json:"week"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type totalRequest struct {
	Total *int `json:"total" binding:"required"`
}

// StartScanSession handles POST /api/returns/sessions. An empty body starts a session for the current week.
func (h *Handlers) StartScanSession(c *gin.Context) {
	var req startSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	week := entity.WeekOf(time.Now())
	if req.Year != 0 || req.Week != 0 {
		week = entity.WeekKey{Year: req.Year, Week: req.Week}
	}

	sess, err := h.returns.StartSession(week)
	if err != nil {
		h.fail(c, "start scan session", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: sess})
}

// GetScanSession handles GET /api/returns/sessions/:id
func (h *Handlers) GetScanSession(c *gin.Context) {
	sess, err := h.returns.Session(c.Param("id"))
	if err != nil {
		h.fail(c, "get scan session", err)
		return
	}
	ok(c, sess)
}

// UploadScanPage handles POST /api/returns/sessions/:id/pages
func (h *Handlers) UploadScanPage(c *gin.Context) {
	data, filename, err := readUpload(c)
	if err != nil {
		h.fail(c, "read upload", err)
		return
	}

	report, err := h.returns.AddUpload(c.Request.Context(), c.Param("id"), filename, data)
	if err != nil {
		var data interface{}
		if report != nil && report.Pages > 0 {
			data = report
		}
		h.failWith(c, "add scan page", err, data)
		return
	}
	ok(c, report)
}

// SubmitScanText handles POST /api/returns/sessions/:id/text
func (h *Handlers) SubmitScanText(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "text is required")
		return
	}

	report, err := h.returns.AddText(c.Request.Context(), c.Param("id"), req.Text)
	if err != nil {
		h.fail(c, "add scan text", err)
		return
	}
	ok(c, report)
}

// CancelScan handles POST /api/returns/sessions/:id/cancel
func (h *Handlers) CancelScan(c *gin.Context) {
	if err := h.returns.Cancel(c.Param("id")); err != nil {
		h.fail(c, "cancel scan", err)
		return
	}
	ok(c, gin.H{"id": c.Param("id")})
}

// DiscardScan handles DELETE /api/returns/sessions/:id
func (h *Handlers) DiscardScan(c *gin.Context) {
	if err := h.returns.Discard(c.Param("id")); err != nil {
		h.fail(c, "discard scan", err)
		return
	}
	ok(c, gin.H{"id": c.Param("id")})
}

// CommitScan handles POST /api/returns/sessions/:id/commit
func (h *Handlers) CommitScan(c *gin.Context) {
	report, err := h.returns.Commit(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "commit scan session", err)
		return
	}
	ok(c, report)
}

// ListWeek handles GET /api/returns/weeks/:year/:week
func (h *Handlers) ListWeek(c *gin.Context) {
	week, valid := parseWeek(c)
	if !valid {
		return
	}
	manifests, err := h.returns.ListWeek(c.Request.Context(), week)
	if err != nil {
		h.fail(c, "list manifests", err)
		return
	}
	if manifests == nil {
		manifests = []*entity.DocumentManifest{}
	}
	ok(c, manifests)
}

// ExportWeek handles GET /api/returns/weeks/:year/:week/export
func (h *Handlers) ExportWeek(c *gin.Context) {
	week, valid := parseWeek(c)
	if !valid {
		return
	}

	var buf bytes.Buffer
	if err := h.returns.ExportWeek(c.Request.Context(), week, &buf); err != nil {
		h.fail(c, "export week", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="visszakuldes-%s.xlsx"`, week))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// GetManifest handles GET /api/returns/manifests/:id
func (h *Handlers) GetManifest(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	m, err := h.returns.GetManifest(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get manifest", err)
		return
	}
	ok(c, m)
}

// RecordFound handles POST /api/returns/manifests/:id/items/:code/found
func (h *Handlers) RecordFound(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "quantity is required")
		return
	}

	res, err := h.returns.RecordFound(c.Request.Context(), id, c.Param("code"), *req.Quantity)
	if err != nil {
		h.fail(c, "record found quantity", err)
		return
	}
	ok(c, res)
}

// SetTotal handles PUT /api/returns/manifests/:id/items/:code/total
func (h *Handlers) SetTotal(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req totalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "total is required")
		return
	}

	res, err := h.returns.SetTotal(c.Request.Context(), id, c.Param("code"), *req.Total)
	if err != nil {
		h.fail(c, "set total", err)
		return
	}
	ok(c, res)
}

// DeleteFoundEvent handles DELETE /api/returns/manifests/:id/items/:code/found/:index
func (h *Handlers) DeleteFoundEvent(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "invalid index")
		return
	}

	res, err := h.returns.DeleteEvent(c.Request.Context(), id, c.Param("code"), index)
	if err != nil {
		h.fail(c, "delete found event", err)
		return
	}
	ok(c, res)
}

// ToggleCollected handles POST /api/returns/manifests/:id/items/:code/toggle
func (h *Handlers) ToggleCollected(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	res, err := h.returns.ToggleCollected(c.Request.Context(), id, c.Param("code"))
	if err != nil {
		h.fail(c, "toggle collected", err)
		return
	}
	ok(c, res)
}
