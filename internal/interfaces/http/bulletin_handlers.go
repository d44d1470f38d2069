package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/store-ops/internal/application/service"
	"github.com/garyjia/store-ops/internal/domain/entity"
)

type textRequest struct {
	Text string `json:"text" binding:"required"`
}

// ListBulletinsRequest represents query parameters for listing documents
type ListBulletinsRequest struct {
	From string `form:"from"`
	To   string `form:"to"`
}

// ListBulletins handles GET /api/bulletins?from=YYYY-MM-DD&to=YYYY-MM-DD.
// Without a range it returns the current week Monday to Saturday.
func (h *Handlers) ListBulletins(c *gin.Context) {
	var req ListBulletinsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	today := entity.DayOf(time.Now())
	offset := (int(today.Weekday()) + 6) % 7
	from := today.AddDate(0, 0, -offset)
	to := from.AddDate(0, 0, 5)

	var err error
	if req.From != "" {
		if from, err = time.Parse("2006-01-02", req.From); err != nil {
			badRequest(c, "from must be YYYY-MM-DD")
			return
		}
	}
	if req.To != "" {
		if to, err = time.Parse("2006-01-02", req.To); err != nil {
			badRequest(c, "to must be YYYY-MM-DD")
			return
		}
	}

	docs, err := h.bulletins.List(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, "list documents", err)
		return
	}
	if docs == nil {
		docs = []*entity.Document{}
	}
	ok(c, docs)
}

// GetBulletin handles GET /api/bulletins/:day
func (h *Handlers) GetBulletin(c *gin.Context) {
	day, valid := parseDay(c)
	if !valid {
		return
	}
	doc, err := h.bulletins.Get(c.Request.Context(), day)
	if err != nil {
		h.fail(c, "get document", err)
		return
	}
	ok(c, doc)
}

// UploadBulletinPage handles POST /api/bulletins/:day/pages
func (h *Handlers) UploadBulletinPage(c *gin.Context) {
	day, valid := parseDay(c)
	if !valid {
		return
	}
	data, filename, err := readUpload(c)
	if err != nil {
		h.fail(c, "read upload", err)
		return
	}

	result, err := h.bulletins.ProcessUpload(c.Request.Context(), day, filename, data)
	if err != nil {
		h.failWith(c, "process bulletin upload", err, partial(result))
		return
	}
	ok(c, result)
}

// SubmitBulletinText handles POST /api/bulletins/:day/text
func (h *Handlers) SubmitBulletinText(c *gin.Context) {
	day, valid := parseDay(c)
	if !valid {
		return
	}
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "text is required")
		return
	}

	result, err := h.bulletins.ProcessText(c.Request.Context(), day, req.Text)
	if err != nil {
		h.failWith(c, "process bulletin text", err, partial(result))
		return
	}
	ok(c, result)
}

// ToggleBulletinBlock handles POST /api/bulletins/:day/blocks/:position/toggle
func (h *Handlers) ToggleBulletinBlock(c *gin.Context) {
	day, valid := parseDay(c)
	if !valid {
		return
	}
	position, err := strconv.Atoi(c.Param("position"))
	if err != nil {
		badRequest(c, "invalid position")
		return
	}

	block, err := h.bulletins.ToggleBlock(c.Request.Context(), day, position)
	if err != nil {
		h.fail(c, "toggle block", err)
		return
	}
	ok(c, block)
}

// DeleteBulletin handles DELETE /api/documents/:id
func (h *Handlers) DeleteBulletin(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	if err := h.bulletins.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, "delete document", err)
		return
	}
	ok(c, gin.H{"id": id})
}

// RepairDuplicateDays handles POST /api/maintenance/repair-days
func (h *Handlers) RepairDuplicateDays(c *gin.Context) {
	report, err := h.bulletins.RepairDuplicateDays(c.Request.Context())
	if err != nil {
		h.fail(c, "repair duplicate days", err)
		return
	}
	ok(c, report)
}

// partial keeps a result only when some pages were stored before the failure
func partial(result *service.BulletinResult) interface{} {
	if result == nil || len(result.Pages) == 0 {
		return nil
	}
	return result
}
