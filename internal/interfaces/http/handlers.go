package http

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/store-ops/internal/application/port"
	"github.com/garyjia/store-ops/internal/application/service"
	"github.com/garyjia/store-ops/internal/domain/entity"
	"github.com/garyjia/store-ops/internal/domain/ledger"
	"github.com/garyjia/store-ops/internal/extraction"
)

// BulletinAPI is the bulletin service as used by the handlers
type BulletinAPI interface {
	ProcessUpload(ctx context.Context, day time.Time, filename string, data []byte) (*service.BulletinResult, error)
	ProcessText(ctx context.Context, day time.Time, text string) (*service.BulletinResult, error)
	Get(ctx context.Context, day time.Time) (*entity.Document, error)
	List(ctx context.Context, from, to time.Time) ([]*entity.Document, error)
	ToggleBlock(ctx context.Context, day time.Time, position int) (*entity.BulletinBlock, error)
	Delete(ctx context.Context, id int64) error
	RepairDuplicateDays(ctx context.Context) (*service.DayRepairReport, error)
}

// ReturnsAPI is the returns service as used by the handlers
type ReturnsAPI interface {
	StartSession(week entity.WeekKey) (*service.SessionSnapshot, error)
	Session(id string) (*service.SessionSnapshot, error)
	AddUpload(ctx context.Context, id, filename string, data []byte) (*service.PageReport, error)
	AddText(ctx context.Context, id, text string) (*service.PageReport, error)
	Cancel(id string) error
	Discard(id string) error
	Commit(ctx context.Context, id string) (*service.CommitReport, error)
	ListWeek(ctx context.Context, week entity.WeekKey) ([]*entity.DocumentManifest, error)
	GetManifest(ctx context.Context, id int64) (*entity.DocumentManifest, error)
	RecordFound(ctx context.Context, manifestID int64, code string, qty int) (*service.LedgerResult, error)
	SetTotal(ctx context.Context, manifestID int64, code string, total int) (*service.LedgerResult, error)
	DeleteEvent(ctx context.Context, manifestID int64, code string, index int) (*service.LedgerResult, error)
	ToggleCollected(ctx context.Context, manifestID int64, code string) (*service.LedgerResult, error)
	ExportWeek(ctx context.Context, week entity.WeekKey, w io.Writer) error
}

// ExtractionAPI is the stateless passthrough extraction
type ExtractionAPI interface {
	ExtractBulletin(ctx context.Context, data []byte) (*port.BulletinVisionResult, error)
	ExtractManifest(ctx context.Context, data []byte) (*service.ManifestExtraction, error)
}

var (
	_ BulletinAPI   = (*service.BulletinService)(nil)
	_ ReturnsAPI    = (*service.ReturnsService)(nil)
	_ ExtractionAPI = (*service.ExtractionService)(nil)
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	bulletins  BulletinAPI
	returns    ReturnsAPI
	extraction ExtractionAPI
	logger     *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(bulletins BulletinAPI, returns ReturnsAPI, extraction ExtractionAPI, logger *zap.Logger) *Handlers {
	return &Handlers{
		bulletins:  bulletins,
		returns:    returns,
		extraction: extraction,
		logger:     logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details string      `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// Version is reported by the health check
var Version = "dev"

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
		},
	})
}

// statusFor maps an error to its HTTP status
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrSessionCancelled), errors.Is(err, service.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, extraction.ErrInvalidImage),
		errors.Is(err, service.ErrInvalidWeek),
		errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrNegativeTotal),
		errors.Is(err, ledger.ErrEventIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, extraction.ErrNoTextRecognized):
		return http.StatusUnprocessableEntity
	case errors.Is(err, extraction.ErrUpstreamService), errors.Is(err, extraction.ErrParseFailure):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, ledger.ErrItemNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// details adds the upstream status for vision failures
func details(err error) string {
	var upstream *extraction.UpstreamError
	if errors.As(err, &upstream) && upstream.StatusCode != 0 {
		return fmt.Sprintf("vision API error %d", upstream.StatusCode)
	}
	return ""
}

func (h *Handlers) fail(c *gin.Context, op string, err error) {
	h.failWith(c, op, err, nil)
}

// failWith writes the error response; data carries what the call stored before failing
func (h *Handlers) failWith(c *gin.Context, op string, err error, data interface{}) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("op", op), zap.Error(err))
		msg = "failed to " + op
	} else {
		h.logger.Debug("Request rejected", zap.String("op", op), zap.Int("status", status), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, Response{Success: false, Data: data, Error: msg, Details: details(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func parseDay(c *gin.Context) (time.Time, bool) {
	day, err := time.Parse("2006-01-02", c.Param("day"))
	if err != nil {
		badRequest(c, "day must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return day, true
}

func parseWeek(c *gin.Context) (entity.WeekKey, bool) {
	year, errY := strconv.Atoi(c.Param("year"))
	week, errW := strconv.Atoi(c.Param("week"))
	if errY != nil || errW != nil {
		badRequest(c, "year and week must be numbers")
		return entity.WeekKey{}, false
	}
	return entity.WeekKey{Year: year, Week: week}, true
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// uploadRequest is the JSON form of an upload
type uploadRequest struct {
	ImageBase64 string `json:"image_base64"`
	DataBase64  string `json:"data_base64"`
	Filename    string `json:"filename"`
}

// readUpload accepts a multipart "file" field or a JSON body with base64 data
func readUpload(c *gin.Context) ([]byte, string, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, "", fmt.Errorf("%w: missing file field: %w", extraction.ErrInvalidImage, err)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, "", fmt.Errorf("failed to open upload: %w", err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read upload: %w", err)
		}
		return data, fh.Filename, nil
	}

	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, "", bindError(err)
	}
	raw := req.ImageBase64
	if raw == "" {
		raw = req.DataBase64
	}
	data, err := decodeBase64(raw)
	if err != nil {
		return nil, "", err
	}
	return data, req.Filename, nil
}

// decodeBase64 accepts plain base64 or a data URL
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ";base64,"); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+len(";base64,"):]
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty image data", extraction.ErrInvalidImage)
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", extraction.ErrInvalidImage, err)
	}
	return data, nil
}

// bindError keeps an oversized body distinguishable from malformed JSON
func bindError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("%w: invalid request body: %w", extraction.ErrInvalidImage, err)
}
