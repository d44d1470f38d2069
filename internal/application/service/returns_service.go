package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/store-ops/internal/application/port"
	"github.com/garyjia/store-ops/internal/domain/entity"
	"github.com/garyjia/store-ops/internal/domain/ledger"
	"github.com/garyjia/store-ops/internal/extraction"
	"github.com/garyjia/store-ops/internal/merge"
)

// ReturnsConfig tunes the returns service
type ReturnsConfig struct {
	SessionTTL  time.Duration
	MaxPDFPages int
}

// scanSession accumulates the pages of one returns scan until it is committed
type scanSession struct {
	id           string
	week         entity.WeekKey
	pages        []entity.PageResult
	nextSeq      int
	warnings     []extraction.ValidationWarning
	usage        extraction.Usage
	busy         bool
	cancel       context.CancelFunc
	createdAt    time.Time
	lastActivity time.Time
}

// SessionSnapshot is the read view of a scan session
type SessionSnapshot struct {
	ID        string                         `json:"id"`
	Week      string                         `json:"week"`
	Pages     int                            `json:"pages"`
	Items     int                            `json:"items"`
	Groups    entity.PageResult              `json:"groups"`
	Warnings  []extraction.ValidationWarning `json:"warnings"`
	Usage     extraction.Usage               `json:"usage"`
	Busy      bool                           `json:"busy"`
	CreatedAt time.Time                      `json:"created_at"`
}

// PageReport describes what one upload added to a session
type PageReport struct {
	Session  *SessionSnapshot               `json:"session"`
	Pages    int                            `json:"pages"`
	Items    int                            `json:"items"`
	Warnings []extraction.ValidationWarning `json:"warnings"`
	Usage    extraction.Usage               `json:"usage"`
	Archived string                         `json:"archived,omitempty"`
}

// CommittedManifest summarizes one manifest written by Commit
type CommittedManifest struct {
	ID             int64  `json:"id"`
	ManifestNumber string `json:"manifest_number"`
	Created        int    `json:"created"`
	Updated        int    `json:"updated"`
	ItemCount      int    `json:"item_count"`
	Done           bool   `json:"done"`
}

// CommitReport is the result of committing a scan session
type CommitReport struct {
	SessionID string              `json:"session_id"`
	Week      string              `json:"week"`
	Manifests []CommittedManifest `json:"manifests"`
}

// LedgerResult is an item after a ledger operation together with its manifest
type LedgerResult struct {
	Manifest *entity.DocumentManifest `json:"manifest"`
	Item     *entity.LineItem         `json:"item"`
	State    ledger.State             `json:"state"`
}

// ReturnsService runs nonfood-return scan sessions and the collection ledger
type ReturnsService struct {
	manifests port.ManifestRepository
	items     port.LineItemRepository
	txManager port.TransactionManager
	vision    port.VisionExtractor
	source    *pageSource
	extractor *extraction.LineItemExtractor
	reports   port.WeekReportWriter
	cfg       ReturnsConfig
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[string]*scanSession
	now      func() time.Time
}

// NewReturnsService creates a new ReturnsService. archive may be nil.
func NewReturnsService(
	manifests port.ManifestRepository,
	items port.LineItemRepository,
	txManager port.TransactionManager,
	vision port.VisionExtractor,
	sniffer port.UploadSniffer,
	rasterizer port.DocumentRasterizer,
	sheets port.SpreadsheetReader,
	archive port.UploadArchive,
	reports port.WeekReportWriter,
	classifier *extraction.Classifier,
	cfg ReturnsConfig,
	logger *zap.Logger,
) *ReturnsService {
	return &ReturnsService{
		manifests: manifests,
		items:     items,
		txManager: txManager,
		vision:    vision,
		source: &pageSource{
			sniffer:    sniffer,
			rasterizer: rasterizer,
			sheets:     sheets,
			archive:    archive,
			maxPages:   cfg.MaxPDFPages,
			logger:     logger,
		},
		extractor: extraction.NewLineItemExtractor(classifier),
		reports:   reports,
		cfg:       cfg,
		logger:    logger,
		sessions:  make(map[string]*scanSession),
		now:       time.Now,
	}
}

// StartSession opens a scan session for a week
func (s *ReturnsService) StartSession(week entity.WeekKey) (*SessionSnapshot, error) {
	if !week.Valid() {
		return nil, fmt.Errorf("%w: %d-W%d", ErrInvalidWeek, week.Year, week.Week)
	}

	now := s.now()
	sess := &scanSession{
		id:           uuid.NewString(),
		week:         week,
		createdAt:    now,
		lastActivity: now,
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.logger.Info("Scan session started",
		zap.String("session_id", sess.id),
		zap.String("week", week.String()))
	return snapshot(sess), nil
}

// Session returns the current state of a session
func (s *ReturnsService) Session(id string) (*SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return snapshot(sess), nil
}

// AddUpload extracts an image, PDF, spreadsheet or text upload into the session.
// A second call while one is running gets ErrSessionBusy. Pages whose result came
// back are merged even when the session is cancelled afterwards.
func (s *ReturnsService) AddUpload(ctx context.Context, id, filename string, data []byte) (*PageReport, error) {
	sess, callCtx, done, err := s.begin(ctx, id)
	if err != nil {
		return nil, err
	}
	defer done()

	pages, _, err := s.source.pages(callCtx, data)
	if err != nil {
		s.logger.Warn("Rejected returns upload",
			zap.String("session_id", id),
			zap.String("filename", filename),
			zap.Error(err))
		return nil, s.cancelled(callCtx, err)
	}
	archived := s.source.archiveUpload(callCtx, path.Join("returns", sess.week.String()), filename, data)

	report, err := s.extract(callCtx, sess, pages)
	if report != nil {
		report.Archived = archived
	}
	return report, s.cancelled(callCtx, err)
}

// AddText runs the regex path on already recognized text
func (s *ReturnsService) AddText(ctx context.Context, id, text string) (*PageReport, error) {
	sess, callCtx, done, err := s.begin(ctx, id)
	if err != nil {
		return nil, err
	}
	defer done()

	report, err := s.extract(callCtx, sess, []page{textPage(text)})
	return report, s.cancelled(callCtx, err)
}

// begin marks the session busy and derives the cancellable call context
func (s *ReturnsService) begin(ctx context.Context, id string) (*scanSession, context.Context, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil, nil, ErrSessionNotFound
	}
	if sess.busy {
		return nil, nil, nil, ErrSessionBusy
	}

	callCtx, cancel := context.WithCancel(ctx)
	sess.busy = true
	sess.cancel = cancel
	done := func() {
		cancel()
		s.mu.Lock()
		sess.busy = false
		sess.cancel = nil
		sess.lastActivity = s.now()
		s.mu.Unlock()
	}
	return sess, callCtx, done, nil
}

func (s *ReturnsService) extract(ctx context.Context, sess *scanSession, pages []page) (*PageReport, error) {
	report := &PageReport{}
	visionPages := 0

	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return s.finish(sess, report), err
		}

		s.mu.Lock()
		startSeq := sess.nextSeq
		s.mu.Unlock()

		var (
			result   entity.PageResult
			warnings []extraction.ValidationWarning
			next     int
			usage    extraction.Usage
		)
		if p.isImage() {
			visionPages++
			res, err := s.vision.ExtractManifest(ctx, p.image, p.mime)
			if err != nil {
				s.logger.Error("Manifest extraction failed",
					zap.String("session_id", sess.id),
					zap.Int("page", p.number),
					zap.Error(err))
				return s.finish(sess, report), err
			}
			usage = res.Usage
			result, warnings, next = s.extractor.FromVision(res.Items, startSeq)
		} else {
			if len(p.lines) == 0 {
				return s.finish(sess, report), extraction.ErrNoTextRecognized
			}
			result, next = s.extractor.ExtractLines(p.lines, startSeq)
		}

		for _, w := range warnings {
			s.logger.Warn("Line item validation warning",
				zap.String("session_id", sess.id),
				zap.Int("page", p.number),
				zap.Int("index", w.Index),
				zap.String("field", w.Field),
				zap.String("value", w.Value),
				zap.String("message", w.Message))
		}

		s.mu.Lock()
		sess.usage.Add(usage)
		if n := result.ItemTotal(); n > 0 {
			sess.pages = append(sess.pages, result)
			sess.nextSeq = next
			sess.warnings = append(sess.warnings, warnings...)
			report.Pages++
			report.Items += n
		}
		s.mu.Unlock()

		report.Usage.Add(usage)
		report.Warnings = append(report.Warnings, warnings...)
	}

	if report.Items == 0 && visionPages > 0 {
		return s.finish(sess, report), extraction.ErrNoTextRecognized
	}

	s.logger.Info("Scan pages merged",
		zap.String("session_id", sess.id),
		zap.Int("pages", report.Pages),
		zap.Int("items", report.Items),
		zap.Int("warnings", len(report.Warnings)))
	return s.finish(sess, report), nil
}

func (s *ReturnsService) finish(sess *scanSession, report *PageReport) *PageReport {
	s.mu.Lock()
	report.Session = snapshot(sess)
	s.mu.Unlock()
	return report
}

// cancelled reports a call aborted through Cancel as ErrSessionCancelled
func (s *ReturnsService) cancelled(ctx context.Context, err error) error {
	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%w: %w", ErrSessionCancelled, err)
	}
	return err
}

// Cancel aborts the running extraction of a session, if any. The session stays open.
func (s *ReturnsService) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if sess.cancel != nil {
		sess.cancel()
		s.logger.Info("Scan call cancelled", zap.String("session_id", id))
	}
	return nil
}

// Discard cancels and forgets a session without writing anything
func (s *ReturnsService) Discard(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if sess.cancel != nil {
		sess.cancel()
	}
	delete(s.sessions, id)
	return nil
}

// Commit merges the session's pages and writes them to the week's manifests.
// An item already stored for the same manifest and product code is updated, not duplicated.
// The session is closed on success and kept on failure so the commit can be retried.
func (s *ReturnsService) Commit(ctx context.Context, id string) (*CommitReport, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if sess.busy {
		s.mu.Unlock()
		return nil, ErrSessionBusy
	}
	sess.busy = true
	pages := append([]entity.PageResult(nil), sess.pages...)
	week := sess.week
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		sess.busy = false
		sess.lastActivity = s.now()
		s.mu.Unlock()
	}()

	merged := merge.LineItems(pages, true)
	report := &CommitReport{SessionID: id, Week: week.String()}

	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		report.Manifests = report.Manifests[:0]
		for _, group := range merged {
			cm, err := s.commitGroup(ctx, week, group)
			if err != nil {
				return err
			}
			report.Manifests = append(report.Manifests, *cm)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to commit scan session",
			zap.String("session_id", id),
			zap.Error(err))
		return nil, persistenceError("commit scan session", err)
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	s.logger.Info("Scan session committed",
		zap.String("session_id", id),
		zap.String("week", week.String()),
		zap.Int("manifests", len(report.Manifests)))
	return report, nil
}

func (s *ReturnsService) commitGroup(ctx context.Context, week entity.WeekKey, group entity.ManifestGroup) (*CommittedManifest, error) {
	m, err := s.manifests.FindOrCreate(ctx, group.ManifestNumber, week)
	if err != nil {
		return nil, err
	}
	cm := &CommittedManifest{ID: m.ID, ManifestNumber: m.ManifestNumber}

	for _, d := range group.Items {
		existing, err := s.items.FindByCode(ctx, m.ID, d.ProductCode)
		switch {
		case err == nil:
			existing.ProductName = d.ProductName
			existing.ExpectedQty = d.ExpectedQty
			existing.Sequence = d.Sequence
			if err := s.items.Save(ctx, existing); err != nil {
				return nil, err
			}
			cm.Updated++
		case errors.Is(err, port.ErrNotFound):
			item := &entity.LineItem{
				ManifestID:  m.ID,
				ProductCode: d.ProductCode,
				ProductName: d.ProductName,
				ExpectedQty: d.ExpectedQty,
				Sequence:    d.Sequence,
			}
			if err := s.items.Create(ctx, item); err != nil {
				return nil, err
			}
			cm.Created++
		default:
			return nil, err
		}
	}

	m, err = s.manifests.GetByID(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	ledger.New(m)
	if err := s.manifests.UpdateStatus(ctx, m); err != nil {
		return nil, err
	}
	cm.ItemCount = m.ItemCount
	cm.Done = m.Done
	return cm, nil
}

// ListWeek returns the week's manifests with their items
func (s *ReturnsService) ListWeek(ctx context.Context, week entity.WeekKey) ([]*entity.DocumentManifest, error) {
	if !week.Valid() {
		return nil, fmt.Errorf("%w: %d-W%d", ErrInvalidWeek, week.Year, week.Week)
	}
	manifests, err := s.manifests.ListByWeek(ctx, week)
	if err != nil {
		return nil, persistenceError("list manifests", err)
	}
	return manifests, nil
}

// GetManifest returns one manifest with its items
func (s *ReturnsService) GetManifest(ctx context.Context, id int64) (*entity.DocumentManifest, error) {
	m, err := s.manifests.GetByID(ctx, id)
	if err != nil {
		return nil, persistenceError("get manifest", err)
	}
	ledger.New(m)
	return m, nil
}

// RecordFound adds a found quantity to an item
func (s *ReturnsService) RecordFound(ctx context.Context, manifestID int64, code string, qty int) (*LedgerResult, error) {
	return s.mutate(ctx, manifestID, code, func(l *ledger.Ledger) (*entity.LineItem, error) {
		return l.RecordFound(code, qty)
	})
}

// SetTotal overrides an item's total, discarding its found events
func (s *ReturnsService) SetTotal(ctx context.Context, manifestID int64, code string, total int) (*LedgerResult, error) {
	return s.mutate(ctx, manifestID, code, func(l *ledger.Ledger) (*entity.LineItem, error) {
		return l.SetTotal(code, total)
	})
}

// DeleteEvent removes one found event from an item
func (s *ReturnsService) DeleteEvent(ctx context.Context, manifestID int64, code string, index int) (*LedgerResult, error) {
	return s.mutate(ctx, manifestID, code, func(l *ledger.Ledger) (*entity.LineItem, error) {
		return l.DeleteEvent(code, index)
	})
}

// ToggleCollected flips an item's collected mark
func (s *ReturnsService) ToggleCollected(ctx context.Context, manifestID int64, code string) (*LedgerResult, error) {
	return s.mutate(ctx, manifestID, code, func(l *ledger.Ledger) (*entity.LineItem, error) {
		return l.ToggleCollected(code)
	})
}

// mutate loads the manifest, applies op and saves the item and the manifest status together
func (s *ReturnsService) mutate(ctx context.Context, manifestID int64, code string, op func(*ledger.Ledger) (*entity.LineItem, error)) (*LedgerResult, error) {
	var result *LedgerResult
	var opErr error

	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		m, err := s.manifests.GetByID(ctx, manifestID)
		if err != nil {
			return err
		}

		l := ledger.New(m)
		item, err := op(l)
		if err != nil {
			opErr = err
			return err
		}

		if err := s.items.Save(ctx, item); err != nil {
			return err
		}
		if err := s.manifests.UpdateStatus(ctx, m); err != nil {
			return err
		}
		result = &LedgerResult{Manifest: m, Item: item, State: ledger.StateOf(item)}
		return nil
	})
	if opErr != nil {
		return nil, opErr
	}
	if err != nil {
		s.logger.Error("Failed to save ledger change",
			zap.Int64("manifest_id", manifestID),
			zap.String("code", code),
			zap.Error(err))
		return nil, persistenceError("save ledger change", err)
	}

	s.logger.Debug("Ledger updated",
		zap.Int64("manifest_id", manifestID),
		zap.String("code", code),
		zap.Int("total", result.Item.Total),
		zap.Bool("collected", result.Item.Collected),
		zap.Bool("manifest_done", result.Manifest.Done))
	return result, nil
}

// ExportWeek writes the week's collection report
func (s *ReturnsService) ExportWeek(ctx context.Context, week entity.WeekKey, w io.Writer) error {
	manifests, err := s.ListWeek(ctx, week)
	if err != nil {
		return err
	}
	if err := s.reports.WriteWeek(w, week, manifests); err != nil {
		return fmt.Errorf("failed to write week report: %w", err)
	}
	return nil
}

// ExpireSessions drops idle sessions older than the TTL and returns how many were removed.
// Busy sessions are never expired.
func (s *ReturnsService) ExpireSessions(now time.Time) int {
	if s.cfg.SessionTTL <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for id, sess := range s.sessions {
		if sess.busy || now.Sub(sess.lastActivity) < s.cfg.SessionTTL {
			continue
		}
		delete(s.sessions, id)
		expired++
		s.logger.Info("Scan session expired",
			zap.String("session_id", id),
			zap.Int("pages", len(sess.pages)))
	}
	return expired
}

// snapshot must be called with the service mutex held
func snapshot(sess *scanSession) *SessionSnapshot {
	groups := merge.LineItems(sess.pages, true)
	return &SessionSnapshot{
		ID:        sess.id,
		Week:      sess.week.String(),
		Pages:     len(sess.pages),
		Items:     groups.ItemTotal(),
		Groups:    groups,
		Warnings:  append([]extraction.ValidationWarning(nil), sess.warnings...),
		Usage:     sess.usage,
		Busy:      sess.busy,
		CreatedAt: sess.createdAt,
	}
}
