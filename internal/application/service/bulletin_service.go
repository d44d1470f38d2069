package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/garyjia/store-ops/internal/application/port"
	"github.com/garyjia/store-ops/internal/domain/entity"
	"github.com/garyjia/store-ops/internal/extraction"
	"github.com/garyjia/store-ops/internal/merge"
	"go.uber.org/zap"
)

// BulletinConfig tunes the bulletin service
type BulletinConfig struct {
	DefaultAudience    string
	MergeDuplicateDays bool
	MaxPDFPages        int
}

// BulletinResult reports what one upload added to a day's Document
type BulletinResult struct {
	Document *entity.Document `json:"document"`
	Pages    []int            `json:"pages"`
	Blocks   int              `json:"blocks"`
	Usage    extraction.Usage `json:"usage"`
	Archived string           `json:"archived,omitempty"`
}

// DayRepairReport lists what the duplicate-day repair changed
type DayRepairReport struct {
	Merged  bool              `json:"merged"`
	Repairs []merge.DayRepair `json:"repairs"`
	Deleted int               `json:"deleted"`
}

// BulletinService accumulates daily-info pages into one Document per day
type BulletinService struct {
	docs      port.DocumentRepository
	txManager port.TransactionManager
	vision    port.VisionExtractor
	source    *pageSource
	extractor *extraction.BulletinExtractor
	gate      *busyGate
	cfg       BulletinConfig
	logger    *zap.Logger
}

// NewBulletinService creates a new BulletinService. archive may be nil.
func NewBulletinService(
	docs port.DocumentRepository,
	txManager port.TransactionManager,
	vision port.VisionExtractor,
	sniffer port.UploadSniffer,
	rasterizer port.DocumentRasterizer,
	archive port.UploadArchive,
	classifier *extraction.Classifier,
	cfg BulletinConfig,
	logger *zap.Logger,
) *BulletinService {
	if cfg.DefaultAudience == "" {
		cfg.DefaultAudience = entity.DefaultAudience
	}
	return &BulletinService{
		docs:      docs,
		txManager: txManager,
		vision:    vision,
		source: &pageSource{
			sniffer:    sniffer,
			rasterizer: rasterizer,
			archive:    archive,
			maxPages:   cfg.MaxPDFPages,
			logger:     logger,
		},
		extractor: extraction.NewBulletinExtractor(classifier, cfg.DefaultAudience),
		gate:      newBusyGate(),
		cfg:       cfg,
		logger:    logger,
	}
}

// ProcessUpload extracts a photographed page, a PDF or a text file and appends every
// resulting page to the day's Document. Each page is saved as soon as it is merged, so
// a failure on a later page keeps the earlier ones; the partial result is returned with the error.
func (s *BulletinService) ProcessUpload(ctx context.Context, day time.Time, filename string, data []byte) (*BulletinResult, error) {
	key := entity.DayKey(entity.DayOf(day))
	if !s.gate.acquire(key) {
		return nil, ErrSessionBusy
	}
	defer s.gate.release(key)

	pages, _, err := s.source.pages(ctx, data)
	if err != nil {
		s.logger.Warn("Rejected bulletin upload",
			zap.String("day", key),
			zap.String("filename", filename),
			zap.Error(err))
		return nil, err
	}
	archived := s.source.archiveUpload(ctx, path.Join("bulletins", key), filename, data)

	result, err := s.process(ctx, day, filename, pages)
	if result != nil {
		result.Archived = archived
	}
	return result, err
}

// ProcessText runs the regex path on already recognized text
func (s *BulletinService) ProcessText(ctx context.Context, day time.Time, text string) (*BulletinResult, error) {
	key := entity.DayKey(entity.DayOf(day))
	if !s.gate.acquire(key) {
		return nil, ErrSessionBusy
	}
	defer s.gate.release(key)

	return s.process(ctx, day, "", []page{textPage(text)})
}

func (s *BulletinService) process(ctx context.Context, day time.Time, filename string, pages []page) (*BulletinResult, error) {
	doc, err := s.docs.FindOrCreateByDay(ctx, day, filename)
	if err != nil {
		return nil, persistenceError("load document", err)
	}
	result := &BulletinResult{Document: doc}
	visionPages := 0
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var blocks []entity.BulletinBlock
		if p.isImage() {
			visionPages++
			res, err := s.vision.ExtractBulletin(ctx, p.image, p.mime)
			if err != nil {
				s.logger.Error("Bulletin extraction failed",
					zap.String("day", entity.DayKey(doc.Day)),
					zap.Int("page", p.number),
					zap.Error(err))
				return result, err
			}
			result.Usage.Add(res.Usage)
			blocks = s.extractor.FromVision(res.Blocks)
		} else {
			if len(p.lines) == 0 {
				return result, extraction.ErrNoTextRecognized
			}
			blocks = s.extractor.ExtractLines(p.lines)
		}

		if len(blocks) == 0 {
			s.logger.Warn("No bulletin blocks on page",
				zap.String("day", entity.DayKey(doc.Day)),
				zap.Int("page", p.number))
			continue
		}

		saved, pageNumber, err := s.savePage(ctx, doc.ID, filename, blocks)
		if err != nil {
			s.logger.Error("Failed to save bulletin page",
				zap.Int64("document_id", doc.ID),
				zap.Int("page", p.number),
				zap.Error(err))
			return result, persistenceError("save document", err)
		}
		doc = saved
		result.Document = doc
		result.Pages = append(result.Pages, pageNumber)
		result.Blocks += len(blocks)
	}

	if len(result.Pages) == 0 && visionPages > 0 {
		return result, extraction.ErrNoTextRecognized
	}

	s.logger.Info("Bulletin pages merged",
		zap.String("day", entity.DayKey(doc.Day)),
		zap.Int64("document_id", doc.ID),
		zap.Ints("pages", result.Pages),
		zap.Int("blocks", result.Blocks))
	return result, nil
}

// savePage appends blocks as the next page of the stored Document. The Document is
// re-read inside the transaction so marks set while the page was being read survive,
// and a failed write leaves the earlier pages untouched.
func (s *BulletinService) savePage(ctx context.Context, id int64, filename string, blocks []entity.BulletinBlock) (*entity.Document, int, error) {
	var (
		saved      *entity.Document
		pageNumber int
	)
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.docs.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if doc.Filename == "" && filename != "" {
			doc.Filename = filename
		}
		pageNumber = merge.AppendBulletinPage(doc, blocks)
		if err := s.docs.Save(ctx, doc); err != nil {
			return err
		}
		saved = doc
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return saved, pageNumber, nil
}

// Get returns the Document of a day
func (s *BulletinService) Get(ctx context.Context, day time.Time) (*entity.Document, error) {
	doc, err := s.docs.GetByDay(ctx, day)
	if err != nil {
		return nil, persistenceError("get document", err)
	}
	return doc, nil
}

// List returns the Documents between from and to inclusive, without blocks
func (s *BulletinService) List(ctx context.Context, from, to time.Time) ([]*entity.Document, error) {
	if to.Before(from) {
		from, to = to, from
	}
	docs, err := s.docs.ListRange(ctx, entity.DayOf(from), entity.DayOf(to))
	if err != nil {
		return nil, persistenceError("list documents", err)
	}
	return docs, nil
}

// ToggleBlock flips the completion mark of one block of the day's Document
func (s *BulletinService) ToggleBlock(ctx context.Context, day time.Time, position int) (*entity.BulletinBlock, error) {
	doc, err := s.docs.GetByDay(ctx, day)
	if err != nil {
		return nil, persistenceError("get document", err)
	}
	if position < 0 || position >= len(doc.Blocks) {
		return nil, fmt.Errorf("block %d of %s: %w", position, entity.DayKey(doc.Day), ErrNotFound)
	}

	block := doc.Blocks[position]
	block.Completed = !block.Completed
	if err := s.docs.SetBlockCompleted(ctx, doc.ID, position, block.Completed); err != nil {
		return nil, persistenceError("update block", err)
	}
	return &block, nil
}

// Delete removes a Document and its blocks
func (s *BulletinService) Delete(ctx context.Context, id int64) error {
	if err := s.docs.Delete(ctx, id); err != nil {
		return persistenceError("delete document", err)
	}
	s.logger.Info("Document deleted", zap.Int64("document_id", id))
	return nil
}

// EnsureWorkdays makes sure an (empty) Document exists for each of the next days
// workdays starting at from. Sundays are skipped.
func (s *BulletinService) EnsureWorkdays(ctx context.Context, from time.Time, days int) ([]*entity.Document, error) {
	var docs []*entity.Document
	day := entity.DayOf(from)
	for len(docs) < days {
		if day.Weekday() != time.Sunday {
			doc, err := s.docs.FindOrCreateByDay(ctx, day, "")
			if err != nil {
				return docs, persistenceError("create workday document", err)
			}
			docs = append(docs, doc)
		}
		day = day.AddDate(0, 0, 1)
	}
	return docs, nil
}

// RepairDuplicateDays keeps one Document per calendar day. Depending on configuration the
// survivor absorbs the duplicates' blocks or the duplicates are dropped.
func (s *BulletinService) RepairDuplicateDays(ctx context.Context) (*DayRepairReport, error) {
	docs, err := s.docs.ListDuplicateDays(ctx)
	if err != nil {
		return nil, persistenceError("list duplicate days", err)
	}

	report := &DayRepairReport{Merged: s.cfg.MergeDuplicateDays}
	report.Repairs = merge.PlanDayRepair(docs, s.cfg.MergeDuplicateDays)
	if len(report.Repairs) == 0 {
		return report, nil
	}

	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		for _, r := range report.Repairs {
			for _, dup := range r.Removed {
				if err := s.docs.Delete(ctx, dup.ID); err != nil && !errors.Is(err, port.ErrNotFound) {
					return err
				}
			}
			if err := s.docs.Save(ctx, r.Keep); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Duplicate day repair failed", zap.Error(err))
		return nil, persistenceError("repair duplicate days", err)
	}

	for _, r := range report.Repairs {
		report.Deleted += len(r.RemovedIDs)
		s.logger.Info("Repaired duplicate day",
			zap.String("day", r.Day),
			zap.Int64("kept", r.KeepID),
			zap.Int64s("removed", r.RemovedIDs),
			zap.Int("merged_blocks", r.MergedBlocks),
			zap.Int("dropped_blocks", r.DroppedBlocks))
	}
	return report, nil
}
