package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/store-ops/internal/application/port"
	"github.com/garyjia/store-ops/internal/extraction"
)

// ManifestExtraction is a passthrough manifest reading with its soft validation result
type ManifestExtraction struct {
	Items    []extraction.VisionLineItem
	Warnings []extraction.ValidationWarning
	Usage    extraction.Usage
}

// ExtractionService forwards a photographed or PDF document to the vision model
// without storing anything
type ExtractionService struct {
	vision port.VisionExtractor
	source *pageSource
	logger *zap.Logger
}

// NewExtractionService creates a new ExtractionService
func NewExtractionService(vision port.VisionExtractor, sniffer port.UploadSniffer, rasterizer port.DocumentRasterizer, maxPages int, logger *zap.Logger) *ExtractionService {
	return &ExtractionService{
		vision: vision,
		source: &pageSource{
			sniffer:    sniffer,
			rasterizer: rasterizer,
			maxPages:   maxPages,
			logger:     logger,
		},
		logger: logger,
	}
}

// ExtractBulletin returns the model's blocks for every page of the document, in page order
func (s *ExtractionService) ExtractBulletin(ctx context.Context, data []byte) (*port.BulletinVisionResult, error) {
	pages, err := s.imagePages(ctx, data)
	if err != nil {
		return nil, err
	}

	out := &port.BulletinVisionResult{Blocks: []extraction.VisionBlock{}}
	for _, p := range pages {
		res, err := s.vision.ExtractBulletin(ctx, p.image, p.mime)
		if err != nil {
			return nil, err
		}
		out.Blocks = append(out.Blocks, res.Blocks...)
		out.Usage.Add(res.Usage)
	}
	return out, nil
}

// ExtractManifest returns the model's rows for every page of the document. Rows with
// malformed fields are kept and reported as warnings.
func (s *ExtractionService) ExtractManifest(ctx context.Context, data []byte) (*ManifestExtraction, error) {
	pages, err := s.imagePages(ctx, data)
	if err != nil {
		return nil, err
	}

	out := &ManifestExtraction{Items: []extraction.VisionLineItem{}}
	for _, p := range pages {
		res, err := s.vision.ExtractManifest(ctx, p.image, p.mime)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, res.Items...)
		out.Usage.Add(res.Usage)
	}

	for i, it := range out.Items {
		out.Warnings = append(out.Warnings, extraction.ValidateLineItem(i, it)...)
	}
	if len(out.Warnings) > 0 {
		s.logger.Warn("Manifest rows with invalid data",
			zap.Int("rows", len(out.Items)),
			zap.Int("warnings", len(out.Warnings)))
	}
	return out, nil
}

// imagePages accepts images and PDFs only
func (s *ExtractionService) imagePages(ctx context.Context, data []byte) ([]page, error) {
	upload, err := s.source.sniffer.Sniff(data)
	if err != nil {
		return nil, err
	}
	if upload.Kind != port.KindImage && upload.Kind != port.KindPDF {
		return nil, fmt.Errorf("%w: %s is not an image", extraction.ErrInvalidImage, upload.MimeType)
	}
	return s.source.split(ctx, upload)
}
