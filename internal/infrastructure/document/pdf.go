package document

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/garyjia/store-ops/internal/application/port"
	"github.com/garyjia/store-ops/internal/extraction"
)

// Rasterizer renders PDF pages with MuPDF
type Rasterizer struct {
	quality int
	logger  *zap.Logger
}

// NewRasterizer creates a rasterizer producing JPEGs of the given quality (1-100)
func NewRasterizer(quality int, logger *zap.Logger) *Rasterizer {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &Rasterizer{quality: quality, logger: logger}
}

// Rasterize renders up to maxPages pages (all when maxPages <= 0) in page order
func (r *Rasterizer) Rasterize(ctx context.Context, pdf []byte, maxPages int) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open PDF: %v", extraction.ErrInvalidImage, err)
	}
	defer doc.Close()

	count := doc.NumPage()
	if maxPages > 0 && count > maxPages {
		r.logger.Warn("PDF has more pages than allowed, truncating",
			zap.Int("pages", count),
			zap.Int("max_pages", maxPages))
		count = maxPages
	}

	pages := make([][]byte, 0, count)
	for n := 0; n < count; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := doc.Image(n)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to render page %d: %v", extraction.ErrInvalidImage, n+1, err)
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", n+1, err)
		}
		pages = append(pages, buf.Bytes())
	}

	r.logger.Debug("Rasterized PDF", zap.Int("pages", len(pages)))
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: PDF has no pages", extraction.ErrInvalidImage)
	}
	return pages, nil
}

// Verify interface compliance
var _ port.DocumentRasterizer = (*Rasterizer)(nil)
