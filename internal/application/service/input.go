package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/store-ops/internal/application/port"
	"github.com/garyjia/store-ops/internal/extraction"
	"go.uber.org/zap"
)

// page is one unit of extraction work: an image for the vision model or recognized text lines
type page struct {
	number int
	image  []byte
	mime   string
	lines  []string
}

func (p page) isImage() bool { return p.image != nil }

// pageSource turns an upload into pages
type pageSource struct {
	sniffer    port.UploadSniffer
	rasterizer port.DocumentRasterizer
	sheets     port.SpreadsheetReader
	archive    port.UploadArchive
	maxPages   int
	logger     *zap.Logger
}

// pages sniffs data and splits it: images are one page, PDFs one page per rendered
// page, spreadsheets and text one page of lines
func (s *pageSource) pages(ctx context.Context, data []byte) ([]page, *port.Upload, error) {
	upload, err := s.sniffer.Sniff(data)
	if err != nil {
		return nil, nil, err
	}
	pages, err := s.split(ctx, upload)
	return pages, upload, err
}

func (s *pageSource) split(ctx context.Context, upload *port.Upload) ([]page, error) {
	switch upload.Kind {
	case port.KindImage:
		return []page{{number: 1, image: upload.Data, mime: upload.MimeType}}, nil

	case port.KindPDF:
		images, err := s.rasterizer.Rasterize(ctx, upload.Data, s.maxPages)
		if err != nil {
			return nil, err
		}
		if len(images) == 0 {
			return nil, fmt.Errorf("%w: document has no pages", extraction.ErrInvalidImage)
		}
		pages := make([]page, len(images))
		for i, img := range images {
			pages[i] = page{number: i + 1, image: img, mime: "image/jpeg"}
		}
		return pages, nil

	case port.KindSpreadsheet:
		if s.sheets == nil {
			return nil, fmt.Errorf("%w: spreadsheets are not accepted here", extraction.ErrInvalidImage)
		}
		lines, err := s.sheets.ReadLines(ctx, upload.Data)
		if err != nil {
			return nil, err
		}
		return []page{{number: 1, lines: lines}}, nil

	default:
		return []page{textPage(string(upload.Data))}, nil
	}
}

// archiveUpload keeps the original upload when an archive is configured. Failures are logged only.
func (s *pageSource) archiveUpload(ctx context.Context, dir, filename string, data []byte) string {
	if s.archive == nil {
		return ""
	}
	if strings.TrimSpace(filename) == "" {
		filename = "upload"
	}
	path, err := s.archive.Save(ctx, dir, filename, data)
	if err != nil {
		s.logger.Warn("Failed to archive upload",
			zap.String("dir", dir),
			zap.String("filename", filename),
			zap.Error(err))
		return ""
	}
	return path
}

func textPage(text string) page {
	return page{number: 1, lines: extraction.SplitLines(text)}
}
