package port

import (
	"context"
	"io"

	"github.com/garyjia/store-ops/internal/domain/entity"
	"github.com/garyjia/store-ops/internal/extraction"
)

// Kind is the broad type of an upload
type Kind string

const (
	KindImage       Kind = "image"
	KindPDF         Kind = "pdf"
	KindSpreadsheet Kind = "spreadsheet"
	KindText        Kind = "text"
)

// Upload is an uploaded file after content sniffing
type Upload struct {
	Kind     Kind
	MimeType string
	Data     []byte
}

// UploadSniffer identifies uploads by content. Unusable data is extraction.ErrInvalidImage.
type UploadSniffer interface {
	Sniff(data []byte) (*Upload, error)
}

// BulletinVisionResult is the vision model's reading of one bulletin page
type BulletinVisionResult struct {
	Blocks []extraction.VisionBlock
	Usage  extraction.Usage
}

// ManifestVisionResult is the vision model's reading of one manifest page
type ManifestVisionResult struct {
	Items []extraction.VisionLineItem
	Usage extraction.Usage
}

// VisionExtractor reads photographed documents with a multimodal model.
// Errors are extraction.ErrUpstreamService or extraction.ErrParseFailure.
type VisionExtractor interface {
	ExtractBulletin(ctx context.Context, image []byte, mimeType string) (*BulletinVisionResult, error)
	ExtractManifest(ctx context.Context, image []byte, mimeType string) (*ManifestVisionResult, error)
}

// DocumentRasterizer renders each page of a PDF to a JPEG image
type DocumentRasterizer interface {
	Rasterize(ctx context.Context, pdf []byte, maxPages int) ([][]byte, error)
}

// SpreadsheetReader flattens every row of a workbook into one text line
type SpreadsheetReader interface {
	ReadLines(ctx context.Context, data []byte) ([]string, error)
}

// WeekReportWriter writes the collection report of a week
type WeekReportWriter interface {
	WriteWeek(w io.Writer, week entity.WeekKey, manifests []*entity.DocumentManifest) error
}
