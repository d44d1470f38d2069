// Package document identifies uploaded files and turns PDFs and spreadsheets into
// inputs the extractors understand.
package document

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"

	"github.com/garyjia/store-ops/internal/application/port"
	"github.com/garyjia/store-ops/internal/extraction"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// visionImageTypes are the image formats the vision model accepts
var visionImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Sniffer implements port.UploadSniffer
type Sniffer struct{}

var _ port.UploadSniffer = Sniffer{}

func (Sniffer) Sniff(data []byte) (*port.Upload, error) { return Sniff(data) }

// Sniff detects the kind of data from its content. Images are checked to decode;
// anything unrecognised is reported as extraction.ErrInvalidImage.
func Sniff(data []byte) (*port.Upload, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", extraction.ErrInvalidImage)
	}

	m := mimetype.Detect(data)
	switch {
	case m.Is("application/pdf"):
		return &port.Upload{Kind: port.KindPDF, MimeType: "application/pdf", Data: data}, nil
	case m.Is(mimeXLSX), m.Is("application/zip") && isWorkbook(data):
		return &port.Upload{Kind: port.KindSpreadsheet, MimeType: mimeXLSX, Data: data}, nil
	case m.Is("text/plain"):
		return &port.Upload{Kind: port.KindText, MimeType: "text/plain", Data: data}, nil
	}

	for _, t := range visionImageTypes {
		if !m.Is(t) {
			continue
		}
		if t != "image/webp" {
			if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
				return nil, fmt.Errorf("%w: %v", extraction.ErrInvalidImage, err)
			}
		}
		return &port.Upload{Kind: port.KindImage, MimeType: t, Data: data}, nil
	}

	return nil, fmt.Errorf("%w: unsupported content type %s", extraction.ErrInvalidImage, m.String())
}

// isWorkbook looks for the workbook part when sniffing only saw a zip container
func isWorkbook(data []byte) bool {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if f.Name == "xl/workbook.xml" {
			return true
		}
	}
	return false
}
