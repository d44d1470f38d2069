package document

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/store-ops/internal/application/port"
)

// SpreadsheetReader flattens workbook rows into "|"-separated lines
type SpreadsheetReader struct {
	logger *zap.Logger
}

// NewSpreadsheetReader creates a spreadsheet reader
func NewSpreadsheetReader(logger *zap.Logger) *SpreadsheetReader {
	return &SpreadsheetReader{logger: logger}
}

// ReadLines returns one line per non-empty row of every sheet, in sheet order
func (r *SpreadsheetReader) ReadLines(ctx context.Context, data []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			r.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	var lines []string
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			var cells []string
			for _, c := range row {
				if c = strings.TrimSpace(c); c != "" {
					cells = append(cells, c)
				}
			}
			if len(cells) > 0 {
				lines = append(lines, strings.Join(cells, " | "))
			}
		}
	}

	r.logger.Debug("Read workbook", zap.Int("lines", len(lines)))
	return lines, nil
}

// Verify interface compliance
var _ port.SpreadsheetReader = (*SpreadsheetReader)(nil)
