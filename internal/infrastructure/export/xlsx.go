// Package export renders collection reports as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/garyjia/store-ops/internal/application/port"
	"github.com/garyjia/store-ops/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var weekHeaders = []interface{}{
	"Bizonylatszám",
	"Cikkszám",
	"Cikk megnevezés",
	"Elvi készlet",
	"Talált",
	"Összesen",
	"Eltérés",
	"Begyűjtve",
}

// WeekReport implements port.WeekReportWriter
type WeekReport struct {
	logger *zap.Logger
}

var _ port.WeekReportWriter = (*WeekReport)(nil)

// NewWeekReport creates the week report writer
func NewWeekReport(logger *zap.Logger) *WeekReport {
	return &WeekReport{logger: logger}
}

// WriteWeek writes one row per line item, manifests in the given order and items by sequence
func (r *WeekReport) WriteWeek(w io.Writer, week entity.WeekKey, manifests []*entity.DocumentManifest) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := week.String()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &weekHeaders); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	_ = f.SetCellStyle(sheet, "A1", "H1", header)

	row := 2
	items := 0
	for _, m := range manifests {
		for _, it := range m.Items {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			values := []interface{}{
				m.ManifestNumber,
				it.ProductCode,
				it.ProductName,
				it.ExpectedQty,
				formatEvents(it.FoundEvents),
				it.Total,
				it.Total - it.ExpectedQty,
				collectedLabel(it.Collected),
			}
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row, err)
			}
			row++
			items++
		}
	}

	_ = f.SetColWidth(sheet, "A", "B", 14)
	_ = f.SetColWidth(sheet, "C", "C", 44)
	_ = f.SetColWidth(sheet, "D", "H", 12)
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	r.logger.Info("Week report written",
		zap.String("week", sheet),
		zap.Int("manifests", len(manifests)),
		zap.Int("items", items))
	return nil
}

// formatEvents renders found events as "2+1+3"
func formatEvents(events []int) string {
	parts := make([]string, len(events))
	for i, e := range events {
		parts[i] = strconv.Itoa(e)
	}
	return strings.Join(parts, "+")
}

func collectedLabel(collected bool) string {
	if collected {
		return "igen"
	}
	return "nem"
}
