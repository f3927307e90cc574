package report

import (
	"fmt"
	"math"

	"github.com/use-agent/partfit/models"
	"github.com/use-agent/partfit/specs"
	"github.com/xuri/excelize/v2"
)

// WriteSpecifications writes records as a two-column sheet: label in A,
// rendered value in B. Unitless numbers are stored as numeric cells. No
// records produce a valid workbook with zero rows.
func WriteSpecifications(path string, records []models.MeasurementRecord) error {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetColWidth(sheet, "A", "B", 40); err != nil {
		return fmt.Errorf("report: column width: %w", err)
	}

	if len(records) > 0 {
		labelStyle, err := book.NewStyle(&excelize.Style{
			Font:      &excelize.Font{Bold: true},
			Alignment: &excelize.Alignment{Vertical: "center", WrapText: true},
			Border:    tableStyle("").Border,
		})
		if err != nil {
			return fmt.Errorf("report: label style: %w", err)
		}
		valueStyle, err := book.NewStyle(&excelize.Style{
			Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center", WrapText: true},
			Border:    tableStyle("").Border,
		})
		if err != nil {
			return fmt.Errorf("report: value style: %w", err)
		}

		for i, rec := range records {
			row := i + 1
			labelCell, _ := excelize.CoordinatesToCellName(1, row)
			valueCell, _ := excelize.CoordinatesToCellName(2, row)

			if err := book.SetCellValue(sheet, labelCell, rec.Label); err != nil {
				return fmt.Errorf("report: write label: %w", err)
			}
			var value any = specs.Render(rec)
			if n, ok := specs.RawNumber(rec); ok {
				if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
					value = int64(n)
				} else {
					value = n
				}
			}
			if err := book.SetCellValue(sheet, valueCell, value); err != nil {
				return fmt.Errorf("report: write value: %w", err)
			}
			_ = book.SetCellStyle(sheet, labelCell, labelCell, labelStyle)
			_ = book.SetCellStyle(sheet, valueCell, valueCell, valueStyle)
			_ = book.SetRowHeight(sheet, row, rowHeight)
		}
	}

	if err := book.SaveAs(path); err != nil {
		return fmt.Errorf("report: save specifications: %w", err)
	}
	return nil
}
