package report

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/use-agent/partfit/config"
	"github.com/use-agent/partfit/models"
	"github.com/xuri/excelize/v2"
)

const (
	sheet     = "Sheet1"
	rowHeight = 20.25

	karshieldHeader = "FF0000"
	defaultHeader   = "2F75B5"
)

var compatibilityColumns = []string{"Make", "Model", "Year", "Position", "Engine"}

// HeaderColor returns the table header fill for a storefront.
func HeaderColor(storefront string) string {
	if strings.EqualFold(storefront, "karshield") {
		return karshieldHeader
	}
	return defaultHeader
}

// FileSink writes the compatibility workbook and the trace log into one
// directory. The workbook is saved after every vehicle so an interrupted
// run leaves every completed row on disk.
type FileSink struct {
	tablePath string
	tracePath string
	headerRGB string

	book      *excelize.File
	cellStyle int
	nextRow   int
	trace     *os.File
}

// NewFileSink prepares dir for a run. Nothing is written until Begin.
func NewFileSink(dir string, cfg config.ReportConfig, storefront string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: create output dir: %w", err)
	}
	return &FileSink{
		tablePath: filepath.Join(dir, cfg.CompatibilityFile),
		tracePath: filepath.Join(dir, cfg.TraceFile),
		headerRGB: HeaderColor(storefront),
	}, nil
}

// TablePath is where the compatibility workbook is written.
func (s *FileSink) TablePath() string { return s.tablePath }

// TracePath is where the trace log is written.
func (s *FileSink) TracePath() string { return s.tracePath }

func (s *FileSink) Begin(listing models.Listing, vehicles int) error {
	book := excelize.NewFile()
	headerStyle, err := book.NewStyle(tableStyle(s.headerRGB))
	if err != nil {
		book.Close()
		return fmt.Errorf("report: header style: %w", err)
	}
	cellStyle, err := book.NewStyle(tableStyle(""))
	if err != nil {
		book.Close()
		return fmt.Errorf("report: cell style: %w", err)
	}
	if err := book.SetColWidth(sheet, "A", "E", 17); err != nil {
		book.Close()
		return fmt.Errorf("report: column width: %w", err)
	}
	for i, title := range compatibilityColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := book.SetCellValue(sheet, cell, title); err != nil {
			book.Close()
			return fmt.Errorf("report: write header: %w", err)
		}
	}
	_ = book.SetCellStyle(sheet, "A1", "E1", headerStyle)
	_ = book.SetRowHeight(sheet, 1, rowHeight)

	trace, err := os.Create(s.tracePath)
	if err != nil {
		book.Close()
		return fmt.Errorf("report: create trace: %w", err)
	}

	s.book = book
	s.cellStyle = cellStyle
	s.nextRow = 2
	s.trace = trace

	if err := s.writeTrace(
		"Extra information for SKU "+listing.PartNumber,
		strings.Repeat("=", 80),
	); err != nil {
		return err
	}
	if err := book.SaveAs(s.tablePath); err != nil {
		return fmt.Errorf("report: save table: %w", err)
	}
	slog.Debug("report started", "table", s.tablePath, "trace", s.tracePath, "vehicles", vehicles)
	return nil
}

func (s *FileSink) VehicleStarted(_ int, v models.CompatibleVehicle) error {
	return s.writeTrace(VehicleHeader(v))
}

func (s *FileSink) EngineProcessed(_ models.CompatibleVehicle, r models.EngineResult) error {
	lines := []string{EngineLine(r)}
	if note := AbandonNote(r); note != "" {
		lines = append(lines, note)
	}
	return s.writeTrace(lines...)
}

func (s *FileSink) VehicleFinished(row models.FitmentRow) error {
	values := []string{row.Make, row.Model, row.Years(), row.Position, row.Extra}
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, s.nextRow)
		if err := s.book.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("report: write row: %w", err)
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, s.nextRow)
	last, _ := excelize.CoordinatesToCellName(len(values), s.nextRow)
	_ = s.book.SetCellStyle(sheet, first, last, s.cellStyle)
	_ = s.book.SetRowHeight(sheet, s.nextRow, rowHeight)
	s.nextRow++

	if err := s.book.Save(); err != nil {
		return fmt.Errorf("report: save table: %w", err)
	}
	return s.writeTrace(
		fmt.Sprintf("%s %s (%s): %s", row.Make, row.Model, row.Years(), row.Extra),
		strings.Repeat("-", 50),
	)
}

func (s *FileSink) VehicleFailed(v models.CompatibleVehicle, err error) error {
	return s.writeTrace(
		fmt.Sprintf("Error processing %s %s: %v", v.Make, v.Model, err),
		strings.Repeat("-", 50),
	)
}

// Close flushes the workbook and closes both files. It is safe to call
// without Begin.
func (s *FileSink) Close() error {
	var errs []string
	if s.book != nil {
		if err := s.book.Save(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := s.book.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		s.book = nil
	}
	if s.trace != nil {
		if err := s.trace.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		s.trace = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("report: close: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (s *FileSink) writeTrace(lines ...string) error {
	if s.trace == nil {
		return fmt.Errorf("report: trace not open")
	}
	for _, line := range lines {
		if _, err := s.trace.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("report: write trace: %w", err)
		}
	}
	return nil
}

// tableStyle is bold, wrapped, centred and bordered. A non-empty fill gives
// the white-on-colour header variant.
func tableStyle(fill string) *excelize.Style {
	style := &excelize.Style{
		Font: &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
			WrapText:   true,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	}
	if fill != "" {
		style.Font.Color = "FFFFFF"
		style.Fill = excelize.Fill{Type: "pattern", Color: []string{fill}, Pattern: 1}
	}
	return style
}
