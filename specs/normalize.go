// Package specs turns a part's labeled specification table into canonical
// measurement records and renders them as dual-unit text.
package specs

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/use-agent/partfit/models"
)

// mmPerInch is the fixed conversion ratio used for derived values.
const mmPerInch = 25.4

// Row is one scraped label/value pair.
type Row struct {
	Label string
	Value string
}

var (
	inchLabel = regexp.MustCompile(`(?i)\(IN\)`)
	mmLabel   = regexp.MustCompile(`(?i)\(MM\)`)

	// Both patterns must cover the whole value. Anything with extra text
	// around the number ("M12 x 1.5mm", prose, ".5 in") stays raw.
	mmValue   = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*mm$`)
	inchValue = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*(?:inches|inch|in|")$`)
)

// Normalize converts rows into one record per distinct label, in the order
// each label first appears. A label annotated with (IN) or (MM) loses the
// annotation and fills the matching unit slot, so "Diameter (IN)" and
// "Diameter (MM)" merge into a single "Diameter" record. Once a label has a
// raw value it stays raw: later unit rows for that label are dropped.
func Normalize(rows []Row) []models.MeasurementRecord {
	records := make([]models.MeasurementRecord, 0, len(rows))
	index := make(map[string]int, len(rows))

	for _, row := range rows {
		label, slot, value := classify(row)
		if label == "" {
			continue
		}

		i, ok := index[label]
		if !ok {
			i = len(records)
			index[label] = i
			records = append(records, models.MeasurementRecord{Label: label})
		}
		rec := &records[i]

		switch slot {
		case slotInch:
			if rec.Raw == "" {
				rec.Inch = value
			}
		case slotMillimeter:
			if rec.Raw == "" {
				rec.Millimeter = value
			}
		default:
			rec.Raw = value
			rec.Inch = ""
			rec.Millimeter = ""
		}
	}
	return records
}

type slot int

const (
	slotRaw slot = iota
	slotInch
	slotMillimeter
)

func classify(row Row) (label string, s slot, value string) {
	label = strings.TrimSpace(row.Label)
	value = strings.TrimSpace(row.Value)

	switch {
	case inchLabel.MatchString(label):
		return cleanLabel(inchLabel.ReplaceAllString(label, "")), slotInch, value
	case mmLabel.MatchString(label):
		return cleanLabel(mmLabel.ReplaceAllString(label, "")), slotMillimeter, value
	}

	if m := mmValue.FindStringSubmatch(value); m != nil {
		return label, slotMillimeter, m[1]
	}
	if m := inchValue.FindStringSubmatch(value); m != nil {
		return label, slotInch, m[1]
	}
	return label, slotRaw, value
}

func cleanLabel(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Render produces the canonical display text for a record.
func Render(rec models.MeasurementRecord) string {
	switch {
	case rec.Inch != "" && rec.Millimeter != "":
		return rec.Inch + " in / " + rec.Millimeter + " mm"
	case rec.Inch != "":
		in, ok := rec.InchValue()
		if !ok {
			return rec.Inch + " in"
		}
		return rec.Inch + " in / " + formatNumber(round3(in*mmPerInch)) + " mm"
	case rec.Millimeter != "":
		mm, ok := rec.MillimeterValue()
		if !ok {
			return rec.Millimeter + " mm"
		}
		return formatNumber(round3(mm/mmPerInch)) + " in / " + rec.Millimeter + " mm"
	}

	if n, ok := RawNumber(rec); ok {
		return formatNumber(n)
	}
	return rec.Raw
}

// RawNumber reports whether the record is a plain number with no unit, so
// writers can store it as a numeric cell.
func RawNumber(rec models.MeasurementRecord) (float64, bool) {
	if rec.HasMeasurement() || rec.Raw == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(rec.Raw, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// RenderAll pairs every record's label with its rendered value.
func RenderAll(records []models.MeasurementRecord) []models.SpecificationRow {
	out := make([]models.SpecificationRow, len(records))
	for i, rec := range records {
		out[i] = models.SpecificationRow{Label: rec.Label, Value: Render(rec)}
	}
	return out
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

// formatNumber prints the shortest representation, so 12.0 becomes "12".
func formatNumber(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
