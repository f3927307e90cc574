package models

import "strconv"

// MeasurementRecord is one normalized specification entry. Exactly one of
// {Inch and/or Millimeter, Raw} is populated. Inch and Millimeter hold the
// scraped text verbatim; use InchValue/MillimeterValue for numbers.
type MeasurementRecord struct {
	Label      string `json:"label"`
	Inch       string `json:"inch,omitempty"`
	Millimeter string `json:"millimeter,omitempty"`
	Raw        string `json:"raw,omitempty"`
}

// HasMeasurement reports whether the record carries a unit slot.
func (r MeasurementRecord) HasMeasurement() bool {
	return r.Inch != "" || r.Millimeter != ""
}

// InchValue parses the inch slot.
func (r MeasurementRecord) InchValue() (float64, bool) {
	return parseNumber(r.Inch)
}

// MillimeterValue parses the millimeter slot.
func (r MeasurementRecord) MillimeterValue() (float64, bool) {
	return parseNumber(r.Millimeter)
}

func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// SpecificationRow is one rendered two-column specification line.
type SpecificationRow struct {
	Label string `json:"label"`
	Value string `json:"value"`
}
