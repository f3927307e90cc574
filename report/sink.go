// Package report persists fitment results: a compatibility table, a
// per-engine trace log and the specification sheet.
package report

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/use-agent/partfit/models"
)

// Sink receives fitment results as the engine produces them. Calls arrive
// in order from a single goroutine: Begin once, then per vehicle a
// VehicleStarted followed by EngineProcessed calls and exactly one of
// VehicleFinished or VehicleFailed, and finally Close.
type Sink interface {
	Begin(listing models.Listing, vehicles int) error
	VehicleStarted(index int, v models.CompatibleVehicle) error
	EngineProcessed(v models.CompatibleVehicle, r models.EngineResult) error
	VehicleFinished(row models.FitmentRow) error
	VehicleFailed(v models.CompatibleVehicle, err error) error
	Close() error
}

// EngineLine is the trace line for one processed engine.
func EngineLine(r models.EngineResult) string {
	info := r.PartInfo
	if info == "" {
		info = "No fit"
	}
	return fmt.Sprintf("Results for engine %d (%s): %s", r.Engine.Index, r.Engine.Displacement, info)
}

// AbandonNote explains, under the engine line, why an engine never reached
// a fit decision. It is empty for engines that completed.
func AbandonNote(r models.EngineResult) string {
	if !r.Abandoned {
		return ""
	}
	return fmt.Sprintf("  abandoned at %s: %s", r.Stage, r.Reason)
}

// VehicleHeader is the line that opens a vehicle's group in the trace.
func VehicleHeader(v models.CompatibleVehicle) string {
	return fmt.Sprintf("%s %s (%s)", v.Make, v.Model, v.Years())
}

// MultiSink fans every call out to several sinks. All sinks are called even
// when one fails; the errors are joined.
type MultiSink []Sink

func (m MultiSink) Begin(listing models.Listing, vehicles int) error {
	return m.each(func(s Sink) error { return s.Begin(listing, vehicles) })
}

func (m MultiSink) VehicleStarted(index int, v models.CompatibleVehicle) error {
	return m.each(func(s Sink) error { return s.VehicleStarted(index, v) })
}

func (m MultiSink) EngineProcessed(v models.CompatibleVehicle, r models.EngineResult) error {
	return m.each(func(s Sink) error { return s.EngineProcessed(v, r) })
}

func (m MultiSink) VehicleFinished(row models.FitmentRow) error {
	return m.each(func(s Sink) error { return s.VehicleFinished(row) })
}

func (m MultiSink) VehicleFailed(v models.CompatibleVehicle, err error) error {
	return m.each(func(s Sink) error { return s.VehicleFailed(v, err) })
}

func (m MultiSink) Close() error {
	return m.each(Sink.Close)
}

func (m MultiSink) each(fn func(Sink) error) error {
	var errs []error
	for _, s := range m {
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemorySink keeps everything in memory. It is safe to read while the
// engine is still writing.
type MemorySink struct {
	mu       sync.RWMutex
	listing  models.Listing
	vehicles int
	rows     []models.FitmentRow
	failures []models.VehicleError
	trace    []string
	closed   bool
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Begin(listing models.Listing, vehicles int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listing = listing
	m.vehicles = vehicles
	m.trace = append(m.trace, "Extra information for SKU "+listing.PartNumber)
	return nil
}

func (m *MemorySink) VehicleStarted(_ int, v models.CompatibleVehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trace = append(m.trace, VehicleHeader(v))
	return nil
}

func (m *MemorySink) EngineProcessed(_ models.CompatibleVehicle, r models.EngineResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trace = append(m.trace, EngineLine(r))
	if note := AbandonNote(r); note != "" {
		m.trace = append(m.trace, note)
	}
	return nil
}

func (m *MemorySink) VehicleFinished(row models.FitmentRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, row)
	return nil
}

func (m *MemorySink) VehicleFailed(v models.CompatibleVehicle, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, models.VehicleError{Vehicle: v, Error: *models.DetailOf(err)})
	return nil
}

func (m *MemorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Report returns a snapshot of everything received so far.
func (m *MemorySink) Report() models.FitmentReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.FitmentReport{
		Listing:  m.listing,
		Vehicles: m.vehicles,
		Rows:     append([]models.FitmentRow(nil), m.rows...),
		Failures: append([]models.VehicleError(nil), m.failures...),
	}
}

// Trace returns the trace lines received so far.
func (m *MemorySink) Trace() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.trace...)
}

// Done reports whether Close has been called.
func (m *MemorySink) Done() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}


// Summary renders a finished report as the plain text block shown to users.
func Summary(r models.FitmentReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Compatibility Results for %s\n", r.Listing.PartNumber)
	fmt.Fprintf(&b, "Manufacturer: %s\n", r.Listing.Manufacturer)
	fmt.Fprintf(&b, "Category: %s\n", r.Listing.Category)
	b.WriteString(strings.Repeat("=", 80) + "\n\n")

	for _, row := range r.Rows {
		fmt.Fprintf(&b, "%s %s (%s)\n", row.Make, row.Model, row.Years())
		fmt.Fprintf(&b, "Position: %s\n", row.Position)
		fmt.Fprintf(&b, "Engine Info: %s\n", row.Extra)
		b.WriteString(strings.Repeat("-", 50) + "\n")
	}
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "Error processing %s %s: %s\n", f.Vehicle.Make, f.Vehicle.Model, f.Error.Message)
		b.WriteString(strings.Repeat("-", 50) + "\n")
	}
	return b.String()
}
