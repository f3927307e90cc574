package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/partfit/config"
	"github.com/use-agent/partfit/models"
	"github.com/use-agent/partfit/report"
	"github.com/use-agent/partfit/session"
)

// unit is the working state of one pass through the machine. During the
// vehicle prologue engine is 0 and only the catalog, search and engine
// list states run.
type unit struct {
	listing models.Listing
	vehicle models.CompatibleVehicle

	engine  int // suggestion row being processed; row 0 is the header
	engines int // suggestion rows seen, header included

	label        string
	displacement string
	fits         bool
	match        session.Ref
	partInfo     string
}

func (u *unit) variant() models.EngineVariant {
	disp := u.displacement
	if disp == "" {
		disp = u.label
	}
	if disp == "" {
		disp = "Unknown"
	}
	return models.EngineVariant{Index: u.engine, Label: u.label, Displacement: disp}
}

func (u *unit) result() models.EngineResult {
	return models.EngineResult{Engine: u.variant(), Fits: u.fits, PartInfo: u.partInfo}
}

// sinkError marks a report write failure, which stops the whole run.
type sinkError struct{ err error }

func (e *sinkError) Error() string { return "report sink: " + e.err.Error() }
func (e *sinkError) Unwrap() error { return e.err }

// FitmentEngine decides fit for every engine variant of every compatible
// vehicle of a listing.
type FitmentEngine struct {
	sess    session.Session
	cfg     config.CatalogConfig
	machine machine
}

func NewFitmentEngine(sess session.Session, cfg config.CatalogConfig) *FitmentEngine {
	e := &FitmentEngine{sess: sess, cfg: cfg}
	e.machine = machine{steps: map[State]stepFunc{
		StateNavigateCatalog:  e.navigateCatalog,
		StateSearchVehicle:    e.searchVehicle,
		StateListEngines:      e.listEngines,
		StateSelectEngine:     e.selectEngine,
		StateReadDisplacement: e.readDisplacement,
		StateNavigateCategory: e.navigateCategory,
		StateFilterByPart:     e.filterByPart,
		StateCheckFit:         e.checkFit,
		StateExtractFootnotes: e.extractFootnotes,
		StateAggregate:        e.aggregate,
	}}
	return e
}

// Run processes vehicles in order, sending every engine result and every
// finished or failed vehicle to sink as it happens. A failure confined to
// one vehicle is recorded and the next vehicle runs. A fatal session error
// or a sink failure stops the run and is returned with the partial report.
// Run does not close sink.
func (e *FitmentEngine) Run(ctx context.Context, listing models.Listing, vehicles []models.CompatibleVehicle, sink report.Sink, progress ProgressFunc) (models.FitmentReport, error) {
	n := startNotifier(progress, progressBuffer)
	defer stopNotifier(n)
	return e.run(ctx, listing, vehicles, sink, n)
}

func (e *FitmentEngine) run(ctx context.Context, listing models.Listing, vehicles []models.CompatibleVehicle, sink report.Sink, n *notifier) (models.FitmentReport, error) {
	rep := models.FitmentReport{Listing: listing, Vehicles: len(vehicles)}
	if err := sink.Begin(listing, len(vehicles)); err != nil {
		return rep, &sinkError{err}
	}

	for i, v := range vehicles {
		n.notify(Progress{
			Message:  fmt.Sprintf("Processing vehicle %d/%d", i+1, len(vehicles)),
			Vehicle:  i + 1,
			Vehicles: len(vehicles),
		})
		if err := sink.VehicleStarted(i, v); err != nil {
			return rep, &sinkError{err}
		}

		row, err := e.resolveVehicle(ctx, listing, v, sink, n, i+1, len(vehicles))
		var se *sinkError
		switch {
		case errors.As(err, &se):
			return rep, err
		case models.IsFatal(err):
			slog.Error("fitment run stopped", "part", listing.PartNumber, "vehicle", i+1, "error", err)
			return rep, err
		case err != nil:
			slog.Warn("vehicle failed", "make", v.Make, "model", v.Model, "years", v.Years(), "error", err)
			rep.Failures = append(rep.Failures, models.VehicleError{Vehicle: v, Error: *models.DetailOf(err)})
			if err := sink.VehicleFailed(v, err); err != nil {
				return rep, &sinkError{err}
			}
		default:
			rep.Rows = append(rep.Rows, row)
			if err := sink.VehicleFinished(row); err != nil {
				return rep, &sinkError{err}
			}
			slog.Info("vehicle processed", "make", row.Make, "model", row.Model, "years", row.Years(),
				"position", row.Position, "extra", row.Extra)
		}
	}

	n.notify(Progress{Message: "Compatibility complete", Vehicle: len(vehicles), Vehicles: len(vehicles)})
	return rep, nil
}

// resolveVehicle collects the vehicle's engine list and then runs every
// engine through the machine, folding each completed result into the
// vehicle. Failing to collect the engine list fails the vehicle.
func (e *FitmentEngine) resolveVehicle(ctx context.Context, listing models.Listing, v models.CompatibleVehicle, sink report.Sink, n *notifier, vehicleNo, vehicleCount int) (models.FitmentRow, error) {
	prologue := &unit{listing: listing, vehicle: v}
	ab, err := e.machine.run(ctx, prologue, StateNavigateCatalog, StateSelectEngine)
	if err != nil {
		return models.FitmentRow{}, err
	}
	if ab != nil {
		return models.FitmentRow{}, models.NewCatalogError(models.CodeOf(ab.err),
			fmt.Sprintf("%s failed for %q", ab.state, strings.TrimSpace(v.SearchText())), ab.err)
	}

	acc := v
	var stopped *abandonment
	for j := 1; j < prologue.engines; j++ {
		u := &unit{listing: listing, vehicle: acc, engine: j}

		var res models.EngineResult
		if stopped != nil {
			res = u.result()
			res.Abandoned = true
			res.Stage = stopped.state.String()
			res.Reason = "vehicle abandoned: " + stopped.err.Error()
		} else {
			ab, err := e.machine.run(ctx, u, StateNavigateCatalog, StateDone)
			if err != nil {
				return models.FitmentRow{}, err
			}
			res = u.result()
			if ab != nil {
				res.Abandoned = true
				res.Stage = ab.state.String()
				res.Reason = ab.err.Error()
				if ab.action == AbandonVehicle {
					stopped = ab
				}
				slog.Info("engine abandoned", "vehicle", v.SearchText(), "engine", j, "state", ab.state.String(),
					"action", ab.action.String(), "error", ab.err)
			} else {
				acc = u.vehicle
			}
		}

		if err := sink.EngineProcessed(acc, res); err != nil {
			return models.FitmentRow{}, &sinkError{err}
		}
		n.notify(Progress{
			Message:  fmt.Sprintf("Vehicle %d/%d: engine %d/%d processed", vehicleNo, vehicleCount, j, prologue.engines-1),
			Vehicle:  vehicleNo,
			Vehicles: vehicleCount,
			Engine:   j,
			Engines:  prologue.engines - 1,
		})
	}
	return acc.Row(), nil
}

func (e *FitmentEngine) navigateCatalog(ctx context.Context, _ *unit) error {
	return e.sess.Navigate(ctx, catalogURL(e.cfg.BaseURL))
}

func (e *FitmentEngine) searchVehicle(ctx context.Context, u *unit) error {
	input, err := e.sess.WaitVisible(ctx, session.Select(selSearchInput), e.cfg.StepTimeout)
	if err != nil {
		return err
	}
	if err := e.sess.Clear(ctx, input); err != nil {
		return err
	}
	if err := e.sess.Type(ctx, input, u.vehicle.SearchText()); err != nil {
		return err
	}
	return pause(ctx, e.cfg.SettlePause)
}

func (e *FitmentEngine) listEngines(ctx context.Context, u *unit) error {
	if _, err := e.sess.WaitVisible(ctx, session.Select(selSuggestions), e.cfg.StepTimeout); err != nil {
		return err
	}
	rows, err := e.sess.FindAll(ctx, session.Select(selSuggestions))
	if err != nil {
		return err
	}
	u.engines = len(rows)
	return nil
}

// selectEngine re-reads the live suggestion rows; rows from an earlier
// page load are never reused.
func (e *FitmentEngine) selectEngine(ctx context.Context, u *unit) error {
	rows, err := e.sess.FindAll(ctx, session.Select(selSuggestions))
	if err != nil {
		return err
	}
	if u.engine >= len(rows) {
		return models.NewCatalogError(models.ErrCodeNotFound,
			fmt.Sprintf("engine %d gone, only %d suggestion rows", u.engine, len(rows)), nil)
	}
	row := rows[u.engine]

	text, err := e.sess.Text(ctx, row)
	if err != nil && !models.IsSoft(err) {
		return err
	}
	u.label = strings.TrimSpace(text)

	return SafeClick(ctx, e.sess, row)
}

func (e *FitmentEngine) readDisplacement(ctx context.Context, u *unit) error {
	u.displacement = u.label
	crumb, err := e.sess.WaitVisible(ctx, session.Select(selBreadcrumb), e.cfg.StepTimeout)
	if err != nil {
		return err
	}
	text, err := e.sess.Text(ctx, crumb)
	if err != nil {
		return err
	}
	if text = strings.TrimSpace(text); text != "" {
		u.displacement = text
	}
	return nil
}

// navigateCategory opens the top-level category and then the listing's
// category, retrying the pair up to MaxCategoryRetries times.
func (e *FitmentEngine) navigateCategory(ctx context.Context, u *unit) error {
	attempts := max(e.cfg.MaxCategoryRetries, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := pause(ctx, e.cfg.RetryPause); err != nil {
				return err
			}
		}
		err := e.openCategory(ctx, u.listing.Category)
		if err == nil {
			return nil
		}
		if !models.IsSoft(err) {
			return err
		}
		lastErr = err
		slog.Debug("category navigation attempt failed", "category", u.listing.Category, "attempt", attempt, "error", err)
	}
	return models.NewCatalogError(models.ErrCodeNotFound,
		fmt.Sprintf("category %q not reached after %d attempts", u.listing.Category, attempts), lastErr)
}

func (e *FitmentEngine) openCategory(ctx context.Context, category string) error {
	top, err := e.sess.WaitVisible(ctx, session.Select(topCategoryXPath(e.cfg.TopCategory)), e.cfg.StepTimeout)
	if err != nil {
		return err
	}
	if err := SafeClick(ctx, e.sess, top); err != nil {
		return err
	}
	if err := pause(ctx, e.cfg.SettlePause); err != nil {
		return err
	}
	link, err := e.sess.WaitVisible(ctx, session.Select(categoryXPath(category)), e.cfg.StepTimeout)
	if err != nil {
		return err
	}
	return SafeClick(ctx, e.sess, link)
}

func (e *FitmentEngine) filterByPart(ctx context.Context, u *unit) error {
	input, err := e.sess.WaitVisible(ctx, session.Select(selFilterInput), e.cfg.StepTimeout)
	if err != nil {
		return err
	}
	if err := e.sess.Clear(ctx, input); err != nil {
		return err
	}
	if err := e.sess.Type(ctx, input, u.listing.PartNumber); err != nil {
		return err
	}
	if err := e.sess.PressEnter(ctx, input); err != nil {
		return err
	}
	return pause(ctx, e.cfg.SettlePause)
}

// checkFit treats a missing listing as a valid "does not fit".
func (e *FitmentEngine) checkFit(ctx context.Context, u *unit) error {
	match, err := e.sess.WaitVisible(ctx, session.Select(fitXPath(u.listing.Manufacturer)), e.cfg.FitProbeTimeout)
	if err != nil {
		u.fits = false
		if models.IsSoft(err) {
			return nil
		}
		return err
	}
	u.fits = true
	u.match = match
	return nil
}

func (e *FitmentEngine) extractFootnotes(ctx context.Context, u *unit) error {
	if !u.fits {
		return nil
	}
	refs, err := e.sess.FindAll(ctx, u.match.Find(selFootnote))
	if err != nil {
		return err
	}
	notes := make([]string, 0, len(refs))
	for _, ref := range refs {
		text, err := e.sess.Text(ctx, ref)
		if err != nil {
			if models.IsSoft(err) {
				continue
			}
			return err
		}
		notes = append(notes, text)
	}
	u.partInfo = JoinFootnotes(notes)
	return nil
}

func (e *FitmentEngine) aggregate(_ context.Context, u *unit) error {
	u.vehicle = Aggregate(u.vehicle, u.result())
	return nil
}

// pause sleeps for d unless ctx ends first, which is fatal to the run.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return models.NewCatalogError(models.ErrCodeSession, "fitment run canceled", ctx.Err())
	case <-t.C:
		return nil
	}
}

