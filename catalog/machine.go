package catalog

import (
	"context"
	"log/slog"

	"github.com/use-agent/partfit/models"
)

// State is one step of resolving a (vehicle, engine) pair.
type State int

const (
	StateNavigateCatalog State = iota
	StateSearchVehicle
	StateListEngines
	StateSelectEngine
	StateReadDisplacement
	StateNavigateCategory
	StateFilterByPart
	StateCheckFit
	StateExtractFootnotes
	StateAggregate
	StateDone
)

var stateNames = [...]string{
	StateNavigateCatalog:  "NavigateCatalog",
	StateSearchVehicle:    "SearchVehicle",
	StateListEngines:      "ListEngines",
	StateSelectEngine:     "SelectEngine",
	StateReadDisplacement: "ReadDisplacement",
	StateNavigateCategory: "NavigateCategory",
	StateFilterByPart:     "FilterByPart",
	StateCheckFit:         "CheckFit",
	StateExtractFootnotes: "ExtractFootnotes",
	StateAggregate:        "Aggregate",
	StateDone:             "Done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// OnFailure is what a soft failure in a state does to the loops around it.
type OnFailure int

const (
	// AbandonEngine stops the current engine; the vehicle's next engine runs.
	AbandonEngine OnFailure = iota
	// AbandonVehicle stops the current engine and every remaining one.
	AbandonVehicle
	// Proceed moves on to the next state; the step has already applied its
	// fallback.
	Proceed
)

func (f OnFailure) String() string {
	switch f {
	case AbandonEngine:
		return "abandon engine"
	case AbandonVehicle:
		return "abandon vehicle"
	default:
		return "proceed"
	}
}

type transition struct {
	next      State
	onFailure OnFailure
}

// transitions is the whole control flow: each state's successor and the
// single place its failure handling is declared.
var transitions = map[State]transition{
	StateNavigateCatalog:  {StateSearchVehicle, AbandonVehicle},
	StateSearchVehicle:    {StateListEngines, AbandonVehicle},
	StateListEngines:      {StateSelectEngine, AbandonVehicle},
	StateSelectEngine:     {StateReadDisplacement, AbandonEngine},
	StateReadDisplacement: {StateNavigateCategory, Proceed},
	StateNavigateCategory: {StateFilterByPart, AbandonEngine},
	StateFilterByPart:     {StateCheckFit, AbandonEngine},
	StateCheckFit:         {StateExtractFootnotes, Proceed},
	StateExtractFootnotes: {StateAggregate, Proceed},
	StateAggregate:        {StateDone, AbandonEngine},
}

type stepFunc func(context.Context, *unit) error

// machine runs states over a unit of work using the transition table.
type machine struct {
	steps map[State]stepFunc
}

// abandonment describes the soft failure that ended a run early.
type abandonment struct {
	state  State
	action OnFailure
	err    error
}

// run executes states starting at from until it reaches until (exclusive)
// or StateDone. A soft failure in a state whose failure action abandons
// work ends the run with an abandonment. Any other error is returned
// unchanged: fatal session errors and unexpected failures are the
// caller's to handle.
func (m machine) run(ctx context.Context, u *unit, from, until State) (*abandonment, error) {
	for state := from; state != until && state != StateDone; state = transitions[state].next {
		if err := ctx.Err(); err != nil {
			return nil, models.NewCatalogError(models.ErrCodeSession, "fitment run canceled", err)
		}

		step, ok := m.steps[state]
		if !ok {
			continue
		}
		err := step(ctx, u)
		if err == nil {
			continue
		}
		if !models.IsSoft(err) {
			return nil, err
		}

		t := transitions[state]
		if t.onFailure == Proceed {
			slog.Debug("step fell back", "state", state.String(), "engine", u.engine, "error", err)
			continue
		}
		return &abandonment{state: state, action: t.onFailure, err: err}, nil
	}
	return nil, nil
}
