package catalog

import (
	"strings"

	"github.com/use-agent/partfit/models"
)

const (
	footnoteSep = "; "
	noFitSep    = ", "
)

// Aggregate folds one engine result into the vehicle and returns the
// updated copy:
//   - a fit with footnotes: text before the first "; " becomes Position if
//     Position is still empty, the rest is appended to Extra with "; ";
//   - no fit: "No {displacement}" is appended to Extra with ", ";
//   - a fit without footnotes, or an abandoned engine: no change.
//
// Duplicate clauses from different engines are kept.
func Aggregate(v models.CompatibleVehicle, r models.EngineResult) models.CompatibleVehicle {
	if r.Abandoned {
		return v
	}
	switch {
	case r.Fits && r.PartInfo != "":
		position, fragment, _ := strings.Cut(r.PartInfo, footnoteSep)
		if v.Position == "" {
			v.Position = position
		}
		if fragment != "" {
			v.Extra = appendClause(v.Extra, fragment, footnoteSep)
		}
	case !r.Fits:
		v.Extra = appendClause(v.Extra, "No "+r.Engine.Displacement, noFitSep)
	}
	return v
}

// Fold applies Aggregate to every result in order and freezes the vehicle.
func Fold(v models.CompatibleVehicle, results []models.EngineResult) models.FitmentRow {
	for _, r := range results {
		v = Aggregate(v, r)
	}
	return v.Row()
}

// JoinFootnotes trims the footnote texts, drops empty and repeated ones
// keeping the first occurrence, and joins the rest with " or ".
func JoinFootnotes(notes []string) string {
	seen := make(map[string]struct{}, len(notes))
	kept := make([]string, 0, len(notes))
	for _, n := range notes {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		kept = append(kept, n)
	}
	return strings.Join(kept, " or ")
}

func appendClause(extra, clause, sep string) string {
	if extra == "" {
		return clause
	}
	return extra + sep + clause
}
