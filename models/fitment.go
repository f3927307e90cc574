package models

// Listing is one part/manufacturer/category entry on a search results page.
type Listing struct {
	// Index is the listing's position in the live results container. It is
	// only meaningful while the results page that produced it is loaded;
	// after any navigation the listing must be re-resolved by this index.
	Index int `json:"index"`

	PartNumber   string `json:"part_number"`
	Manufacturer string `json:"manufacturer"`
	Category     string `json:"category"`

	// InfoURL is the listing's "more info" page, empty when the catalog
	// shows no info button for it.
	InfoURL string `json:"info_url,omitempty"`
}

// CompatibleVehicle is one row of the compatibility popup. Position and
// Extra start empty and are filled in as engine variants are processed.
type CompatibleVehicle struct {
	Make      string `json:"make"`
	Model     string `json:"model"`
	StartYear string `json:"start_year"`
	EndYear   string `json:"end_year"`
	Position  string `json:"position"`
	Extra     string `json:"extra"`
}

// Years renders the year span as a single year or "start-end".
func (v CompatibleVehicle) Years() string {
	if v.StartYear == v.EndYear {
		return v.StartYear
	}
	return v.StartYear + "-" + v.EndYear
}

// SearchText is the string typed into the catalog's vehicle search.
// The trailing space makes the catalog open its engine suggestions.
func (v CompatibleVehicle) SearchText() string {
	return v.EndYear + " " + v.Make + " " + v.Model + " "
}

// EngineVariant is one selectable drivetrain configuration under a vehicle
// search.
type EngineVariant struct {
	// Index is the suggestion row index; row 0 is the list header.
	Index        int    `json:"index"`
	Label        string `json:"label"`
	Displacement string `json:"displacement"`
}

// EngineResult is the outcome of one pass through the per-engine states.
type EngineResult struct {
	Engine   EngineVariant `json:"engine"`
	Fits     bool          `json:"fits"`
	PartInfo string        `json:"part_info,omitempty"`

	// Abandoned is set when a state failed before fit could be decided.
	// Stage names the state that failed and Reason carries its error text.
	Abandoned bool   `json:"abandoned,omitempty"`
	Stage     string `json:"stage,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// FitmentRow is the terminal, immutable form of a CompatibleVehicle,
// emitted once every engine variant for the vehicle has been processed.
type FitmentRow struct {
	Make      string `json:"make"`
	Model     string `json:"model"`
	StartYear string `json:"start_year"`
	EndYear   string `json:"end_year"`
	Position  string `json:"position"`
	Extra     string `json:"extra"`
}

// Years renders the year span as a single year or "start-end".
func (r FitmentRow) Years() string {
	if r.StartYear == r.EndYear {
		return r.StartYear
	}
	return r.StartYear + "-" + r.EndYear
}

// VehicleError records a vehicle whose processing failed outright.
type VehicleError struct {
	Vehicle CompatibleVehicle `json:"vehicle"`
	Error   ErrorDetail       `json:"error"`
}

// FitmentReport is the aggregate result of resolving one listing.
type FitmentReport struct {
	Listing  Listing        `json:"listing"`
	Vehicles int            `json:"vehicles"`
	Rows     []FitmentRow   `json:"rows"`
	Failures []VehicleError `json:"failures,omitempty"`
}

// Row freezes the vehicle into its terminal FitmentRow.
func (v CompatibleVehicle) Row() FitmentRow {
	return FitmentRow{
		Make:      v.Make,
		Model:     v.Model,
		StartYear: v.StartYear,
		EndYear:   v.EndYear,
		Position:  v.Position,
		Extra:     v.Extra,
	}
}
