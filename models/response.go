package models

// ListingsResponse is the response for POST /api/v1/listings.
type ListingsResponse struct {
	Success  bool         `json:"success"`
	PartID   string       `json:"part_id"`
	Listings []Listing    `json:"listings"`
	Error    *ErrorDetail `json:"error,omitempty"`
}

// SpecificationsResponse is the response for POST /api/v1/specifications.
type SpecificationsResponse struct {
	Success bool                `json:"success"`
	InfoURL string              `json:"info_url"`
	Records []MeasurementRecord `json:"records"`

	// Rows holds each record rendered as label and canonical value.
	Rows  []SpecificationRow `json:"rows"`
	Error *ErrorDetail       `json:"error,omitempty"`
}

// ErrorResponse is the body of any request rejected before a handler ran.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	ActiveJobs    int    `json:"active_jobs"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
