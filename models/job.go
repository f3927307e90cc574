package models

// Job statuses.
const (
	JobQueued     = "queued"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// JobProgress is the latest progress message of a running job.
type JobProgress struct {
	Message  string `json:"message"`
	Vehicle  int    `json:"vehicle"`
	Vehicles int    `json:"vehicles"`
	Engine   int    `json:"engine,omitempty"`
	Engines  int    `json:"engines,omitempty"`
}

// FitmentJobResponse is the immediate response for POST /api/v1/fitment.
type FitmentJobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// FitmentStatusResponse is the response for GET /api/v1/fitment/:id.
type FitmentStatusResponse struct {
	ID       string      `json:"id"`
	Status   string      `json:"status"`
	Progress JobProgress `json:"progress"`

	// Report grows while the job runs; it holds every finished vehicle.
	Report *FitmentReport `json:"report,omitempty"`

	// Specifications is set when the request asked for them.
	Specifications []SpecificationRow `json:"specifications,omitempty"`

	// Summary is the plain text report, set once the job has finished.
	Summary string `json:"summary,omitempty"`

	// Files lists the report files written for the job.
	Files []string `json:"files,omitempty"`

	Error     *ErrorDetail `json:"error,omitempty"`
	CreatedAt int64        `json:"created_at"`
}
