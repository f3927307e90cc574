package models

import "strings"

// ListingsRequest is the payload for POST /api/v1/listings.
type ListingsRequest struct {
	// PartID is the part number or SKU to search for. Required.
	PartID string `json:"part_id" binding:"required"`
}

// SpecificationsRequest is the payload for POST /api/v1/specifications.
type SpecificationsRequest struct {
	// InfoURL is a listing's "more info" page. Required.
	InfoURL string `json:"info_url" binding:"required,url"`
}

// FitmentRequest is the payload for POST /api/v1/fitment.
type FitmentRequest struct {
	// PartID is the search that produced the listing. Required.
	PartID string `json:"part_id" binding:"required"`

	// Index selects the listing within PartID's results, as returned by
	// the listings endpoint. Default: 0.
	Index int `json:"index" binding:"min=0"`

	// Specifications also extracts the listing's specification sheet.
	Specifications bool `json:"specifications,omitempty"`

	// WebhookURL receives a fitment.completed or fitment.failed event.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`

	// WebhookSecret signs the webhook body. Falls back to the server's
	// configured secret.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Validate checks the fields the engine relies on. It is also applied to
// requests that did not come through the HTTP binding.
func (r *FitmentRequest) Validate() error {
	r.PartID = strings.TrimSpace(r.PartID)
	if r.PartID == "" {
		return NewCatalogError(ErrCodeInvalidInput, "part_id is required", nil)
	}
	if r.Index < 0 {
		return NewCatalogError(ErrCodeInvalidInput, "index must not be negative", nil)
	}
	return nil
}
