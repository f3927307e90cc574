package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/partfit/models"
	"github.com/use-agent/partfit/specs"
)

// Catalog is the synchronous part of catalog.Service.
type Catalog interface {
	Listings(ctx context.Context, partID string) ([]models.Listing, error)
	Specifications(ctx context.Context, infoURL string) ([]models.MeasurementRecord, error)
}

// Listings returns a handler for POST /api/v1/listings.
func Listings(cat Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ListingsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		partID := strings.TrimSpace(req.PartID)

		listings, err := cat.Listings(c.Request.Context(), partID)
		if err != nil {
			c.JSON(mapErrorToStatus(err), models.ListingsResponse{
				Success:  false,
				PartID:   partID,
				Listings: []models.Listing{},
				Error:    models.DetailOf(err),
			})
			return
		}

		c.JSON(http.StatusOK, models.ListingsResponse{
			Success:  true,
			PartID:   partID,
			Listings: listings,
		})
	}
}

// Specifications returns a handler for POST /api/v1/specifications.
func Specifications(cat Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SpecificationsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		records, err := cat.Specifications(c.Request.Context(), req.InfoURL)
		if err != nil {
			c.JSON(mapErrorToStatus(err), models.SpecificationsResponse{
				Success: false,
				InfoURL: req.InfoURL,
				Records: []models.MeasurementRecord{},
				Rows:    []models.SpecificationRow{},
				Error:   models.DetailOf(err),
			})
			return
		}
		if records == nil {
			records = []models.MeasurementRecord{}
		}

		c.JSON(http.StatusOK, models.SpecificationsResponse{
			Success: true,
			InfoURL: req.InfoURL,
			Records: records,
			Rows:    specs.RenderAll(records),
		})
	}
}
