package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/partfit/models"
)

// respondError maps err to its HTTP status code and writes the structured
// JSON error body.
func respondError(c *gin.Context, err error) {
	c.JSON(mapErrorToStatus(err), models.ErrorResponse{
		Success: false,
		Error:   models.DetailOf(err),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Success: false,
		Error: &models.ErrorDetail{
			Code:    models.ErrCodeInvalidInput,
			Message: err.Error(),
		},
	})
}


// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(err error) int {
	switch models.CodeOf(err) {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeNoResults, models.ErrCodeJobNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeNotFound, models.ErrCodeStaleReference, models.ErrCodeIntercepted:
		return http.StatusBadGateway // 502
	case models.ErrCodeSession:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
