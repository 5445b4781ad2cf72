package api

import (
	"errors"
	"net/http"

	"skyvault/file-api/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps the service error taxonomy onto HTTP statuses.
// Backend failures get logged here with their cause, the caller only
// ever sees a short message.
func respondError(c *gin.Context, err error) {
	requestID := c.MustGet("requestID").(string)

	switch {
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":     "Authentication required",
			"requestID": requestID,
		})

	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{
			"error":     "Access denied",
			"requestID": requestID,
		})

	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "File not found",
			"requestID": requestID,
		})

	default:
		var validationErr *service.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     validationErr.Reason,
				"requestID": requestID,
			})
			return
		}

		var storageErr *service.StorageError
		if errors.As(err, &storageErr) {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":     "Storage backend unavailable",
				"requestID": requestID,
			})

			zap.L().Error("Object store call failed", zap.String("requestID", requestID), zap.Error(err))
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Request failed", zap.String("requestID", requestID), zap.Error(err))
	}
}
