package api

import (
	"errors"
	"net/http"

	"skyvault/file-api/internal/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (a *API) LogFetch(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	logID := c.Param("id")

	var entry model.Log

	err := a.DB.Where("id = ?", logID).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "Log entry not found",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch log entry", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if entry.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{
			"error":     "Access denied",
			"requestID": requestID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"log": entry,
	})
}
