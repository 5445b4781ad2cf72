package api

import (
	"net/http"

	"skyvault/file-api/internal/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type actionCount struct {
	Action model.LogAction `json:"action"`
	Count  int64           `json:"count"`
}

func (a *API) LogStats(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	var counts []actionCount

	err := a.DB.Model(model.Log{}).
		Select("action, count(*) as count").
		Where("user_id = ?", userID).
		Group("action").
		Order("count DESC").
		Find(&counts).
		Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to aggregate log stats", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	var total int64
	for _, v := range counts {
		total += v.Count
	}

	c.JSON(http.StatusOK, gin.H{
		"stats": counts,
		"total": total,
	})
}
