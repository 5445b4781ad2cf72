package api

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"skyvault/file-api/internal/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var validSortFields = []string{"timestamp", "action"}

func (a *API) LogList(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Page must be a positive number",
			"requestID": requestID,
		})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 250 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Limit must be between 1 and 250",
			"requestID": requestID,
		})
		return
	}

	sortBy := c.DefaultQuery("sort_by", "timestamp")
	if !slices.Contains(validSortFields, sortBy) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid sort field",
			"requestID": requestID,
		})
		return
	}

	sortOrder := c.DefaultQuery("sort_order", "desc")
	if sortOrder != "asc" && sortOrder != "desc" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Sort order must be asc or desc",
			"requestID": requestID,
		})
		return
	}

	q := a.DB.Model(model.Log{}).Where("user_id = ?", userID)

	if action := c.Query("action"); action != "" {
		q = q.Where("action = ?", action)
	}

	if fileID := c.Query("file_id"); fileID != "" {
		q = q.Where("file_id = ?", fileID)
	}

	if start := c.Query("start_date"); start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "start_date must be RFC 3339",
				"requestID": requestID,
			})
			return
		}
		q = q.Where("timestamp >= ?", t)
	}

	if end := c.Query("end_date"); end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "end_date must be RFC 3339",
				"requestID": requestID,
			})
			return
		}
		q = q.Where("timestamp <= ?", t)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to count log entries", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	var logs []model.Log

	err = q.
		Order(sortBy + " " + sortOrder).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&logs).
		Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch log entries", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}

	c.JSON(http.StatusOK, gin.H{
		"logs": logs,
		"pagination": gin.H{
			"total": total,
			"page":  page,
			"limit": limit,
			"pages": pages,
		},
	})
}
