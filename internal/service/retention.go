package service

import (
	"time"

	"skyvault/file-api/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LogRetention periodically prunes audit entries older than maxAge.
// This is the only code path that removes log rows, request handling
// never does.
func LogRetention(tick, maxAge time.Duration, db *gorm.DB) {
	ticker := time.NewTicker(tick)

	zap.L().Debug("Log retention attached",
		zap.Duration("tick_every", tick),
		zap.Duration("max_age", maxAge))

	go func() {
		for range ticker.C {
			cutoff := time.Now().Add(-maxAge)

			res := db.
				Where("timestamp < ?", cutoff).
				Delete(model.Log{})
			if res.Error != nil {
				zap.L().Error("Failed to prune old audit entries", zap.Error(res.Error))
				continue
			}

			if res.RowsAffected > 0 {
				zap.L().Debug("Pruned old audit entries", zap.Int64("rows", res.RowsAffected))
			}
		}
	}()
}
