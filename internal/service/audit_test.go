package service

import (
	"testing"

	"skyvault/file-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newAuditDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	if migrate {
		require.NoError(t, db.AutoMigrate(model.Log{}))
	}

	return db
}

func TestAuditRecordsEntry(t *testing.T) {
	db := newAuditDB(t, true)

	audit := NewAudit(db, 8, 1)
	audit.Start()

	fileID := "f123"
	audit.Record("alice", model.ActionUpload, "Uploaded file: a.txt", &fileID)
	audit.Flush()

	var logs []model.Log
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)

	assert.NotEmpty(t, logs[0].ID)
	assert.Equal(t, "alice", logs[0].UserID)
	assert.Equal(t, model.ActionUpload, logs[0].Action)
	assert.Equal(t, "Uploaded file: a.txt", logs[0].Details)
	require.NotNil(t, logs[0].FileID)
	assert.Equal(t, fileID, *logs[0].FileID)
	assert.False(t, logs[0].Timestamp.IsZero())
}

func TestAuditDropsWhenQueueFull(t *testing.T) {
	db := newAuditDB(t, true)

	// No worker running yet, so the queue of one fills immediately and
	// the overflow must be dropped instead of blocking
	audit := NewAudit(db, 1, 1)

	audit.Record("alice", model.ActionLogin, "Logged in", nil)
	audit.Record("alice", model.ActionLogin, "Logged in", nil)
	audit.Record("alice", model.ActionLogin, "Logged in", nil)

	audit.Start()
	audit.Flush()

	var count int64
	require.NoError(t, db.Model(model.Log{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAuditSwallowsWriteFailure(t *testing.T) {
	// Log table never migrated, every insert fails
	db := newAuditDB(t, false)

	audit := NewAudit(db, 8, 1)
	audit.Start()

	audit.Record("alice", model.ActionDelete, "Deleted file: a.txt", nil)
	audit.Flush()
}

func TestAuditDefaultsFillZeroConfig(t *testing.T) {
	db := newAuditDB(t, true)

	audit := NewAudit(db, 0, 0)
	audit.Start()

	audit.Record("alice", model.ActionRegister, "New user registered", nil)
	audit.Flush()

	var count int64
	require.NoError(t, db.Model(model.Log{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
