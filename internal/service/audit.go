package service

import (
	"sync"
	"time"

	"skyvault/file-api/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type auditJob struct {
	actorID string
	action  model.LogAction
	details string
	fileID  *string
	at      time.Time
}

// Audit writes the activity log off the request path. Record never
// blocks and never reports failure to the caller, a full queue drops
// the entry with a warning and worker-side insert errors are only
// logged. The operations being audited must not be failed by their
// audit entry.
type Audit struct {
	db      *gorm.DB
	jobs    chan auditJob
	workers int

	wg sync.WaitGroup
}

func NewAudit(db *gorm.DB, queueSize, workers int) *Audit {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 1
	}

	return &Audit{
		db:      db,
		jobs:    make(chan auditJob, queueSize),
		workers: workers,
	}
}

func (a *Audit) Start() {
	for i := 0; i < a.workers; i++ {
		go a.worker()
	}
}

func (a *Audit) worker() {
	for job := range a.jobs {
		a.write(job)
		a.wg.Done()
	}
}

func (a *Audit) write(job auditJob) {
	id, err := newID()
	if err != nil {
		zap.L().Error("Failed to generate log entry ID", zap.Error(err))
		return
	}

	entry := model.Log{
		ID:        id,
		UserID:    job.actorID,
		Action:    job.action,
		Details:   job.details,
		FileID:    job.fileID,
		Timestamp: job.at,
	}

	if err := a.db.Create(&entry).Error; err != nil {
		zap.L().Error("Failed to write audit entry",
			zap.String("actor", job.actorID),
			zap.String("action", string(job.action)),
			zap.Error(err))
	}
}

// Record enqueues an audit entry. fileID may be nil when the action has
// no subject file or the file no longer exists.
func (a *Audit) Record(actorID string, action model.LogAction, details string, fileID *string) {
	job := auditJob{
		actorID: actorID,
		action:  action,
		details: details,
		fileID:  fileID,
		at:      time.Now(),
	}

	a.wg.Add(1)

	select {
	case a.jobs <- job:
	default:
		a.wg.Done()
		zap.L().Warn("Audit queue full, dropping entry",
			zap.String("actor", actorID),
			zap.String("action", string(action)))
	}
}

// Flush blocks until every accepted entry has been written. Used on
// shutdown and by tests.
func (a *Audit) Flush() {
	a.wg.Wait()
}
