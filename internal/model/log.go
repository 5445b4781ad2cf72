package model

import "time"

type LogAction string

const (
	ActionUpload           LogAction = "UPLOAD"
	ActionDownload         LogAction = "DOWNLOAD"
	ActionDelete           LogAction = "DELETE"
	ActionShare            LogAction = "SHARE"
	ActionViewFiles        LogAction = "VIEW_FILES"
	ActionToggleVisibility LogAction = "TOGGLE_VISIBILITY"
	ActionUpdateUser       LogAction = "UPDATE_USER"
	ActionChangePassword   LogAction = "CHANGE_PASSWORD"
	ActionRegister         LogAction = "REGISTER"
	ActionLogin            LogAction = "LOGIN"
)

// Log is an append-only audit record. Rows are never updated and never
// deleted by request handling, only the retention job prunes them.
type Log struct {
	ID     string    `gorm:"primaryKey" json:"id"`
	UserID string    `gorm:"index;not null" json:"-"`
	Action LogAction `gorm:"index;not null" json:"action"`

	Details string `json:"details,omitempty"`

	// Soft reference on purpose. Deleting a file must not be blocked by
	// its history, so this may point at a row that no longer exists
	FileID *string `gorm:"index" json:"file_id,omitempty"`

	Timestamp time.Time `gorm:"index" json:"timestamp"`
}
