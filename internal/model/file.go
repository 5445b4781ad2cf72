package model

import "time"

type File struct {
	ID     string `gorm:"primaryKey" json:"id"`
	UserID string `gorm:"index;not null" json:"-"`

	// Different users may upload files with the same name so the object
	// lives under a per-user key, see storage.ObjectKey
	Key string `gorm:"not null" json:"-"`

	// Original file name as uploaded
	Name string `gorm:"not null" json:"name"`

	Size int64  `json:"size"`
	Type string `json:"type"`

	// Virtual grouping only. Empty string is the root folder and listing
	// filters on exact equality, nothing checks that a folder "exists"
	Folder string `gorm:"index" json:"folder"`

	// Mirrored by the store-side ACL and the public=true object tag.
	// Only service.Files may flip either half
	IsPublic bool `json:"is_public"`

	UploadedAt   time.Time  `gorm:"index" json:"uploaded_at"`
	LastAccessed *time.Time `json:"last_accessed,omitempty"`
}
