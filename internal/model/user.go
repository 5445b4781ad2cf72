// Package model defines database models
package model

import "time"

type User struct {
	ID           string  `gorm:"primaryKey" json:"id"`
	Username     string  `gorm:"uniqueIndex;not null" json:"username"`
	Email        *string `gorm:"uniqueIndex" json:"email,omitempty"`
	PasswordHash string  `gorm:"not null" json:"-"`
	Firstname    string  `json:"firstname,omitempty"`
	Lastname     string  `json:"lastname,omitempty"`

	// Tokens issued before this point are rejected, so changing the
	// password logs out every other session
	PasswordChangedAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`

	Files []File `gorm:"foreignKey:UserID" json:"-"`
}
