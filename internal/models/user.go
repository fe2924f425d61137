package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// User is an authenticated account. The realtime core only ever references
// users by ID; the profile fields exist for the request/response surface
// (conversation summaries show the counterpart's name and avatar).
type User struct {
	ID           string         `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"uniqueIndex;not null" json:"username"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	FullName     string         `json:"full_name"`
	AvatarURL    string         `json:"avatar_url"`
	Bio          string         `json:"bio"`
	Interests    pq.StringArray `gorm:"type:text[]" json:"interests,omitempty"`
	// IsActive gates authentication; deactivated accounts keep their rows
	// but can no longer open connections.
	IsActive bool `gorm:"not null;default:true" json:"is_active"`
}

// BeforeCreate is a GORM hook that assigns a fresh UUID when the ID
// has not been set by the caller.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
