package models

import "time"

// Message is one persisted point-to-point message. Rows are append-only:
// every field is immutable after insert except Read, which transitions
// false to true exactly once, through the receiver's mark-read.
type Message struct {
	ID uint `gorm:"primaryKey" json:"id"`

	SenderID   string `gorm:"type:uuid;not null;index:idx_thread" json:"sender_id"`
	ReceiverID string `gorm:"type:uuid;not null;index:idx_thread" json:"receiver_id"`
	// Content is the message text; the store rejects content that is empty
	// after trimming.
	Content string `gorm:"type:text;not null" json:"content"`
	Read    bool   `gorm:"not null;default:false" json:"read"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
