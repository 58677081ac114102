package model

import "time"

// Session is a multi-turn chat bound to one collection.
type Session struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	Title          string    `gorm:"size:128;not null" json:"title"`
	Collection     string    `gorm:"size:255;not null" json:"collection"`
	Backend        string    `gorm:"size:16;not null" json:"backend"`
	SystemPromptID *uint     `json:"system_prompt_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
