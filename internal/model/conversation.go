package model

import "time"

// Conversation records one single-shot question and its answer.
type Conversation struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	Input          string    `gorm:"type:text;not null" json:"input"`
	Output         string    `gorm:"type:text;not null" json:"output"`
	Citations      string    `gorm:"type:text" json:"citations"`
	SystemPromptID *uint     `json:"system_prompt_id,omitempty"`
	Collection     string    `gorm:"size:255;not null" json:"collection"`
	Backend        string    `gorm:"size:16;not null" json:"backend"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}
