package repository

import (
	"fmt"

	"gorm.io/gorm"

	"ragdesk/internal/model"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(conv *model.Conversation) error {
	if err := r.db.Create(conv).Error; err != nil {
		return fmt.Errorf("create conversation failed: %w", err)
	}
	return nil
}

// ListRecentByUserID returns the user's newest conversations first.
func (r *ConversationRepository) ListRecentByUserID(userID uint, limit int) ([]model.Conversation, error) {
	if limit <= 0 || limit > 200 {
		limit = 10
	}
	var convs []model.Conversation
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Limit(limit).Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("list conversations failed: %w", err)
	}
	return convs, nil
}

// DeleteByUserID clears the user's history and returns how many rows went.
func (r *ConversationRepository) DeleteByUserID(userID uint) (int64, error) {
	var deleted int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ?", userID).Delete(&model.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete conversations failed: %w", err)
	}
	return deleted, nil
}
