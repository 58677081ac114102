package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ragdesk/internal/model"
)

type SystemPromptRepository struct {
	db *gorm.DB
}

func NewSystemPromptRepository(db *gorm.DB) *SystemPromptRepository {
	return &SystemPromptRepository{db: db}
}

func (r *SystemPromptRepository) Create(prompt *model.SystemPrompt) error {
	if err := r.db.Create(prompt).Error; err != nil {
		return fmt.Errorf("create system prompt failed: %w", err)
	}
	return nil
}

func (r *SystemPromptRepository) List() ([]model.SystemPrompt, error) {
	var prompts []model.SystemPrompt
	if err := r.db.Order("title ASC, id ASC").Find(&prompts).Error; err != nil {
		return nil, fmt.Errorf("list system prompts failed: %w", err)
	}
	return prompts, nil
}

func (r *SystemPromptRepository) GetByID(id uint) (*model.SystemPrompt, error) {
	var prompt model.SystemPrompt
	if err := r.db.First(&prompt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get system prompt failed: %w", err)
	}
	return &prompt, nil
}

func (r *SystemPromptRepository) Update(prompt *model.SystemPrompt) error {
	if err := r.db.Save(prompt).Error; err != nil {
		return fmt.Errorf("update system prompt failed: %w", err)
	}
	return nil
}

func (r *SystemPromptRepository) Delete(id uint) (bool, error) {
	res := r.db.Delete(&model.SystemPrompt{}, id)
	if res.Error != nil {
		return false, fmt.Errorf("delete system prompt failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
