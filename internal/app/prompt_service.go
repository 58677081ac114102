package app

import (
	"errors"
	"strings"

	"ragdesk/internal/model"
	"ragdesk/internal/repository"
)

var ErrPromptNotFound = errors.New("system prompt not found")

// DefaultSystemPrompt is used when a request selects no stored prompt.
const DefaultSystemPrompt = "You are a helpful AI assistant."

type SystemPromptService struct {
	repo *repository.SystemPromptRepository
}

type SystemPromptInput struct {
	Title   string
	Content string
}

func NewSystemPromptService(repo *repository.SystemPromptRepository) *SystemPromptService {
	return &SystemPromptService{repo: repo}
}

func (s *SystemPromptService) List() ([]model.SystemPrompt, error) {
	return s.repo.List()
}

func (s *SystemPromptService) Get(id uint) (*model.SystemPrompt, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	prompt, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if prompt == nil {
		return nil, ErrPromptNotFound
	}
	return prompt, nil
}

func (s *SystemPromptService) Create(input SystemPromptInput) (*model.SystemPrompt, error) {
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	if title == "" || content == "" {
		return nil, ErrInvalidInput
	}
	prompt := &model.SystemPrompt{Title: title, Content: content}
	if err := s.repo.Create(prompt); err != nil {
		return nil, err
	}
	return prompt, nil
}

func (s *SystemPromptService) Update(id uint, input SystemPromptInput) (*model.SystemPrompt, error) {
	prompt, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if title := strings.TrimSpace(input.Title); title != "" {
		prompt.Title = title
	}
	if content := strings.TrimSpace(input.Content); content != "" {
		prompt.Content = content
	}
	if err := s.repo.Update(prompt); err != nil {
		return nil, err
	}
	return prompt, nil
}

func (s *SystemPromptService) Delete(id uint) error {
	if id == 0 {
		return ErrInvalidInput
	}
	ok, err := s.repo.Delete(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPromptNotFound
	}
	return nil
}

// Resolve returns the content of the selected prompt, or the default when id
// is nil.
func (s *SystemPromptService) Resolve(id *uint) (string, error) {
	if id == nil || *id == 0 {
		return DefaultSystemPrompt, nil
	}
	prompt, err := s.Get(*id)
	if err != nil {
		return "", err
	}
	return prompt.Content, nil
}
