package app

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"ragdesk/internal/ai"
	"ragdesk/internal/metrics"
	"ragdesk/internal/model"
	"ragdesk/internal/pkg/logger"
	"ragdesk/internal/repository"
)

const recentConversationLimit = 10

// GenerationConfig holds the parameters shared by every answer.
type GenerationConfig struct {
	Language    string
	Temperature float32
	MaxTokens   int
}

func (c GenerationConfig) withDefaults() GenerationConfig {
	if strings.TrimSpace(c.Language) == "" {
		c.Language = "English"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	return c
}

// QueryService answers single-shot questions against a collection.
type QueryService struct {
	retriever *Retriever
	registry  *ai.Registry
	prompts   *SystemPromptService
	convRepo  *repository.ConversationRepository
	gen       GenerationConfig
}

type QueryInput struct {
	UserID         uint
	Prompt         string
	Collection     string
	Style          StyleOptions
	SystemPromptID *uint
	Backend        string
}

type QueryResult struct {
	GeneratedText   string               `json:"generated_text"`
	Citations       []string             `json:"citations"`
	Sources         []Citation           `json:"sources"`
	Conversations   []model.Conversation `json:"conversations"`
	SelectedService ai.Backend           `json:"selected_service"`
}

func NewQueryService(
	retriever *Retriever,
	registry *ai.Registry,
	prompts *SystemPromptService,
	convRepo *repository.ConversationRepository,
	gen GenerationConfig,
) *QueryService {
	return &QueryService{
		retriever: retriever,
		registry:  registry,
		prompts:   prompts,
		convRepo:  convRepo,
		gen:       gen.withDefaults(),
	}
}

// resolveBackend parses raw and returns the matching generator. An empty raw
// selects the registry default.
func resolveBackend(registry *ai.Registry, raw string) (ai.Generator, error) {
	var backend ai.Backend
	if strings.TrimSpace(raw) != "" {
		b, err := ai.ParseBackend(raw)
		if err != nil {
			return nil, err
		}
		backend = b
	}
	return registry.Get(backend)
}

func (s *QueryService) Ask(ctx context.Context, input QueryInput) (result *QueryResult, err error) {
	prompt := strings.TrimSpace(input.Prompt)
	collection := strings.TrimSpace(input.Collection)
	if input.UserID == 0 || prompt == "" || collection == "" {
		return nil, ErrInvalidInput
	}

	generator, err := resolveBackend(s.registry, input.Backend)
	if err != nil {
		return nil, err
	}
	backend := generator.Backend()
	defer func() { metrics.QueriesTotal.WithLabelValues(string(backend), metrics.StatusLabel(err)).Inc() }()

	systemPrompt, err := s.prompts.Resolve(input.SystemPromptID)
	if err != nil {
		return nil, err
	}

	retrieval, err := s.retriever.Retrieve(ctx, collection, prompt)
	if err != nil {
		return nil, err
	}

	messages := []ai.ChatMessage{
		{Role: ai.RoleSystem, Content: systemPrompt},
		{Role: ai.RoleUser, Content: buildUserMessage(retrieval.Context, prompt, s.gen.Language, input.Style)},
	}
	answer, err := generate(ctx, generator, messages, s.gen)
	if err != nil {
		return nil, err
	}

	citations := citationStrings(retrieval.Citations)
	conv := &model.Conversation{
		UserID:         input.UserID,
		Input:          prompt,
		Output:         answer,
		Citations:      strings.Join(citations, "\n"),
		SystemPromptID: input.SystemPromptID,
		Collection:     collection,
		Backend:        string(backend),
	}
	if err := s.convRepo.Create(conv); err != nil {
		return nil, err
	}
	recent, err := s.convRepo.ListRecentByUserID(input.UserID, recentConversationLimit)
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Info("query answered",
		zap.String("collection", collection),
		zap.String("backend", string(backend)),
		zap.Int("citations", len(citations)),
	)
	return &QueryResult{
		GeneratedText:   answer,
		Citations:       citations,
		Sources:         retrieval.Citations,
		Conversations:   recent,
		SelectedService: backend,
	}, nil
}

func (s *QueryService) ListConversations(userID uint, limit int) ([]model.Conversation, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.convRepo.ListRecentByUserID(userID, limit)
}

// ClearConversations deletes the user's single-shot history.
func (s *QueryService) ClearConversations(userID uint) (int64, error) {
	if userID == 0 {
		return 0, ErrInvalidInput
	}
	return s.convRepo.DeleteByUserID(userID)
}

func generate(ctx context.Context, g ai.Generator, messages []ai.ChatMessage, cfg GenerationConfig) (string, error) {
	start := time.Now()
	out, err := g.Generate(ctx, messages, ai.GenerateParams{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens})
	metrics.GenerationDuration.WithLabelValues(string(g.Backend())).Observe(time.Since(start).Seconds())
	if err != nil {
		logger.WithContext(ctx).Error("generation failed", zap.String("backend", string(g.Backend())), zap.Error(err))
		return "", err
	}
	return strings.TrimSpace(out), nil
}
