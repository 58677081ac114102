package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"ragdesk/internal/ai"
	"ragdesk/internal/metrics"
	"ragdesk/internal/model"
	"ragdesk/internal/pkg/logger"
	"ragdesk/internal/repository"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageEmpty    = errors.New("message content is empty")
	ErrMessageEnqueue  = errors.New("message enqueue failed")
)

// MessageSink persists chat messages, either directly or through a queue.
type MessageSink interface {
	SaveMessage(ctx context.Context, msg *model.Message) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID uint) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, sessionID uint, messages []model.Message) error
	DeleteHistory(ctx context.Context, sessionID uint) error
	Invalidate(ctx context.Context, sessionID uint) error
	IsDirty(ctx context.Context, sessionID uint) (bool, error)
}

// ChatService runs multi-turn retrieval-augmented conversations.
type ChatService struct {
	sessionRepo  *repository.SessionRepository
	messageRepo  *repository.MessageRepository
	sink         MessageSink
	historyCache HistoryCache
	retriever    *Retriever
	registry     *ai.Registry
	prompts      *SystemPromptService
	gen          GenerationConfig
	maxContext   int
}

type CreateSessionInput struct {
	UserID         uint
	Title          string
	Collection     string
	Backend        string
	SystemPromptID *uint
}

type SendMessageInput struct {
	UserID    uint
	SessionID uint
	Content   string
	Style     StyleOptions
}

type SendMessageResult struct {
	Messages  []model.Message `json:"messages"`
	Citations []string        `json:"citations"`
	Sources   []Citation      `json:"sources"`
	Backend   ai.Backend      `json:"selected_service"`
}

func NewChatService(
	sessionRepo *repository.SessionRepository,
	messageRepo *repository.MessageRepository,
	sink MessageSink,
	historyCache HistoryCache,
	retriever *Retriever,
	registry *ai.Registry,
	prompts *SystemPromptService,
	gen GenerationConfig,
	maxContext int,
) *ChatService {
	if maxContext <= 0 {
		maxContext = 20
	}
	return &ChatService{
		sessionRepo:  sessionRepo,
		messageRepo:  messageRepo,
		sink:         sink,
		historyCache: historyCache,
		retriever:    retriever,
		registry:     registry,
		prompts:      prompts,
		gen:          gen.withDefaults(),
		maxContext:   maxContext,
	}
}

func (s *ChatService) CreateSession(ctx context.Context, input CreateSessionInput) (*model.Session, error) {
	collection := strings.TrimSpace(input.Collection)
	if input.UserID == 0 || collection == "" {
		return nil, ErrInvalidInput
	}
	generator, err := resolveBackend(s.registry, input.Backend)
	if err != nil {
		return nil, err
	}
	if err := s.retriever.CheckCollection(ctx, collection); err != nil {
		return nil, err
	}
	if input.SystemPromptID != nil && *input.SystemPromptID != 0 {
		if _, err := s.prompts.Get(*input.SystemPromptID); err != nil {
			return nil, err
		}
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "New Chat"
	}
	session := &model.Session{
		UserID:         input.UserID,
		Title:          title,
		Collection:     collection,
		Backend:        string(generator.Backend()),
		SystemPromptID: input.SystemPromptID,
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ChatService) ListSessions(userID uint) ([]model.Session, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.sessionRepo.ListByUserID(userID)
}

func (s *ChatService) DeleteSession(ctx context.Context, userID, sessionID uint) error {
	if userID == 0 || sessionID == 0 {
		return ErrInvalidInput
	}
	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if err := s.sessionRepo.DeleteByIDAndUserID(sessionID, userID); err != nil {
		return err
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(ctx, sessionID)
	}
	return nil
}

func (s *ChatService) SendMessage(ctx context.Context, input SendMessageInput) (result *SendMessageResult, err error) {
	if input.UserID == 0 || input.SessionID == 0 {
		return nil, ErrInvalidInput
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}

	session, err := s.sessionRepo.GetByIDAndUserID(input.SessionID, input.UserID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	generator, err := resolveBackend(s.registry, session.Backend)
	if err != nil {
		return nil, err
	}
	backend := generator.Backend()
	defer func() { metrics.QueriesTotal.WithLabelValues(string(backend), metrics.StatusLabel(err)).Inc() }()

	systemPrompt, err := s.prompts.Resolve(session.SystemPromptID)
	if errors.Is(err, ErrPromptNotFound) {
		logger.WithContext(ctx).Warn("session system prompt was deleted, using default", zap.Uint("session_id", session.ID))
		systemPrompt, err = DefaultSystemPrompt, nil
	}
	if err != nil {
		return nil, err
	}

	retrieval, err := s.retriever.Retrieve(ctx, session.Collection, content)
	if err != nil {
		return nil, err
	}
	promptMessages, err := s.buildPromptMessages(session.ID, systemPrompt,
		buildUserMessage(retrieval.Context, content, s.gen.Language, input.Style))
	if err != nil {
		return nil, err
	}

	userMessage := &model.Message{
		SessionID: session.ID,
		UserID:    input.UserID,
		Role:      ai.RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if s.sink == nil {
		return nil, ErrMessageEnqueue
	}
	if s.historyCache != nil {
		_ = s.historyCache.Invalidate(ctx, session.ID)
	}
	if err := s.sink.SaveMessage(ctx, userMessage); err != nil {
		logger.WithContext(ctx).Error("save user message failed", zap.Error(err))
		return nil, ErrMessageEnqueue
	}

	answer, err := generate(ctx, generator, promptMessages, s.gen)
	if err != nil {
		return nil, err
	}
	if answer == "" {
		answer = "The model returned an empty response."
	}

	citations := citationStrings(retrieval.Citations)
	assistantMessage := &model.Message{
		SessionID: session.ID,
		UserID:    input.UserID,
		Role:      ai.RoleAssistant,
		Content:   answer,
		Citations: strings.Join(citations, "\n"),
		CreatedAt: time.Now(),
	}
	if err := s.sink.SaveMessage(ctx, assistantMessage); err != nil {
		logger.WithContext(ctx).Error("save assistant message failed", zap.Error(err))
		return nil, ErrMessageEnqueue
	}
	if err := s.sessionRepo.Touch(session.ID); err != nil {
		logger.WithContext(ctx).Warn("touch session failed", zap.Error(err))
	}

	return &SendMessageResult{
		Messages:  []model.Message{*userMessage, *assistantMessage},
		Citations: citations,
		Sources:   retrieval.Citations,
		Backend:   backend,
	}, nil
}

func (s *ChatService) GetHistory(ctx context.Context, userID, sessionID uint, limit int) ([]model.Message, error) {
	if userID == 0 || sessionID == 0 {
		return nil, ErrInvalidInput
	}

	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, sessionID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return trimMessages(cached, limit), nil
			}
		}
	}

	messages, err := s.messageRepo.ListBySessionID(sessionID, 0)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, sessionID, messages)
		}
	}
	return trimMessages(messages, limit), nil
}

func trimMessages(messages []model.Message, limit int) []model.Message {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}

// buildPromptMessages orders the system prompt, the last maxContext turns of
// the transcript and the new user turn.
func (s *ChatService) buildPromptMessages(sessionID uint, systemPrompt, userTurn string) ([]ai.ChatMessage, error) {
	recent, err := s.messageRepo.ListRecentBySessionID(sessionID, s.maxContext)
	if err != nil {
		return nil, err
	}

	messages := make([]ai.ChatMessage, 0, len(recent)+2)
	messages = append(messages, ai.ChatMessage{Role: ai.RoleSystem, Content: systemPrompt})
	for _, item := range recent {
		role := item.Role
		if role == "" {
			role = ai.RoleUser
		}
		messages = append(messages, ai.ChatMessage{Role: role, Content: item.Content})
	}
	messages = append(messages, ai.ChatMessage{Role: ai.RoleUser, Content: userTurn})
	return messages, nil
}
