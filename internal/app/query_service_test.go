package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdesk/internal/ai"
	"ragdesk/internal/model"
)

func seedHandbook(t *testing.T, env *testEnv) string {
	t.Helper()
	text, second := twoPageText()
	env.extractor.docs["handbook.pdf"] = fakeDoc{pages: 2, text: text}
	_, err := env.ingest.CreateCollection(context.Background(), CreateCollectionInput{
		Title: "Handbook",
		Files: []FileUpload{upload("handbook.pdf")},
	})
	require.NoError(t, err)
	return second
}

func TestQueryAsk(t *testing.T) {
	env := newTestEnv(t)
	question := seedHandbook(t, env)

	res, err := env.query.Ask(context.Background(), QueryInput{
		UserID:     1,
		Prompt:     question,
		Collection: "Handbook",
	})
	require.NoError(t, err)
	assert.Equal(t, "azure answer", res.GeneratedText)
	assert.Equal(t, ai.BackendAzure, res.SelectedService)
	assert.Equal(t, []string{"handbook.pdf - p. 2", "handbook.pdf - p. 1"}, res.Citations)
	require.Len(t, res.Conversations, 1)
	assert.Equal(t, "azure answer", res.Conversations[0].Output)
	assert.Equal(t, "handbook.pdf - p. 2\nhandbook.pdf - p. 1", res.Conversations[0].Citations)

	msgs := env.azure.last()
	require.Len(t, msgs, 2)
	assert.Equal(t, ai.RoleSystem, msgs[0].Role)
	assert.Equal(t, DefaultSystemPrompt, msgs[0].Content)
	text, _ := twoPageText()
	expectedContext := question + "\n" + text[:512]
	assert.Equal(t,
		"Use this context if it's helpful: "+expectedContext+"\n\nNow, respond in English to the following prompt: "+question+
			"\nKeep the text medium, use a neutral register and stick to this tone of voice for the text: professional.",
		msgs[1].Content)
	assert.InDelta(t, 0.7, env.azure.lastOpts.Temperature, 1e-6)
	assert.Equal(t, 4096, env.azure.lastOpts.MaxTokens)
	assert.Empty(t, env.ollama.calls)
}

func TestQueryAskWithPromptStyleAndBackend(t *testing.T) {
	env := newTestEnv(t)
	seedHandbook(t, env)
	prompt, err := env.prompts.Create(SystemPromptInput{Title: "Pirate", Content: "Talk like a pirate."})
	require.NoError(t, err)

	res, err := env.query.Ask(context.Background(), QueryInput{
		UserID:         1,
		Prompt:         "What is in it?",
		Collection:     "Handbook",
		Style:          StyleOptions{Length: "short", Tone: "casual", Formality: "formal"},
		SystemPromptID: &prompt.ID,
		Backend:        "ollama",
	})
	require.NoError(t, err)
	assert.Equal(t, "ollama answer", res.GeneratedText)
	assert.Equal(t, ai.BackendOllama, res.SelectedService)

	msgs := env.ollama.last()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Talk like a pirate.", msgs[0].Content)
	assert.Contains(t, msgs[1].Content, "Keep the text short, use a formal register and stick to this tone of voice for the text: casual.")
	assert.Empty(t, env.azure.calls)
}

func TestQueryAskErrors(t *testing.T) {
	env := newTestEnv(t)
	seedHandbook(t, env)
	missingPrompt := uint(99)

	tests := []struct {
		name  string
		input QueryInput
		want  error
	}{
		{name: "empty prompt", input: QueryInput{UserID: 1, Prompt: " ", Collection: "Handbook"}, want: ErrInvalidInput},
		{name: "no collection", input: QueryInput{UserID: 1, Prompt: "q"}, want: ErrInvalidInput},
		{name: "unknown backend", input: QueryInput{UserID: 1, Prompt: "q", Collection: "Handbook", Backend: "gpt"}, want: ai.ErrUnknownBackend},
		{name: "missing collection", input: QueryInput{UserID: 1, Prompt: "q", Collection: "Nope"}, want: ErrCollectionNotFound},
		{name: "missing prompt", input: QueryInput{UserID: 1, Prompt: "q", Collection: "Handbook", SystemPromptID: &missingPrompt}, want: ErrPromptNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.query.Ask(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, env.azure.calls)
}

func TestQueryAskBackendFailureSurfaces(t *testing.T) {
	env := newTestEnv(t)
	seedHandbook(t, env)
	env.azure.err = errors.New("503 from azure")

	_, err := env.query.Ask(context.Background(), QueryInput{UserID: 1, Prompt: "q", Collection: "Handbook"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503 from azure")

	convs, err := env.query.ListConversations(1, 10)
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestQueryConversationsHistory(t *testing.T) {
	env := newTestEnv(t)
	seedHandbook(t, env)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := env.query.Ask(ctx, QueryInput{UserID: 1, Prompt: "q", Collection: "Handbook"})
		require.NoError(t, err)
	}
	res, err := env.query.Ask(ctx, QueryInput{UserID: 1, Prompt: "last", Collection: "Handbook"})
	require.NoError(t, err)
	require.Len(t, res.Conversations, 10)
	assert.Equal(t, "last", res.Conversations[0].Input)

	deleted, err := env.query.ClearConversations(1)
	require.NoError(t, err)
	assert.EqualValues(t, 13, deleted)
	var count int64
	require.NoError(t, env.db.Model(&model.Conversation{}).Count(&count).Error)
	assert.Zero(t, count)
}
