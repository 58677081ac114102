package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ragdesk/internal/ai"
	"ragdesk/internal/model"
	"ragdesk/internal/rag"
	"ragdesk/internal/repository"
	"ragdesk/internal/vectorstore"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:app_%s_%d?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type runeTokenizer struct{}

func (runeTokenizer) Encode(text string) []int {
	out := make([]int, 0, len(text))
	for _, r := range text {
		out = append(out, int(r))
	}
	return out
}

func (runeTokenizer) Decode(tokens []int) string {
	rs := make([]rune, len(tokens))
	for i, t := range tokens {
		rs[i] = rune(t)
	}
	return string(rs)
}

// fakeEmbedder maps text to a two-dimensional vector so identical texts have
// distance zero.
type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn string
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if text == "" {
		return nil, errors.New("embedding input is empty")
	}
	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, errors.New("embedding service unavailable")
	}
	var sum int
	for _, r := range text {
		sum += int(r)
	}
	return []float32{float32(len([]rune(text))), float32(sum % 9973)}, nil
}

func (e *fakeEmbedder) Model() string { return "fake-embedding" }

type fakeGenerator struct {
	mu       sync.Mutex
	backend  ai.Backend
	reply    string
	err      error
	calls    [][]ai.ChatMessage
	lastOpts ai.GenerateParams
}

func (g *fakeGenerator) Generate(_ context.Context, messages []ai.ChatMessage, params ai.GenerateParams) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, messages)
	g.lastOpts = params
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *fakeGenerator) Backend() ai.Backend { return g.backend }

func (g *fakeGenerator) last() []ai.ChatMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.calls) == 0 {
		return nil
	}
	return g.calls[len(g.calls)-1]
}

// fakeExtractor returns canned documents keyed by file name.
type fakeExtractor struct {
	docs map[string]fakeDoc
}

type fakeDoc struct {
	pages int
	text  string
	err   error
}

func (f *fakeExtractor) Extract(path string) (int, string, error) {
	for name, d := range f.docs {
		if strings.HasSuffix(path, "/"+name) {
			return d.pages, d.text, d.err
		}
	}
	return 0, "", errors.New("unexpected file " + path)
}

func upload(name string) FileUpload {
	return FileUpload{
		Filename: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("%PDF-1.4 test")), nil
		},
	}
}

type testEnv struct {
	db         *gorm.DB
	store      *vectorstore.MemoryStore
	embedder   *fakeEmbedder
	azure      *fakeGenerator
	ollama     *fakeGenerator
	describer  *fakeGenerator
	extractor  *fakeExtractor
	uploadDir  string
	ingest     *IngestService
	collection *CollectionService
	prompts    *SystemPromptService
	query      *QueryService
	chat       *ChatService
	messages   *repository.MessageRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		db:        setupTestDB(t),
		store:     vectorstore.NewMemoryStore(),
		embedder:  &fakeEmbedder{},
		azure:     &fakeGenerator{backend: ai.BackendAzure, reply: "azure answer"},
		ollama:    &fakeGenerator{backend: ai.BackendOllama, reply: "ollama answer"},
		describer: &fakeGenerator{backend: ai.BackendAzure, reply: "A handbook."},
		extractor: &fakeExtractor{docs: map[string]fakeDoc{}},
		uploadDir: t.TempDir(),
	}

	chunker := rag.NewChunker(runeTokenizer{}, rag.WithMaxTokens(512))
	env.ingest = NewIngestService(env.store, env.embedder, chunker, NewDescriber(env.describer), env.uploadDir).
		WithExtractor(env.extractor.Extract)
	env.collection = NewCollectionService(env.store, env.embedder.Model(), 512)
	env.prompts = NewSystemPromptService(repository.NewSystemPromptRepository(env.db))

	registry := ai.NewRegistry(ai.BackendAzure, env.azure, env.ollama)
	retriever := NewRetriever(env.embedder, env.store, 5)
	gen := GenerationConfig{Language: "English", Temperature: 0.7, MaxTokens: 4096}
	env.query = NewQueryService(retriever, registry, env.prompts, repository.NewConversationRepository(env.db), gen)

	env.messages = repository.NewMessageRepository(env.db)
	env.chat = NewChatService(repository.NewSessionRepository(env.db), env.messages, env.messages, nil,
		retriever, registry, env.prompts, gen, 20)
	return env
}

// twoPageText is 1000 single-token characters; the second 512-token window
// starts with "second".
func twoPageText() (string, string) {
	first := strings.Repeat("a", 512)
	second := "second" + strings.Repeat("b", 482)
	return first + second, second
}
