package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ragdesk/internal/ai"
	"ragdesk/internal/app"
	"ragdesk/internal/bootstrap"
	"ragdesk/internal/config"
	"ragdesk/internal/model"
	"ragdesk/internal/pkg/jwtutil"
	"ragdesk/internal/rag"
	"ragdesk/internal/repository"
	"ragdesk/internal/transport/http/response"
	"ragdesk/internal/vectorstore"
)

const testSecret = "test-secret"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type charTokenizer struct{}

func (charTokenizer) Encode(text string) []int {
	out := make([]int, 0, len(text))
	for _, r := range text {
		out = append(out, int(r))
	}
	return out
}

func (charTokenizer) Decode(tokens []int) string {
	rs := make([]rune, len(tokens))
	for i, t := range tokens {
		rs[i] = rune(t)
	}
	return string(rs)
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	var sum int
	for _, r := range text {
		sum += int(r)
	}
	return []float32{float32(len(text)), float32(sum % 997)}, nil
}

func (stubEmbedder) Model() string { return "stub-embedding" }

type stubGenerator struct {
	backend ai.Backend
	reply   string
}

func (g stubGenerator) Generate(context.Context, []ai.ChatMessage, ai.GenerateParams) (string, error) {
	return g.reply, nil
}

func (g stubGenerator) Backend() ai.Backend { return g.backend }

func extractStub(path string) (int, string, error) {
	if strings.HasSuffix(path, "broken.pdf") {
		return 0, "", fmt.Errorf("malformed xref table")
	}
	return 2, strings.Repeat("policy text ", 100), nil
}

type testServer struct {
	app    *bootstrap.App
	admin  string
	member string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dsn := fmt.Sprintf("file:http_%s_%d?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	cfg := &config.Config{
		App:  config.AppConfig{Name: "ragdesk", Env: "test", GinMode: "test"},
		Auth: config.AuthConfig{JWTSecret: testSecret, JWTExpireMinute: 60},
		RAG:  config.RAGConfig{MaxUploadMB: 1},
	}
	store := vectorstore.NewMemoryStore()
	registry := ai.NewRegistry(ai.BackendAzure,
		stubGenerator{backend: ai.BackendAzure, reply: "cloud answer"},
		stubGenerator{backend: ai.BackendOllama, reply: "local answer"},
	)
	embedder := stubEmbedder{}
	chunker := rag.NewChunker(charTokenizer{}, rag.WithMaxTokens(200))
	retriever := app.NewRetriever(embedder, store, 5)
	gen := app.GenerationConfig{Language: "English", Temperature: 0.7, MaxTokens: 4096}
	prompts := app.NewSystemPromptService(repository.NewSystemPromptRepository(db))
	messages := repository.NewMessageRepository(db)

	a := &bootstrap.App{
		Config:      cfg,
		DB:          db,
		VectorStore: store,
		Registry:    registry,
		StartedAt:   time.Now(),
		Services: bootstrap.Services{
			Auth:     app.NewAuthService(repository.NewUserRepository(db), testSecret, time.Hour),
			Prompts:  prompts,
			Settings: app.NewSettingsService(repository.NewSettingRepository(db), nil),
			Ingest: app.NewIngestService(store, embedder, chunker, nil, t.TempDir()).
				WithExtractor(extractStub),
			Collections: app.NewCollectionService(store, embedder.Model(), 200),
			Query: app.NewQueryService(retriever, registry, prompts,
				repository.NewConversationRepository(db), gen),
			Chat: app.NewChatService(repository.NewSessionRepository(db), messages, messages, nil,
				retriever, registry, prompts, gen, 20),
		},
	}

	admin, _, err := a.Services.Auth.EnsureAdmin("admin", "admin-password")
	require.NoError(t, err)
	member, err := a.Services.Auth.CreateUser(app.CreateUserInput{Username: "member", Password: "member-password"})
	require.NoError(t, err)

	adminToken, err := jwtutil.GenerateToken(testSecret, time.Hour, admin.ID, admin.Username, true)
	require.NoError(t, err)
	memberToken, err := jwtutil.GenerateToken(testSecret, time.Hour, member.ID, member.Username, false)
	require.NoError(t, err)

	return &testServer{app: a, admin: adminToken, member: memberToken}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return s.serve(t, req, token)
}

func (s *testServer) upload(t *testing.T, path, token, title string, files ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if title != "" {
		require.NoError(t, w.WriteField("title", title))
	}
	for _, name := range files {
		part, err := w.CreateFormFile("pdfs", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4 stub"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(stdhttp.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return s.serve(t, req, token)
}

func (s *testServer) serve(t *testing.T, req *stdhttp.Request, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	NewRouter(s.app).ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func TestLoginAndMe(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, stdhttp.MethodPost, "/api/v1/auth/login", "", jsonBody{"username": "admin", "password": "admin-password"})
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	var login struct {
		Token string `json:"token"`
		User  struct {
			Username string `json:"username"`
			IsAdmin  bool   `json:"is_admin"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	assert.NotEmpty(t, login.Token)
	assert.True(t, login.User.IsAdmin)

	rec, env = s.do(t, stdhttp.MethodGet, "/api/v1/auth/me", login.Token, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"username":"admin"`)

	rec, env = s.do(t, stdhttp.MethodPost, "/api/v1/auth/login", "", jsonBody{"username": "admin", "password": "wrong-password"})
	assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)
	assert.Equal(t, response.CodeInvalidCredentials, env.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "garbage", token: "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(t, stdhttp.MethodGet, "/api/v1/collections", tt.token, nil)
			assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)
			assert.Equal(t, response.CodeUnauthorized, env.Code)
		})
	}
}

func TestCollectionLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.upload(t, "/api/v1/collections", s.member, "Büro Policies", "a.pdf", "B.PDF")
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	var created app.IngestResult
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "Buero_Policies", created.Collection)
	require.Len(t, created.Files, 2)

	rec, env = s.upload(t, "/api/v1/collections", s.member, "Büro Policies", "c.pdf")
	assert.Equal(t, stdhttp.StatusConflict, rec.Code)
	assert.Equal(t, response.CodeCollectionExists, env.Code)

	rec, _ = s.upload(t, "/api/v1/collections/Buero_Policies/documents", s.member, "", "c.pdf")
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())

	rec, env = s.do(t, stdhttp.MethodGet, "/api/v1/collections", s.member, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	var list []app.CollectionInfo
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].DocumentCount)
	assert.Equal(t, app.NoDescription, list[0].Description)
	assert.Equal(t, "stub-embedding", list[0].EmbeddingModel)

	rec, _ = s.do(t, stdhttp.MethodDelete, "/api/v1/collections/Buero_Policies", s.member, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	rec, env = s.do(t, stdhttp.MethodGet, "/api/v1/collections/Buero_Policies", s.member, nil)
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)
	assert.Equal(t, response.CodeCollectionNotFound, env.Code)
}

func TestCollectionUploadValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		title  string
		files  []string
		status int
		code   int
	}{
		{name: "blank title", title: "   ", files: []string{"a.pdf"}, status: stdhttp.StatusBadRequest, code: response.CodeBadRequest},
		{name: "no files", title: "Docs", status: stdhttp.StatusBadRequest, code: response.CodeBadRequest},
		{name: "wrong extension", title: "Docs", files: []string{"a.pdf", "notes.txt"}, status: stdhttp.StatusBadRequest, code: response.CodeInvalidFileType},
		{name: "unreadable pdf", title: "Docs", files: []string{"broken.pdf"}, status: stdhttp.StatusBadRequest, code: response.CodeUnreadablePDF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.upload(t, "/api/v1/collections", s.member, tt.title, tt.files...)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, env.Code)
		})
	}

	rec, _ := s.do(t, stdhttp.MethodGet, "/api/v1/collections", s.member, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestPartialIngestionReportsProcessedFiles(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.upload(t, "/api/v1/collections", s.member, "Mixed", "good.pdf", "broken.pdf")
	require.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	assert.Equal(t, response.CodeUnreadablePDF, env.Code)
	var data struct {
		FailedFile string           `json:"failed_file"`
		Processed  []app.FileReport `json:"processed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "broken.pdf", data.FailedFile)
	require.Len(t, data.Processed, 1)
	assert.Equal(t, "good.pdf", data.Processed[0].Filename)
}

func TestQuery(t *testing.T) {
	s := newTestServer(t)
	rec, _ := s.upload(t, "/api/v1/collections", s.member, "Handbook", "handbook.pdf")
	require.Equal(t, stdhttp.StatusOK, rec.Code)

	rec, env := s.do(t, stdhttp.MethodPost, "/api/v1/query", s.member, jsonBody{
		"prompt":     "What is the policy?",
		"collection": "Handbook",
		"backend":    "ollama",
	})
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	var result app.QueryResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "local answer", result.GeneratedText)
	assert.Equal(t, ai.BackendOllama, result.SelectedService)
	assert.NotEmpty(t, result.Citations)
	for _, c := range result.Citations {
		assert.True(t, strings.HasPrefix(c, "handbook.pdf - p. "), c)
	}
	require.Len(t, result.Conversations, 1)

	rec, env = s.do(t, stdhttp.MethodGet, "/api/v1/conversations?limit=5", s.member, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	var convs []model.Conversation
	require.NoError(t, json.Unmarshal(env.Data, &convs))
	require.Len(t, convs, 1)
	assert.Equal(t, "ollama", convs[0].Backend)

	rec, _ = s.do(t, stdhttp.MethodDelete, "/api/v1/conversations", s.member, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted":1`)

	errorCases := []struct {
		name   string
		body   jsonBody
		status int
		code   int
	}{
		{name: "missing prompt", body: jsonBody{"collection": "Handbook"}, status: stdhttp.StatusBadRequest, code: response.CodeBadRequest},
		{name: "unknown collection", body: jsonBody{"prompt": "hi", "collection": "Nope"}, status: stdhttp.StatusNotFound, code: response.CodeCollectionNotFound},
		{name: "unknown backend", body: jsonBody{"prompt": "hi", "collection": "Handbook", "backend": "gpt"}, status: stdhttp.StatusBadRequest, code: response.CodeUnknownBackend},
		{name: "unknown system prompt", body: jsonBody{"prompt": "hi", "collection": "Handbook", "system_prompt_id": 99}, status: stdhttp.StatusNotFound, code: response.CodePromptNotFound},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(t, stdhttp.MethodPost, "/api/v1/query", s.member, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, env.Code)
		})
	}
}

func TestSystemPromptCRUD(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, stdhttp.MethodPost, "/api/v1/system-prompts", s.member, jsonBody{"title": "Pirate", "content": "Talk like a pirate."})
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	var prompt model.SystemPrompt
	require.NoError(t, json.Unmarshal(env.Data, &prompt))
	path := fmt.Sprintf("/api/v1/system-prompts/%d", prompt.ID)

	rec, env = s.do(t, stdhttp.MethodPut, path, s.member, jsonBody{"content": "Talk like a sailor."})
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &prompt))
	assert.Equal(t, "Pirate", prompt.Title)
	assert.Equal(t, "Talk like a sailor.", prompt.Content)

	rec, _ = s.do(t, stdhttp.MethodDelete, path, s.member, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	rec, env = s.do(t, stdhttp.MethodGet, path, s.member, nil)
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)
	assert.Equal(t, response.CodePromptNotFound, env.Code)

	rec, _ = s.do(t, stdhttp.MethodGet, "/api/v1/system-prompts/abc", s.member, nil)
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
}

func TestChatFlow(t *testing.T) {
	s := newTestServer(t)
	rec, _ := s.upload(t, "/api/v1/collections", s.member, "Handbook", "handbook.pdf")
	require.Equal(t, stdhttp.StatusOK, rec.Code)

	rec, env := s.do(t, stdhttp.MethodPost, "/api/v1/chat/sessions", s.member, jsonBody{"collection": "Handbook"})
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	var session model.Session
	require.NoError(t, json.Unmarshal(env.Data, &session))
	assert.Equal(t, "azure", session.Backend)

	rec, env = s.do(t, stdhttp.MethodPost, "/api/v1/chat/messages", s.member, jsonBody{"session_id": session.ID, "content": "Summarise the policy"})
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	var sent app.SendMessageResult
	require.NoError(t, json.Unmarshal(env.Data, &sent))
	require.Len(t, sent.Messages, 2)
	assert.Equal(t, "cloud answer", sent.Messages[1].Content)

	rec, env = s.do(t, stdhttp.MethodGet, fmt.Sprintf("/api/v1/chat/history?session_id=%d", session.ID), s.member, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	var history []model.Message
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 2)
	assert.Equal(t, ai.RoleUser, history[0].Role)

	rec, env = s.do(t, stdhttp.MethodGet, fmt.Sprintf("/api/v1/chat/history?session_id=%d", session.ID), s.admin, nil)
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)
	assert.Equal(t, response.CodeSessionNotFound, env.Code)

	rec, _ = s.do(t, stdhttp.MethodDelete, fmt.Sprintf("/api/v1/chat/sessions/%d", session.ID), s.member, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)

	rec, env = s.do(t, stdhttp.MethodPost, "/api/v1/chat/sessions", s.member, jsonBody{"collection": "Missing"})
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)
	assert.Equal(t, response.CodeCollectionNotFound, env.Code)
}

func TestMaintenanceMode(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, stdhttp.MethodPost, "/api/v1/admin/maintenance/toggle", s.member, nil)
	assert.Equal(t, stdhttp.StatusForbidden, rec.Code)
	assert.Equal(t, response.CodeForbidden, env.Code)

	rec, _ = s.do(t, stdhttp.MethodPost, "/api/v1/admin/maintenance/toggle", s.admin, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"maintenance":true`)

	rec, _ = s.do(t, stdhttp.MethodGet, "/api/v1/maintenance", "", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"maintenance":true`)

	rec, env = s.do(t, stdhttp.MethodGet, "/api/v1/collections", s.member, nil)
	assert.Equal(t, stdhttp.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, response.CodeMaintenance, env.Code)

	rec, _ = s.do(t, stdhttp.MethodGet, "/api/v1/collections", s.admin, nil)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)

	rec, _ = s.do(t, stdhttp.MethodPost, "/api/v1/system-prompts", s.member, jsonBody{"title": "t", "content": "c"})
	assert.Equal(t, stdhttp.StatusOK, rec.Code)

	rec, _ = s.do(t, stdhttp.MethodGet, "/healthz", "", nil)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)

	rec, _ = s.do(t, stdhttp.MethodPut, "/api/v1/admin/maintenance", s.admin, jsonBody{"enabled": false})
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	rec, _ = s.do(t, stdhttp.MethodGet, "/api/v1/collections", s.member, nil)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
}

func TestAdminCreatesUser(t *testing.T) {
	s := newTestServer(t)

	body := jsonBody{"username": "analyst", "password": "analyst-password"}
	rec, _ := s.do(t, stdhttp.MethodPost, "/api/v1/admin/users", s.member, body)
	assert.Equal(t, stdhttp.StatusForbidden, rec.Code)

	rec, _ = s.do(t, stdhttp.MethodPost, "/api/v1/admin/users", s.admin, body)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())

	rec, env := s.do(t, stdhttp.MethodPost, "/api/v1/admin/users", s.admin, body)
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	assert.Equal(t, response.CodeUsernameExists, env.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, stdhttp.MethodGet, "/healthz", "", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	var health struct {
		Dependencies map[string]struct {
			OK      bool   `json:"ok"`
			Message string `json:"message"`
		} `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.True(t, health.Dependencies["database"].OK)
	assert.True(t, health.Dependencies["vector_store"].OK)
	assert.Equal(t, "disabled", health.Dependencies["redis"].Message)

	rec, _ = s.do(t, stdhttp.MethodGet, "/metrics", "", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ragdesk_http_requests_total")
}

type jsonBody = map[string]any
