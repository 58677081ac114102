package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OllamaGenerator talks to a local Ollama server through its /api/chat
// endpoint with streaming disabled.
type OllamaGenerator struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewOllamaGenerator(cfg OllamaConfig) *OllamaGenerator {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &OllamaGenerator{
		baseURL:    baseURL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (g *OllamaGenerator) Backend() Backend { return BackendOllama }

func (g *OllamaGenerator) Generate(ctx context.Context, messages []ChatMessage, params GenerateParams) (string, error) {
	options := map[string]interface{}{
		"temperature": params.Temperature,
	}
	if params.MaxTokens > 0 {
		options["num_predict"] = params.MaxTokens
	}
	reqBody := map[string]interface{}{
		"model":    g.model,
		"messages": messages,
		"stream":   false,
		"options":  options,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal ollama request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/chat", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("build ollama request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ollama response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("ollama response status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse ollama json failed: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama error: %s", parsed.Error)
	}
	return parsed.Message.Content, nil
}
