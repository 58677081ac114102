package ai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Embedder turns text into a vector. Ingestion and querying must share one
// Embedder so their vectors are comparable.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

type AzureEmbedder struct {
	client     *openai.Client
	deployment string
}

func NewAzureEmbedder(client *openai.Client, deployment string) *AzureEmbedder {
	return &AzureEmbedder{client: client, deployment: deployment}
}

func (e *AzureEmbedder) Model() string { return e.deployment }

func (e *AzureEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("embedding input is empty")
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.deployment),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}
	return resp.Data[0].Embedding, nil
}

type unavailableEmbedder struct {
	model  string
	reason string
}

// UnavailableEmbedder stands in when no embedding backend is configured.
// Every call fails with ErrBackendUnavailable.
func UnavailableEmbedder(model, reason string) Embedder {
	return unavailableEmbedder{model: model, reason: reason}
}

func (u unavailableEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, u.reason)
}

func (u unavailableEmbedder) Model() string { return u.model }
