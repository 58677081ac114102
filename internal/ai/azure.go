package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const defaultAzureAPIVersion = "2024-02-15-preview"

type AzureConfig struct {
	Endpoint            string
	APIKey              string
	APIVersion          string
	ChatDeployment      string
	EmbeddingDeployment string
}

// NewAzureOpenAIClient builds a go-openai client for an Azure OpenAI resource.
// Model names passed to the client are used as deployment names verbatim.
func NewAzureOpenAIClient(cfg AzureConfig) (*openai.Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: azure endpoint and api key are required", ErrBackendUnavailable)
	}
	clientCfg := openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	clientCfg.APIVersion = cfg.APIVersion
	if clientCfg.APIVersion == "" {
		clientCfg.APIVersion = defaultAzureAPIVersion
	}
	clientCfg.AzureModelMapperFunc = func(model string) string { return model }
	return openai.NewClientWithConfig(clientCfg), nil
}

// AzureGenerator sends chat completions to an Azure OpenAI deployment.
type AzureGenerator struct {
	client     *openai.Client
	deployment string
}

func NewAzureGenerator(client *openai.Client, deployment string) *AzureGenerator {
	return &AzureGenerator{client: client, deployment: deployment}
}

func (g *AzureGenerator) Backend() Backend { return BackendAzure }

func (g *AzureGenerator) Generate(ctx context.Context, messages []ChatMessage, params GenerateParams) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.deployment,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("azure chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("azure chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
