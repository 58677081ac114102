package app

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"ragdesk/internal/ai"
	"ragdesk/internal/pkg/logger"
)

const (
	NoDescription        = "No description available."
	descriptionInputSize = 1000
	descriptionMaxTokens = 4000
	// Descriptions use their own sampling settings, independent of chat.
	descriptionTemperature = 0.7
	describeSystemPrompt = "You are an assistant that writes short descriptions of documents. " +
		"Describe what the document is about in at most 3 sentences."
)

// Describer asks a generation backend for a short synopsis of a document.
type Describer struct {
	generator ai.Generator
}

func NewDescriber(generator ai.Generator) *Describer {
	return &Describer{generator: generator}
}

// Describe summarises the first 1000 characters of text. Failures are logged
// and yield NoDescription so ingestion can continue.
func (d *Describer) Describe(ctx context.Context, text string) string {
	if d == nil || d.generator == nil {
		return NoDescription
	}
	excerpt := []rune(text)
	if len(excerpt) > descriptionInputSize {
		excerpt = excerpt[:descriptionInputSize]
	}

	out, err := d.generator.Generate(ctx, []ai.ChatMessage{
		{Role: ai.RoleSystem, Content: describeSystemPrompt},
		{Role: ai.RoleUser, Content: "Describe this document:\n\n" + string(excerpt)},
	}, ai.GenerateParams{Temperature: descriptionTemperature, MaxTokens: descriptionMaxTokens})
	if err != nil {
		logger.WithContext(ctx).Warn("generate description failed", zap.Error(err))
		return NoDescription
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return NoDescription
	}
	return out
}
