package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownBackend     = errors.New("unknown generation backend")
	ErrBackendUnavailable = errors.New("generation backend not configured")
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GenerateParams struct {
	Temperature float32
	MaxTokens   int
}

// Generator produces a completion for an ordered list of chat messages.
type Generator interface {
	Generate(ctx context.Context, messages []ChatMessage, params GenerateParams) (string, error)
	Backend() Backend
}

// Backend names a generation service. Only the values below are valid.
type Backend string

const (
	BackendAzure  Backend = "azure"
	BackendOllama Backend = "ollama"
)

func ParseBackend(raw string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(raw))); b {
	case BackendAzure, BackendOllama:
		return b, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, raw)
	}
}

// Registry resolves a Backend to its Generator.
type Registry struct {
	generators map[Backend]Generator
	fallback   Backend
}

func NewRegistry(fallback Backend, generators ...Generator) *Registry {
	r := &Registry{generators: make(map[Backend]Generator, len(generators)), fallback: fallback}
	for _, g := range generators {
		r.generators[g.Backend()] = g
	}
	return r
}

// Get returns the generator for b. An empty b selects the default backend.
func (r *Registry) Get(b Backend) (Generator, error) {
	if b == "" {
		b = r.fallback
	}
	g, ok := r.generators[b]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, b)
	}
	return g, nil
}

func (r *Registry) Default() Backend {
	return r.fallback
}

// Backends lists the registered backends in name order.
func (r *Registry) Backends() []Backend {
	out := make([]Backend, 0, len(r.generators))
	for b := range r.generators {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
