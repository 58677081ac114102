package app

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"ragdesk/internal/pkg/logger"
	"ragdesk/internal/vectorstore"
)

type CollectionInfo struct {
	Name              string   `json:"name"`
	DocumentCount     int      `json:"document_count"`
	Description       string   `json:"description"`
	Files             []string `json:"files"`
	ChunkCount        int      `json:"chunk_count"`
	EmbeddingModel    string   `json:"embedding_model"`
	MaxTokensPerChunk int      `json:"max_tokens_per_chunk"`
}

type CollectionService struct {
	store          vectorstore.Store
	embeddingModel string
	maxTokens      int
}

func NewCollectionService(store vectorstore.Store, embeddingModel string, maxTokens int) *CollectionService {
	return &CollectionService{store: store, embeddingModel: embeddingModel, maxTokens: maxTokens}
}

func (s *CollectionService) List(ctx context.Context) ([]CollectionInfo, error) {
	collections, err := s.store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CollectionInfo, 0, len(collections))
	for _, c := range collections {
		info, err := s.Get(ctx, c.Name)
		if errors.Is(err, ErrCollectionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *info)
	}
	return out, nil
}

func (s *CollectionService) Get(ctx context.Context, name string) (*CollectionInfo, error) {
	stats, err := s.store.Stats(ctx, name)
	if errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return nil, ErrCollectionNotFound
	}
	if err != nil {
		return nil, err
	}
	description := NoDescription
	if len(stats.Descriptions) > 0 {
		description = stats.Descriptions[0]
	}
	return &CollectionInfo{
		Name:              stats.Name,
		DocumentCount:     len(stats.Sources),
		Description:       description,
		Files:             stats.Sources,
		ChunkCount:        stats.ChunkCount,
		EmbeddingModel:    s.embeddingModel,
		MaxTokensPerChunk: s.maxTokens,
	}, nil
}

func (s *CollectionService) Delete(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidInput
	}
	if err := s.store.DeleteCollection(ctx, name); err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return ErrCollectionNotFound
		}
		return err
	}
	logger.WithContext(ctx).Info("collection deleted", zap.String("collection", name))
	return nil
}
