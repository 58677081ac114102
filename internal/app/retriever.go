package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ragdesk/internal/ai"
	"ragdesk/internal/metrics"
	"ragdesk/internal/pkg/logger"
	"ragdesk/internal/vectorstore"
)

const defaultTopK = 5

// Retriever embeds a question and fetches the nearest chunks of a collection.
type Retriever struct {
	embedder ai.Embedder
	store    vectorstore.Store
	topK     int
}

func NewRetriever(embedder ai.Embedder, store vectorstore.Store, topK int) *Retriever {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Retriever{embedder: embedder, store: store, topK: topK}
}

func (r *Retriever) Retrieve(ctx context.Context, collection, question string) (*Retrieval, error) {
	start := time.Now()
	defer func() { metrics.RetrievalDuration.Observe(time.Since(start).Seconds()) }()

	if err := r.CheckCollection(ctx, collection); err != nil {
		return nil, err
	}

	vector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question failed: %w", err)
	}
	matches, err := r.store.Query(ctx, collection, vector, r.topK)
	if err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("query collection failed: %w", err)
	}

	logger.WithContext(ctx).Debug("retrieved context",
		zap.String("collection", collection),
		zap.Int("matches", len(matches)),
	)
	return newRetrieval(matches), nil
}

// CheckCollection returns ErrCollectionNotFound unless the collection exists.
func (r *Retriever) CheckCollection(ctx context.Context, collection string) error {
	if _, err := r.store.GetCollection(ctx, collection); err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return ErrCollectionNotFound
		}
		return err
	}
	return nil
}
