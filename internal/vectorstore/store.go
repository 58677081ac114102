// Package vectorstore persists embedded chunks in named collections and
// answers nearest-neighbour queries over them.
package vectorstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrEmptyCollection    = errors.New("collection name is empty")
)

// Metadata travels with every chunk and is returned with query matches.
type Metadata struct {
	Source      string `json:"source"`
	Hash        string `json:"hash"`
	Description string `json:"description"`
	ChunkID     string `json:"chunk_id"`
	PageNumber  int    `json:"page_number"`
}

type Chunk struct {
	ID        string
	Document  string
	Embedding []float32
	Metadata  Metadata
}

type Match struct {
	ID       string   `json:"id"`
	Document string   `json:"document"`
	Metadata Metadata `json:"metadata"`
	Distance float64  `json:"distance"`
}

type Collection struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CollectionStats summarises a collection's contents. Sources and
// Descriptions hold distinct values sorted ascending.
type CollectionStats struct {
	Name         string   `json:"name"`
	ChunkCount   int      `json:"chunk_count"`
	Sources      []string `json:"sources"`
	Descriptions []string `json:"descriptions"`
}

// Store is implemented by every collection backend.
type Store interface {
	EnsureCollection(ctx context.Context, name string) (*Collection, error)
	GetCollection(ctx context.Context, name string) (*Collection, error)
	DeleteCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]Collection, error)
	// Insert creates the collection if needed and upserts chunks by ID. Either
	// every chunk is stored or none is.
	Insert(ctx context.Context, name string, chunks []Chunk) error
	// Query returns up to k chunks ordered by ascending L2 distance.
	Query(ctx context.Context, name string, vector []float32, k int) ([]Match, error)
	Stats(ctx context.Context, name string) (*CollectionStats, error)
	Ping(ctx context.Context) error
}
