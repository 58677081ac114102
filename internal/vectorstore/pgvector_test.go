package vectorstore

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdesk/internal/platform/database"
)

const pgvectorDSNEnv = "RAGDESK_TEST_PGVECTOR_DSN"

// newPGVectorStore connects to the database named by RAGDESK_TEST_PGVECTOR_DSN,
// for example "host=localhost user=postgres password=postgres dbname=ragdesk_test".
func newPGVectorStore(t *testing.T) *PGVectorStore {
	t.Helper()
	dsn := os.Getenv(pgvectorDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", pgvectorDSNEnv)
	}
	db, err := database.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	s, err := NewPGVectorStore(db)
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	return s
}

func uniqueCollection(t *testing.T, s *PGVectorStore) string {
	t.Helper()
	name := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	t.Cleanup(func() { _ = s.DeleteCollection(context.Background(), name) })
	return name
}

func TestPGVectorStoreInsertAndQuery(t *testing.T) {
	s := newPGVectorStore(t)
	ctx := context.Background()
	name := uniqueCollection(t, s)

	require.NoError(t, s.Insert(ctx, name, []Chunk{
		chunk("doc.pdf_0", 1, 1, 0),
		chunk("doc.pdf_1", 2, 0, 1),
		chunk("doc.pdf_2", 2, 3, 3),
	}))

	matches, err := s.Query(ctx, name, []float32{0, 1}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "doc.pdf_1", matches[0].ID)
	assert.InDelta(t, 0, matches[0].Distance, 1e-6)
	assert.Equal(t, "text of doc.pdf_1", matches[0].Document)
	assert.Equal(t, 2, matches[0].Metadata.PageNumber)
	assert.Equal(t, "doc.pdf_1", matches[0].Metadata.ChunkID)
	assert.Equal(t, "doc.pdf_0", matches[1].ID)
	assert.InDelta(t, 1.4142, matches[1].Distance, 1e-3)

	all, err := s.Query(ctx, name, []float32{0, 1}, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := s.Query(ctx, name, []float32{0, 1}, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = s.Query(ctx, name+"_missing", []float32{0, 1}, 2)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestPGVectorStoreUpsertByID(t *testing.T) {
	s := newPGVectorStore(t)
	ctx := context.Background()
	name := uniqueCollection(t, s)

	require.NoError(t, s.Insert(ctx, name, []Chunk{chunk("a_0", 1, 1, 1)}))
	replaced := chunk("a_0", 3, 2, 2)
	replaced.Document = "new"
	require.NoError(t, s.Insert(ctx, name, []Chunk{replaced}))

	matches, err := s.Query(ctx, name, []float32{2, 2}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new", matches[0].Document)
	assert.Equal(t, 3, matches[0].Metadata.PageNumber)
	assert.InDelta(t, 0, matches[0].Distance, 1e-6)
}

func TestPGVectorStoreStatsAndDelete(t *testing.T) {
	s := newPGVectorStore(t)
	ctx := context.Background()
	name := uniqueCollection(t, s)

	other := chunk("b.pdf_0", 1, 5, 5)
	other.Metadata.Source = "b.pdf"
	other.Metadata.Description = "about b"
	require.NoError(t, s.Insert(ctx, name, []Chunk{
		chunk("doc.pdf_0", 1, 1, 0),
		chunk("doc.pdf_1", 1, 0, 1),
		other,
	}))

	coll, err := s.GetCollection(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, name, coll.Name)

	stats, err := s.Stats(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, name, stats.Name)
	assert.Equal(t, 3, stats.ChunkCount)
	assert.Equal(t, []string{"b.pdf", "doc.pdf"}, stats.Sources)
	assert.Equal(t, []string{"about b", "about docs"}, stats.Descriptions)

	colls, err := s.ListCollections(ctx)
	require.NoError(t, err)
	var names []string
	for _, c := range colls {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, name)

	require.NoError(t, s.DeleteCollection(ctx, name))
	_, err = s.GetCollection(ctx, name)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
	_, err = s.Stats(ctx, name)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
	assert.ErrorIs(t, s.DeleteCollection(ctx, name), ErrCollectionNotFound)

	// Re-creating the name starts from an empty collection.
	require.NoError(t, s.Insert(ctx, name, nil))
	stats, err = s.Stats(ctx, name)
	require.NoError(t, err)
	assert.Zero(t, stats.ChunkCount)
	assert.Empty(t, stats.Sources)
}

func TestPGVectorStoreEmptyName(t *testing.T) {
	s := newPGVectorStore(t)
	assert.ErrorIs(t, s.Insert(context.Background(), "", []Chunk{chunk("x", 1, 1)}), ErrEmptyCollection)
	_, err := s.EnsureCollection(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyCollection)
}
