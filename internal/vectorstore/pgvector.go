package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 100

type collectionRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"size:255;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"not null"`
}

func (collectionRecord) TableName() string { return "rag_collections" }

// chunkRecord stores one embedded chunk. The embedding column is declared
// without a dimension so any embedding model can be used.
type chunkRecord struct {
	ID           uint            `gorm:"primaryKey"`
	CollectionID uint            `gorm:"not null;uniqueIndex:idx_rag_chunks_collection_chunk"`
	ChunkID      string          `gorm:"size:512;not null;uniqueIndex:idx_rag_chunks_collection_chunk"`
	Document     string          `gorm:"type:text;not null"`
	Source       string          `gorm:"size:512;not null;index"`
	Hash         string          `gorm:"size:64;not null"`
	Description  string          `gorm:"type:text"`
	PageNumber   int             `gorm:"not null"`
	Embedding    pgvector.Vector `gorm:"type:vector;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (chunkRecord) TableName() string { return "rag_chunks" }

// PGVectorStore keeps collections in PostgreSQL using the pgvector extension.
type PGVectorStore struct {
	db *gorm.DB
}

// NewPGVectorStore enables the vector extension and migrates the tables.
func NewPGVectorStore(db *gorm.DB) (*PGVectorStore, error) {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("enable pgvector extension failed: %w", err)
	}
	if err := db.AutoMigrate(&collectionRecord{}, &chunkRecord{}); err != nil {
		return nil, fmt.Errorf("migrate vector tables failed: %w", err)
	}
	return &PGVectorStore{db: db}, nil
}

func (s *PGVectorStore) EnsureCollection(ctx context.Context, name string) (*Collection, error) {
	if name == "" {
		return nil, ErrEmptyCollection
	}
	rec, err := ensureCollection(s.db.WithContext(ctx), name)
	if err != nil {
		return nil, err
	}
	return rec.toCollection(), nil
}

func ensureCollection(tx *gorm.DB, name string) (*collectionRecord, error) {
	rec := &collectionRecord{Name: name, CreatedAt: time.Now()}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("create collection %s failed: %w", name, err)
	}
	if err := tx.Where("name = ?", name).First(rec).Error; err != nil {
		return nil, fmt.Errorf("load collection %s failed: %w", name, err)
	}
	return rec, nil
}

func (s *PGVectorStore) findCollection(ctx context.Context, name string) (*collectionRecord, error) {
	var rec collectionRecord
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCollectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load collection %s failed: %w", name, err)
	}
	return &rec, nil
}

func (s *PGVectorStore) GetCollection(ctx context.Context, name string) (*Collection, error) {
	rec, err := s.findCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	return rec.toCollection(), nil
}

func (s *PGVectorStore) DeleteCollection(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec collectionRecord
		err := tx.Where("name = ?", name).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCollectionNotFound
		}
		if err != nil {
			return fmt.Errorf("load collection %s failed: %w", name, err)
		}
		if err := tx.Where("collection_id = ?", rec.ID).Delete(&chunkRecord{}).Error; err != nil {
			return fmt.Errorf("delete chunks of %s failed: %w", name, err)
		}
		if err := tx.Delete(&rec).Error; err != nil {
			return fmt.Errorf("delete collection %s failed: %w", name, err)
		}
		return nil
	})
}

func (s *PGVectorStore) ListCollections(ctx context.Context) ([]Collection, error) {
	var recs []collectionRecord
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list collections failed: %w", err)
	}
	out := make([]Collection, 0, len(recs))
	for i := range recs {
		out = append(out, *recs[i].toCollection())
	}
	return out, nil
}

func (s *PGVectorStore) Insert(ctx context.Context, name string, chunks []Chunk) error {
	if name == "" {
		return ErrEmptyCollection
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		coll, err := ensureCollection(tx, name)
		if err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		records := make([]chunkRecord, 0, len(chunks))
		for _, ch := range chunks {
			records = append(records, chunkRecord{
				CollectionID: coll.ID,
				ChunkID:      ch.ID,
				Document:     ch.Document,
				Source:       ch.Metadata.Source,
				Hash:         ch.Metadata.Hash,
				Description:  ch.Metadata.Description,
				PageNumber:   ch.Metadata.PageNumber,
				Embedding:    pgvector.NewVector(ch.Embedding),
			})
		}
		err = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "collection_id"}, {Name: "chunk_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"document", "source", "hash", "description", "page_number", "embedding", "updated_at",
			}),
		}).CreateInBatches(&records, insertBatchSize).Error
		if err != nil {
			return fmt.Errorf("insert chunks into %s failed: %w", name, err)
		}
		return nil
	})
}

type matchRow struct {
	ChunkID     string
	Document    string
	Source      string
	Hash        string
	Description string
	PageNumber  int
	Distance    float64
}

func (s *PGVectorStore) Query(ctx context.Context, name string, vector []float32, k int) ([]Match, error) {
	coll, err := s.findCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return []Match{}, nil
	}

	var rows []matchRow
	err = s.db.WithContext(ctx).Raw(`
		SELECT chunk_id, document, source, hash, description, page_number,
			embedding <-> ? AS distance
		FROM rag_chunks
		WHERE collection_id = ?
		ORDER BY distance ASC, id ASC
		LIMIT ?`, pgvector.NewVector(vector), coll.ID, k).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query collection %s failed: %w", name, err)
	}

	matches := make([]Match, 0, len(rows))
	for _, r := range rows {
		matches = append(matches, Match{
			ID:       r.ChunkID,
			Document: r.Document,
			Distance: r.Distance,
			Metadata: Metadata{
				Source:      r.Source,
				Hash:        r.Hash,
				Description: r.Description,
				ChunkID:     r.ChunkID,
				PageNumber:  r.PageNumber,
			},
		})
	}
	return matches, nil
}

func (s *PGVectorStore) Stats(ctx context.Context, name string) (*CollectionStats, error) {
	coll, err := s.findCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx).Model(&chunkRecord{}).Where("collection_id = ?", coll.ID)

	var count int64
	if err := db.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count chunks of %s failed: %w", name, err)
	}
	stats := &CollectionStats{Name: name, ChunkCount: int(count)}
	if err := db.Session(&gorm.Session{}).Distinct("source").Order("source ASC").Pluck("source", &stats.Sources).Error; err != nil {
		return nil, fmt.Errorf("list sources of %s failed: %w", name, err)
	}
	if err := db.Session(&gorm.Session{}).Distinct("description").Order("description ASC").Pluck("description", &stats.Descriptions).Error; err != nil {
		return nil, fmt.Errorf("list descriptions of %s failed: %w", name, err)
	}
	return stats, nil
}

func (s *PGVectorStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *collectionRecord) toCollection() *Collection {
	return &Collection{Name: r.Name, CreatedAt: r.CreatedAt}
}
