package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"ragdesk/internal/ai"
	"ragdesk/internal/metrics"
	"ragdesk/internal/pkg/logger"
	"ragdesk/internal/pkg/pdfextract"
	"ragdesk/internal/rag"
	"ragdesk/internal/vectorstore"
)

var (
	ErrCollectionExists   = errors.New("collection already exists")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrNoFiles            = errors.New("no files provided")
	ErrInvalidFileType    = errors.New("only pdf files are allowed")
	ErrUnreadablePDF      = errors.New("pdf could not be read")
)

// FileUpload is one uploaded document. Open is called once.
type FileUpload struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// ExtractFunc returns the page count and full text of the PDF at path.
type ExtractFunc func(path string) (int, string, error)

type DescriptionGenerator interface {
	Describe(ctx context.Context, text string) string
}

type FileReport struct {
	Filename    string `json:"filename"`
	Pages       int    `json:"pages"`
	Chunks      int    `json:"chunks"`
	Hash        string `json:"hash"`
	Description string `json:"description"`
}

type IngestResult struct {
	Collection string       `json:"collection"`
	Files      []FileReport `json:"files"`
}

// IngestError reports which file stopped a multi-file ingestion. Files before
// it were committed and are listed in Processed.
type IngestError struct {
	Filename  string
	Processed []FileReport
	Err       error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s failed: %v", e.Filename, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

// IngestService turns uploaded PDFs into embedded chunks of a collection.
type IngestService struct {
	store     vectorstore.Store
	embedder  ai.Embedder
	chunker   *rag.Chunker
	describer DescriptionGenerator
	extract   ExtractFunc
	uploadDir string
}

func NewIngestService(
	store vectorstore.Store,
	embedder ai.Embedder,
	chunker *rag.Chunker,
	describer DescriptionGenerator,
	uploadDir string,
) *IngestService {
	return &IngestService{
		store:     store,
		embedder:  embedder,
		chunker:   chunker,
		describer: describer,
		extract:   pdfextract.ExtractFile,
		uploadDir: uploadDir,
	}
}

// WithExtractor replaces the PDF extractor.
func (s *IngestService) WithExtractor(fn ExtractFunc) *IngestService {
	s.extract = fn
	return s
}

type CreateCollectionInput struct {
	Title string
	Files []FileUpload
}

// CreateCollection validates the whole request before touching storage, then
// ingests the files in order into a new collection.
func (s *IngestService) CreateCollection(ctx context.Context, input CreateCollectionInput) (*IngestResult, error) {
	name := rag.NormalizeCollectionName(input.Title)
	if name == "" {
		return nil, ErrInvalidInput
	}
	if err := validateUploads(input.Files); err != nil {
		return nil, err
	}

	_, err := s.store.GetCollection(ctx, name)
	switch {
	case err == nil:
		return nil, ErrCollectionExists
	case !errors.Is(err, vectorstore.ErrCollectionNotFound):
		return nil, err
	}

	logger.WithContext(ctx).Info("creating collection", zap.String("collection", name), zap.Int("files", len(input.Files)))
	return s.ingestFiles(ctx, name, input.Files)
}

// AddDocuments ingests files into an existing collection.
func (s *IngestService) AddDocuments(ctx context.Context, collection string, files []FileUpload) (*IngestResult, error) {
	collection = strings.TrimSpace(collection)
	if collection == "" {
		return nil, ErrInvalidInput
	}
	if err := validateUploads(files); err != nil {
		return nil, err
	}
	if _, err := s.store.GetCollection(ctx, collection); err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return nil, ErrCollectionNotFound
		}
		return nil, err
	}
	return s.ingestFiles(ctx, collection, files)
}

func validateUploads(files []FileUpload) error {
	if len(files) == 0 {
		return ErrNoFiles
	}
	for _, f := range files {
		if !strings.EqualFold(filepath.Ext(f.Filename), ".pdf") {
			return fmt.Errorf("%w: %s", ErrInvalidFileType, f.Filename)
		}
	}
	return nil
}

func (s *IngestService) ingestFiles(ctx context.Context, collection string, files []FileUpload) (*IngestResult, error) {
	result := &IngestResult{Collection: collection, Files: make([]FileReport, 0, len(files))}
	for _, f := range files {
		report, err := s.ingestUpload(ctx, collection, f)
		if err != nil {
			metrics.FilesIngestedTotal.WithLabelValues("error").Inc()
			logger.WithContext(ctx).Error("ingest file failed",
				zap.String("collection", collection),
				zap.String("file", f.Filename),
				zap.Int("processed", len(result.Files)),
				zap.Error(err),
			)
			return result, &IngestError{Filename: f.Filename, Processed: result.Files, Err: err}
		}
		metrics.FilesIngestedTotal.WithLabelValues("success").Inc()
		result.Files = append(result.Files, *report)
	}
	return result, nil
}

// ingestUpload stages the upload in a private temp dir that is removed when
// the file is done, whether or not ingestion succeeded.
func (s *IngestService) ingestUpload(ctx context.Context, collection string, f FileUpload) (*FileReport, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir failed: %w", err)
	}
	dir, err := os.MkdirTemp(s.uploadDir, "ingest-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir failed: %w", err)
	}
	defer os.RemoveAll(dir)

	filename := filepath.Base(filepath.Clean("/" + f.Filename))
	path := filepath.Join(dir, filename)
	if err := saveUpload(f, path); err != nil {
		return nil, err
	}
	return s.IngestFile(ctx, collection, filename, path)
}

func saveUpload(f FileUpload, path string) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("open upload failed: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create temp file failed: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("save upload failed: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("save upload failed: %w", err)
	}
	return nil
}

// IngestFile runs extract, hash, describe, chunk and embed on one PDF and
// stores all of its chunks in a single insert.
func (s *IngestService) IngestFile(ctx context.Context, collection, filename, path string) (*FileReport, error) {
	start := time.Now()
	log := logger.WithContext(ctx).With(zap.String("collection", collection), zap.String("file", filename))

	pages, text, err := s.extract(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadablePDF, err)
	}
	log.Info("text extracted", zap.Int("pages", pages), zap.Int("chars", len(text)))

	hash := rag.HashContent(text)
	description := NoDescription
	if s.describer != nil {
		description = s.describer.Describe(ctx, text)
	}
	log.Info("document described", zap.String("hash", hash))

	pieces := s.chunker.Split(text)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnreadablePDF, pdfextract.ErrNoText)
	}
	log.Info("text chunked",
		zap.Int("chunks", len(pieces)),
		zap.Float64("chunks_per_page", float64(len(pieces))/float64(max(pages, 1))),
	)

	chunks := make([]vectorstore.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		cleaned := rag.CleanText(piece)
		vector, err := s.embedder.Embed(ctx, cleaned)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d failed: %w", i, err)
		}
		id := rag.ChunkID(filename, i)
		page := rag.PageNumber(i, len(pieces), pages)
		chunks = append(chunks, vectorstore.Chunk{
			ID:        id,
			Document:  cleaned,
			Embedding: vector,
			Metadata: vectorstore.Metadata{
				Source:      filename,
				Hash:        hash,
				Description: description,
				ChunkID:     id,
				PageNumber:  page,
			},
		})
		log.Debug("chunk embedded", zap.String("chunk_id", id), zap.Int("page", page))
	}

	if err := s.store.Insert(ctx, collection, chunks); err != nil {
		return nil, fmt.Errorf("store chunks failed: %w", err)
	}
	metrics.ChunksIngestedTotal.Add(float64(len(chunks)))
	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	log.Info("file ingested", zap.Int("chunks", len(chunks)), zap.Duration("took", time.Since(start)))

	return &FileReport{
		Filename:    filename,
		Pages:       pages,
		Chunks:      len(chunks),
		Hash:        hash,
		Description: description,
	}, nil
}
