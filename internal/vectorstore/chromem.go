package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("researchd.vectorstore.chromem")

// catalogFile holds the document catalog next to chromem's gob files.
// chromem-go has no document enumeration API, and keyword search needs
// to scan every title and body, so the store keeps its own catalog.
const catalogFile = "catalog.json"

// Config holds configuration for the chromem-go embedded vector database.
type Config struct {
	// Path is the directory for persistent storage. An empty path
	// creates an in-memory store (useful for tests).
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// Collection is the knowledge base collection name.
	// Default: "researchd_kb"
	Collection string

	// VectorSize is the expected embedding dimension. Must match the
	// embedder's output dimension. Default: 1024.
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "researchd_kb"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 1024
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection name is required", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements the Store interface using chromem-go.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies. It keeps vectors in memory and optionally persists
// them to gob files, so no external database service is needed.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	config   Config
	logger   *zap.Logger
	path     string

	mu      sync.RWMutex
	catalog map[string]Document
}

// NewChromemStore creates a new ChromemStore with the given configuration.
func NewChromemStore(config Config, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var (
		db   *chromem.DB
		path string
		err  error
	)
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err = expandPath(config.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		db, err = chromem.NewPersistentDB(path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	store := &ChromemStore{
		db:       db,
		embedder: embedder,
		config:   config,
		logger:   logger,
		path:     path,
		catalog:  make(map[string]Document),
	}

	if err := store.loadCatalog(); err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	logger.Info("chromem store initialized",
		zap.String("path", path),
		zap.Bool("compress", config.Compress),
		zap.Int("vector_size", config.VectorSize),
		zap.String("collection", config.Collection),
		zap.Int("documents", len(store.catalog)),
	)

	return store, nil
}

// expandPath expands ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// embeddingFunc adapts the Embedder interface to chromem.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

func (s *ChromemStore) collection() (*chromem.Collection, error) {
	collection, err := s.db.GetOrCreateCollection(s.config.Collection, nil, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("getting collection %s: %w", s.config.Collection, err)
	}
	return collection, nil
}

// AddDocuments adds documents to the knowledge base.
func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.AddDocuments")
	defer span.End()

	span.SetAttributes(attribute.Int("document_count", len(docs)))

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	collection, err := s.collection()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	now := timeNow()
	ids := make([]string, len(docs))
	texts := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
		if ids[i] == "" {
			ids[i] = fmt.Sprintf("doc_%d_%d", now.UnixNano(), i)
		}
		texts[i] = doc.Content
	}

	// Generate embeddings in batch.
	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		metadata := map[string]string{
			"title":  doc.Title,
			"source": doc.Source,
		}
		for k, v := range doc.Metadata {
			metadata[k] = v
		}
		chromemDocs[i] = chromem.Document{
			ID:        ids[i],
			Content:   doc.Content,
			Metadata:  metadata,
			Embedding: embeddings[i],
		}
	}

	// Concurrency of 1 since embeddings are precomputed.
	if err := collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	s.mu.Lock()
	for i, doc := range docs {
		doc.ID = ids[i]
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		s.catalog[doc.ID] = doc
	}
	err = s.saveCatalogLocked()
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("saving catalog: %w", err)
	}

	span.SetAttributes(attribute.Int("documents_added", len(ids)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("added documents",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(docs)),
	)

	return ids, nil
}

// Search performs vector similarity search in the knowledge base.
func (s *ChromemStore) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int("k", k),
	)

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	collection, err := s.collection()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// Cap k at collection size (chromem requires nResults <= doc count).
	docCount := collection.Count()
	if docCount == 0 {
		return []SearchResult{}, nil
	}
	if k > docCount {
		k = docCount
	}

	results, err := collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	s.mu.RLock()
	searchResults := make([]SearchResult, len(results))
	for i, r := range results {
		doc, ok := s.catalog[r.ID]
		if !ok {
			doc = Document{
				ID:      r.ID,
				Title:   r.Metadata["title"],
				Content: r.Content,
				Source:  r.Metadata["source"],
			}
		}
		searchResults[i] = SearchResult{Document: doc, Score: r.Similarity}
	}
	s.mu.RUnlock()

	span.SetAttributes(attribute.Int("results_count", len(searchResults)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("searched knowledge base",
		zap.String("collection", s.config.Collection),
		zap.Int("k", k),
		zap.Int("results", len(searchResults)),
	)

	return searchResults, nil
}

// Get returns a single document by ID.
func (s *ChromemStore) Get(_ context.Context, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.catalog[id]
	if !ok {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc, nil
}

// List returns a snapshot of all indexed documents ordered by ID.
func (s *ChromemStore) List(_ context.Context) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]Document, 0, len(s.catalog))
	for _, doc := range s.catalog {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Count returns the number of indexed documents.
func (s *ChromemStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.catalog), nil
}

// DeleteDocuments removes documents by ID. Returns ErrNotFound if any
// ID is unknown, and deletes nothing in that case.
func (s *ChromemStore) DeleteDocuments(ctx context.Context, ids []string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteDocuments")
	defer span.End()

	if len(ids) == 0 {
		return fmt.Errorf("no document IDs provided")
	}

	collection, err := s.collection()
	if err != nil {
		span.RecordError(err)
		return err
	}

	s.mu.RLock()
	for _, id := range ids {
		if _, ok := s.catalog[id]; !ok {
			s.mu.RUnlock()
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
	}
	s.mu.RUnlock()

	if err := collection.Delete(ctx, nil, nil, ids...); err != nil {
		span.RecordError(err)
		return fmt.Errorf("deleting documents: %w", err)
	}

	s.mu.Lock()
	for _, id := range ids {
		delete(s.catalog, id)
	}
	err = s.saveCatalogLocked()
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("saving catalog: %w", err)
	}

	s.logger.Debug("deleted documents", zap.Int("count", len(ids)))
	return nil
}

// Close flushes the catalog. chromem-go persists automatically.
func (s *ChromemStore) Close() error {
	s.mu.Lock()
	err := s.saveCatalogLocked()
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("saving catalog: %w", err)
	}
	s.logger.Info("chromem store closed")
	return nil
}

func (s *ChromemStore) catalogPath() string {
	if s.path == "" {
		return ""
	}
	return filepath.Join(s.path, catalogFile)
}

func (s *ChromemStore) loadCatalog() error {
	path := s.catalogPath()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("parsing catalog: %w", err)
	}
	for _, doc := range docs {
		s.catalog[doc.ID] = doc
	}
	return nil
}

// saveCatalogLocked writes the catalog atomically. Caller holds s.mu.
func (s *ChromemStore) saveCatalogLocked() error {
	path := s.catalogPath()
	if path == "" {
		return nil
	}

	docs := make([]Document, 0, len(s.catalog))
	for _, doc := range s.catalog {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Ensure ChromemStore implements Store.
var _ Store = (*ChromemStore)(nil)
