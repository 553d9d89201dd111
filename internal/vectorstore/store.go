// Package vectorstore provides the embedded vector database used as
// the knowledge base for retrieval.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid vectorstore configuration")

	// ErrEmptyDocuments indicates an empty document batch.
	ErrEmptyDocuments = errors.New("no documents provided")

	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrEmbeddingFailed indicates embedding generation failed.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Embedder generates vector embeddings for documents and queries.
type Embedder interface {
	// EmbedDocuments generates embeddings for a batch of texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the interface for the knowledge base backing retrieval.
type Store interface {
	// AddDocuments indexes a batch of documents and returns their IDs.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Search performs vector similarity search and returns up to k
	// results ordered by descending similarity.
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)

	// Get returns a single document by ID.
	Get(ctx context.Context, id string) (Document, error)

	// List returns a snapshot of all indexed documents. Keyword
	// search scans this snapshot.
	List(ctx context.Context) ([]Document, error)

	// Count returns the number of indexed documents.
	Count(ctx context.Context) (int, error)

	// DeleteDocuments removes documents by ID.
	DeleteDocuments(ctx context.Context, ids []string) error

	// Close flushes and releases the store.
	Close() error
}
