package vectorstore

import "time"

// Document is a unit of indexed knowledge. Title and Source are kept
// outside Metadata because keyword scoring and citation export read
// them on every query.
type Document struct {
	// ID uniquely identifies the document. If empty, an ID is
	// generated at insert time.
	ID string

	// Title is a short human-readable name for the document.
	Title string

	// Content is the text that gets embedded and searched.
	Content string

	// Source is where the document came from (URL, file path, or a
	// logical name for manually indexed content).
	Source string

	// Metadata holds additional string key/value pairs.
	Metadata map[string]string

	// CreatedAt records when the document was indexed.
	CreatedAt time.Time
}

// SearchResult is a document returned from similarity search together
// with its raw similarity score.
type SearchResult struct {
	Document

	// Score is the cosine similarity reported by the underlying
	// index, in [-1, 1].
	Score float32
}
