package storage

import (
	"context"

	"github.com/poiesic/mailqa/core"
)

// DocumentRepository stores normalized documents and answers lexical queries over them.
// Implementations must be thread-safe: writes are serialized and a reader never
// observes a partially applied batch.
type DocumentRepository interface {
	// WriteDocuments upserts documents by ID as a single batch.
	// A document whose ID already exists replaces the stored one but keeps
	// its original insertion position. Passages of a document (see
	// core.DocumentID.PassageBase) are replaced as a set: stored passages of
	// the same base that the batch does not carry are removed.
	WriteDocuments(ctx context.Context, docs ...*core.Document) error

	// Query ranks stored documents against text and returns at most topK
	// documents with a positive score, highest first. Equal scores are
	// ordered by insertion. Returns ErrInvalidQuery if topK < 1.
	Query(ctx context.Context, text string, topK int) ([]*core.ScoredDocument, error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.DocumentID) (*core.Document, error)

	// Documents returns every stored document in insertion order.
	Documents(ctx context.Context) ([]*core.Document, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Reset removes every document.
	Reset(ctx context.Context) error

	// Close releases resources held by the repository.
	Close() error
}
