package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/mailqa/core"
	"github.com/poiesic/mailqa/index"
	"github.com/poiesic/mailqa/storage"
)

// ErrBackendRequired is returned when a repository is created without a backend.
var ErrBackendRequired = errors.New("backend is required")

// DocumentRepository implements storage.DocumentRepository on BadgerDB with an
// in-memory lexical index. Badger holds the documents; the index answers queries.
type DocumentRepository struct {
	backend *Backend
	logger  *slog.Logger

	mu      sync.RWMutex
	index   *index.Index
	nextSeq uint64
	closed  bool
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// Option configures a DocumentRepository.
type Option func(*DocumentRepository) error

// WithLogger sets the logger for the repository.
func WithLogger(logger *slog.Logger) Option {
	return func(r *DocumentRepository) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewDocumentRepository creates a DocumentRepository over backend.
// Documents already present in the backend are loaded into the index.
func NewDocumentRepository(backend *Backend, opts ...Option) (*DocumentRepository, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}

	r := &DocumentRepository{
		backend: backend,
		logger:  slog.Default(),
		index:   index.New(),
		nextSeq: 1,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "document-store")

	if err := r.rebuild(); err != nil {
		return nil, fmt.Errorf("rebuilding index: %w", err)
	}
	return r, nil
}

func (r *DocumentRepository) rebuild() error {
	err := r.backend.Scan([]byte(documentPrefix), func(_, value []byte) error {
		seq, doc, err := storage.UnmarshalDocument(value)
		if err != nil {
			return err
		}
		r.index.Restore(string(doc.ID), doc.Content, seq)
		if seq >= r.nextSeq {
			r.nextSeq = seq + 1
		}
		return nil
	})
	if err != nil {
		return err
	}
	if n := r.index.Len(); n > 0 {
		r.logger.Info("loaded stored documents", "count", n)
	}
	return nil
}

// Close marks the repository closed. The backend is closed by its owner.
func (r *DocumentRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *DocumentRepository) checkOpen() error {
	if r.closed || r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// WriteDocuments upserts documents by ID. A batch holding passages of a
// document replaces that document's whole passage set, so stored passages
// of the same base missing from the batch are removed. Badger commits the
// batch in one transaction before the index changes, so readers see either
// none or all of it.
func (r *DocumentRepository) WriteDocuments(ctx context.Context, docs ...*core.Document) error {
	if len(docs) == 0 {
		return nil
	}
	for _, doc := range docs {
		if err := core.ValidateDocument(doc); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkOpen(); err != nil {
		return err
	}

	// Later duplicates within a batch win, at the position of the first
	seqs := make(map[core.DocumentID]uint64, len(docs))
	latest := make(map[core.DocumentID]*core.Document, len(docs))
	order := make([]core.DocumentID, 0, len(docs))
	bases := make(map[core.DocumentID]bool)
	next := r.nextSeq
	for _, doc := range docs {
		if _, seen := latest[doc.ID]; !seen {
			order = append(order, doc.ID)
			if seq, ok := r.index.Seq(string(doc.ID)); ok {
				seqs[doc.ID] = seq
			} else {
				seqs[doc.ID] = next
				next++
			}
		}
		latest[doc.ID] = doc
		if base, ok := doc.ID.PassageBase(); ok {
			bases[base] = true
		}
	}

	stale := r.stalePassages(bases, latest)

	keys := make([][]byte, 0, len(order))
	values := make([][]byte, 0, len(order))
	for _, id := range order {
		keys = append(keys, makeDocumentKey(id))
		values = append(values, storage.MarshalDocument(seqs[id], latest[id]))
	}
	deletes := make([][]byte, 0, len(stale))
	for _, id := range stale {
		deletes = append(deletes, makeDocumentKey(id))
	}
	if err := r.backend.Apply(keys, values, deletes); err != nil {
		return fmt.Errorf("writing documents: %w", err)
	}

	for _, id := range stale {
		r.index.Remove(string(id))
	}
	for _, id := range order {
		r.index.Restore(string(id), latest[id].Content, seqs[id])
	}
	r.nextSeq = next

	r.logger.Debug("wrote documents", "count", len(order), "removed", len(stale), "total", r.index.Len())
	return nil
}

// stalePassages lists stored passages of bases that the batch does not rewrite.
func (r *DocumentRepository) stalePassages(bases map[core.DocumentID]bool, batch map[core.DocumentID]*core.Document) []core.DocumentID {
	if len(bases) == 0 {
		return nil
	}
	var stale []core.DocumentID
	for _, id := range r.index.IDs() {
		docID := core.DocumentID(id)
		if _, ok := batch[docID]; ok {
			continue
		}
		if base, ok := docID.PassageBase(); ok && bases[base] {
			stale = append(stale, docID)
		}
	}
	return stale
}

// Query ranks documents against text.
func (r *DocumentRepository) Query(ctx context.Context, text string, topK int) ([]*core.ScoredDocument, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: topK must be at least 1, got %d", storage.ErrInvalidQuery, topK)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	hits := r.index.Search(text, topK)
	results := make([]*core.ScoredDocument, 0, len(hits))

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, hit := range hits {
			doc, err := r.readDocument(tx, core.DocumentID(hit.ID))
			if err != nil {
				return err
			}
			results = append(results, &core.ScoredDocument{Document: doc, Score: hit.Score})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	return results, nil
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.DocumentID) (*core.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	var doc *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		doc, err = r.readDocument(tx, id)
		return err
	}, false)
	return doc, err
}

// Documents returns every stored document in insertion order.
func (r *DocumentRepository) Documents(ctx context.Context) ([]*core.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	ids := r.index.IDs()
	docs := make([]*core.Document, 0, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			doc, err := r.readDocument(tx, core.DocumentID(id))
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Count returns the number of stored documents.
func (r *DocumentRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.checkOpen(); err != nil {
		return 0, err
	}
	return r.index.Len(), nil
}

// Reset removes every document and clears the index.
func (r *DocumentRepository) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkOpen(); err != nil {
		return err
	}

	if err := r.backend.DropAll(); err != nil {
		return fmt.Errorf("dropping documents: %w", err)
	}
	removed := r.index.Len()
	r.index.Reset()
	r.nextSeq = 1

	r.logger.Info("store reset", "removed", removed)
	return nil
}

// readDocument reads a document within a transaction.
func (r *DocumentRepository) readDocument(tx *badger.Txn, id core.DocumentID) (*core.Document, error) {
	item, err := tx.Get(makeDocumentKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
		}
		return nil, err
	}

	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var err error
		_, doc, err = storage.UnmarshalDocument(val)
		return err
	})
	return doc, err
}
