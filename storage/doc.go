// Package storage defines the document store contract for mailqa.
//
// The store holds normalized documents keyed by core.DocumentID together with
// a lexical index over their content. Writing a document whose ID already
// exists replaces it, so ingesting the same mail twice leaves one copy.
//
// # Usage
//
// Open an in-memory repository:
//
//	backend, err := badger.OpenBackend("", true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	repo, err := badger.NewDocumentRepository(backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repo.Close()
//
//	err = repo.WriteDocuments(ctx, docs...)
//	hits, err := repo.Query(ctx, "invoice total", 5)
//
// # Thread Safety
//
// Writes run under a single-writer lock and become visible atomically.
// Queries may run concurrently with each other.
//
// # Serialization
//
// Stored values are encoded with mus-go. See MarshalDocument.
package storage
