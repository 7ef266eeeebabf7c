package badger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/mailqa/core"
	"github.com/poiesic/mailqa/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) storage.DocumentRepository {
	t.Helper()
	repo, backend, err := NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return repo
}

func doc(id, content string) *core.Document {
	return &core.Document{ID: core.DocumentID(id), Content: content}
}

func TestNewDocumentRepository_NilBackend(t *testing.T) {
	_, err := NewDocumentRepository(nil)
	assert.ErrorIs(t, err, ErrBackendRequired)
}

func TestWriteDocuments_AndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	in := &core.Document{
		ID:      "m1",
		Content: "Invoice #42 total $1,200",
		Metadata: map[string]string{
			core.MetaSubject: "Invoice #42",
			core.MetaSender:  "billing@acme.test",
		},
	}
	require.NoError(t, repo.WriteDocuments(ctx, in))

	got, err := repo.GetDocument(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, in, got)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetDocument_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWriteDocuments_RejectsInvalid(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.WriteDocuments(ctx, doc("ok", "fine"), nil)
	assert.ErrorIs(t, err, core.ErrInvalidDocument)

	err = repo.WriteDocuments(ctx, doc("", "no id"))
	assert.ErrorIs(t, err, core.ErrEmptyDocumentID)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "a rejected batch writes nothing")
}

func TestWriteDocuments_EmptyContentAccepted(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.WriteDocuments(ctx, doc("blank", "")))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	hits, err := repo.Query(ctx, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestWriteDocuments_OverwriteKeepsPosition(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.WriteDocuments(ctx, doc("a", "shipping notice"), doc("b", "shipping notice")))
	require.NoError(t, repo.WriteDocuments(ctx, doc("a", "shipping notice revised")))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := repo.GetDocument(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "shipping notice revised", got.Content)

	docs, err := repo.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, core.DocumentID("a"), docs[0].ID)
	assert.Equal(t, core.DocumentID("b"), docs[1].ID)
}

func TestWriteDocuments_DuplicateInBatchLastWins(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.WriteDocuments(ctx, doc("a", "first"), doc("b", "other"), doc("a", "second")))

	got, err := repo.GetDocument(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Content)

	docs, err := repo.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, core.DocumentID("a"), docs[0].ID)
}

func TestWriteDocuments_ReplacesPassageSet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := core.DocumentID("att")

	require.NoError(t, repo.WriteDocuments(ctx,
		doc("body", "cover note"),
		&core.Document{ID: base.PassageID(0), Content: "first draft"},
		&core.Document{ID: base.PassageID(1), Content: "draft appendix"},
		&core.Document{ID: base.PassageID(2), Content: "draft glossary"},
		&core.Document{ID: "other-0", Content: "unrelated draft"},
	))

	require.NoError(t, repo.WriteDocuments(ctx, &core.Document{ID: base.PassageID(0), Content: "final version"}))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, err = repo.GetDocument(ctx, base.PassageID(1))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	hits, err := repo.Query(ctx, "draft", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, core.DocumentID("other-0"), hits[0].Document.ID)

	got, err := repo.GetDocument(ctx, "body")
	require.NoError(t, err)
	assert.Equal(t, "cover note", got.Content)
}

func TestWriteDocuments_StalePassagesGoneAfterReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	base := core.DocumentID("att")

	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	repo, err := NewDocumentRepository(backend)
	require.NoError(t, err)
	require.NoError(t, repo.WriteDocuments(ctx,
		&core.Document{ID: base.PassageID(0), Content: "one"},
		&core.Document{ID: base.PassageID(1), Content: "two"},
	))
	require.NoError(t, repo.WriteDocuments(ctx, &core.Document{ID: base.PassageID(0), Content: "only"}))
	require.NoError(t, repo.Close())
	require.NoError(t, backend.Close())

	backend, err = OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()
	repo, err = NewDocumentRepository(backend)
	require.NoError(t, err)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestQuery_Ranking(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.WriteDocuments(ctx,
		doc("lunch", "Team lunch on Friday at noon"),
		doc("invoice", "Invoice #42 from Acme. Total due: $1,200. Invoice payable in 30 days."),
		doc("reminder", "Reminder: the invoice is overdue"),
	))

	hits, err := repo.Query(ctx, "invoice total", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, core.DocumentID("invoice"), hits[0].Document.ID)
	assert.Equal(t, core.DocumentID("reminder"), hits[1].Document.ID)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
	for _, h := range hits {
		assert.Greater(t, h.Score, 0.0)
	}
}

func TestQuery_TopKAndTies(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.WriteDocuments(ctx, doc(fmt.Sprintf("d%d", i), "quarterly report")))
	}

	hits, err := repo.Query(ctx, "report", 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, core.DocumentID("d0"), hits[0].Document.ID)
	assert.Equal(t, core.DocumentID("d1"), hits[1].Document.ID)
	assert.Equal(t, core.DocumentID("d2"), hits[2].Document.ID)
}

func TestQuery_InvalidTopK(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Query(context.Background(), "x", 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestQuery_EmptyStore(t *testing.T) {
	repo := newTestRepo(t)
	hits, err := repo.Query(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestReset(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.WriteDocuments(ctx, doc("a", "alpha"), doc("b", "beta")))
	require.NoError(t, repo.Reset(ctx))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	hits, err := repo.Query(ctx, "alpha", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = repo.GetDocument(ctx, "a")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, repo.WriteDocuments(ctx, doc("c", "gamma")))
	docs, err := repo.Documents(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestClosedRepository(t *testing.T) {
	repo, backend, err := NewMemoryRepository()
	require.NoError(t, err)
	defer backend.Close()

	require.NoError(t, repo.Close())

	ctx := context.Background()
	assert.ErrorIs(t, repo.WriteDocuments(ctx, doc("a", "x")), storage.ErrStorageClosed)
	_, err = repo.Query(ctx, "x", 1)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	_, err = repo.Count(ctx)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestReopenRebuildsIndex(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	repo, err := NewDocumentRepository(backend)
	require.NoError(t, err)
	require.NoError(t, repo.WriteDocuments(ctx, doc("first", "budget review"), doc("second", "budget review")))
	require.NoError(t, repo.Close())
	require.NoError(t, backend.Close())

	backend, err = OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()
	repo, err = NewDocumentRepository(backend)
	require.NoError(t, err)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, repo.WriteDocuments(ctx, doc("third", "budget review")))
	hits, err := repo.Query(ctx, "budget", 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, core.DocumentID("first"), hits[0].Document.ID)
	assert.Equal(t, core.DocumentID("third"), hits[2].Document.ID)
}

func TestConcurrentReadsAndWrites(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				batch := []*core.Document{
					doc(fmt.Sprintf("w%d-%d-a", w, i), "status update"),
					doc(fmt.Sprintf("w%d-%d-b", w, i), "status update"),
				}
				assert.NoError(t, repo.WriteDocuments(ctx, batch...))
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				count, err := repo.Count(ctx)
				assert.NoError(t, err)
				assert.Zero(t, count%2, "batches become visible whole")
				_, err = repo.Query(ctx, "status", 5)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 80, count)
}
