package mailqa

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/mailqa/ai"
	"github.com/poiesic/mailqa/ai/mock"
	"github.com/poiesic/mailqa/core"
	"github.com/poiesic/mailqa/mail"
	mailmock "github.com/poiesic/mailqa/mail/mock"
	"github.com/poiesic/mailqa/normalize"
	"github.com/poiesic/mailqa/qa"
	"github.com/poiesic/mailqa/staging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatabase(t *testing.T) {
	t.Run("create new database", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		db, err := NewDatabase(tmpDir)
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		// Verify components are initialized
		assert.NotNil(t, db.DocumentRepository())
		assert.NotNil(t, db.MailSource())
		assert.NotNil(t, db.backend)
		assert.NotNil(t, db.logger)
	})

	t.Run("in memory", func(t *testing.T) {
		db, err := NewDatabase("")
		require.NoError(t, err)
		defer db.Close()
		assert.False(t, db.MailSource().Authenticated())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// Try to create a database at a file path instead of directory
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		err := os.WriteFile(tmpFile, []byte("test"), 0644)
		require.NoError(t, err)

		db, err := NewDatabase(tmpFile)
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("error with invalid AI config", func(t *testing.T) {
		db, err := NewDatabase("", WithAIConfig(ai.NewConfig(ai.WithModel(""))))
		assert.Error(t, err)
		assert.Nil(t, db)
	})
}

func TestDatabase_Close(t *testing.T) {
	provider := mock.NewMockProvider()
	db, err := NewDatabase(t.TempDir(), WithAIProvider(provider))
	require.NoError(t, err)

	assert.NoError(t, db.Close())
	assert.True(t, provider.(*mock.MockProvider).Closed())
}

func TestDatabase_ReopenKeepsDocuments(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := NewDatabase(dir)
	require.NoError(t, err)
	require.NoError(t, db.DocumentRepository().WriteDocuments(ctx, &core.Document{ID: "a", Content: "quarterly budget"}))
	require.NoError(t, db.Close())

	db, err = NewDatabase(dir)
	require.NoError(t, err)
	defer db.Close()

	hits, err := db.DocumentRepository().Query(ctx, "budget", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, core.DocumentID("a"), hits[0].Document.ID)
}

func TestDatabase_FactoryMethods(t *testing.T) {
	db, err := NewDatabase("", WithAIProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer db.Close()

	stager, err := staging.New(t.TempDir())
	require.NoError(t, err)
	normalizer, err := normalize.New()
	require.NoError(t, err)

	t.Run("can create ingestion pipeline", func(t *testing.T) {
		pipeline, err := db.NewIngestionPipeline(stager, normalizer)
		require.NoError(t, err)
		require.NotNil(t, pipeline)
		pipeline.Release()
	})

	t.Run("can create engine", func(t *testing.T) {
		engine, err := db.NewEngine()
		require.NoError(t, err)
		require.NotNil(t, engine)
	})
}

func TestDatabase_IngestThenAnswer(t *testing.T) {
	session := mailmock.NewMockSession()
	session.PageSize = 1
	session.AddMessage(mailmock.HTMLMessage("m1", "billing@acme.test", "Invoice 42",
		"<p>Invoice 42 is attached.</p>", mailmock.AttachmentPart("invoice.txt", "att-1")))
	session.AddAttachment("m1", "att-1", mail.EncodeData([]byte("Invoice 42 total is 1200 EUR")))
	session.AddMessage(mailmock.HTMLMessage("m2", "ops@acme.test", "Re: invoice", "<p>The invoice was paid.</p>"))

	generator := mock.NewMockGenerator().WithGenerateFunc(func(_ context.Context, _ ai.GenerationRequest) (string, error) {
		return "It totals 1200 EUR.", nil
	})
	db, err := NewDatabase("",
		WithMailSession(session),
		WithAIProvider(mock.NewMockProviderWithGenerator(generator)),
		WithAttachmentPoolSize(2),
	)
	require.NoError(t, err)
	defer db.Close()

	stager, err := staging.New(t.TempDir(), staging.WithExtensions(".txt"))
	require.NoError(t, err)
	normalizer, err := normalize.New()
	require.NoError(t, err)
	pipeline, err := db.NewIngestionPipeline(stager, normalizer)
	require.NoError(t, err)
	defer pipeline.Release()

	engine, err := db.NewEngine(qa.WithTopK(5))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = engine.Answer(ctx, "invoice total")
	assert.ErrorIs(t, err, core.ErrEmptyStore)
	assert.Equal(t, 0, generator.CallCount())

	window := core.QueryWindow{
		Start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC),
		Query: "invoice",
	}
	report, err := pipeline.Ingest(ctx, window)
	require.NoError(t, err)
	assert.Equal(t, 2, report.MessagesFound)
	assert.Equal(t, 3, report.DocumentsWritten)

	answer, err := engine.Answer(ctx, "invoice total")
	require.NoError(t, err)
	assert.Equal(t, "It totals 1200 EUR.", answer.Text)
	assert.Len(t, answer.Evidence, 3)

	req, ok := generator.LastRequest()
	require.True(t, ok)
	assert.Contains(t, req.Context, "File: invoice.txt")
	assert.Equal(t, qa.DefaultTemperature, req.Temperature)
}
