// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package mailqa

import (
	"errors"
	"log/slog"

	"github.com/poiesic/mailqa/ai"
	"github.com/poiesic/mailqa/ai/openai"
	"github.com/poiesic/mailqa/ingestion"
	"github.com/poiesic/mailqa/mail"
	"github.com/poiesic/mailqa/normalize"
	"github.com/poiesic/mailqa/qa"
	"github.com/poiesic/mailqa/staging"
	"github.com/poiesic/mailqa/storage"
	"github.com/poiesic/mailqa/storage/badger"
)

// Database owns the document store, the generative model provider and the
// mail source, and builds the pipelines and engines that share them.
type Database struct {
	backend  *badger.Backend
	repo     storage.DocumentRepository
	provider ai.AIProvider
	source   *mail.Source
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	provider ai.AIProvider
	session  mail.Session
	poolSize int
	logger   *slog.Logger
}

// WithAIConfig sets the generative endpoint configuration.
// Default is ai.DefaultConfig().
func WithAIConfig(cfg *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = cfg
	}
}

// WithAIProvider uses provider instead of building one from the AI config.
// The Database takes ownership and closes it.
func WithAIProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithMailSession sets the authenticated mail session. Without one,
// ingestion fails with core.ErrNotAuthenticated.
func WithMailSession(session mail.Session) DatabaseOption {
	return func(o *databaseOptions) {
		o.session = session
	}
}

// WithAttachmentPoolSize sets how many attachments are fetched at once.
func WithAttachmentPoolSize(size int) DatabaseOption {
	return func(o *databaseOptions) {
		o.poolSize = size
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// NewDatabase opens the document store at filePath, or in memory when
// filePath is empty.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	// Apply options
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(), // Default if not provided
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	// Open backend
	backend, err := badger.OpenBackendWithLogger(filePath, filePath == "", options.logger)
	if err != nil {
		return nil, err
	}

	// Create document repository; rebuilds the index from any stored documents
	repo, err := badger.NewDocumentRepository(backend, badger.WithLogger(options.logger))
	if err != nil {
		backend.Close()
		return nil, err
	}

	// Create AI provider with configured settings
	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			repo.Close()
			backend.Close()
			return nil, err
		}
	}

	sourceOpts := []mail.Option{mail.WithLogger(options.logger)}
	if options.poolSize > 0 {
		sourceOpts = append(sourceOpts, mail.WithPoolSize(options.poolSize))
	}
	source, err := mail.NewSource(options.session, sourceOpts...)
	if err != nil {
		provider.Close()
		repo.Close()
		backend.Close()
		return nil, err
	}

	return &Database{
		backend:  backend,
		repo:     repo,
		provider: provider,
		source:   source,
		logger:   options.logger,
	}, nil
}

// Close releases the mail source, the AI provider, the repository and the
// backend, in that order. All are closed even if one fails.
func (db *Database) Close() error {
	db.source.Release()

	var errs []error
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	if err := db.repo.Close(); err != nil {
		db.logger.Error("error closing document repository", "err", err)
		errs = append(errs, err)
	}
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (db *Database) DocumentRepository() storage.DocumentRepository {
	return db.repo
}

func (db *Database) MailSource() *mail.Source {
	return db.source
}

// NewIngestionPipeline builds a pipeline that stages attachments with stager
// and normalizes with normalizer.
func (db *Database) NewIngestionPipeline(stager *staging.Stager, normalizer *normalize.Normalizer, opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	opts = append([]ingestion.Option{ingestion.WithLogger(db.logger)}, opts...)
	return ingestion.NewPipeline(db.source, stager, normalizer, db.repo, opts...)
}

func (db *Database) NewEngine(opts ...qa.Option) (*qa.Engine, error) {
	opts = append([]qa.Option{qa.WithLogger(db.logger)}, opts...)
	return qa.NewEngine(db.repo, db.provider.Generator(), opts...)
}
