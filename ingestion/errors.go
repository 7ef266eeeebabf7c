package ingestion

import "errors"

var (
	// ErrSourceRequired is returned when a mail source is not provided.
	ErrSourceRequired = errors.New("mail source required")

	// ErrStagerRequired is returned when an attachment stager is not provided.
	ErrStagerRequired = errors.New("attachment stager required")

	// ErrNormalizerRequired is returned when a normalizer is not provided.
	ErrNormalizerRequired = errors.New("normalizer required")

	// ErrRepositoryRequired is returned when a document repository is not provided.
	ErrRepositoryRequired = errors.New("document repository required")
)
