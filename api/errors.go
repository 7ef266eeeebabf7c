package api

import (
	"errors"
	"net/http"

	"github.com/poiesic/mailqa/core"
)

var (
	// ErrIngesterRequired is returned when an ingester is not provided.
	ErrIngesterRequired = errors.New("ingester required")

	// ErrAnswererRequired is returned when an answerer is not provided.
	ErrAnswererRequired = errors.New("answerer required")

	// ErrRepositoryRequired is returned when a document repository is not provided.
	ErrRepositoryRequired = errors.New("document repository required")
)

// Error kinds reported in the "error" field of failed responses.
const (
	KindMalformedRequest      = "MalformedRequest"
	KindInvalidQueryWindow    = "InvalidQueryWindow"
	KindNotAuthenticated      = "NotAuthenticated"
	KindUpstreamUnavailable   = "UpstreamUnavailable"
	KindEmptyStore            = "EmptyStore"
	KindGenerationUnavailable = "GenerationUnavailable"
	KindInternal              = "Internal"
)

// classify maps an error to its response kind and HTTP status.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, core.ErrMalformedRequest):
		return KindMalformedRequest, http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidQueryWindow):
		return KindInvalidQueryWindow, http.StatusBadRequest
	case errors.Is(err, core.ErrNotAuthenticated):
		return KindNotAuthenticated, http.StatusUnauthorized
	case errors.Is(err, core.ErrUpstreamUnavailable):
		return KindUpstreamUnavailable, http.StatusBadGateway
	case errors.Is(err, core.ErrEmptyStore):
		return KindEmptyStore, http.StatusConflict
	case errors.Is(err, core.ErrGenerationUnavailable):
		return KindGenerationUnavailable, http.StatusServiceUnavailable
	default:
		return KindInternal, http.StatusInternalServerError
	}
}
