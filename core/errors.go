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


package core

import "errors"

// Failure kinds surfaced by ingestion and question answering.
var (
	// ErrNotAuthenticated indicates no active mail provider session exists.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrUpstreamUnavailable indicates a mail provider call failed.
	// The core never retries; the caller retries the whole ingestion request.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrPartialExtraction marks a single message, attachment or file that
	// could not be converted to text. It is counted and skipped, never fatal.
	ErrPartialExtraction = errors.New("partial extraction skip")

	// ErrEmptyStore indicates a question was asked against zero indexed documents.
	ErrEmptyStore = errors.New("document store is empty")

	// ErrGenerationUnavailable indicates the generative model call failed or timed out.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrMalformedRequest indicates a request body was missing fields or mistyped.
	ErrMalformedRequest = errors.New("malformed request")

	// ErrInvalidQueryWindow indicates a window whose start is after its end.
	ErrInvalidQueryWindow = errors.New("invalid query window")

	// ErrInvalidDocument indicates a document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptyDocumentID indicates a document without an ID.
	ErrEmptyDocumentID = errors.New("document id cannot be empty")
)
