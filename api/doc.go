// Package api serves ingestion and question answering over HTTP.
//
// Request bodies are decoded into explicit schemas: unknown fields, missing
// fields, mistyped values and trailing data are rejected with a
// MalformedRequest error. Failures are reported as
//
//	{"error": "<kind>", "message": "<detail>"}
//
// where kind is one of MalformedRequest (400), InvalidQueryWindow (400),
// NotAuthenticated (401), UpstreamUnavailable (502), EmptyStore (409) or
// GenerationUnavailable (503). A failed ingestion that got partway also
// carries the counts of that run under "report", since the documents it
// wrote stay in the store.
package api
