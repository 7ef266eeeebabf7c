// Package normalize converts mail bodies and staged attachment files into
// core.Document values.
//
// Message bodies become one document each, keyed by the message id. Files are
// classified by extension, reduced to text by an Extractor, and split into
// overlapping passages keyed by filename and passage number, so staging the
// same file again replaces its passages rather than duplicating them.
//
// Built-in extractors cover .pdf, .docx, .txt, .md, .html and .htm. Legacy
// binary .doc files are staged but rejected here with ErrUnsupportedFormat.
package normalize
