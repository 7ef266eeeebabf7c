package core

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a 64-bit content hash.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// DocumentID uniquely identifies a document within a store.
type DocumentID string

// Source key prefixes used to derive document IDs.
const (
	SourceKindMessage    = "message"
	SourceKindAttachment = "attachment"
)

// NewDocumentID derives a stable ID from the document's origin.
// Re-ingesting the same origin yields the same ID, so the store overwrites
// instead of accumulating duplicates.
func NewDocumentID(kind, origin string) DocumentID {
	return DocumentID(fmt.Sprintf("%016x", uint64(IDFromContent(kind+":"+origin))))
}

// PassageID returns the ID of the n-th passage of a chunked document.
func (id DocumentID) PassageID(n int) DocumentID {
	return DocumentID(fmt.Sprintf("%s-%d", id, n))
}

// PassageBase returns the ID a passage ID was derived from.
func (id DocumentID) PassageBase() (DocumentID, bool) {
	i := strings.LastIndexByte(string(id), '-')
	if i <= 0 {
		return "", false
	}
	if _, err := strconv.Atoi(string(id[i+1:])); err != nil {
		return "", false
	}
	return id[:i], true
}

// Metadata keys shared by body-derived and file-derived documents.
const (
	MetaSender         = "sender"
	MetaSubject        = "subject"
	MetaSourceFilename = "source_filename"
	MetaMessageID      = "message_id"
	MetaSource         = "source"
)

// Values for MetaSource.
const (
	SourceBody       = "body"
	SourceAttachment = "attachment"
)

// Document is a normalized, searchable unit of text.
// Documents are immutable once created.
type Document struct {
	ID       DocumentID
	Content  string
	Metadata map[string]string
}

// Meta returns a metadata value or the empty string.
func (d *Document) Meta(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}

// ScoredDocument is a retrieval hit.
type ScoredDocument struct {
	Document *Document
	Score    float64
}

// Attachment holds decoded attachment bytes for one message.
type Attachment struct {
	Filename  string
	Data      []byte
	MessageID string
}

// QueryWindow scopes a mail search by date range and free text.
// Both bounds are calendar days; End is inclusive.
type QueryWindow struct {
	Start time.Time
	End   time.Time
	Query string
}

// Skip records an item that was excluded from the store during ingestion.
type Skip struct {
	Item string // message ID, attachment filename or staged path
	Err  error
}

func (s Skip) String() string {
	return s.Item + ": " + s.Err.Error()
}
