package badger

import (
	"github.com/poiesic/mailqa/core"
)

// Key prefixes for different data types
const (
	documentPrefix = "doc:"
)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.DocumentID) []byte {
	buf := make([]byte, len(documentPrefix)+len(id))
	offset := copy(buf, documentPrefix)
	copy(buf[offset:], id)
	return buf
}
