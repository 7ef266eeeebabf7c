package ingestion

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/mailqa/core"
)

// Report summarizes one ingestion run.
type Report struct {
	RunID  uuid.UUID
	Window core.QueryWindow

	MessagesFound      int
	MessagesProcessed  int
	DocumentsWritten   int
	AttachmentsStaged  int
	AttachmentsIgnored int // not on the staging allow-list
	Skips              []core.Skip

	// Interrupted is set when the run timeout expired before every message
	// was processed.
	Interrupted bool
	Elapsed     time.Duration

	mu sync.Mutex
}

// Skipped returns the number of items excluded from the store.
func (r *Report) Skipped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Skips)
}

func (r *Report) skip(skips ...core.Skip) {
	if len(skips) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Skips = append(r.Skips, skips...)
}

func (r *Report) message(written, staged, ignored int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.MessagesProcessed++
	r.DocumentsWritten += written
	r.AttachmentsStaged += staged
	r.AttachmentsIgnored += ignored
}
