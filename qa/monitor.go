package qa

import (
	"github.com/poiesic/mailqa/ai"
	"github.com/poiesic/mailqa/core"
)

// Monitor provides hooks to observe question answering.
// Implement this interface to trace retrieval and prompt assembly.
type Monitor interface {
	Start(question string)
	AfterRetrieval(hits []*core.ScoredDocument)
	AfterContextAssembly(evidence []*core.Document, contextRunes int)
	BeforeGeneration(req ai.GenerationRequest)
	Finish(answer *Answer)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                {}
func (n *noopMonitor) AfterRetrieval(_ []*core.ScoredDocument)       {}
func (n *noopMonitor) AfterContextAssembly(_ []*core.Document, _ int) {}
func (n *noopMonitor) BeforeGeneration(_ ai.GenerationRequest)       {}
func (n *noopMonitor) Finish(_ *Answer)                              {}
