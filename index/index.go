package index

import (
	"math"
	"slices"
)

// BM25 tuning constants.
const (
	k1 = 1.5
	b  = 0.75
)

// Hit is a scored match returned by Search.
type Hit struct {
	ID    string
	Score float64
	Seq   uint64 // insertion sequence, used to break score ties
}

type entry struct {
	seq    uint64
	length int
	terms  map[string]int // term frequency for this document
}

// Index is a lexical term index with BM25 ranking.
// It is not safe for concurrent use; callers serialize writes and guard reads.
type Index struct {
	postings map[string]map[string]int // term -> document ID -> term frequency
	docs     map[string]*entry
	totalLen int
	nextSeq  uint64
}

// New creates an empty index.
func New() *Index {
	return &Index{
		postings: make(map[string]map[string]int),
		docs:     make(map[string]*entry),
		nextSeq:  1,
	}
}

// Put indexes text under id and returns the document's insertion sequence.
// Replacing an existing id keeps its original sequence.
func (ix *Index) Put(id, text string) uint64 {
	seq := ix.nextSeq
	if old, ok := ix.docs[id]; ok {
		seq = old.seq
	} else {
		ix.nextSeq++
	}
	ix.put(id, text, seq)
	return seq
}

// Restore indexes text under id with a previously assigned sequence.
// Used when rebuilding an index from stored documents.
func (ix *Index) Restore(id, text string, seq uint64) {
	ix.put(id, text, seq)
	if seq >= ix.nextSeq {
		ix.nextSeq = seq + 1
	}
}

func (ix *Index) put(id, text string, seq uint64) {
	ix.Remove(id)

	terms := Tokenize(text)
	e := &entry{
		seq:    seq,
		length: len(terms),
		terms:  make(map[string]int),
	}
	for _, term := range terms {
		e.terms[term]++
	}
	for term, tf := range e.terms {
		docs, ok := ix.postings[term]
		if !ok {
			docs = make(map[string]int)
			ix.postings[term] = docs
		}
		docs[id] = tf
	}
	ix.docs[id] = e
	ix.totalLen += e.length
}

// Remove drops id from the index. Unknown ids are ignored.
func (ix *Index) Remove(id string) {
	e, ok := ix.docs[id]
	if !ok {
		return
	}
	for term := range e.terms {
		docs := ix.postings[term]
		delete(docs, id)
		if len(docs) == 0 {
			delete(ix.postings, term)
		}
	}
	ix.totalLen -= e.length
	delete(ix.docs, id)
}

// Seq returns the insertion sequence of id.
func (ix *Index) Seq(id string) (uint64, bool) {
	e, ok := ix.docs[id]
	if !ok {
		return 0, false
	}
	return e.seq, true
}

// Len returns the number of indexed documents, including empty ones.
func (ix *Index) Len() int {
	return len(ix.docs)
}

// Reset clears all documents and postings.
func (ix *Index) Reset() {
	ix.postings = make(map[string]map[string]int)
	ix.docs = make(map[string]*entry)
	ix.totalLen = 0
	ix.nextSeq = 1
}

// Search ranks documents against query and returns at most k hits with a
// positive score, ordered by descending score then ascending insertion sequence.
func (ix *Index) Search(query string, k int) []Hit {
	if k < 1 || len(ix.docs) == 0 {
		return []Hit{}
	}

	n := float64(len(ix.docs))
	avgLen := float64(ix.totalLen) / n
	if avgLen == 0 {
		return []Hit{}
	}

	scores := make(map[string]float64)
	for _, term := range Tokenize(query) {
		docs, ok := ix.postings[term]
		if !ok {
			continue
		}
		df := float64(len(docs))
		// The +1 keeps idf positive even for terms present in most documents
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for id, tf := range docs {
			length := float64(ix.docs[id].length)
			f := float64(tf)
			scores[id] += idf * f * (k1 + 1) / (f + k1*(1-b+b*length/avgLen))
		}
	}

	hits := make([]Hit, 0, len(scores))
	for id, score := range scores {
		if score <= 0 {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: score, Seq: ix.docs[id].seq})
	}

	slices.SortFunc(hits, func(a, b Hit) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		if a.Seq < b.Seq {
			return -1
		}
		if a.Seq > b.Seq {
			return 1
		}
		return 0
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// IDs returns all indexed ids in insertion order.
func (ix *Index) IDs() []string {
	ids := make([]string, 0, len(ix.docs))
	for id := range ix.docs {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		sa, sb := ix.docs[a].seq, ix.docs[b].seq
		if sa < sb {
			return -1
		}
		if sa > sb {
			return 1
		}
		return 0
	})
	return ids
}
