package lexical

import (
	"math"
	"sort"

	"github.com/poiesic/groundwork/core"
)

const (
	// DefaultK1 controls term-frequency saturation.
	DefaultK1 = 1.5
	// DefaultB controls document-length normalization.
	DefaultB = 0.75
)

type posting struct {
	doc  int
	freq int
}

// Index is an immutable BM25 snapshot. It is safe for concurrent reads.
type Index struct {
	chunks   []core.Chunk
	lengths  []int
	postings map[string][]posting
	avgLen   float64
	k1       float64
	b        float64
	tokenize Tokenizer
}

// Option configures Build.
type Option func(*Index)

// WithTokenizer replaces the default case-sensitive whitespace tokenizer.
func WithTokenizer(t Tokenizer) Option {
	return func(ix *Index) {
		if t != nil {
			ix.tokenize = t
		}
	}
}

// WithCaseInsensitive folds case for both corpus and queries.
func WithCaseInsensitive(fold bool) Option {
	return func(ix *Index) {
		if fold {
			ix.tokenize = FoldedWhitespace
		}
	}
}

// WithParameters overrides the BM25 k1 and b parameters.
func WithParameters(k1, b float64) Option {
	return func(ix *Index) {
		ix.k1 = k1
		ix.b = b
	}
}

// Build indexes chunks. The slice is copied; later changes by the caller do
// not affect the index.
func Build(chunks []core.Chunk, opts ...Option) *Index {
	ix := &Index{
		chunks:   append([]core.Chunk(nil), chunks...),
		lengths:  make([]int, len(chunks)),
		postings: make(map[string][]posting),
		k1:       DefaultK1,
		b:        DefaultB,
		tokenize: Whitespace,
	}
	for _, opt := range opts {
		opt(ix)
	}

	total := 0
	for i, c := range ix.chunks {
		terms := ix.tokenize(c.Text)
		ix.lengths[i] = len(terms)
		total += len(terms)

		freqs := make(map[string]int, len(terms))
		for _, term := range terms {
			freqs[term]++
		}
		for term, f := range freqs {
			ix.postings[term] = append(ix.postings[term], posting{doc: i, freq: f})
		}
	}
	if len(ix.chunks) > 0 {
		ix.avgLen = float64(total) / float64(len(ix.chunks))
	}
	return ix
}

// Empty returns an index over no chunks.
func Empty(opts ...Option) *Index {
	return Build(nil, opts...)
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	return len(ix.chunks)
}

// Chunks returns a copy of the indexed corpus in index order.
func (ix *Index) Chunks() []core.Chunk {
	return append([]core.Chunk(nil), ix.chunks...)
}

func (ix *Index) idf(docFreq int) float64 {
	n := float64(len(ix.chunks))
	df := float64(docFreq)
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// Scores returns the BM25 score of every chunk for query, in index order.
// Repeated query terms count once per occurrence.
func (ix *Index) Scores(query string) []float64 {
	scores := make([]float64, len(ix.chunks))
	if len(ix.chunks) == 0 {
		return scores
	}
	for _, term := range ix.tokenize(query) {
		plist := ix.postings[term]
		if len(plist) == 0 {
			continue
		}
		idf := ix.idf(len(plist))
		for _, p := range plist {
			norm := 1 - ix.b
			if ix.avgLen > 0 {
				norm += ix.b * float64(ix.lengths[p.doc]) / ix.avgLen
			}
			f := float64(p.freq)
			scores[p.doc] += idf * f * (ix.k1 + 1) / (f + ix.k1*norm)
		}
	}
	return scores
}

// Search returns up to n chunks with a strictly positive score, highest
// first. Equal scores keep index order.
func (ix *Index) Search(query string, n int) []core.Hit {
	if n <= 0 {
		return nil
	}
	scores := ix.Scores(query)

	order := make([]int, 0, len(scores))
	for i, s := range scores {
		if s > 0 {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	if len(order) > n {
		order = order[:n]
	}

	hits := make([]core.Hit, len(order))
	for i, doc := range order {
		hits[i] = core.Hit{
			Chunk:  ix.chunks[doc],
			Signal: core.Lexical{Score: scores[doc]},
		}
	}
	return hits
}
