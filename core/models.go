package core

import (
	"encoding/json"
	"strconv"
)

// Document is a unit of source material. It is immutable for the duration
// of an ingestion pass.
type Document struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ChunkMetadata travels with a chunk through both the vector store and the
// lexical index. The JSON names match what callers of the retrieval surface
// have always seen.
type ChunkMetadata struct {
	DocumentID string `json:"doc_id"`
	Title      string `json:"title"`
	Ordinal    int    `json:"chunk_index"`
}

// Chunk is a window of a document's words, the unit of indexing and retrieval.
type Chunk struct {
	ID       string
	Text     string
	Metadata ChunkMetadata
}

// ChunkID derives the stable identifier of the ordinal-th chunk of a document.
// Re-ingesting the same document with the same chunking parameters yields
// the same IDs, so stores overwrite instead of duplicating.
func ChunkID(documentID string, ordinal int) string {
	return documentID + "_" + strconv.Itoa(ordinal)
}

// NewChunk builds the ordinal-th chunk of doc.
func NewChunk(doc Document, ordinal int, text string) Chunk {
	return Chunk{
		ID:   ChunkID(doc.ID, ordinal),
		Text: text,
		Metadata: ChunkMetadata{
			DocumentID: doc.ID,
			Title:      doc.Title,
			Ordinal:    ordinal,
		},
	}
}

// IndexedChunk is a chunk together with its embedding, as held by a vector store.
type IndexedChunk struct {
	Chunk
	Vector []float32
}

// Signal is the relevance evidence attached to a hit. It is either Semantic
// or Lexical; the two live on unrelated scales and are only ever reconciled
// through rank.
type Signal interface {
	signal()
}

// Semantic is a vector-store match. Distance is cosine distance in [0,2],
// lower is closer.
type Semantic struct {
	Distance float64
}

// Similarity converts the distance into a similarity.
func (s Semantic) Similarity() float64 {
	return 1 - s.Distance
}

// Lexical is a keyword match. Score is a BM25 score, always > 0 for hits.
type Lexical struct {
	Score float64
}

func (Semantic) signal() {}
func (Lexical) signal()  {}

// Hit is a single-leg retrieval result.
type Hit struct {
	Chunk
	Signal Signal
}

// FusedHit is a hit after rank fusion.
type FusedHit struct {
	Hit

	// Fusion is the summed reciprocal-rank contribution from every leg the
	// chunk appeared in. It alone determines rank.
	Fusion float64

	// Similarity is 1 - distance for semantic hits. Lexical-only hits have no
	// distance and carry a fixed placeholder instead; it is an approximation
	// for display, not a derived value.
	Similarity float64

	// Confidence is the normalized score in [0,1] attached after gating.
	Confidence float64
}

// LexicalOnly reports whether the hit came exclusively from the lexical leg.
func (h FusedHit) LexicalOnly() bool {
	_, ok := h.Signal.(Lexical)
	return ok
}

// Distance returns the vector distance, or the distance implied by the
// placeholder similarity for lexical-only hits.
func (h FusedHit) Distance() float64 {
	if s, ok := h.Signal.(Semantic); ok {
		return s.Distance
	}
	return 1 - h.Similarity
}

// Passage is the shape returned by plain retrieval requests.
type Passage struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Distance float64       `json:"distance"`
}

// Passage projects the hit for retrieval responses.
func (h FusedHit) Passage() Passage {
	return Passage{Text: h.Text, Metadata: h.Metadata, Distance: h.Distance()}
}

type fusedHitJSON struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Origin   string        `json:"origin"`
	Fusion   float64       `json:"fusion_score"`
	Score    float64       `json:"score"`
}

// MarshalJSON renders the hit as a source entry. Score is always present.
func (h FusedHit) MarshalJSON() ([]byte, error) {
	origin := "semantic"
	if h.LexicalOnly() {
		origin = "lexical"
	}
	return json.Marshal(fusedHitJSON{
		ID:       h.ID,
		Text:     h.Text,
		Metadata: h.Metadata,
		Origin:   origin,
		Fusion:   h.Fusion,
		Score:    h.Confidence,
	})
}

// Status is the terminal outcome of an ask request.
type Status string

const (
	StatusSuccess    Status = "success"
	StatusLowContext Status = "low_context"
	StatusError      Status = "error"
)

// RefusalSentence is the canonical answer when the context cannot support one.
const RefusalSentence = "I don't have enough information to answer this."

// AnswerResult is what an ask request always returns, whatever happened.
type AnswerResult struct {
	Answer      string     `json:"answer"`
	Status      Status     `json:"status"`
	TraceID     string     `json:"trace_id"`
	Sources     []FusedHit `json:"sources"`
	Explanation string     `json:"explanation,omitempty"`
}
