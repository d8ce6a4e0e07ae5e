package ingestion

import (
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/groundwork/core"
)

// Report summarizes one ingestion pass.
type Report struct {
	// Documents is the number of documents chunked.
	Documents int

	// Chunks is the number of chunks produced, whether or not they were stored.
	Chunks int

	// Indexed is the size of the lexical corpus after the pass.
	Indexed int

	// Fingerprint identifies the chunk population produced by this pass.
	// Re-ingesting unchanged documents yields the same fingerprint.
	Fingerprint string

	// Failures holds per-document and per-batch errors.
	Failures []error
}

// OK reports whether the pass completed without failures.
func (r *Report) OK() bool {
	return len(r.Failures) == 0
}

// Err joins all failures, or returns nil.
func (r *Report) Err() error {
	return errors.Join(r.Failures...)
}

// AddFailures records failures that happened outside the pass, such as
// documents that could not be loaded.
func (r *Report) AddFailures(errs ...error) {
	for _, err := range errs {
		if err != nil {
			r.fail(err)
		}
	}
}

func (r *Report) fail(err error) {
	r.Failures = append(r.Failures, err)
}

type reportJSON struct {
	Documents   int      `json:"document_count"`
	Chunks      int      `json:"chunk_count"`
	Indexed     int      `json:"indexed_count"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	Failures    []string `json:"failures"`
}

func (r *Report) MarshalJSON() ([]byte, error) {
	failures := make([]string, len(r.Failures))
	for i, err := range r.Failures {
		failures[i] = err.Error()
	}
	return json.Marshal(reportJSON{
		Documents:   r.Documents,
		Chunks:      r.Chunks,
		Indexed:     r.Indexed,
		Fingerprint: r.Fingerprint,
		Failures:    failures,
	})
}

// fingerprint hashes chunk IDs and texts in order.
func fingerprint(chunks []core.Chunk) string {
	h, _ := blake2b.New(16, nil)
	for _, c := range chunks {
		h.Write([]byte(c.ID))
		h.Write([]byte{0})
		h.Write([]byte(c.Text))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
