package lexical

import "sync/atomic"

// Holder publishes the current Index. Readers always observe a complete
// snapshot; Swap replaces it wholesale.
type Holder struct {
	current atomic.Pointer[Index]
}

// NewHolder returns a holder serving ix, or an empty index when ix is nil.
func NewHolder(ix *Index) *Holder {
	if ix == nil {
		ix = Empty()
	}
	h := &Holder{}
	h.current.Store(ix)
	return h
}

// Load returns the current snapshot. It is never nil.
func (h *Holder) Load() *Index {
	return h.current.Load()
}

// Swap publishes ix and returns the snapshot it replaced.
func (h *Holder) Swap(ix *Index) *Index {
	if ix == nil {
		ix = Empty()
	}
	return h.current.Swap(ix)
}
