package storage

import (
	"fmt"
	"math"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/groundwork/core"
)

// indexedChunkMUS encodes core.IndexedChunk as consecutive MUS fields:
// id, text, document id, title, ordinal, vector length, vector components.
// Components are stored as the varint of their IEEE-754 bits.
type indexedChunkMUS struct{}

// IndexedChunkMUS is the MUS serializer for chunk records.
var IndexedChunkMUS = indexedChunkMUS{}

func (indexedChunkMUS) Size(c core.IndexedChunk) (size int) {
	size = ord.String.Size(c.ID)
	size += ord.String.Size(c.Text)
	size += ord.String.Size(c.Metadata.DocumentID)
	size += ord.String.Size(c.Metadata.Title)
	size += varint.Int.Size(c.Metadata.Ordinal)
	size += varint.Int.Size(len(c.Vector))
	for _, f := range c.Vector {
		size += varint.Uint32.Size(math.Float32bits(f))
	}
	return size
}

func (indexedChunkMUS) Marshal(c core.IndexedChunk, bs []byte) (n int) {
	n = ord.String.Marshal(c.ID, bs)
	n += ord.String.Marshal(c.Text, bs[n:])
	n += ord.String.Marshal(c.Metadata.DocumentID, bs[n:])
	n += ord.String.Marshal(c.Metadata.Title, bs[n:])
	n += varint.Int.Marshal(c.Metadata.Ordinal, bs[n:])
	n += varint.Int.Marshal(len(c.Vector), bs[n:])
	for _, f := range c.Vector {
		n += varint.Uint32.Marshal(math.Float32bits(f), bs[n:])
	}
	return n
}

func (indexedChunkMUS) Unmarshal(bs []byte) (c core.IndexedChunk, n int, err error) {
	var n1 int
	if c.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if c.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Metadata.DocumentID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Metadata.Title, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Metadata.Ordinal, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	var length int
	if length, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	// every component takes at least one byte
	if length < 0 || length > len(bs)-n {
		err = fmt.Errorf("%w: vector length %d", ErrTruncatedData, length)
		return
	}
	if length > 0 {
		c.Vector = make([]float32, length)
	}
	for i := range length {
		var bits uint32
		if bits, n1, err = varint.Uint32.Unmarshal(bs[n:]); err != nil {
			return
		}
		n += n1
		c.Vector[i] = math.Float32frombits(bits)
	}
	return
}

func MarshalIndexedChunk(chunk *core.IndexedChunk) []byte {
	buf := make([]byte, IndexedChunkMUS.Size(*chunk))
	IndexedChunkMUS.Marshal(*chunk, buf)
	return buf
}

func UnmarshalIndexedChunk(data []byte) (*core.IndexedChunk, error) {
	chunk, _, err := IndexedChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &chunk, nil
}
