package core

import "fmt"

// ValidateDocument validates a Document before ingestion.
//
// Validation rules:
//   - ID must not be empty
//
// An empty body is valid; it simply produces no chunks.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyDocumentID)
	}
	return nil
}

// ValidateIndexedChunk validates a chunk before it is written to a vector store.
func ValidateIndexedChunk(chunk *IndexedChunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}
	if chunk.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyChunkID)
	}
	if chunk.Text == "" {
		return fmt.Errorf("%w: %s: %w", ErrInvalidChunk, chunk.ID, ErrEmptyContent)
	}
	if len(chunk.Vector) == 0 {
		return fmt.Errorf("%w: %s: %w", ErrInvalidChunk, chunk.ID, ErrMissingVector)
	}
	return nil
}
