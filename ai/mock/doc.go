// Package mock provides deterministic AI services for tests and offline runs.
//
// MockEmbedder hashes words into a fixed number of buckets (feature hashing)
// and returns the unit-length bag-of-words vector. Texts sharing words are
// therefore close in cosine distance, which is enough for retrieval tests
// to behave like a real embedding model on small corpora.
//
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("embedding service down")
//	}
//	count := embedder.CallCount()
//
// MockGenerator answers with a fixed string, or whatever CompleteFunc
// returns, and records every prompt it receives.
package mock
