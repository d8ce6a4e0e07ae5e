// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when a vector store is not provided.
	ErrStoreRequired = errors.New("vector store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrIndexRequired is returned when a lexical index holder is not provided.
	ErrIndexRequired = errors.New("lexical index holder required")

	// ErrDuplicateDocument is reported when a document ID repeats within one pass.
	ErrDuplicateDocument = errors.New("duplicate document id")

	// ErrEmbeddingCount is reported when the embedder returns the wrong number of vectors.
	ErrEmbeddingCount = errors.New("embedding count mismatch")
)
