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


// Package storage defines the vector store contract used by groundwork.
//
// A vector store owns the persisted chunk population. The engine treats its
// on-disk representation as opaque and only relies on the operations of
// VectorStore:
//
//	store, err := badger.NewStore(path)       // embedded, exact cosine scan
//	store, err := qdrant.NewStore(ctx, addr)  // remote, gRPC
//
// Both implementations report cosine distance (1 - cosine similarity) in
// [0,2] and order query results by ascending distance.
//
// Chunk records kept by the embedded store are encoded with the MUS binary
// format; see MarshalIndexedChunk and UnmarshalIndexedChunk.
package storage
