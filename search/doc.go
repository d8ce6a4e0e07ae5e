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


// Package search provides hybrid semantic and lexical retrieval.
//
// The Retriever runs two legs for every query:
//   - Semantic search over the vector store using the query embedding
//   - Lexical search over the current BM25 index snapshot
//
// Each leg asks for twice the number of requested results. The two ranked
// lists are combined with Reciprocal Rank Fusion, which only looks at rank
// and therefore never compares a vector distance with a BM25 score.
package search
