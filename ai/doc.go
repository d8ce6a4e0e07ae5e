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


// Package ai defines the model collaborators groundwork depends on.
//
// Two contracts cover everything the engine needs from models:
//
//   - Embedder: turns texts into fixed-length vectors, one per input, in order
//   - Generator: completes a prompt into an answer
//
// AIProvider bundles both so they share configuration and lifecycle.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible services (hosted APIs, vLLM, LocalAI, routers)
//   - ai/ollama: a local Ollama server
//   - ai/langchain: adapters from langchaingo embedders and models to these contracts
//   - ai/mock: deterministic test doubles that need no network
//
// Public constructors return interfaces:
//
//	provider, err := openai.NewProvider(config)  // returns ai.AIProvider
//
// Mock constructors return concrete types so tests can inject behavior and
// count calls.
package ai
