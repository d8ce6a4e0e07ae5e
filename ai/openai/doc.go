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


// Package openai provides AI service implementations using OpenAI-compatible APIs.
//
// Any server speaking the OpenAI embeddings and chat completion endpoints
// works: OpenAI itself, the Hugging Face router, vLLM, LocalAI.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithProvider(ai.ProviderOpenAI),
//	    ai.WithGenerationHost("https://router.huggingface.co"),  // /v1 added automatically
//	    ai.WithGenerationModel("meta-llama/Llama-3.1-8B-Instruct"),
//	    ai.WithAPIKey(os.Getenv("HUGGINGFACE_API_KEY")),
//	)
//
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	answer, err := provider.Generator().Complete(ctx, prompt)
package openai
