// Copyright 2026 Lectern Authors
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

package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/lectern-ai/lectern/pkg/config"
)

// Ollama's llama runner crashes on concurrent embedding requests, so
// all calls are serialized process-wide.
var ollamaEmbedMu sync.Mutex

// OllamaEmbedder calls an Ollama /api/embeddings endpoint.
type OllamaEmbedder struct {
	cfg    config.EmbedderConfig
	client *http.Client
}

// NewOllamaEmbedder creates an Ollama embedder.
func NewOllamaEmbedder(cfg config.EmbedderConfig) *OllamaEmbedder {
	return &OllamaEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the vector for one text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ollamaEmbedMu.Lock()
	defer ollamaEmbedMu.Unlock()

	payload, err := json.Marshal(ollamaEmbedRequest{Model: e.cfg.Model, Prompt: text})
	if err != nil {
		return nil, NewEmbeddingError("ollama", "embed", "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.cfg.Host+"/api/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, NewEmbeddingError("ollama", "embed", "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, NewEmbeddingError("ollama", "embed", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, NewEmbeddingError("ollama", "embed",
			fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, NewEmbeddingError("ollama", "embed", "failed to decode response", err)
	}
	if len(out.Embedding) == 0 {
		return nil, NewEmbeddingError("ollama", "embed", "received empty embedding", nil)
	}
	return out.Embedding, nil
}

// EmbedBatch embeds texts one by one; the Ollama embeddings endpoint
// has no batch form.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// Dimension returns the configured vector width.
func (e *OllamaEmbedder) Dimension() int {
	return e.cfg.Dimension
}

// Model returns the model name.
func (e *OllamaEmbedder) Model() string {
	return e.cfg.Model
}
