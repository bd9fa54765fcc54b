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

// Package embedder provides embedding clients for OpenAI-compatible and
// Ollama endpoints.
package embedder

import (
	"context"
	"fmt"

	"github.com/lectern-ai/lectern/pkg/config"
)

// Embedder computes dense vectors for text. Callers own retry policy.
type Embedder interface {
	// Embed returns the vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns vectors in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the vector width this embedder produces.
	Dimension() int

	// Model is the model name in use.
	Model() string
}

// New creates an embedder from config.
func New(cfg config.EmbedderConfig) (Embedder, error) {
	switch cfg.Type {
	case "openai":
		return NewOpenAIEmbedder(cfg), nil
	case "ollama":
		return NewOllamaEmbedder(cfg), nil
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Type)
	}
}

// Truncate caps embedding input length. Oversized chunk text embeds
// from its prefix rather than failing the request.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	return text[:maxChars]
}

// ZeroVector returns the fallback vector written when embedding fails
// permanently. Such chunks stay lexically searchable.
func ZeroVector(dimension int) []float32 {
	return make([]float32, dimension)
}

// EmbeddingError represents an embedding operation failure.
type EmbeddingError struct {
	Provider  string // Provider name
	Operation string // Operation that failed
	Message   string // Error message
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *EmbeddingError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Provider, e.Operation, e.Message)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// NewEmbeddingError creates a new EmbeddingError.
func NewEmbeddingError(provider, operation, message string, err error) *EmbeddingError {
	return &EmbeddingError{
		Provider:  provider,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
