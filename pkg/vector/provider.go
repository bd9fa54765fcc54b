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

// Package vector provides dense vector storage backends for the hybrid
// store. Two providers are supported: chromem (embedded, file-persisted)
// and qdrant (external, gRPC).
package vector

import "context"

// Doc is one vector record with its payload.
type Doc struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]any
}

// Result is a single search hit.
type Result struct {
	ID       string
	Score    float64
	Content  string
	Metadata map[string]any
}

// Provider abstracts a vector database. Vectors are always computed
// externally; providers only store and search them.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Upsert adds or updates one document.
	Upsert(ctx context.Context, collection string, doc Doc) error

	// UpsertBatch adds or updates documents in one round trip.
	UpsertBatch(ctx context.Context, collection string, docs []Doc) error

	// Search finds the topK most similar vectors.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)

	// SearchWithFilter combines similarity with exact-match metadata
	// filtering. All filter entries must match.
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error)

	// Delete removes one document by ID.
	Delete(ctx context.Context, collection string, id string) error

	// DeleteByFilter removes all documents matching the filter.
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error

	// CreateCollection ensures the collection exists with the given
	// vector dimension.
	CreateCollection(ctx context.Context, collection string, vectorDimension int) error

	// DeleteCollection removes a collection and all its documents.
	DeleteCollection(ctx context.Context, collection string) error

	// Close releases resources and flushes any pending persistence.
	Close() error
}
