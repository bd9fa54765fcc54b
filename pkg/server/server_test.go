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

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectern-ai/lectern/pkg/chunker"
	"github.com/lectern-ai/lectern/pkg/config"
	"github.com/lectern-ai/lectern/pkg/document"
	"github.com/lectern-ai/lectern/pkg/ingest"
	"github.com/lectern-ai/lectern/pkg/lexical"
	"github.com/lectern-ai/lectern/pkg/observability"
	"github.com/lectern-ai/lectern/pkg/search"
	"github.com/lectern-ai/lectern/pkg/store"
	"github.com/lectern-ai/lectern/pkg/vector"
)

type constEmbedder struct{}

func (constEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (e constEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (constEmbedder) Dimension() int { return 2 }
func (constEmbedder) Model() string  { return "const" }

func newTestServer(t *testing.T) (*Server, *store.HybridStore) {
	t.Helper()

	if _, err := chunker.New(config.ChunkingConfig{}); err != nil {
		t.Skipf("token encoding unavailable: %v", err)
	}

	cfg := config.Default()
	cfg.Source.Path = t.TempDir()
	cfg.Lexical.Path = filepath.Join(t.TempDir(), "lexical.db")

	provider, err := vector.NewChromemProvider("")
	require.NoError(t, err)
	lex, err := lexical.Open(cfg.Lexical.Path)
	require.NoError(t, err)
	st := store.New(provider, lex, cfg.VectorStore, cfg.Retrieval)
	t.Cleanup(func() { st.Close() })

	emb := constEmbedder{}
	pipeline, err := ingest.NewPipeline(cfg, st, emb)
	require.NoError(t, err)

	engine := search.NewEngine(st, emb, cfg.Retrieval, cfg.Dedup)
	scope := search.NewScope(engine, cfg.Scope)

	return New(cfg.Server, pipeline, engine, scope, observability.NewMetrics()), st
}

func TestServer_Healthz(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RetrieveValidation(t *testing.T) {
	s, _ := newTestServer(t)

	body := bytes.NewBufferString(`{"query": "x"}`)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/retrieve", body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Retrieve(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertBatch(ctx, []document.Chunk{{
		ChunkID:     "d1_0000",
		DocumentID:  "d1",
		SourceFile:  "week2/notes.pdf",
		FileType:    document.FileTypePDF,
		WeekNumber:  2,
		Content:     "dijkstra computes shortest paths",
		ContentHash: "h0",
		CreatedAt:   time.Now().UTC(),
	}}, [][]float32{{1, 0}}, nil))

	body := bytes.NewBufferString(`{"query": "shortest paths", "top_k": 3}`)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/retrieve", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp search.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "d1_0000", resp.Results[0].Chunk.ChunkID)
	assert.Equal(t, 2, resp.Results[0].Chunk.WeekNumber)
}

func TestServer_Scope(t *testing.T) {
	s, _ := newTestServer(t)

	body := bytes.NewBufferString(`{"query": "explain recursion"}`)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/scope", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var res search.ScopeResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.NotEmpty(t, res.Reason)
}

func TestServer_ScopeRequiresQuery(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/scope",
		bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_JobNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_IngestAndPollJob(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ingest",
		bytes.NewBufferString(`{"force": false}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job ingest.Job
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&job))
	require.NotEmpty(t, job.ID)

	// Empty source directory: the job completes quickly with no files.
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/"+job.ID, nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var got ingest.Job
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		if got.State == ingest.JobCompleted || got.State == ingest.JobFailed {
			assert.Equal(t, ingest.JobCompleted, got.State)
			assert.Zero(t, got.Counts.FilesDiscovered)
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job did not finish in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
