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

package search

import (
	"context"
	"math"
	"strings"

	"github.com/lectern-ai/lectern/pkg/config"
)

// ScopeResult is the outcome of the out-of-scope predicate.
type ScopeResult struct {
	InScope    bool    `json:"in_scope"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Scope decides whether a query is answerable from the indexed corpus.
// It probes the index with a shallow search and compares the best
// fused score against a threshold. Queries that touch configured
// in-scope indicator terms get a more permissive threshold.
type Scope struct {
	cfg    scopeConfig
	engine *Engine
}

type scopeConfig struct {
	blocklist          []string
	indicators         []string
	indicatorThreshold float64
	defaultThreshold   float64
	probeTopK          int
}

// NewScope creates the scope predicate over a search engine.
func NewScope(engine *Engine, cfg config.ScopeConfig) *Scope {
	return &Scope{
		engine: engine,
		cfg: scopeConfig{
			blocklist:          lowerAll(cfg.BlocklistKeywords),
			indicators:         lowerAll(cfg.InScopeIndicators),
			indicatorThreshold: cfg.IndicatorThreshold,
			defaultThreshold:   cfg.DefaultThreshold,
			probeTopK:          cfg.ProbeTopK,
		},
	}
}

// Check classifies the query. The predicate is permissive on probe
// failure: retrieval downstream can still refuse, but a transient
// store error must not reject student questions outright.
func (s *Scope) Check(ctx context.Context, query string) ScopeResult {
	lowered := strings.ToLower(query)

	for _, blocked := range s.cfg.blocklist {
		if blocked != "" && strings.Contains(lowered, blocked) {
			return ScopeResult{
				InScope:    false,
				Confidence: 0.9,
				Reason:     "query matches blocklisted topic",
			}
		}
	}

	threshold := s.cfg.defaultThreshold
	for _, ind := range s.cfg.indicators {
		if ind != "" && strings.Contains(lowered, ind) {
			threshold = s.cfg.indicatorThreshold
			break
		}
	}

	resp, err := s.engine.Search(ctx, Request{Query: query, TopK: s.cfg.probeTopK})
	if err != nil {
		return ScopeResult{
			InScope:    true,
			Confidence: 0.2,
			Reason:     "scope probe failed, defaulting to in-scope",
		}
	}

	best := 0.0
	for _, r := range resp.Results {
		if r.Score > best {
			best = r.Score
		}
	}

	confidence := 0.5 + math.Min(0.45, math.Abs(best-threshold))
	if best >= threshold {
		return ScopeResult{
			InScope:    true,
			Confidence: confidence,
			Reason:     "indexed material covers the query",
		}
	}
	return ScopeResult{
		InScope:    false,
		Confidence: confidence,
		Reason:     "no indexed material scores above threshold",
	}
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
