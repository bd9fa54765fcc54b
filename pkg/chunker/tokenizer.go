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

// Package chunker cuts parsed document units into token-bounded chunks
// with provenance.
package chunker

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens with a tiktoken encoding.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

var (
	// Encodings are expensive to initialize, cache per name.
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// NewTokenCounter returns a counter for the named encoding, falling back
// to cl100k_base for unknown names.
func NewTokenCounter(encoding string) (*TokenCounter, error) {
	cacheMu.RLock()
	cached, ok := encodingCache[encoding]
	cacheMu.RUnlock()
	if ok {
		return &TokenCounter{encoding: cached}, nil
	}

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[encoding] = enc
	cacheMu.Unlock()

	return &TokenCounter{encoding: enc}, nil
}

// Count returns the token count for text.
func (tc *TokenCounter) Count(text string) int {
	if tc == nil || tc.encoding == nil {
		return EstimateTokens(text)
	}
	return len(tc.encoding.Encode(text, nil, nil))
}

// Encode returns the token IDs for text.
func (tc *TokenCounter) Encode(text string) []int {
	return tc.encoding.Encode(text, nil, nil)
}

// Decode converts token IDs back to text.
func (tc *TokenCounter) Decode(tokens []int) string {
	return tc.encoding.Decode(tokens)
}

// EstimateTokens is the rough fallback when no encoder is available,
// about 4 characters per token.
func EstimateTokens(text string) int {
	return len(text) / 4
}
