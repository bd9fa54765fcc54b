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

// Package dedup finds exact and near-duplicate chunks at ingest and
// collapses near-duplicate hits at query time.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	wsRe    = regexp.MustCompile(`\s+`)
)

// Normalize canonicalizes text for duplicate comparison: lowercase,
// punctuation to spaces, whitespace runs collapsed, trimmed. Mapping
// punctuation to spaces (not deletion) keeps hyphenated forms equal to
// their spaced forms.
func Normalize(text string) string {
	text = strings.ToLower(text)
	text = punctRe.ReplaceAllString(text, " ")
	text = wsRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ContentHash returns the SHA-256 hex digest of the normalized text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}
