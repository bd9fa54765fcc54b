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

package enrich

import (
	"regexp"
	"strings"

	"github.com/lectern-ai/lectern/pkg/document"
)

var (
	emailRe = regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[\w.-]+\b`)
	urlRe   = regexp.MustCompile(`\bhttps?://[^\s<>"\]\)]+`)
	dateRe  = regexp.MustCompile(`\b(?:\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}-\d{2}-\d{2}|(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2}(?:,?\s+\d{4})?)\b`)

	// Title-prefixed names.
	personRe = regexp.MustCompile(`\b(?:Dr|Prof|Professor|Mr|Mrs|Ms)\.?\s+((?:[A-Z][a-z]+\s?){1,3})`)

	// Capitalized sequences ending in an institutional suffix.
	orgRe = regexp.MustCompile(`\b((?:[A-Z][\w&]+\s+){0,3}(?:University|Institute|College|Laboratory|Labs|Inc|Corp|Corporation|Foundation|Society|Association))\b`)

	// "in/at <Capitalized Place>" sequences.
	locationRe = regexp.MustCompile(`\b(?:in|at|near|from)\s+((?:[A-Z][a-z]+)(?:\s+[A-Z][a-z]+)?)\b`)
)

// Entities runs the regex inventory over text, returning deduplicated
// typed entities. Precision over recall; callers tolerate empty.
func Entities(text string) []document.Entity {
	var out []document.Entity
	seen := make(map[string]bool)

	add := func(entityType string, matches [][]string, group int) {
		for _, m := range matches {
			val := strings.TrimSpace(m[group])
			if val == "" {
				continue
			}
			key := entityType + ":" + strings.ToLower(val)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, document.Entity{Text: val, Type: entityType})
		}
	}

	add("email", emailRe.FindAllStringSubmatch(text, -1), 0)
	add("url", urlRe.FindAllStringSubmatch(text, -1), 0)
	add("date", dateRe.FindAllStringSubmatch(text, -1), 0)
	add("person", personRe.FindAllStringSubmatch(text, -1), 1)
	add("organization", orgRe.FindAllStringSubmatch(text, -1), 1)
	add("location", locationRe.FindAllStringSubmatch(text, -1), 1)

	return out
}
