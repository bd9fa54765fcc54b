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
	"sort"
	"strings"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}'-]*`)

// Keywords extracts up to max keywords by unsupervised statistical
// scoring over 1..3-gram candidates. Lower scores mean more important;
// near-identical surface forms are collapsed.
func Keywords(text string, max int) []string {
	words := tokenize(text)
	if len(words) == 0 {
		return nil
	}

	// Per-term statistics: frequency and first position.
	freq := make(map[string]int)
	firstPos := make(map[string]int)
	for i, w := range words {
		freq[w]++
		if _, ok := firstPos[w]; !ok {
			firstPos[w] = i
		}
	}

	// Terms appearing early and often score lower (better).
	termScore := func(w string) float64 {
		pos := float64(firstPos[w]) / float64(len(words))
		return (1 + pos) / float64(freq[w])
	}

	type scored struct {
		phrase string
		score  float64
	}
	seen := make(map[string]bool)
	var candidates []scored

	for n := 1; n <= 3; n++ {
		for i := 0; i+n <= len(words); i++ {
			gram := words[i : i+n]
			if hasStopword(gram) {
				continue
			}
			phrase := strings.Join(gram, " ")
			if seen[phrase] || len(phrase) < 3 {
				continue
			}
			seen[phrase] = true

			product := 1.0
			sumFreq := 0
			for _, w := range gram {
				product *= termScore(w)
				sumFreq += freq[w]
			}
			candidates = append(candidates, scored{
				phrase: phrase,
				score:  product / (1 + float64(sumFreq)),
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score < candidates[j].score
		}
		return candidates[i].phrase < candidates[j].phrase
	})

	// Collapse near-identical surface forms, best score first.
	var out []string
	for _, c := range candidates {
		if len(out) >= max {
			break
		}
		dup := false
		for _, kept := range out {
			if surfaceSimilarity(c.phrase, kept) >= 0.9 {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c.phrase)
		}
	}
	return out
}

func tokenize(text string) []string {
	raw := wordRe.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, w := range raw {
		w = strings.Trim(w, "'-")
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func hasStopword(gram []string) bool {
	for _, w := range gram {
		if stopwords[w] || len(w) < 2 {
			return true
		}
	}
	return false
}

// surfaceSimilarity is a normalized edit-distance ratio in [0, 1].
func surfaceSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}
	dist := levenshtein(a, b)
	longer := la
	if lb > longer {
		longer = lb
	}
	return 1 - float64(dist)/float64(longer)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = minOf(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func minOf(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
