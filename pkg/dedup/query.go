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

package dedup

import "math"

// Candidate is a scored retrieval hit eligible for query-time collapse.
type Candidate struct {
	ID        string
	Score     float64
	Embedding []float32
	Signature Signature
}

// CollapseNear removes near-duplicate candidates from a list already
// sorted by descending score, keeping the higher-scored member of each
// pair. Similarity is cosine over embeddings when both sides have one,
// MinHash Jaccard otherwise; candidates comparable by neither are kept.
func CollapseNear(candidates []Candidate, threshold float64) []Candidate {
	kept := make([]Candidate, 0, len(candidates))
	for _, cand := range candidates {
		dup := false
		for _, k := range kept {
			if similar(cand, k, threshold) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, cand)
		}
	}
	return kept
}

func similar(a, b Candidate, threshold float64) bool {
	if hasVector(a.Embedding) && hasVector(b.Embedding) {
		return Cosine(a.Embedding, b.Embedding) >= threshold
	}
	if len(a.Signature) > 0 && len(b.Signature) > 0 {
		return Jaccard(a.Signature, b.Signature) >= threshold
	}
	return false
}

// hasVector reports a usable embedding: present and not the zero-vector
// fallback written for failed embeddings.
func hasVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return true
		}
	}
	return false
}

// Cosine returns the cosine similarity of two vectors, 0 when either
// is empty or zero.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
