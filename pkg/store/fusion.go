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

package store

// minMaxNormalize rescales scores to [0, 1] per result list. A list
// with a single score, or where all scores are equal, maps to 1.0 so a
// lone strong hit is not zeroed out.
func minMaxNormalize(scores map[string]float64) map[string]float64 {
	if len(scores) == 0 {
		return nil
	}

	first := true
	var lo, hi float64
	for _, s := range scores {
		if first {
			lo, hi = s, s
			first = false
			continue
		}
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}

	out := make(map[string]float64, len(scores))
	if hi == lo {
		for id := range scores {
			out[id] = 1.0
		}
		return out
	}
	for id, s := range scores {
		out[id] = (s - lo) / (hi - lo)
	}
	return out
}

// fuse combines normalized vector and BM25 scores with fixed weights.
// An ID absent from one side contributes zero from that side.
func fuse(vectorScores, bm25Scores map[string]float64, vectorWeight, bm25Weight float64) map[string]float64 {
	fused := make(map[string]float64, len(vectorScores)+len(bm25Scores))
	for id, s := range vectorScores {
		fused[id] += vectorWeight * s
	}
	for id, s := range bm25Scores {
		fused[id] += bm25Weight * s
	}
	return fused
}
