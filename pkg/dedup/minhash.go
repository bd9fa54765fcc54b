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

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"sync"
)

const (
	// mersennePrime bounds the universal hash family.
	mersennePrime = uint64(1)<<61 - 1
	// maxHash keeps signature values in 32-bit space.
	maxHash = uint64(1)<<32 - 1
	// permSeed fixes the permutation family so signatures are stable
	// across processes.
	permSeed = 1

	fingerprintValues = 16
)

// Signature is a MinHash signature: one minimum per permutation.
type Signature []uint32

// MinHasher computes MinHash signatures over character shingles.
type MinHasher struct {
	numPerm     int
	shingleSize int
	a, b        []uint64
}

// NewMinHasher creates a hasher with a deterministic permutation family.
func NewMinHasher(numPerm, shingleSize int) *MinHasher {
	rng := rand.New(rand.NewSource(permSeed))
	a := make([]uint64, numPerm)
	b := make([]uint64, numPerm)
	for i := 0; i < numPerm; i++ {
		// a must be non-zero for the family to be universal.
		a[i] = uint64(rng.Int63n(int64(mersennePrime-1))) + 1
		b[i] = uint64(rng.Int63n(int64(mersennePrime)))
	}
	return &MinHasher{numPerm: numPerm, shingleSize: shingleSize, a: a, b: b}
}

// Sign computes the signature of already-normalized text.
func (m *MinHasher) Sign(normalized string) Signature {
	sig := make(Signature, m.numPerm)
	for i := range sig {
		sig[i] = uint32(maxHash)
	}

	for _, shingle := range shingles(normalized, m.shingleSize) {
		h := fnv.New64a()
		h.Write([]byte(shingle))
		x := h.Sum64() % mersennePrime
		for i := 0; i < m.numPerm; i++ {
			v := uint32(((m.a[i]*x + m.b[i]) % mersennePrime) & maxHash)
			if v < sig[i] {
				sig[i] = v
			}
		}
	}
	return sig
}

// Fingerprint renders the first values of a signature as the compact
// hex form stored on each chunk.
func (s Signature) Fingerprint() string {
	n := fingerprintValues
	if len(s) < n {
		n = len(s)
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%08x", s[i])
	}
	return b.String()
}

// Bytes encodes the signature for storage.
func (s Signature) Bytes() []byte {
	out := make([]byte, 4*len(s))
	for i, v := range s {
		binary.BigEndian.PutUint32(out[i*4:], v)
	}
	return out
}

// SignatureFromBytes decodes a stored signature.
func SignatureFromBytes(data []byte) Signature {
	if len(data)%4 != 0 {
		return nil
	}
	sig := make(Signature, len(data)/4)
	for i := range sig {
		sig[i] = binary.BigEndian.Uint32(data[i*4:])
	}
	return sig
}

// Jaccard estimates the Jaccard similarity of the underlying shingle
// sets from two signatures.
func Jaccard(a, b Signature) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	equal := 0
	for i := range a {
		if a[i] == b[i] {
			equal++
		}
	}
	return float64(equal) / float64(len(a))
}

// shingles returns the k-character windows of text. Short text yields a
// single shingle so trivial inputs still sign.
func shingles(text string, k int) []string {
	runes := []rune(text)
	if len(runes) <= k {
		return []string{text}
	}
	out := make([]string, 0, len(runes)-k+1)
	for i := 0; i+k <= len(runes); i++ {
		out = append(out, string(runes[i:i+k]))
	}
	return out
}

// LSHIndex is a banding index over MinHash signatures. Band count is
// tuned so that pairs above the target Jaccard threshold land in a
// shared bucket with high probability.
type LSHIndex struct {
	bands int
	rows  int

	mu      sync.RWMutex
	buckets []map[string][]string
	sigs    map[string]Signature
}

// NewLSHIndex creates an index tuned for the given threshold.
func NewLSHIndex(numPerm int, threshold float64) *LSHIndex {
	bands, rows := optimalBands(numPerm, threshold)
	buckets := make([]map[string][]string, bands)
	for i := range buckets {
		buckets[i] = make(map[string][]string)
	}
	return &LSHIndex{
		bands:   bands,
		rows:    rows,
		buckets: buckets,
		sigs:    make(map[string]Signature),
	}
}

// optimalBands picks the banding that minimizes combined false positive
// and false negative area around the threshold.
func optimalBands(numPerm int, threshold float64) (bands, rows int) {
	bestErr := math.Inf(1)
	bands, rows = 1, numPerm
	for b := 1; b <= numPerm; b++ {
		if numPerm%b != 0 {
			continue
		}
		r := numPerm / b
		fp := integrate(func(s float64) float64 {
			return 1 - math.Pow(1-math.Pow(s, float64(r)), float64(b))
		}, 0, threshold)
		fn := integrate(func(s float64) float64 {
			return 1 - (1 - math.Pow(1-math.Pow(s, float64(r)), float64(b)))
		}, threshold, 1)
		if err := fp + fn; err < bestErr {
			bestErr = err
			bands, rows = b, r
		}
	}
	return bands, rows
}

func integrate(f func(float64) float64, a, b float64) float64 {
	const steps = 200
	dx := (b - a) / steps
	sum := 0.0
	for i := 0; i < steps; i++ {
		sum += f(a+(float64(i)+0.5)*dx) * dx
	}
	return sum
}

// Add inserts a signature under the given ID.
func (l *LSHIndex) Add(id string, sig Signature) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sigs[id] = sig
	for b := 0; b < l.bands; b++ {
		key := bandKey(sig[b*l.rows : (b+1)*l.rows])
		l.buckets[b][key] = append(l.buckets[b][key], id)
	}
}

// Candidates returns IDs sharing at least one band bucket with sig.
func (l *LSHIndex) Candidates(sig Signature) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for b := 0; b < l.bands; b++ {
		key := bandKey(sig[b*l.rows : (b+1)*l.rows])
		for _, id := range l.buckets[b][key] {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// Signature returns the stored signature for an ID.
func (l *LSHIndex) Signature(id string) (Signature, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sig, ok := l.sigs[id]
	return sig, ok
}

// Len returns the number of indexed signatures.
func (l *LSHIndex) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sigs)
}

func bandKey(band Signature) string {
	var b strings.Builder
	for _, v := range band {
		fmt.Fprintf(&b, "%08x", v)
	}
	return b.String()
}
