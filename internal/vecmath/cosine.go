// Copyright 2025 TSBot authors
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

// Package vecmath holds the small numeric helpers shared by the
// router, semantic cache, and hierarchy enricher: all three compare
// embedding vectors by cosine similarity.
package vecmath

import "math"

// Cosine returns the cosine similarity of a and b. Both vectors are
// expected to already be unit-norm (the embedder's contract, spec §6),
// but this still normalizes defensively so a non-conforming embedder
// degrades to a correct answer rather than a silently wrong one.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// MaxCosine returns the highest cosine similarity between query and any
// vector in candidates, or 0 if candidates is empty.
func MaxCosine(query []float32, candidates [][]float32) float64 {
	best := 0.0
	for _, c := range candidates {
		if s := Cosine(query, c); s > best {
			best = s
		}
	}
	return best
}
