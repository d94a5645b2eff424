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

package bm25

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReciprocalRankFusion_CombinesAcrossLists(t *testing.T) {
	dense := []RankedItem{{DocIndex: 1, Score: 0.9}, {DocIndex: 2, Score: 0.5}}
	lexical := []RankedItem{{DocIndex: 2, Score: 8.0}, {DocIndex: 3, Score: 3.0}}

	fused := ReciprocalRankFusion([][]RankedItem{dense, lexical}, []bool{true, false}, 60)

	byDoc := make(map[int]FusedResult, len(fused))
	for _, f := range fused {
		byDoc[f.DocIndex] = f
	}
	require.Contains(t, byDoc, 1)
	require.Contains(t, byDoc, 2)
	require.Contains(t, byDoc, 3)

	// Doc 2 appears in both lists, so it should outrank doc 1 and doc 3,
	// which each appear in only one list.
	assert.Greater(t, byDoc[2].RRFScore, byDoc[1].RRFScore)
	assert.Greater(t, byDoc[2].RRFScore, byDoc[3].RRFScore)
}

func TestReciprocalRankFusion_CarriesDenseScoreFromEveryVariant(t *testing.T) {
	// Two query variants, each contributing a dense ranking for a
	// different document; a naive "only the first list is dense"
	// implementation would silently drop the second variant's dense
	// score.
	variant1Dense := []RankedItem{{DocIndex: 10, Score: 0.77}}
	variant1Lexical := []RankedItem{{DocIndex: 11, Score: 4.0}}
	variant2Dense := []RankedItem{{DocIndex: 20, Score: 0.64}}
	variant2Lexical := []RankedItem{{DocIndex: 21, Score: 2.0}}

	fused := ReciprocalRankFusion(
		[][]RankedItem{variant1Dense, variant1Lexical, variant2Dense, variant2Lexical},
		[]bool{true, false, true, false},
		60,
	)

	byDoc := make(map[int]FusedResult, len(fused))
	for _, f := range fused {
		byDoc[f.DocIndex] = f
	}

	assert.Equal(t, 0.77, byDoc[10].DenseScore)
	assert.Equal(t, 0.64, byDoc[20].DenseScore, "dense score from the second variant's dense list must be carried through")
	assert.Equal(t, 0.0, byDoc[11].DenseScore, "lexical-only doc must have zero dense score")
}

func TestReciprocalRankFusion_TieBrokenByDenseScoreThenOrder(t *testing.T) {
	// Each doc sits at rank 0 of its own list, so RRF contributions are
	// equal; the higher dense score must sort first.
	byDense := ReciprocalRankFusion([][]RankedItem{
		{{DocIndex: 1, Score: 0.3}},
		{{DocIndex: 2, Score: 0.6}},
	}, []bool{true, true}, 60)
	require.Len(t, byDense, 2)
	assert.Equal(t, 2, byDense[0].DocIndex)

	// Equal RRF and equal dense score: earlier appearance wins.
	fused := ReciprocalRankFusion([][]RankedItem{
		{{DocIndex: 1, Score: 0.3}},
		{{DocIndex: 2, Score: 0.3}},
	}, []bool{true, true}, 60)
	require.Len(t, fused, 2)
	assert.Equal(t, 1, fused[0].DocIndex)
	assert.Equal(t, 2, fused[1].DocIndex)
}

func TestReciprocalRankFusion_EmptyInput(t *testing.T) {
	fused := ReciprocalRankFusion(nil, nil, 60)
	assert.Empty(t, fused)
}

func TestReciprocalRankFusion_DefaultsKWhenNonPositive(t *testing.T) {
	dense := []RankedItem{{DocIndex: 1, Score: 1.0}}
	withDefault := ReciprocalRankFusion([][]RankedItem{dense}, []bool{true}, 0)
	withExplicit := ReciprocalRankFusion([][]RankedItem{dense}, []bool{true}, 60)
	assert.Equal(t, withExplicit, withDefault)
}

func TestDeduplicateByJaccard_RemovesNearDuplicates(t *testing.T) {
	setA := map[string]struct{}{"a": {}, "b": {}, "c": {}}
	setB := map[string]struct{}{"a": {}, "b": {}, "c": {}, "d": {}} // Jaccard 0.75 vs A
	setC := map[string]struct{}{"x": {}, "y": {}, "z": {}}         // disjoint

	keep := DeduplicateByJaccard(3, []map[string]struct{}{setA, setB, setC}, 0.7, jaccard)
	assert.Equal(t, []int{0, 2}, keep, "B should be dropped as a near-duplicate of A")
}

func TestDeduplicateByJaccard_ThresholdBoundary(t *testing.T) {
	setA := map[string]struct{}{"a": {}, "b": {}}
	setB := map[string]struct{}{"a": {}, "b": {}, "c": {}, "d": {}} // Jaccard exactly 0.5

	keep := DeduplicateByJaccard(2, []map[string]struct{}{setA, setB}, 0.5, jaccard)
	assert.Equal(t, []int{0}, keep, "exactly-at-threshold similarity must be treated as a duplicate")
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
