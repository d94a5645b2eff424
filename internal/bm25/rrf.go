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

import "sort"

// RankedItem is one entry of a ranked list fed into ReciprocalRankFusion:
// a document index (into the caller's candidate slice) paired with its
// score under that ranking.
type RankedItem struct {
	DocIndex int
	Score    float64
}

// FusedResult is one row of a fused ranking.
type FusedResult struct {
	DocIndex int
	RRFScore float64
	// DenseScore is carried through for tie-breaking and for C10's
	// "retrieval score" input; zero if the doc never appeared in a dense
	// ranking.
	DenseScore float64
}

// ReciprocalRankFusion combines multiple ranked lists via
// rrf(i) = Σ 1/(k + rank + 1), per spec §4.8 step 3. Ties are resolved
// by higher dense score, then by earlier appearance (document order),
// per spec §8's RRF-correctness property. isDenseList must be parallel
// to rankedLists: isDenseList[i] marks whether rankedLists[i] came from
// the dense (embedding) ranking rather than BM25, so DenseScore is
// carried through for every query variant's dense list, not just the
// first list in the slice.
func ReciprocalRankFusion(rankedLists [][]RankedItem, isDenseList []bool, k int) []FusedResult {
	if k <= 0 {
		k = 60
	}
	scores := make(map[int]float64)
	denseScore := make(map[int]float64)
	firstSeen := make(map[int]int)
	order := 0

	for listIdx, list := range rankedLists {
		dense := listIdx < len(isDenseList) && isDenseList[listIdx]
		for rank, item := range list {
			if _, ok := firstSeen[item.DocIndex]; !ok {
				firstSeen[item.DocIndex] = order
				order++
			}
			scores[item.DocIndex] += 1.0 / float64(k+rank+1)
			if dense {
				if existing, ok := denseScore[item.DocIndex]; !ok || item.Score > existing {
					denseScore[item.DocIndex] = item.Score
				}
			}
		}
	}

	results := make([]FusedResult, 0, len(scores))
	for idx, score := range scores {
		results = append(results, FusedResult{DocIndex: idx, RRFScore: score, DenseScore: denseScore[idx]})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].RRFScore != results[j].RRFScore {
			return results[i].RRFScore > results[j].RRFScore
		}
		if results[i].DenseScore != results[j].DenseScore {
			return results[i].DenseScore > results[j].DenseScore
		}
		return firstSeen[results[i].DocIndex] < firstSeen[results[j].DocIndex]
	})
	return results
}

// DeduplicateByJaccard removes near-duplicate candidates: a candidate is
// kept iff its token set has Jaccard similarity below threshold against
// every already-accepted candidate, per spec §4.9. tokenSets holds one
// set per candidate index 0..n-1, in candidate order.
func DeduplicateByJaccard(n int, tokenSets []map[string]struct{}, threshold float64, jaccard func(a, b map[string]struct{}) float64) []int {
	accepted := make([]int, 0, n)
	for i := 0; i < n; i++ {
		isDup := false
		for _, j := range accepted {
			if jaccard(tokenSets[i], tokenSets[j]) >= threshold {
				isDup = true
				break
			}
		}
		if !isDup {
			accepted = append(accepted, i)
		}
	}
	return accepted
}
