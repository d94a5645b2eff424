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

// Package bm25 implements component C3: Okapi BM25 scoring over the
// chunk store's tokenized contents, grounded on
// original_source/src/agents/components/bm25.py.
package bm25

import (
	"math"

	"github.com/nhdandz/tsbot/internal/normalize"
)

// Index is a BM25 index built once over a fixed document set. It is
// read-only after Build (spec §5 "Shared resources").
type Index struct {
	k1 float64
	b  float64

	docTokens [][]string
	idf       map[string]float64
	avgDL     float64
	docCount  int
	built     bool
}

// New creates an Index with the given Okapi parameters. Defaults per
// spec §6: k1=1.5, b=0.75.
func New(k1, b float64) *Index {
	if k1 <= 0 {
		k1 = 1.5
	}
	if b <= 0 {
		b = 0.75
	}
	return &Index{k1: k1, b: b}
}

// Build tokenizes documents and computes IDF. Documents are provided in
// the same order as the caller's chunk slice; Scores returns a parallel
// vector.
func (idx *Index) Build(documents []string) {
	idx.docTokens = make([][]string, len(documents))
	totalLen := 0
	for i, doc := range documents {
		idx.docTokens[i] = normalize.TokenizeBM25(doc)
		totalLen += len(idx.docTokens[i])
	}
	idx.docCount = len(documents)
	if idx.docCount > 0 {
		idx.avgDL = float64(totalLen) / float64(idx.docCount)
	}
	idx.computeIDF()
	idx.built = true
}

func (idx *Index) computeIDF() {
	df := make(map[string]int)
	for _, tokens := range idx.docTokens {
		seen := make(map[string]bool, len(tokens))
		for _, t := range tokens {
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}
	idx.idf = make(map[string]float64, len(df))
	n := float64(idx.docCount)
	for term, freq := range df {
		idx.idf[term] = math.Log((n-float64(freq)+0.5)/(float64(freq)+0.5) + 1)
	}
}

// Built reports whether Build has run; the hybrid retriever (C8) falls
// back to dense-only search when this is false.
func (idx *Index) Built() bool { return idx.built }

// Scores computes the BM25 score of query against every document, in
// document order. Out-of-vocabulary query tokens contribute zero, per
// spec §4.3.
func (idx *Index) Scores(query string) []float64 {
	if !idx.built {
		return nil
	}
	queryTokens := normalize.TokenizeBM25(query)
	scores := make([]float64, idx.docCount)
	for i, tokens := range idx.docTokens {
		docLen := float64(len(tokens))
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		var score float64
		for _, qt := range queryTokens {
			idf, ok := idx.idf[qt]
			if !ok {
				continue
			}
			freq := float64(tf[qt])
			numerator := freq * (idx.k1 + 1)
			denominator := freq + idx.k1*(1-idx.b+idx.b*docLen/math.Max(idx.avgDL, 1))
			score += idf * numerator / math.Max(denominator, 0.001)
		}
		scores[i] = score
	}
	return scores
}

// DocCount returns the number of documents indexed.
func (idx *Index) DocCount() int { return idx.docCount }
