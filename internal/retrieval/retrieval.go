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

// Package retrieval implements components C8 and C9: hybrid
// dense+BM25 retrieval over up to three query variants, fused by
// Reciprocal Rank Fusion, deduplicated by Jaccard similarity, and
// enriched with sibling context for thin chunks (spec §4.8-§4.10).
package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nhdandz/tsbot/internal/bm25"
	"github.com/nhdandz/tsbot/internal/chunkstore"
	"github.com/nhdandz/tsbot/internal/embedder"
	"github.com/nhdandz/tsbot/internal/model"
	"github.com/nhdandz/tsbot/internal/normalize"
	"github.com/nhdandz/tsbot/internal/tracing"
	"github.com/nhdandz/tsbot/internal/vecmath"
	"github.com/nhdandz/tsbot/internal/vectorstore"
)

const (
	// DefaultDedupThreshold is the Jaccard dedup cutoff (spec §4.9).
	DefaultDedupThreshold = 0.85
	// DefaultRRFK is the RRF smoothing constant (spec §4.8 step 3).
	DefaultRRFK = 60
	// siblingRelevanceThreshold is the minimum relevance score (spec
	// §4.10) a sibling must reach to be kept.
	siblingRelevanceThreshold = 0.3
	// defaultMaxSiblings bounds sibling enrichment when the caller
	// hasn't supplied an intent-specific budget.
	defaultMaxSiblings = 3
)

// Result is one retrieved chunk with its fused retrieval score, ready
// to feed component C10.
type Result struct {
	Chunk              *model.Chunk
	RetrievalScore     float64 // dense cosine similarity from C8, in [0,1]; 0 if lexical-only
	SiblingEnriched    bool
	EnrichedSiblingIDs []string
}

// Retriever runs the hybrid dense+BM25 pipeline against one loaded
// legal-document store.
type Retriever struct {
	store      *chunkstore.Store
	vectors    vectorstore.Store
	bm25       *bm25.Index
	chunkIDs   []string // parallel to the bm25 index's document order
	idToIndex  map[string]int
	embed      embedder.Embedder
	collection string
}

// New builds a Retriever. bm25Index must already be Built over the same
// chunk order as store.All().
func New(store *chunkstore.Store, vectors vectorstore.Store, bm25Index *bm25.Index, embed embedder.Embedder, collection string) *Retriever {
	chunks := store.All()
	ids := make([]string, len(chunks))
	idToIndex := make(map[string]int, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		idToIndex[c.ID] = i
	}
	return &Retriever{store: store, vectors: vectors, bm25: bm25Index, chunkIDs: ids, idToIndex: idToIndex, embed: embed, collection: collection}
}

// Retrieve runs dense + BM25 search for every query variant
// concurrently (spec §5 "fan out reads"), fuses the per-variant ranked
// lists with RRF, deduplicates near-duplicates, and applies sibling
// enrichment to thin top results (spec §4.8-§4.10).
func (r *Retriever) Retrieve(ctx context.Context, queryVariants []string, k int, minScore float32, maxSiblings int) ([]Result, error) {
	if len(queryVariants) == 0 {
		return nil, fmt.Errorf("retrieval: no query variants")
	}

	type variantRanking struct {
		dense []bm25.RankedItem
		lexical []bm25.RankedItem
	}
	rankings := make([]variantRanking, len(queryVariants))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queryVariants {
		i, q := i, q
		g.Go(func() error {
			vec, err := r.embed.EncodeQuery(gctx, q)
			if err != nil {
				return fmt.Errorf("retrieval: embed variant %q: %w", q, err)
			}
			hits, err := r.searchDense(gctx, vec, k, minScore)
			if err != nil {
				return fmt.Errorf("retrieval: dense search variant %q: %w", q, err)
			}
			dense := make([]bm25.RankedItem, 0, len(hits))
			for _, h := range hits {
				idx := r.indexOf(h.ID)
				if idx < 0 {
					continue
				}
				dense = append(dense, bm25.RankedItem{DocIndex: idx, Score: float64(h.Score)})
			}

			lexical := r.lexicalRanking(q, k)
			rankings[i] = variantRanking{dense: dense, lexical: lexical}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rankedLists [][]bm25.RankedItem
	var isDenseList []bool
	for _, rk := range rankings {
		if len(rk.dense) > 0 {
			rankedLists = append(rankedLists, rk.dense)
			isDenseList = append(isDenseList, true)
		}
		if len(rk.lexical) > 0 {
			rankedLists = append(rankedLists, rk.lexical)
			isDenseList = append(isDenseList, false)
		}
	}
	fused := bm25.ReciprocalRankFusion(rankedLists, isDenseList, DefaultRRFK)

	deduped := r.dedup(fused)

	results := make([]Result, 0, len(deduped))
	for _, f := range deduped {
		chunk := r.store.Get(r.chunkIDs[f.DocIndex])
		if chunk == nil {
			continue
		}
		results = append(results, Result{Chunk: chunk, RetrievalScore: f.DenseScore})
	}

	if maxSiblings <= 0 {
		maxSiblings = defaultMaxSiblings
	}
	r.enrichMidLevelResults(ctx, queryVariants[0], results, maxSiblings)
	return results, nil
}

// searchDense wraps the vector store's Search call in a span, per spec
// §5's "trace every external call" ambient requirement.
func (r *Retriever) searchDense(ctx context.Context, vec []float32, k int, minScore float32) ([]vectorstore.Hit, error) {
	ctx, span := tracing.StartSpan(ctx, "tsbot.vectorstore", "vectorstore.search")
	defer span.End()
	span.SetAttributes(
		attribute.String("vectorstore.collection", r.collection),
		attribute.Int("vectorstore.k", k),
	)

	hits, err := r.vectors.Search(ctx, r.collection, vec, k, minScore, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return hits, err
}

// lexicalRanking scores every indexed document against query via BM25
// and returns the top k positive-score items in descending-score order.
// Zero-score documents never appeared for this query and must not fill
// remaining slots, per spec §4.8 step 2.
func (r *Retriever) lexicalRanking(query string, k int) []bm25.RankedItem {
	if !r.bm25.Built() {
		return nil
	}
	scores := r.bm25.Scores(query)
	items := make([]bm25.RankedItem, 0, len(scores))
	for i, s := range scores {
		if s > 0 {
			items = append(items, bm25.RankedItem{DocIndex: i, Score: s})
		}
	}
	sortByScoreDesc(items)
	if len(items) > k {
		items = items[:k]
	}
	return items
}

func sortByScoreDesc(items []bm25.RankedItem) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].Score > items[j-1].Score; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

// dedup removes near-duplicate fused results by Jaccard similarity over
// token sets, keeping the higher-ranked (earlier) occurrence (spec §4.9).
func (r *Retriever) dedup(fused []bm25.FusedResult) []bm25.FusedResult {
	tokenSets := make([]map[string]struct{}, len(fused))
	for i, f := range fused {
		chunk := r.store.Get(r.chunkIDs[f.DocIndex])
		if chunk != nil {
			tokenSets[i] = normalize.TokenSet(chunk.Content)
		} else {
			tokenSets[i] = map[string]struct{}{}
		}
	}
	keep := bm25.DeduplicateByJaccard(len(fused), tokenSets, DefaultDedupThreshold, normalize.JaccardSimilarity)
	out := make([]bm25.FusedResult, len(keep))
	for i, idx := range keep {
		out[i] = fused[idx]
	}
	return out
}

// enrichMidLevelResults runs siblings(c, k=5) for every accepted
// candidate at article or section depth, keeping siblings whose
// relevance score to the primary query variant is ≥ 0.3, bounded by
// maxSiblings, per spec §4.10:
// score(r) = 0.7*max(0,cos(emb(q),emb(r))) + 0.3*token-overlap(q,r).
func (r *Retriever) enrichMidLevelResults(ctx context.Context, primaryQuery string, results []Result, maxSiblings int) {
	var midLevel []int
	for i, res := range results {
		depth := res.Chunk.Metadata.Depth()
		if depth == model.LevelArticle || depth == model.LevelSection {
			midLevel = append(midLevel, i)
		}
	}
	if len(midLevel) == 0 {
		return
	}

	queryVec, err := r.embed.EncodeQuery(ctx, primaryQuery)
	if err != nil {
		return // enrichment is best-effort; retrieval still succeeds
	}
	queryTokens := normalize.TokenSet(primaryQuery)

	for _, i := range midLevel {
		chunk := results[i].Chunk
		siblings := r.store.Siblings(chunk, 5)
		if len(siblings) == 0 {
			continue
		}
		var enrichedIDs []string
		for _, sib := range siblings {
			sibVec, err := r.embed.EncodeQuery(ctx, sib.Content)
			if err != nil {
				continue
			}
			cos := vecmath.Cosine(queryVec, sibVec)
			if cos < 0 {
				cos = 0
			}
			overlap := normalize.JaccardSimilarity(queryTokens, normalize.TokenSet(sib.Content))
			score := 0.7*cos + 0.3*overlap
			if score >= siblingRelevanceThreshold {
				enrichedIDs = append(enrichedIDs, sib.ID)
				if len(enrichedIDs) >= maxSiblings {
					break
				}
			}
		}
		if len(enrichedIDs) > 0 {
			results[i].SiblingEnriched = true
			results[i].EnrichedSiblingIDs = enrichedIDs
		}
	}
}

func (r *Retriever) indexOf(chunkID string) int {
	if idx, ok := r.idToIndex[chunkID]; ok {
		return idx
	}
	return -1
}
