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

package rerank

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/nhdandz/tsbot/internal/chunkstore"
	"github.com/nhdandz/tsbot/internal/model"
	"github.com/nhdandz/tsbot/internal/normalize"
)

// Candidate is one chunk carried through reranking, with its upstream
// retrieval score.
type Candidate struct {
	Chunk          *model.Chunk
	RetrievalScore float64 // already in [0,1], from C8's dense similarity
}

// Scored is a Candidate annotated with its final rerank score.
type Scored struct {
	Candidate
	RerankScore float64
}

// metadataWeight is weight(section_type) from spec §4.11.
func metadataWeight(level model.HierarchyLevel) float64 {
	switch level {
	case model.LevelPoint:
		return 0.9
	case model.LevelArticle:
		return 0.8
	case model.LevelClause:
		return 0.7
	case model.LevelSection:
		return 0.6
	case model.LevelChapter:
		return 0.3
	default:
		return 0.4
	}
}

func lengthBonus(content string) float64 {
	switch {
	case len(content) > 200:
		return 0.1
	case len(content) > 100:
		return 0.05
	default:
		return 0
	}
}

// titleText concatenates the chunk's populated title fields, used for
// the metadata score's query-overlap term.
func titleText(m model.ChunkMetadata) string {
	var parts []string
	for _, t := range []string{m.ChapterTitle, m.SectionTitle, m.ArticleTitle} {
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// metadataScore implements spec §4.11's metadata-score formula.
func metadataScore(query string, c *model.Chunk) float64 {
	weight := metadataWeight(c.Metadata.Depth())

	queryTokens := normalize.TokenSet(query)
	titleTokens := normalize.TokenSet(titleText(c.Metadata))
	overlap := normalize.JaccardSimilarity(queryTokens, titleTokens)

	return 0.5*weight + 0.4*overlap + 0.1*lengthBonus(c.Content)
}

// richPassage builds the cross-encoder input: parent context, legal
// path, title, and content, per spec §4.11.
func richPassage(store *chunkstore.Store, c *model.Chunk) string {
	var b strings.Builder
	if parents := store.Parents(c, 1); len(parents) > 0 {
		parentContent := parents[0].Content
		if len(parentContent) > 150 {
			parentContent = parentContent[:150]
		}
		b.WriteString(parentContent)
		b.WriteString(" | ")
	}
	if path := store.TitlePath(c); path != "" {
		b.WriteString(path)
		b.WriteString(" | ")
	}
	if title := titleText(c.Metadata); title != "" {
		b.WriteString(title)
		b.WriteString(" | ")
	}
	content := c.Content
	if len(content) > 600 {
		content = content[:600]
	}
	b.WriteString(content)
	return b.String()
}

// mapCEScore linearly maps a cross-encoder raw logit from [-10,10] to
// [0,1], clamped.
func mapCEScore(raw float64) float64 {
	mapped := (raw + 10) / 20
	if mapped < 0 {
		return 0
	}
	if mapped > 1 {
		return 1
	}
	return mapped
}

// Options configures Ensemble.
type Options struct {
	CrossEncoder    Reranker // may be nil to force the fallback path
	Grader          Grader   // optional LLM-grader fallback
	GraderMaxCandidates int  // default 6 (2*3), whatever topK is
	GraderConcurrency   int  // default 4, spec §5
}

// Grader is an LLM-based relevance scorer used only when the
// cross-encoder is unavailable (spec §4.11's non-deterministic path).
type Grader interface {
	Grade(ctx context.Context, query, passage string) (float64, error)
}

// Ensemble scores every candidate and returns the top topK in score
// order (spec §4.11). store resolves parent context for the rich
// passage; topK defaults to 2*3=6 when <= 0.
func Ensemble(ctx context.Context, store *chunkstore.Store, query string, candidates []Candidate, topK int, opts Options) []Scored {
	if topK <= 0 {
		topK = 6
	}

	ceAvailable := opts.CrossEncoder != nil
	scored := make([]Scored, len(candidates))

	if ceAvailable {
		for i, cand := range candidates {
			passage := richPassage(store, cand.Chunk)
			raw, err := opts.CrossEncoder.Score(ctx, query, passage)
			if err != nil {
				ceAvailable = false
				break
			}
			ce := mapCEScore(raw)
			meta := metadataScore(query, cand.Chunk)
			scored[i] = Scored{Candidate: cand, RerankScore: 0.55*ce + 0.35*cand.RetrievalScore + 0.10*meta}
		}
	}

	if !ceAvailable {
		scored = fallback(ctx, query, candidates, opts)
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].RerankScore > scored[j].RerankScore })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// fallback implements spec §4.11's "CE unavailable" path: retrieval+meta
// weighted 0.7/0.3, optionally blended with an LLM grader over up to
// GraderMaxCandidates candidates, bounded by GraderConcurrency.
func fallback(ctx context.Context, query string, candidates []Candidate, opts Options) []Scored {
	scored := make([]Scored, len(candidates))
	for i, cand := range candidates {
		meta := metadataScore(query, cand.Chunk)
		scored[i] = Scored{Candidate: cand, RerankScore: 0.7*cand.RetrievalScore + 0.3*meta}
	}

	if opts.Grader == nil {
		return scored
	}

	maxGraded := opts.GraderMaxCandidates
	if maxGraded <= 0 {
		maxGraded = 2 * 3
	}
	if maxGraded > len(scored) {
		maxGraded = len(scored)
	}
	concurrency := opts.GraderConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	sem := semaphore.NewWeighted(int64(concurrency))
	var wg chanWaiter
	wg.start(maxGraded)
	for i := 0; i < maxGraded; i++ {
		i := i
		go func() {
			defer wg.done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)
			passage := scored[i].Candidate.Chunk.Content
			if len(passage) > 600 {
				passage = passage[:600]
			}
			graded, err := opts.Grader.Grade(ctx, query, passage)
			if err != nil {
				return
			}
			scored[i].RerankScore = 0.7*scored[i].Candidate.RetrievalScore + 0.3*graded
		}()
	}
	wg.wait()
	return scored
}

// chanWaiter is a minimal WaitGroup substitute kept local to this file
// so the grader fan-out's cancellation-friendly shape is obvious at the
// call site.
type chanWaiter struct{ done_ chan struct{}; n int }

func (w *chanWaiter) start(n int) { w.n = n; w.done_ = make(chan struct{}, n) }
func (w *chanWaiter) done()       { w.done_ <- struct{}{} }
func (w *chanWaiter) wait() {
	for i := 0; i < w.n; i++ {
		<-w.done_
	}
}
