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

// Package ragpipeline wires components C6 through C12 into the single
// legal-document question-answering path the supervisor calls as its
// "rag" node: query analysis, semantic caching, hybrid retrieval,
// reranking, context assembly, and answer composition.
package ragpipeline

import (
	"context"
	"fmt"

	"github.com/nhdandz/tsbot/internal/answer"
	"github.com/nhdandz/tsbot/internal/chunkstore"
	"github.com/nhdandz/tsbot/internal/embedder"
	"github.com/nhdandz/tsbot/internal/llm"
	"github.com/nhdandz/tsbot/internal/metrics"
	"github.com/nhdandz/tsbot/internal/queryexpand"
	"github.com/nhdandz/tsbot/internal/ragcontext"
	"github.com/nhdandz/tsbot/internal/rerank"
	"github.com/nhdandz/tsbot/internal/retrieval"
	"github.com/nhdandz/tsbot/internal/semcache"
)

// Config carries the tunables that cross component boundaries.
type Config struct {
	RetrievalK   int
	MinScore     float32
	RerankTopK   int
	TokenBudget  int
	CacheEnabled bool
}

// Pipeline implements supervisor.RAGPipeline.
type Pipeline struct {
	store      *chunkstore.Store
	retriever  *retrieval.Retriever
	embed      embedder.Embedder
	cache      *semcache.Cache
	rerankOpts rerank.Options
	model      llm.LLM
	cfg        Config
	metrics    *metrics.Metrics
}

// New constructs a Pipeline. cache may be nil to disable semantic
// caching; m may be nil to disable instrumentation.
func New(store *chunkstore.Store, retriever *retrieval.Retriever, embed embedder.Embedder, cache *semcache.Cache, rerankOpts rerank.Options, model llm.LLM, cfg Config, m *metrics.Metrics) *Pipeline {
	if cfg.RetrievalK == 0 {
		cfg.RetrievalK = 10
	}
	if cfg.RerankTopK == 0 {
		cfg.RerankTopK = 3
	}
	if cfg.TokenBudget == 0 {
		cfg.TokenBudget = 6000
	}
	return &Pipeline{store: store, retriever: retriever, embed: embed, cache: cache, rerankOpts: rerankOpts, model: model, cfg: cfg, metrics: m}
}

// Answer runs the full C6-C12 chain for one question (spec §4.6-§4.13).
func (p *Pipeline) Answer(ctx context.Context, query string) (*answer.Result, error) {
	classification := queryexpand.Classify(query)
	budget := queryexpand.Budgets[classification.Intent]

	if p.cfg.CacheEnabled && p.cache != nil {
		queryVec, err := p.embed.EncodeQuery(ctx, query)
		if err == nil {
			if entry, ok := p.cache.Lookup(queryVec); ok {
				p.metrics.RecordCacheHit()
				if cached, ok := entry.Response.(answer.Result); ok {
					return &cached, nil
				}
			} else {
				p.metrics.RecordCacheMiss()
			}
		}
	}

	variants := queryexpand.Expand(query, classification.Intent)
	results, err := p.retriever.Retrieve(ctx, variants, p.cfg.RetrievalK, p.cfg.MinScore, budget.MaxSiblings)
	if err != nil {
		return nil, fmt.Errorf("ragpipeline: retrieve: %w", err)
	}

	candidates := make([]rerank.Candidate, len(results))
	siblingIDs := make(map[string][]string, len(results))
	for i, r := range results {
		candidates[i] = rerank.Candidate{Chunk: r.Chunk, RetrievalScore: r.RetrievalScore}
		if r.SiblingEnriched {
			siblingIDs[r.Chunk.ID] = r.EnrichedSiblingIDs
		}
	}

	ranked := rerank.Ensemble(ctx, p.store, query, candidates, p.cfg.RerankTopK, p.rerankOpts)
	if len(ranked) == 0 {
		p.metrics.RecordRerankFallback()
	}

	mergeCandidates := make([]ragcontext.Candidate, len(ranked))
	for i, sc := range ranked {
		mergeCandidates[i] = ragcontext.Candidate{Chunk: sc.Chunk, RerankScore: sc.RerankScore}
	}

	accepted := ragcontext.Merge(p.store, mergeCandidates, budget)
	blocks := ragcontext.BuildBlocks(p.store, accepted, budget, siblingIDs)

	result, err := answer.Compose(ctx, p.model, p.store, query, classification.Intent, accepted, blocks, p.cfg.TokenBudget, answer.Options{})
	if err != nil {
		return nil, fmt.Errorf("ragpipeline: compose answer: %w", err)
	}

	if p.cfg.CacheEnabled && p.cache != nil {
		if queryVec, err := p.embed.EncodeQuery(ctx, query); err == nil {
			p.cache.Insert(query, queryVec, result)
			p.metrics.SetCacheSize(p.cache.Len())
		}
	}

	return &result, nil
}
