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

// Package registry wires every component into one Services value,
// replacing the teacher's global-singleton registries with a plain
// struct built once at startup and passed down explicitly.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/nhdandz/tsbot/internal/answer"
	"github.com/nhdandz/tsbot/internal/bm25"
	"github.com/nhdandz/tsbot/internal/chunkstore"
	"github.com/nhdandz/tsbot/internal/config"
	"github.com/nhdandz/tsbot/internal/embedder"
	"github.com/nhdandz/tsbot/internal/httpx"
	"github.com/nhdandz/tsbot/internal/llm"
	"github.com/nhdandz/tsbot/internal/logging"
	"github.com/nhdandz/tsbot/internal/metrics"
	"github.com/nhdandz/tsbot/internal/model"
	"github.com/nhdandz/tsbot/internal/ragpipeline"
	"github.com/nhdandz/tsbot/internal/rerank"
	"github.com/nhdandz/tsbot/internal/retrieval"
	"github.com/nhdandz/tsbot/internal/router"
	"github.com/nhdandz/tsbot/internal/semcache"
	"github.com/nhdandz/tsbot/internal/session"
	"github.com/nhdandz/tsbot/internal/sqlengine"
	"github.com/nhdandz/tsbot/internal/supervisor"
	"github.com/nhdandz/tsbot/internal/tracing"
	"github.com/nhdandz/tsbot/internal/vectorstore"
	"github.com/nhdandz/tsbot/internal/vectorstore/chromem"
	"github.com/nhdandz/tsbot/internal/vectorstore/pinecone"
	"github.com/nhdandz/tsbot/internal/vectorstore/qdrant"
)

const legalCollection = vectorstore.CollectionLegalDocuments

// VectorBackend selects which vectorstore.Store implementation Build
// constructs.
type VectorBackend string

const (
	BackendChromem  VectorBackend = "chromem"
	BackendQdrant   VectorBackend = "qdrant"
	BackendPinecone VectorBackend = "pinecone"
)

// Options carries what Build cannot derive from config alone: the
// loaded legal-document chunks and the vector backend choice.
type Options struct {
	Backend       VectorBackend
	QdrantConfig  qdrant.Config
	ChromemConfig chromem.Config
	PineconeConfig pinecone.Config
	Chunks        []*model.Chunk
}

// Services holds every constructed component the CLI commands need.
type Services struct {
	Config     *config.Config
	DB         *sql.DB
	HTTP       *httpx.Client
	Embedder   embedder.Embedder
	LLM        llm.LLM
	Vectors    vectorstore.Store
	BM25       *bm25.Index
	ChunkStore *chunkstore.Store
	Router     *router.Router
	Cache      *semcache.Cache
	RAG        *ragpipeline.Pipeline
	SQLEngine  *sqlengine.Engine
	SchoolInfo *supervisor.SchoolLookup
	Sessions   *session.Store
	Metrics    *metrics.Metrics
	Supervisor *supervisor.Engine

	// TracerShutdown flushes pending spans; callers defer it alongside
	// DB.Close.
	TracerShutdown func(context.Context) error
}

// Build constructs every component from cfg and opts, in dependency
// order, and returns them wired into a Supervisor engine.
func Build(ctx context.Context, cfg *config.Config, db *sql.DB, opts Options) (*Services, error) {
	logging.Init(logging.ParseLevel(cfg.Logging.Level), os.Stderr)

	tracerShutdown, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("registry: tracing: %w", err)
	}

	m := metrics.New("tsbot")

	sessions, err := session.New(db, cfg.Database.Driver)
	if err != nil {
		return nil, fmt.Errorf("registry: session store: %w", err)
	}

	newHTTPClient := func(timeout time.Duration) *httpx.Client {
		return httpx.New(
			httpx.WithTimeout(timeout),
			httpx.WithMaxRetries(3),
			httpx.WithBaseDelay(200*time.Millisecond),
			httpx.WithMaxDelay(5*time.Second),
		)
	}
	httpClient := newHTTPClient(cfg.Timeouts.LLM)

	embed := embedder.New(embedder.Config{
		BaseURL:   cfg.Embedder.BaseURL,
		APIKey:    cfg.Embedder.APIKey,
		Model:     cfg.Embedder.Model,
		Dimension: cfg.Embedder.Dimension,
	}, newHTTPClient(cfg.Timeouts.Embedding))

	model_ := llm.New(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, httpClient)

	vectors, err := buildVectorStore(opts)
	if err != nil {
		return nil, fmt.Errorf("registry: vector store: %w", err)
	}
	if err := vectors.CreateCollection(ctx, legalCollection, cfg.Embedder.Dimension); err != nil {
		return nil, fmt.Errorf("registry: create collection: %w", err)
	}

	bm25Index := bm25.New(cfg.Retrieval.BM25K1, cfg.Retrieval.BM25B)

	store, err := chunkstore.Build(opts.Chunks)
	if err != nil {
		return nil, fmt.Errorf("registry: build chunk store: %w", err)
	}
	var bm25Docs []string
	for _, c := range store.All() {
		bm25Docs = append(bm25Docs, c.Content)
	}
	bm25Index.Build(bm25Docs)

	r := router.New(router.DefaultRoutes, embed, cfg.Router.SimilarityThreshold)
	if err := r.Warm(ctx); err != nil {
		return nil, fmt.Errorf("registry: warm router: %w", err)
	}

	cache := semcache.New(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLHours)*time.Hour, cfg.Cache.SimilarityThreshold)

	retriever := retrieval.New(store, vectors, bm25Index, embed, legalCollection)

	crossEncoder := rerank.NewCrossEncoder(rerank.CrossEncoderConfig{BaseURL: cfg.Embedder.BaseURL}, newHTTPClient(cfg.Timeouts.Reranker))
	rerankOpts := rerank.Options{
		CrossEncoder:        crossEncoder,
		GraderMaxCandidates: cfg.Reranker.GraderMaxCandidates,
		GraderConcurrency:   cfg.Reranker.GraderConcurrency,
	}

	rag := ragpipeline.New(store, retriever, embed, cache, rerankOpts, model_, ragpipeline.Config{
		RetrievalK:   cfg.Retrieval.TopK,
		RerankTopK:   cfg.Reranker.TopK,
		TokenBudget:  cfg.Context.TokenBudget,
		CacheEnabled: true,
	}, m)

	sqlEng := sqlengine.New(db, embed, vectors, model_, nil, sqlengine.Config{
		Driver:          cfg.SQL.Driver,
		MaxRetries:      cfg.SQL.MaxRetries,
		FewShotCount:    cfg.SQL.FewShotExamples,
		FewShotMinScore: cfg.SQL.FewShotMinScore,
	})

	schoolLookup := supervisor.NewSchoolLookup(db, model_)

	sup := supervisor.New(r, sqlEng, rag, schoolLookup, model_, logging.Get(), m)

	return &Services{
		Config: cfg, DB: db, HTTP: httpClient, Embedder: embed, LLM: model_,
		Vectors: vectors, BM25: bm25Index, ChunkStore: store, Router: r,
		Cache: cache, RAG: rag, SQLEngine: sqlEng, SchoolInfo: schoolLookup,
		Sessions: sessions, Metrics: m, Supervisor: sup,
		TracerShutdown: tracerShutdown,
	}, nil
}

func buildVectorStore(opts Options) (vectorstore.Store, error) {
	switch opts.Backend {
	case BackendQdrant:
		return qdrant.New(opts.QdrantConfig)
	case BackendPinecone:
		return pinecone.New(opts.PineconeConfig)
	case "", BackendChromem:
		return chromem.New(opts.ChromemConfig)
	default:
		return nil, fmt.Errorf("registry: unknown vector backend %q", opts.Backend)
	}
}

// SaveTurn appends the user question and assistant response to the
// conversation transcript, used by cmd/coreql after each supervisor run.
func (s *Services) SaveTurn(ctx context.Context, conversationID, question, response string) error {
	if s.Sessions == nil {
		return nil
	}
	if err := s.Sessions.Append(ctx, conversationID, model.Message{Role: "user", Content: question, CreatedAt: time.Now()}); err != nil {
		return err
	}
	return s.Sessions.Append(ctx, conversationID, model.Message{Role: "assistant", Content: response, CreatedAt: time.Now()})
}

// Answer composes a human-friendly error view over the full
// question-answering pipeline, used for the non-interactive ask
// subcommand so it can print sources alongside the narrated answer. An
// absent conversationID mints a fresh UUID (spec §6) rather than
// running statelessly, so the caller can pass the returned ID back on
// the next turn to resume the same conversation.
func (s *Services) Answer(ctx context.Context, conversationID, query string) (answerText, resolvedConversationID string, sources []answer.Source, err error) {
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	state := supervisor.NewState(query, nil)
	if s.Sessions != nil {
		history, histErr := s.Sessions.History(ctx, conversationID, 20)
		if histErr == nil {
			state.Messages = history
		}
	}
	result := s.Supervisor.Run(ctx, state)
	if result.Err != "" && result.Response == "" {
		return "", conversationID, nil, fmt.Errorf("registry: supervisor: %s", result.Err)
	}
	_ = s.SaveTurn(ctx, conversationID, query, result.Response)
	return result.Response, conversationID, result.Sources, nil
}
