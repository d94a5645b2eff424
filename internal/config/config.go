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

// Package config is the single unified entry point for every tunable
// named in spec §6's config surface, loaded from YAML with environment
// overlay, the way the teacher's top-level Config type loads every
// provider's settings from one file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/nhdandz/tsbot/internal/tracing"
)

// Config is the complete runtime configuration.
type Config struct {
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Reranker  RerankerConfig  `yaml:"reranker"`
	Cache     CacheConfig     `yaml:"cache"`
	Router    RouterConfig    `yaml:"router"`
	Context   ContextConfig   `yaml:"context"`
	SQL       SQLConfig       `yaml:"sql"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	LLM       LLMConfig       `yaml:"llm"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   tracing.Config  `yaml:"tracing"`
}

// RetrievalConfig covers C8/C9's hybrid-retrieval tunables.
type RetrievalConfig struct {
	TopK           int     `yaml:"top_k"`
	BM25K1         float64 `yaml:"bm25_k1"`
	BM25B          float64 `yaml:"bm25_b"`
	RRFK           int     `yaml:"rrf_k"`
	DedupThreshold float64 `yaml:"dedup_threshold"`
	MaxSiblings    int     `yaml:"max_siblings"`
}

// RerankerConfig covers C10's ensemble weights and top-k.
type RerankerConfig struct {
	TopK                int `yaml:"top_k"`
	GraderMaxCandidates int `yaml:"grader_max_candidates"`
	GraderConcurrency   int `yaml:"grader_concurrency"`
}

// CacheConfig covers C7's semantic cache.
type CacheConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	TTLHours            int     `yaml:"ttl_hours"`
	MaxEntries          int     `yaml:"max_entries"`
}

// RouterConfig covers C5's semantic router.
type RouterConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	BestOfFloor         float64 `yaml:"best_of_floor"`
}

// ContextConfig covers C11/C12's context assembly.
type ContextConfig struct {
	ParentContextLength int `yaml:"parent_context_length"`
	TokenBudget         int `yaml:"token_budget"`
}

// SQLConfig covers C13's NL-to-SQL loop.
type SQLConfig struct {
	Driver          string  `yaml:"driver"`
	MaxRetries      int     `yaml:"max_retries"`
	FewShotExamples int     `yaml:"few_shot_examples"`
	FewShotMinScore float32 `yaml:"few_shot_min_score"`
}

// TimeoutsConfig covers spec §5's per-call deadlines.
type TimeoutsConfig struct {
	Embedding    time.Duration `yaml:"embedding"`
	VectorSearch time.Duration `yaml:"vector_search"`
	LLM          time.Duration `yaml:"llm"`
	Reranker     time.Duration `yaml:"reranker"`
}

// EmbedderConfig covers the embedding backend.
type EmbedderConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

// LLMConfig covers the generative backend (answer composition,
// SQL generation, supervisor planner/combiner).
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// DatabaseConfig covers the relational store's connection.
type DatabaseConfig struct {
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
}

// LoggingConfig covers the structured-logging sink.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SetDefaults fills every tunable from spec §6's "Config surface"
// defaults list.
func (c *Config) SetDefaults() {
	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.BM25K1 == 0 {
		c.Retrieval.BM25K1 = 1.5
	}
	if c.Retrieval.BM25B == 0 {
		c.Retrieval.BM25B = 0.75
	}
	if c.Retrieval.RRFK == 0 {
		c.Retrieval.RRFK = 60
	}
	if c.Retrieval.DedupThreshold == 0 {
		c.Retrieval.DedupThreshold = 0.85
	}
	if c.Retrieval.MaxSiblings == 0 {
		c.Retrieval.MaxSiblings = 3
	}
	if c.Reranker.TopK == 0 {
		c.Reranker.TopK = 3
	}
	if c.Reranker.GraderMaxCandidates == 0 {
		c.Reranker.GraderMaxCandidates = 6
	}
	if c.Reranker.GraderConcurrency == 0 {
		c.Reranker.GraderConcurrency = 4
	}
	if c.Cache.SimilarityThreshold == 0 {
		c.Cache.SimilarityThreshold = 0.92
	}
	if c.Cache.TTLHours == 0 {
		c.Cache.TTLHours = 24
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 200
	}
	if c.Router.SimilarityThreshold == 0 {
		c.Router.SimilarityThreshold = 0.85
	}
	if c.Router.BestOfFloor == 0 {
		c.Router.BestOfFloor = 0.75
	}
	if c.Context.ParentContextLength == 0 {
		c.Context.ParentContextLength = 300
	}
	if c.Context.TokenBudget == 0 {
		c.Context.TokenBudget = 6000
	}
	if c.SQL.Driver == "" {
		c.SQL.Driver = "sqlite"
	}
	if c.SQL.MaxRetries == 0 {
		c.SQL.MaxRetries = 3
	}
	if c.SQL.FewShotExamples == 0 {
		c.SQL.FewShotExamples = 5
	}
	if c.SQL.FewShotMinScore == 0 {
		c.SQL.FewShotMinScore = 0.5
	}
	if c.Timeouts.Embedding == 0 {
		c.Timeouts.Embedding = 5 * time.Second
	}
	if c.Timeouts.VectorSearch == 0 {
		c.Timeouts.VectorSearch = 5 * time.Second
	}
	if c.Timeouts.LLM == 0 {
		c.Timeouts.LLM = 60 * time.Second
	}
	if c.Timeouts.Reranker == 0 {
		c.Timeouts.Reranker = 30 * time.Second
	}
	if c.Embedder.Dimension == 0 {
		c.Embedder.Dimension = 1024
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	c.Tracing.SetDefaults()
}

// Validate reports the first missing required field or invalid value.
func (c *Config) Validate() error {
	if c.Embedder.APIKey == "" {
		return fmt.Errorf("config: embedder.api_key is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("config: llm.api_key is required")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("config: database.dsn is required")
	}
	switch c.SQL.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("config: sql.driver %q unsupported (postgres|mysql|sqlite)", c.SQL.Driver)
	}
	if c.Retrieval.DedupThreshold <= 0 || c.Retrieval.DedupThreshold > 1 {
		return fmt.Errorf("config: retrieval.dedup_threshold must be in (0,1]")
	}
	if c.Router.BestOfFloor > c.Router.SimilarityThreshold {
		return fmt.Errorf("config: router.best_of_floor must not exceed router.similarity_threshold")
	}
	return nil
}

// Load loads a .env file from the current working directory (if present)
// into the process environment via godotenv, parses path as YAML, and
// decodes the result through mapstructure (yaml tags, string-to-duration
// hook). No environment values are substituted into the config. Defaults
// are then applied and the result validated.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		TagName:          "yaml",
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("config: build decoder: %w", err)
	}
	if err := decoder.Decode(generic); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
