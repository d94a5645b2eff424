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

// Package sqlengine implements component C13: the natural-language-to-SQL
// pipeline against the read-only view_tra_cuu_diem admission-score view
// (spec §4.14).
package sqlengine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nhdandz/tsbot/internal/embedder"
	"github.com/nhdandz/tsbot/internal/llm"
	"github.com/nhdandz/tsbot/internal/normalize"
	"github.com/nhdandz/tsbot/internal/vectorstore"
)

// DefaultMaxRetries is R from spec §4.14 step 9.
const DefaultMaxRetries = 3

// DefaultFewShotCount and DefaultFewShotMinScore are the few-shot
// retrieval parameters (spec §4.14 step 2).
const (
	DefaultFewShotCount    = 5
	DefaultFewShotMinScore = 0.5
)

// Entities are the extracted query-time facts used both to enrich the
// generation prompt and to override the LLM's value choices (spec §4.14
// steps 1 and 5).
type Entities struct {
	Year       int
	HasYear    bool
	Score      float64
	HasScore   bool
	KhoiThi    string
	Gender     string
	Region     string
	Normalized string
}

// ExtractEntities runs component C1's extractors over the raw query.
func ExtractEntities(query string) Entities {
	var e Entities
	if y, ok := normalize.ExtractYear(query); ok {
		e.Year, e.HasYear = y, true
	}
	if s, ok := normalize.ExtractScore(query); ok {
		e.Score, e.HasScore = s, true
	}
	e.KhoiThi, _ = normalize.ExtractKhoiThi(query)
	e.Gender, _ = normalize.ExtractGender(query)
	e.Region, _ = normalize.ExtractRegion(query)
	e.Normalized = normalize.Normalize(query)
	return e
}

// Result is the outcome of one NL-to-SQL pipeline run.
type Result struct {
	Query    string
	SQL      string
	Rows     []Row
	Answer   string
	Entities Entities
	Attempts int
	Err      string
}

// Engine runs the full pipeline: entity extraction, few-shot retrieval,
// generation, extraction, value-fix, validation, execution, and
// deterministic narration, with retries (spec §4.14).
type Engine struct {
	db            *sql.DB
	driver        string
	embed         embedder.Embedder
	vectors       vectorstore.Store
	model         llm.LLM
	grader        llm.LLM // optional; nil disables the grader-LLM validation pass
	maxRetries    int
	fewShotCount  int
	fewShotMinScr float32
}

// Config configures an Engine.
type Config struct {
	Driver           string
	MaxRetries       int
	FewShotCount     int
	FewShotMinScore  float32
}

// New constructs an Engine. Grader may be nil.
func New(db *sql.DB, embed embedder.Embedder, vectors vectorstore.Store, model, grader llm.LLM, cfg Config) *Engine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.FewShotCount <= 0 {
		cfg.FewShotCount = DefaultFewShotCount
	}
	if cfg.FewShotMinScore <= 0 {
		cfg.FewShotMinScore = DefaultFewShotMinScore
	}
	return &Engine{
		db: db, driver: cfg.Driver, embed: embed, vectors: vectors,
		model: model, grader: grader,
		maxRetries: cfg.MaxRetries, fewShotCount: cfg.FewShotCount, fewShotMinScr: cfg.FewShotMinScore,
	}
}

// Process runs the full pipeline for one natural-language question.
func (e *Engine) Process(ctx context.Context, query string) (*Result, error) {
	entities := ExtractEntities(query)
	examples, err := e.fewShotExamples(ctx, query)
	if err != nil {
		examples = defaultExamples()
	}

	var (
		sqlText      string
		errorHistory []string
	)

	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		sqlText, err = e.generateSQL(ctx, query, examples, entities, errorHistory)
		if err != nil {
			errorHistory = append(errorHistory, err.Error())
			continue
		}

		sqlText = valueFix(sqlText, entities)

		if ok, verr := e.validate(ctx, sqlText); !ok {
			errorHistory = append(errorHistory, "validation: "+verr)
			continue
		}

		rows, err := e.execute(ctx, sqlText)
		if err != nil {
			errorHistory = append(errorHistory, "execution: "+err.Error())
			continue
		}

		answer, err := e.narrate(ctx, query, rows)
		if err != nil {
			answer = renderTable(rows)
		}

		return &Result{
			Query: query, SQL: sqlText, Rows: rows, Answer: answer,
			Entities: entities, Attempts: attempt,
		}, nil
	}

	lastErr := "unknown error"
	if len(errorHistory) > 0 {
		lastErr = errorHistory[len(errorHistory)-1]
	}
	return &Result{
		Query: query, SQL: sqlText, Entities: entities,
		Answer: "Xin lỗi, tôi không thể xử lý truy vấn này. Vui lòng thử lại với câu hỏi khác.",
		Attempts: e.maxRetries, Err: lastErr,
	}, fmt.Errorf("sqlengine: exhausted %d attempts: %s", e.maxRetries, lastErr)
}
