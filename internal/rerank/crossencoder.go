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

// Package rerank implements component C10: an ensemble reranker
// combining a cross-encoder score, the original retrieval score, and a
// metadata score, with a retrieval+metadata fallback when the
// cross-encoder is unavailable (spec §4.11).
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nhdandz/tsbot/internal/httpx"
	"github.com/nhdandz/tsbot/internal/tracing"
)

// Reranker scores a single (query, passage) pair, per spec §6.
type Reranker interface {
	Score(ctx context.Context, query, passage string) (float64, error)
}

// CrossEncoderConfig configures the HTTP cross-encoder service.
type CrossEncoderConfig struct {
	BaseURL string `yaml:"base_url"`
}

// CrossEncoder calls an HTTP cross-encoder scoring endpoint: POST
// {query, passage} → {score}, with score in the model's raw logit
// range (typically [-10,10]).
type CrossEncoder struct {
	client *httpx.Client
	cfg    CrossEncoderConfig
}

var _ Reranker = (*CrossEncoder)(nil)

// NewCrossEncoder constructs a CrossEncoder. A nil or empty BaseURL
// leaves it unusable: Score then returns an error, and Ensemble falls
// through to the no-CE path (spec §4.11).
func NewCrossEncoder(cfg CrossEncoderConfig, client *httpx.Client) *CrossEncoder {
	return &CrossEncoder{client: client, cfg: cfg}
}

type scoreRequest struct {
	Query   string `json:"query"`
	Passage string `json:"passage"`
}

type scoreResponse struct {
	Score float64 `json:"score"`
}

// Score returns the raw cross-encoder logit for (query, passage). The
// caller is responsible for mapping it into [0,1] (see Ensemble).
func (c *CrossEncoder) Score(ctx context.Context, query, passage string) (float64, error) {
	ctx, span := tracing.StartSpan(ctx, "tsbot.rerank", "rerank.cross_encoder_score")
	defer span.End()
	span.SetAttributes(attribute.Int("rerank.passage_length", len(passage)))

	score, err := c.doScore(ctx, query, passage)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return score, err
}

func (c *CrossEncoder) doScore(ctx context.Context, query, passage string) (float64, error) {
	if c.cfg.BaseURL == "" {
		return 0, fmt.Errorf("rerank: cross-encoder not configured")
	}
	body, err := json.Marshal(scoreRequest{Query: query, Passage: passage})
	if err != nil {
		return 0, fmt.Errorf("rerank: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("rerank: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("rerank: call %s: %w", c.cfg.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rerank: %s returned %d: %s", c.cfg.BaseURL, resp.StatusCode, httpx.ExtractErrorBody(resp))
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("rerank: read response: %w", err)
	}
	var parsed scoreResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return 0, fmt.Errorf("rerank: decode response: %w", err)
	}
	return parsed.Score, nil
}
