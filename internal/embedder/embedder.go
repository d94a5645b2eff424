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

// Package embedder defines the external embedding-service contract
// (spec §6) and an HTTP-backed implementation against an
// OpenAI-compatible embeddings endpoint.
package embedder

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

// Embedder maps text to unit-norm vectors of a fixed dimension.
type Embedder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	EncodeQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Config configures the HTTP embedder.
type Config struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size,omitempty"`
}

// SetDefaults fills model, dimension, base URL, and batch size.
func (c *Config) SetDefaults() {
	if c.Model == "" {
		c.Model = "text-embedding-3-small"
	}
	if c.Dimension == 0 {
		c.Dimension = 1536
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
}

// Validate reports a FatalError if required fields are missing.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return &httpx.FatalError{Component: "embedder", Message: "api_key is required"}
	}
	return nil
}

// HTTPEmbedder implements Embedder over an OpenAI-compatible embeddings
// endpoint using internal/httpx's retrying client.
type HTTPEmbedder struct {
	client *httpx.Client
	cfg    Config
}

var _ Embedder = (*HTTPEmbedder)(nil)

// New constructs an HTTPEmbedder. client is the retrying HTTP client
// whose timeout bounds each embedding call; registry.Build gives it
// timeouts.embedding (default 5s).
func New(cfg Config, client *httpx.Client) *HTTPEmbedder {
	cfg.SetDefaults()
	return &HTTPEmbedder{client: client, cfg: cfg}
}

func (e *HTTPEmbedder) Dimension() int { return e.cfg.Dimension }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Encode batches texts according to cfg.BatchSize and issues one POST
// per batch, preserving input order in the returned slice.
func (e *HTTPEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		copy(out[start:end], vectors)
	}
	return out, nil
}

// EncodeQuery embeds a single query string.
func (e *HTTPEmbedder) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *HTTPEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := tracing.StartSpan(ctx, "tsbot.embedder", "embedder.embed_batch")
	defer span.End()
	span.SetAttributes(
		attribute.String("embedder.model", e.cfg.Model),
		attribute.Int("embedder.batch_size", len(texts)),
	)

	vectors, err := e.doEmbedBatch(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return vectors, err
}

func (e *HTTPEmbedder) doEmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.cfg.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embedder: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedder: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedder: call %s: %w", e.cfg.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedder: %s returned %d: %s", e.cfg.BaseURL, resp.StatusCode, httpx.ExtractErrorBody(resp))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedder: read response: %w", err)
	}
	var parsed embedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("embedder: decode response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embedder: expected %d embeddings, got %d", len(texts), len(parsed.Data))
	}

	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
