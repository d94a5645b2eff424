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

// Package llm defines the external generative-LLM contract (spec §6)
// and an HTTP-backed implementation against an OpenAI-compatible chat
// completions endpoint, in plain-text and JSON modes.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nhdandz/tsbot/internal/httpx"
	"github.com/nhdandz/tsbot/internal/tracing"
)

// LLM is the generative-model contract every caller depends on. Both
// methods must honour ctx cancellation (spec §6).
type LLM interface {
	Generate(ctx context.Context, prompt, system string) (string, error)
	GenerateJSON(ctx context.Context, prompt, system string, out any) error
}

// Config configures the HTTP chat-completions client.
type Config struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
}

// SetDefaults fills base URL and sampling defaults.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1024
	}
}

// Validate reports a FatalError if required fields are missing.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return &httpx.FatalError{Component: "llm", Message: "api_key is required"}
	}
	if c.Model == "" {
		return &httpx.FatalError{Component: "llm", Message: "model is required"}
	}
	return nil
}

// HTTPLLM implements LLM over an OpenAI-compatible chat completions
// endpoint, using internal/httpx's retrying client (spec §5, LLM calls
// carry a 60s deadline by convention of the caller).
type HTTPLLM struct {
	client *httpx.Client
	cfg    Config
}

var _ LLM = (*HTTPLLM)(nil)

// New constructs an HTTPLLM.
func New(cfg Config, client *httpx.Client) *HTTPLLM {
	cfg.SetDefaults()
	return &HTTPLLM{client: client, cfg: cfg}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature,omitempty"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	ResponseFormat *responseFmt  `json:"response_format,omitempty"`
}

type responseFmt struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate returns the model's plain-text completion for prompt.
func (l *HTTPLLM) Generate(ctx context.Context, prompt, system string) (string, error) {
	return l.complete(ctx, prompt, system, false)
}

// GenerateJSON requests a JSON-mode completion and unmarshals it into
// out. The caller's prompt is responsible for describing the desired
// shape; this method only enforces that the response is valid JSON.
func (l *HTTPLLM) GenerateJSON(ctx context.Context, prompt, system string, out any) error {
	raw, err := l.complete(ctx, prompt, system, true)
	if err != nil {
		return err
	}
	raw = stripCodeFence(raw)
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("llm: decode JSON response: %w", err)
	}
	return nil
}

func (l *HTTPLLM) complete(ctx context.Context, prompt, system string, jsonMode bool) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "tsbot.llm", "llm.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", l.cfg.Model),
		attribute.Bool("llm.json_mode", jsonMode),
	)

	result, err := l.doComplete(ctx, prompt, system, jsonMode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (l *HTTPLLM) doComplete(ctx context.Context, prompt, system string, jsonMode bool) (string, error) {
	var messages []chatMessage
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	req := chatRequest{
		Model:       l.cfg.Model,
		Messages:    messages,
		Temperature: l.cfg.Temperature,
		MaxTokens:   l.cfg.MaxTokens,
	}
	if jsonMode {
		req.ResponseFormat = &responseFmt{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+l.cfg.APIKey)

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm: call %s: %w", l.cfg.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm: %s returned %d: %s", l.cfg.BaseURL, resp.StatusCode, httpx.ExtractErrorBody(resp))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm: read response: %w", err)
	}
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm: %s returned no choices", l.cfg.BaseURL)
	}
	return parsed.Choices[0].Message.Content, nil
}

// stripCodeFence removes a surrounding ```json ... ``` or ``` ... ```
// fence some models wrap JSON-mode output in despite the explicit mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
