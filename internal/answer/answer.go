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

// Package answer implements component C12: assembling the grounded
// answer prompt and emitting the user-facing answer plus its source
// list (spec §4.13).
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/nhdandz/tsbot/internal/chunkstore"
	"github.com/nhdandz/tsbot/internal/llm"
	"github.com/nhdandz/tsbot/internal/queryexpand"
	"github.com/nhdandz/tsbot/internal/ragcontext"
)

// contentPreviewLimit bounds Source.ContentPreview (spec §4.13).
const contentPreviewLimit = 200

// promptHeader is the fixed role/grounding/citation/forbidden-vocabulary
// preamble, ported from the original's ANSWER_PROMPT (spec §4.13).
const promptHeader = `Bạn là trợ lý tư vấn tuyển sinh quân sự Việt Nam. Dựa trên các văn bản quy định sau đây, hãy trả lời câu hỏi của người dùng.

Quy tắc bắt buộc:
1. Chỉ sử dụng thông tin từ văn bản được cung cấp, không suy đoán hay bổ sung.
2. Trích dẫn điều/khoản cụ thể khi có thể (ví dụ: "theo Điều 5, Khoản 2").
3. Nếu không tìm thấy thông tin trong văn bản, nói rõ là không có trong văn bản, không bịa đặt.
4. Trả lời bằng tiếng Việt, rõ ràng, dễ hiểu.
5. Tránh các từ ngữ tuyệt đối không có căn cứ như "chắc chắn", "luôn luôn", "không bao giờ" trừ khi văn bản dùng chính xác từ đó.`

// instructionRiders gives each intent a tailored closing instruction
// (spec §4.13's "intent-keyed instruction rider").
var instructionRiders = map[queryexpand.Intent]string{
	queryexpand.IntentList:        "Nếu có nhiều điều kiện hoặc mục, hãy liệt kê theo danh sách đánh số.",
	queryexpand.IntentComparison:  "Trình bày điểm giống và khác nhau theo từng mục rõ ràng.",
	queryexpand.IntentExplanation: "Giải thích theo trình tự logic, nêu rõ căn cứ pháp lý cho từng bước.",
	queryexpand.IntentSpecific:    "Trả lời trực tiếp, ngắn gọn, kèm trích dẫn điều khoản cụ thể.",
	queryexpand.IntentGeneral:     "Trả lời ngắn gọn và đầy đủ.",
}

// Source is one citation row alongside the answer (spec §4.13).
type Source struct {
	LegalPath      string  `json:"legal_path"`
	Chapter        string  `json:"chapter,omitempty"`
	Article        string  `json:"article,omitempty"`
	Document       string  `json:"document,omitempty"`
	Score          float64 `json:"score"`
	ContentPreview string  `json:"content_preview"`
	Content        string  `json:"content"`
}

// Result is the composed answer plus its sources.
type Result struct {
	Answer  string
	Sources []Source
}

// Options configures Compose.
type Options struct {
	// AllowExtractiveFallback permits answering from the assembled
	// context without an LLM call when model is nil or Generate fails.
	// Off by default; intended for test environments without a
	// configured LLM, never the default serving path (SPEC_FULL.md §4
	// C12 note).
	AllowExtractiveFallback bool
}

// Compose builds the prompt from the fixed header, the assembled
// context, the question, and the intent's instruction rider, calls the
// LLM in plain-text mode, and builds the sources list from the accepted
// chunks (spec §4.13).
func Compose(ctx context.Context, model llm.LLM, store *chunkstore.Store, question string, intent queryexpand.Intent, accepted []ragcontext.Candidate, blocks []ragcontext.Block, tokenBudget int, opts Options) (Result, error) {
	contextText := ragcontext.Assemble(blocks, tokenBudget)
	sources := buildSources(store, accepted)

	if model == nil {
		if opts.AllowExtractiveFallback {
			return Result{Answer: extractiveAnswer(blocks), Sources: sources}, nil
		}
		return Result{}, fmt.Errorf("answer: no LLM configured")
	}

	rider := instructionRiders[intent]
	if rider == "" {
		rider = instructionRiders[queryexpand.IntentGeneral]
	}

	prompt := fmt.Sprintf("%s\n\n## Văn bản quy định:\n%s\n\n## Câu hỏi:\n%s\n\n## Hướng dẫn riêng:\n%s\n\n## Trả lời:",
		promptHeader, contextText, question, rider)

	text, err := model.Generate(ctx, prompt, "")
	if err != nil {
		if opts.AllowExtractiveFallback {
			return Result{Answer: extractiveAnswer(blocks), Sources: sources}, nil
		}
		return Result{}, fmt.Errorf("answer: generate: %w", err)
	}

	return Result{Answer: strings.TrimSpace(text), Sources: sources}, nil
}

// extractiveAnswer concatenates the full text of every block verbatim
// (legal path, parent context, content, descendants and siblings), with no LLM involvement — a degraded but still
// context-grounded answer for when no LLM is reachable.
func extractiveAnswer(blocks []ragcontext.Block) string {
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = b.Text
	}
	return strings.Join(parts, "\n\n")
}

func buildSources(store *chunkstore.Store, accepted []ragcontext.Candidate) []Source {
	sources := make([]Source, 0, len(accepted))
	for _, cand := range accepted {
		c := cand.Chunk
		preview := c.Content
		if len(preview) > contentPreviewLimit {
			preview = preview[:contentPreviewLimit]
		}
		sources = append(sources, Source{
			LegalPath:      store.TitlePath(c),
			Chapter:        c.Metadata.Chapter,
			Article:        c.Metadata.Article,
			Document:       c.Metadata.Source,
			Score:          cand.RerankScore,
			ContentPreview: preview,
			Content:        c.Content,
		})
	}
	return sources
}
