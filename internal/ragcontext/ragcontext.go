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

// Package ragcontext implements component C11: merging overlapping
// reranked chunks by hierarchy depth and assembling the labelled
// context blocks fed to the answer composer (spec §4.12).
package ragcontext

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/nhdandz/tsbot/internal/chunkstore"
	"github.com/nhdandz/tsbot/internal/model"
	"github.com/nhdandz/tsbot/internal/queryexpand"
)

const (
	// parentContextTruncate bounds each parent-context preview (spec
	// §4.12 step 2).
	parentContextTruncate = 300
	// maxParentContexts is "up to two parent contexts" (spec §4.12 step 2).
	maxParentContexts = 2
	// ancestorWalkDepth bounds the ancestor-overlap check (spec §4.12).
	ancestorWalkDepth = 5
	// defaultTokenBudget bounds the assembled context by tokens, not
	// just characters, so it fits the LLM's window (SPEC_FULL.md C11
	// token-aware truncation).
	defaultTokenBudget = 6000
)

// Candidate is a reranked chunk with its C10 score, carried into
// merging.
type Candidate struct {
	Chunk       *model.Chunk
	RerankScore float64
}

// Merge walks ranked candidates in order, dropping any candidate that
// is a hierarchy ancestor/descendant of an already-accepted chunk in
// favor of whichever is deeper, stopping once budget.MaxChunks are
// accepted (spec §4.12 "Merging").
func Merge(store *chunkstore.Store, ranked []Candidate, budget queryexpand.Budget) []Candidate {
	var accepted []Candidate

	for _, cand := range ranked {
		if len(accepted) >= budget.MaxChunks {
			break
		}

		overlapIdx := -1
		for i, acc := range accepted {
			if isOverlap(store, cand.Chunk, acc.Chunk) {
				overlapIdx = i
				break
			}
		}
		if overlapIdx < 0 {
			accepted = append(accepted, cand)
			continue
		}

		if cand.Chunk.Metadata.Depth() > accepted[overlapIdx].Chunk.Metadata.Depth() {
			accepted[overlapIdx] = cand
		}
		// else: keep the already-accepted (deeper or equal) chunk, drop cand.
	}

	return accepted
}

func isOverlap(store *chunkstore.Store, a, b *model.Chunk) bool {
	return store.IsAncestor(a, b) || store.IsAncestor(b, a)
}

// Block is one assembled "=== Nguồn i ===" context block.
type Block struct {
	Rank int
	Text string
}

// BuildBlocks renders one Block per accepted, merged chunk, per spec
// §4.12 "Context". siblingIDs maps a chunk id to the ids of siblings
// that survived C9's enrichment pass, so they're surfaced here instead
// of being recomputed.
func BuildBlocks(store *chunkstore.Store, accepted []Candidate, budget queryexpand.Budget, siblingIDs map[string][]string) []Block {
	blocks := make([]Block, 0, len(accepted))
	for i, cand := range accepted {
		blocks = append(blocks, Block{Rank: i + 1, Text: buildBlockText(store, cand.Chunk, budget, siblingIDs[cand.Chunk.ID])})
	}
	return blocks
}

func buildBlockText(store *chunkstore.Store, chunk *model.Chunk, budget queryexpand.Budget, siblingIDs []string) string {
	var b strings.Builder

	if path := store.TitlePath(chunk); path != "" {
		b.WriteString(path)
		b.WriteString("\n")
	}

	if budget.IncludeParents {
		parents := store.Parents(chunk, maxParentContexts)
		for _, p := range parents {
			content := p.Content
			if len(content) > parentContextTruncate {
				content = content[:parentContextTruncate]
			}
			fmt.Fprintf(&b, "%s: %s\n", store.TitlePath(p), content)
		}
	}

	b.WriteString(chunk.Content)
	b.WriteString("\n")

	if budget.MaxDescendants > 0 {
		descendants := store.Descendants(chunk)
		if n := budget.MaxDescendants; len(descendants) > n {
			descendants = descendants[:n]
		}
		if len(descendants) > 0 {
			b.WriteString("Các mục con liên quan:\n")
			for _, d := range descendants {
				fmt.Fprintf(&b, "- %s: %s\n", store.TitlePath(d), d.Content)
			}
		}
	}

	if budget.MaxSiblings > 0 && len(siblingIDs) > 0 {
		ids := siblingIDs
		if n := budget.MaxSiblings; len(ids) > n {
			ids = ids[:n]
		}
		var rendered []string
		for _, id := range ids {
			if sib := store.Get(id); sib != nil {
				rendered = append(rendered, fmt.Sprintf("- %s: %s", store.TitlePath(sib), sib.Content))
			}
		}
		if len(rendered) > 0 {
			b.WriteString("Các mục cùng cấp:\n")
			b.WriteString(strings.Join(rendered, "\n"))
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// Assemble concatenates blocks under their "=== Nguồn i ===" labels and
// truncates to tokenBudget tokens (tokenBudget <= 0 uses
// defaultTokenBudget), per SPEC_FULL.md's token-aware truncation
// requirement.
func Assemble(blocks []Block, tokenBudget int) string {
	if tokenBudget <= 0 {
		tokenBudget = defaultTokenBudget
	}

	var parts []string
	for _, blk := range blocks {
		parts = append(parts, fmt.Sprintf("=== Nguồn %d ===\n%s", blk.Rank, blk.Text))
	}
	full := strings.Join(parts, "\n\n")

	return truncateToTokenBudget(full, tokenBudget)
}

// truncateToTokenBudget counts tokens with the cl100k_base encoding (the
// same family the main LLM tokenizes with) and trims whole trailing
// blocks rather than cutting mid-block, so a truncated context never
// ends on a broken sentence fragment.
func truncateToTokenBudget(text string, budget int) string {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		// No tokenizer available: fall back to a conservative
		// characters-per-token estimate rather than failing the request.
		const approxCharsPerToken = 4
		limit := budget * approxCharsPerToken
		if len(text) > limit {
			return text[:limit]
		}
		return text
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}

	blocks := strings.Split(text, "\n\n=== Nguồn ")
	var kept []string
	used := 0
	for i, blk := range blocks {
		rendered := blk
		if i > 0 {
			rendered = "=== Nguồn " + blk
		}
		n := len(enc.Encode(rendered, nil, nil))
		if used+n > budget && len(kept) > 0 {
			break
		}
		kept = append(kept, rendered)
		used += n
	}
	return strings.Join(kept, "\n\n")
}
