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

package normalize

import (
	"strings"
	"unicode"
)

// TokenizeBM25 lowercases, drops everything outside word-chars ∪
// Vietnamese diacritics, splits on whitespace, and removes stop-words and
// single-character tokens, per spec §4.1. It is idempotent under
// Normalize ∘ TokenizeBM25 (spec §8): running it twice yields the same
// token set.
func TokenizeBM25(text string) []string {
	lower := strings.ToLower(text)
	var b strings.Builder
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || isVietnameseLetter(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	fields := strings.Fields(b.String())
	tokens := make([]string, 0, len(fields))
	for _, t := range fields {
		if len(t) <= 1 || stopwords[t] {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// TokenSet returns the distinct token set of text, used by C9's Jaccard
// overlap score and C3's deduplication.
func TokenSet(text string) map[string]struct{} {
	tokens := TokenizeBM25(text)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// JaccardSimilarity computes |A∩B| / |A∪B| over two token sets, per spec
// §4.9's deduplication rule. An empty union returns 0.
func JaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
