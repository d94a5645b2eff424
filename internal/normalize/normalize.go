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

	"golang.org/x/text/unicode/norm"
)

// abbreviations is the closed set of school/military shorthand expanded
// before normalization (spec §4.1), grounded on
// original_source/src/utils/vietnamese.py SCHOOL_ALIASES.
var abbreviations = map[string]string{
	"hvktqs":   "học viện kỹ thuật quân sự",
	"hvqs":     "học viện quân sự",
	"hvqy":     "học viện quân y",
	"hvbc":     "học viện biên chống",
	"hvpkkq":   "học viện phòng không không quân",
	"ktqs":     "kỹ thuật quân sự",
	"truong sq": "trường sĩ quan",
	"sq":       "sĩ quan",
	"cb":       "công binh",
	"tt":       "thông tin",
	"pkkq":     "phòng không không quân",
	"hq":       "hải quân",
	"bca":      "bộ công an",
	"ca":       "công an",
	"qđ":       "quân đội",
	"qs":       "quân sự",
}

// stopwords is the fixed Vietnamese stop-word set used by both the BM25
// tokenizer and query tokenization in C9/C11, grounded on
// original_source/src/agents/components/bm25.py VIETNAMESE_STOPWORDS.
var stopwords = map[string]bool{
	"và": true, "của": true, "là": true, "có": true, "trong": true,
	"cho": true, "được": true, "với": true, "này": true, "đó": true,
	"các": true, "một": true, "những": true, "không": true, "theo": true,
	"về": true, "tại": true, "từ": true, "đến": true, "khi": true,
	"để": true, "do": true, "bởi": true, "hoặc": true, "hay": true,
	"cũng": true, "đã": true, "sẽ": true, "đang": true, "rồi": true,
	"mà": true, "thì": true, "nếu": true, "vì": true, "nên": true,
	"nhưng": true, "tuy": true, "dù": true, "song": true, "lại": true,
	"còn": true, "đều": true, "rất": true, "quá": true, "lắm": true,
	"hơn": true, "nhất": true, "bị": true, "ra": true, "vào": true,
	"lên": true, "xuống": true, "trên": true, "dưới": true, "giữa": true,
	"sau": true, "trước": true, "ngoài": true, "gì": true, "ai": true,
	"nào": true, "đâu": true, "sao": true, "thế": true, "bao": true,
	"mấy": true, "như": true, "mới": true, "vừa": true, "chỉ": true,
	"cùng": true, "hết": true, "luôn": true, "ngay": true, "chưa": true,
	"vẫn": true, "phải": true,
}

// ExpandAbbreviations replaces closed-set abbreviations at word
// boundaries, before the caller normalizes. Matching is case-insensitive
// and operates on the lowercased text.
func ExpandAbbreviations(text string) string {
	lower := strings.ToLower(text)
	// Longer keys first so "truong sq" doesn't get pre-empted by "sq".
	keys := make([]string, 0, len(abbreviations))
	for k := range abbreviations {
		keys = append(keys, k)
	}
	sortByLenDesc(keys)
	for _, abbrev := range keys {
		lower = replaceWordBoundary(lower, abbrev, abbreviations[abbrev])
	}
	return lower
}

func sortByLenDesc(keys []string) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && len(keys[j-1]) < len(keys[j]); j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
}

// replaceWordBoundary replaces occurrences of needle in s that are
// bounded by non-word characters (or string edges) on both sides.
func replaceWordBoundary(s, needle, replacement string) string {
	if needle == "" {
		return s
	}
	var b strings.Builder
	i := 0
	for {
		idx := strings.Index(s[i:], needle)
		if idx < 0 {
			b.WriteString(s[i:])
			break
		}
		start := i + idx
		end := start + len(needle)
		boundaryBefore := start == 0 || !isWordRune(runeBefore(s, start))
		boundaryAfter := end == len(s) || !isWordRune(runeAt(s, end))
		b.WriteString(s[i:start])
		if boundaryBefore && boundaryAfter {
			b.WriteString(replacement)
		} else {
			b.WriteString(needle)
		}
		i = end
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return r != 0 && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

func runeBefore(s string, idx int) rune {
	if idx == 0 {
		return 0
	}
	prefix := s[:idx]
	rs := []rune(prefix)
	return rs[len(rs)-1]
}

func runeAt(s string, idx int) rune {
	if idx >= len(s) {
		return 0
	}
	rs := []rune(s[idx:])
	if len(rs) == 0 {
		return 0
	}
	return rs[0]
}

// Normalize applies NFC normalization, diacritic folding, lowercasing,
// and whitespace collapsing, per spec §4.1.
func Normalize(text string) string {
	text = norm.NFC.String(text)
	text = RemoveDiacritics(text)
	text = strings.ToLower(text)
	return strings.Join(strings.Fields(text), " ")
}

// IsQuestion reports whether text is phrased as a question, by the
// presence of "?" or a closed set of Vietnamese question words.
// Recovered from original_source/src/utils/vietnamese.py::is_question
// (SPEC_FULL.md "Supplemented features" #1). No component in this
// module calls it; C6's Classify does not consult it.
func IsQuestion(text string) bool {
	if strings.Contains(text, "?") {
		return true
	}
	lower := strings.ToLower(text)
	questionWords := []string{
		"bao nhiêu", "bao nhieu", "như thế nào", "nhu the nao",
		"thế nào", "the nao", "làm sao", "lam sao", "tại sao", "tai sao",
		"vì sao", "vi sao", "ở đâu", "o dau", "khi nào", "khi nao",
		"có thể", "co the", "có phải", "co phai", "có không", "co khong",
		"được không", "duoc khong", "cho hỏi", "cho hoi", "xin hỏi",
	}
	for _, w := range questionWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
