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

package queryexpand

import "strings"

// synonyms is the closed substitution dictionary for the admissions
// domain (spec §4.6 "a synonym-substituted form from a small closed
// dictionary"). Only the first synonym per term is used, to bound
// expansion.
var synonyms = []struct {
	term     string
	synonym  string
}{
	{"học viện", "trường"},
	{"thi vào", "tuyển sinh"},
	{"hồ sơ", "giấy tờ"},
	{"sức khỏe", "thể lực"},
	{"chính trị", "lý lịch"},
	{"điểm chuẩn", "điểm trúng tuyển"},
	{"ngành", "chuyên ngành"},
}

// Expand generates up to 3 query variants: the original, a
// synonym-substituted form, and an intent-templated form, in that
// order, with duplicates removed preserving first occurrence (spec
// §4.6 step 2).
func Expand(query string, intent Intent) []string {
	variants := []string{query}
	lower := strings.ToLower(query)

	for _, syn := range synonyms {
		if strings.Contains(lower, syn.term) {
			expanded := strings.Replace(lower, syn.term, syn.synonym, 1)
			variants = appendUnique(variants, expanded)
			break
		}
	}

	switch intent {
	case IntentSpecific:
		if strings.Contains(lower, "thời hạn") {
			variants = appendUnique(variants, query+" quy định")
		} else if containsAny(lower, "có thể", "được không", "có được") {
			variants = appendUnique(variants, "tiêu chuẩn "+query)
		}
	case IntentList:
		variants = appendUnique(variants, query+" bao gồm")
	case IntentExplanation:
		variants = appendUnique(variants, "giải thích "+query)
	}

	if len(variants) > 3 {
		variants = variants[:3]
	}
	return variants
}

func appendUnique(variants []string, candidate string) []string {
	for _, v := range variants {
		if v == candidate {
			return variants
		}
	}
	return append(variants, candidate)
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
