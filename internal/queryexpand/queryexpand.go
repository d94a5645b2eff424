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

// Package queryexpand implements component C6: regex-based intent
// classification and rule-based query-variant generation, used to pick
// an adaptive context budget and to widen hybrid retrieval recall.
package queryexpand

import (
	"regexp"
	"strings"
)

// Intent is one of the five buckets spec §4.6 classifies a query into.
type Intent string

const (
	IntentSpecific    Intent = "specific"
	IntentComparison  Intent = "comparison"
	IntentList        Intent = "list"
	IntentExplanation Intent = "explanation"
	IntentGeneral     Intent = "general"
)

// Budget is the adaptive context budget for an intent (spec §4.6 table).
type Budget struct {
	MaxChunks       int
	IncludeParents  bool
	MaxDescendants  int
	MaxSiblings     int
}

// Budgets maps each intent to its context budget.
var Budgets = map[Intent]Budget{
	IntentSpecific:    {MaxChunks: 3, IncludeParents: true, MaxDescendants: 2, MaxSiblings: 2},
	IntentComparison:  {MaxChunks: 4, IncludeParents: true, MaxDescendants: 1, MaxSiblings: 2},
	IntentList:        {MaxChunks: 5, IncludeParents: true, MaxDescendants: 3, MaxSiblings: 3},
	IntentExplanation: {MaxChunks: 4, IncludeParents: true, MaxDescendants: 2, MaxSiblings: 2},
	IntentGeneral:     {MaxChunks: 3, IncludeParents: true, MaxDescendants: 1, MaxSiblings: 1},
}

// intentPattern pairs an intent with the ordered regexes that count
// toward its match score, ported from the patterns used in the
// original implementation's query analyzer.
type intentPattern struct {
	intent   Intent
	patterns []*regexp.Regexp
}

var intentPatterns = []intentPattern{
	{IntentSpecific, compileAll(
		`(thời hạn|deadline|bao lâu|khi nào|ngày nào|thời gian)`,
		`(điều kiện|yêu cầu|quy định|tiêu chuẩn) (gì|nào|là gì)`,
		`(có cần|phải|bắt buộc|yêu cầu).*không`,
		`(địa chỉ|nơi|ở đâu|liên hệ)`,
		`(số lượng|bao nhiêu|mấy)`,
		`(điểm chuẩn|bao nhiêu điểm|lấy bao nhiêu)`,
	)},
	{IntentComparison, compileAll(
		`(khác nhau|khác biệt|so sánh|giống nhau)`,
		`(.*) và (.*) (khác|giống)`,
		`(chọn|lựa chọn).*(hay|hoặc)`,
		`(nên).*(hay).*`,
	)},
	{IntentList, compileAll(
		`(có những|bao gồm|gồm có|liệt kê|danh sách)`,
		`(các|những) (.*) (nào|gì)`,
		`(tất cả|toàn bộ|đầy đủ)`,
		`(danh mục|hệ thống)`,
	)},
	{IntentExplanation, compileAll(
		`(tại sao|vì sao|lý do|nguyên nhân)`,
		`(như thế nào|thế nào|cách nào|làm sao)`,
		`(giải thích|giải|mô tả|nói rõ)`,
		`(ý nghĩa|nghĩa là gì|có nghĩa)`,
		`(hướng dẫn|cách thức|thủ tục)`,
	)},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// Classification is the result of Classify.
type Classification struct {
	Intent          Intent
	Confidence      float64
	MatchedPatterns int
}

// Classify scores query against each intent's pattern set and returns
// the best match. Confidence is matched/2 capped at 1.0, so a single
// match under the original's scoring scale to 0.5; ties favor the
// earlier-declared intent. A query with zero matches returns "general"
// at confidence 0.5 (spec §4.6).
func Classify(query string) Classification {
	lower := strings.ToLower(query)

	best := Classification{Intent: IntentGeneral, Confidence: 0.5}
	bestScore := 0
	for _, ip := range intentPatterns {
		score := 0
		for _, re := range ip.patterns {
			if re.MatchString(lower) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			confidence := float64(score) / 2
			if confidence > 1.0 {
				confidence = 1.0
			}
			best = Classification{Intent: ip.intent, Confidence: confidence, MatchedPatterns: score}
		}
	}
	return best
}
