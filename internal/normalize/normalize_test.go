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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_StripsDiacriticsLowercasesAndCollapsesSpace(t *testing.T) {
	got := Normalize("  Điểm  CHUẨN   ")
	assert.Equal(t, "diem chuan", got)
}

func TestNormalize_Idempotent(t *testing.T) {
	once := Normalize("Học viện Kỹ thuật Quân sự")
	twice := Normalize(once)
	assert.Equal(t, once, twice)
}

func TestExpandAbbreviations_WordBoundaryOnly(t *testing.T) {
	expanded := ExpandAbbreviations("điểm chuẩn hvktqs năm 2024")
	assert.Contains(t, expanded, "học viện kỹ thuật quân sự")

	// "sq" must not expand inside a larger word like "such" or "sql".
	notExpanded := ExpandAbbreviations("sqlite")
	assert.Equal(t, "sqlite", notExpanded)
}

func TestExpandAbbreviations_LongestMatchWins(t *testing.T) {
	expanded := ExpandAbbreviations("truong sq tuyển sinh")
	assert.Contains(t, expanded, "trường sĩ quan")
	assert.NotContains(t, expanded, "trường sĩ quan sĩ quan")
}

func TestIsQuestion(t *testing.T) {
	cases := []struct {
		name string
		text string
		want bool
	}{
		{"question mark", "Điểm chuẩn là bao nhiêu?", true},
		{"question word without mark", "cho hỏi điểm chuẩn năm nay", true},
		{"declarative statement", "Điểm chuẩn năm 2024 là 26", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsQuestion(tc.text))
		})
	}
}

func TestTokenSet_And_JaccardSimilarity(t *testing.T) {
	a := TokenSet("điểm chuẩn học viện kỹ thuật quân sự")
	b := TokenSet("điểm chuẩn học viện quân y")
	sim := JaccardSimilarity(a, b)
	assert.Greater(t, sim, 0.0)
	assert.Less(t, sim, 1.0)

	identical := JaccardSimilarity(a, a)
	assert.Equal(t, 1.0, identical)
}

func TestJaccardSimilarity_EmptySetsReturnZero(t *testing.T) {
	assert.Equal(t, 0.0, JaccardSimilarity(map[string]struct{}{}, map[string]struct{}{"a": {}}))
	assert.Equal(t, 0.0, JaccardSimilarity(map[string]struct{}{}, map[string]struct{}{}))
}

func TestTokenizeBM25_DropsStopwordsAndSingleChars(t *testing.T) {
	tokens := TokenizeBM25("điểm chuẩn của a là bao nhiêu")
	for _, tok := range tokens {
		assert.NotEqual(t, "của", tok)
		assert.NotEqual(t, "là", tok)
		assert.Greater(t, len(tok), 1)
	}
}
