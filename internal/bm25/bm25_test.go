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

package bm25

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpus = []string{
	"Điểm chuẩn Học viện Kỹ thuật Quân sự năm 2024 là 26 điểm",
	"Chỉ tiêu tuyển sinh ngành công nghệ thông tin",
	"Quy định về đối tượng ưu tiên trong tuyển sinh quân sự",
}

func TestBM25_NotBuiltReturnsNil(t *testing.T) {
	idx := New(1.5, 0.75)
	assert.Nil(t, idx.Scores("điểm chuẩn"))
	assert.False(t, idx.Built())
}

func TestBM25_Idempotent(t *testing.T) {
	idx1 := New(1.5, 0.75)
	idx1.Build(corpus)
	idx2 := New(1.5, 0.75)
	idx2.Build(corpus)

	scores1 := idx1.Scores("điểm chuẩn quân sự")
	scores2 := idx2.Scores("điểm chuẩn quân sự")
	require.Equal(t, len(scores1), len(scores2))
	for i := range scores1 {
		assert.InDelta(t, scores1[i], scores2[i], 1e-9, "score %d should be identical across rebuilds", i)
	}

	// Running Scores twice against the same built index must also be
	// stable, since Build never mutates docTokens/idf after Build.
	repeat := idx1.Scores("điểm chuẩn quân sự")
	assert.Equal(t, scores1, repeat)
}

func TestBM25_OutOfVocabularyTermsScoreZeroContribution(t *testing.T) {
	idx := New(1.5, 0.75)
	idx.Build(corpus)
	scores := idx.Scores("hoàn toàn không liên quan xyzxyz")
	for _, s := range scores {
		assert.Equal(t, 0.0, s)
	}
}

func TestBM25_RelevantDocumentScoresHigher(t *testing.T) {
	idx := New(1.5, 0.75)
	idx.Build(corpus)
	scores := idx.Scores("điểm chuẩn quân sự")
	// corpus[0] mentions "điểm chuẩn" and "quân sự"-adjacent content; it
	// should outscore corpus[1], which shares no query terms.
	assert.Greater(t, scores[0], scores[1])
}

func TestBM25_DocCount(t *testing.T) {
	idx := New(1.5, 0.75)
	idx.Build(corpus)
	assert.Equal(t, len(corpus), idx.DocCount())
}

func TestBM25_DefaultsAppliedForNonPositiveParams(t *testing.T) {
	idx := New(0, 0)
	assert.Equal(t, 1.5, idx.k1)
	assert.Equal(t, 0.75, idx.b)
}
