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

package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhdandz/tsbot/internal/bm25"
	"github.com/nhdandz/tsbot/internal/chunkstore"
	"github.com/nhdandz/tsbot/internal/model"
	"github.com/nhdandz/tsbot/internal/vectorstore"
)

// fakeEmbedder returns a fixed vector regardless of input text, enough
// to exercise the retrieval pipeline deterministically.
type fakeEmbedder struct {
	vector []float32
}

func (f *fakeEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	return f.vector, nil
}

func (f *fakeEmbedder) Dimension() int { return len(f.vector) }

// fakeVectorStore returns a fixed set of hits regardless of the query
// vector, keyed by chunk ID.
type fakeVectorStore struct {
	hits []vectorstore.Hit
}

func (f *fakeVectorStore) CreateCollection(ctx context.Context, name string, dim int) error {
	return nil
}
func (f *fakeVectorStore) Upsert(ctx context.Context, name string, points []model.Point) error {
	return nil
}
func (f *fakeVectorStore) Search(ctx context.Context, name string, vector []float32, k int, minScore float32, filter *vectorstore.Filter) ([]vectorstore.Hit, error) {
	return f.hits, nil
}
func (f *fakeVectorStore) Count(ctx context.Context, name string) (int64, error) { return int64(len(f.hits)), nil }
func (f *fakeVectorStore) DeleteByFilter(ctx context.Context, name string, filter *vectorstore.Filter) error {
	return nil
}
func (f *fakeVectorStore) Close() error { return nil }

func buildTestStore(t *testing.T) *chunkstore.Store {
	t.Helper()
	chunks := []*model.Chunk{
		{ID: "c1", Content: "Điểm chuẩn Học viện Kỹ thuật Quân sự năm 2024 là 26 điểm", Metadata: model.ChunkMetadata{Article: "1"}},
		{ID: "c2", Content: "Chỉ tiêu tuyển sinh ngành công nghệ thông tin", Metadata: model.ChunkMetadata{Article: "2"}},
		{ID: "c3", Content: "Quy định về đối tượng ưu tiên trong tuyển sinh quân sự", Metadata: model.ChunkMetadata{Article: "3"}},
	}
	store, err := chunkstore.Build(chunks)
	require.NoError(t, err)
	return store
}

func TestRetrieve_RetrievalScoreCarriesDenseCosineSimilarity(t *testing.T) {
	store := buildTestStore(t)
	bm25Index := bm25.New(1.5, 0.75)
	var docs []string
	for _, c := range store.All() {
		docs = append(docs, c.Content)
	}
	bm25Index.Build(docs)

	vectors := &fakeVectorStore{hits: []vectorstore.Hit{
		{ID: "c1", Score: 0.83},
	}}
	embed := &fakeEmbedder{vector: []float32{1, 0, 0}}

	r := New(store, vectors, bm25Index, embed, "legal_chunks")
	results, err := r.Retrieve(context.Background(), []string{"điểm chuẩn quân sự"}, 5, 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	var c1Result *Result
	for i := range results {
		if results[i].Chunk.ID == "c1" {
			c1Result = &results[i]
		}
	}
	require.NotNil(t, c1Result, "c1 must be present since it was a dense hit")
	assert.Equal(t, float64(float32(0.83)), c1Result.RetrievalScore, "RetrievalScore must equal the dense cosine score the vector store returned, not a squashed RRF score")
}

func TestRetrieve_LexicalOnlyChunkHasZeroRetrievalScore(t *testing.T) {
	store := buildTestStore(t)
	bm25Index := bm25.New(1.5, 0.75)
	var docs []string
	for _, c := range store.All() {
		docs = append(docs, c.Content)
	}
	bm25Index.Build(docs)

	// No dense hits at all; c3 can only be found lexically.
	vectors := &fakeVectorStore{hits: nil}
	embed := &fakeEmbedder{vector: []float32{1, 0, 0}}

	r := New(store, vectors, bm25Index, embed, "legal_chunks")
	results, err := r.Retrieve(context.Background(), []string{"quân sự"}, 5, 0, 0)
	require.NoError(t, err)

	for _, res := range results {
		assert.Equal(t, 0.0, res.RetrievalScore, "a chunk with no dense hit must carry a zero dense similarity, not a nonzero placeholder")
	}
}

func TestLexicalRanking_FiltersZeroScoreChunks(t *testing.T) {
	store := buildTestStore(t)
	bm25Index := bm25.New(1.5, 0.75)
	var docs []string
	for _, c := range store.All() {
		docs = append(docs, c.Content)
	}
	bm25Index.Build(docs)

	r := &Retriever{store: store, bm25: bm25Index, chunkIDs: []string{"c1", "c2", "c3"}}

	// A query sharing vocabulary with only one document must not pad the
	// result with zero-score documents to reach k.
	items := r.lexicalRanking("công nghệ thông tin", 10)
	for _, item := range items {
		assert.Greater(t, item.Score, 0.0, "lexicalRanking must never return a non-positive-score item")
	}
}

func TestLexicalRanking_NotBuiltReturnsNil(t *testing.T) {
	r := &Retriever{bm25: bm25.New(1.5, 0.75)}
	assert.Nil(t, r.lexicalRanking("anything", 5))
}
