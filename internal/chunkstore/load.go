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

package chunkstore

import (
	"encoding/json"
	"fmt"

	"github.com/nhdandz/tsbot/internal/model"
)

// rawChunk mirrors the ingestion-file shape described in spec §6: a
// chunk record with a free-form metadata map so unknown keys survive.
type rawChunk struct {
	ID          string         `json:"id"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata"`
	ChildrenIDs []string       `json:"children_ids"`
}

type rawFile struct {
	Chunks []rawChunk `json:"chunks"`
}

// ParseIngestionFile accepts either a bare JSON array of chunks or an
// object {"chunks": [...]}, per spec §6.
func ParseIngestionFile(data []byte) ([]*model.Chunk, error) {
	var raws []rawChunk

	var asArray []rawChunk
	if err := json.Unmarshal(data, &asArray); err == nil {
		raws = asArray
	} else {
		var asObject rawFile
		if err := json.Unmarshal(data, &asObject); err != nil {
			return nil, fmt.Errorf("chunkstore: ingestion file is neither a chunk array nor {\"chunks\":[...]}: %w", err)
		}
		raws = asObject.Chunks
	}

	chunks := make([]*model.Chunk, 0, len(raws))
	for _, r := range raws {
		chunks = append(chunks, rawToChunk(r))
	}
	return chunks, nil
}

func rawToChunk(r rawChunk) *model.Chunk {
	meta := model.ChunkMetadata{Extra: map[string]any{}}
	for k, v := range r.Metadata {
		switch k {
		case "source":
			meta.Source, _ = v.(string)
		case "chapter":
			meta.Chapter, _ = v.(string)
		case "chapter_title":
			meta.ChapterTitle, _ = v.(string)
		case "section":
			meta.Section, _ = v.(string)
		case "section_title":
			meta.SectionTitle, _ = v.(string)
		case "article":
			meta.Article, _ = v.(string)
		case "article_title":
			meta.ArticleTitle, _ = v.(string)
		case "clause":
			meta.Clause, _ = v.(string)
		case "point":
			meta.Point, _ = v.(string)
		case "parent_id":
			meta.ParentID, _ = v.(string)
		case "chunk_id":
			meta.ChunkID, _ = v.(string)
		default:
			meta.Extra[k] = v
		}
	}
	return &model.Chunk{
		ID:          r.ID,
		Content:     r.Content,
		Metadata:    meta,
		ChildrenIDs: append([]string{}, r.ChildrenIDs...),
	}
}

// Batches splits chunks into fixed-size groups for vector-store upsert,
// per spec §4.2 build step 4 ("fixed-size batches, ≈100").
func Batches(chunks []*model.Chunk, size int) [][]*model.Chunk {
	if size <= 0 {
		size = 100
	}
	var out [][]*model.Chunk
	for i := 0; i < len(chunks); i += size {
		end := i + size
		if end > len(chunks) {
			end = len(chunks)
		}
		out = append(out, chunks[i:end])
	}
	return out
}
