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
	"strings"

	"github.com/nhdandz/tsbot/internal/model"
)

// TitlePath renders the legal path for a chunk, e.g.
// "[Chuong X > Muc Y > Dieu Z > Khoan K]", including only the levels
// present in its metadata, per spec §4.12.
func (s *Store) TitlePath(c *model.Chunk) string {
	m := c.Metadata
	var parts []string
	if m.Chapter != "" {
		parts = append(parts, "Chuong "+m.Chapter)
	}
	if m.Section != "" {
		parts = append(parts, "Muc "+m.Section)
	}
	if m.Article != "" {
		parts = append(parts, "Dieu "+m.Article)
	}
	if m.Clause != "" {
		parts = append(parts, "Khoan "+m.Clause)
	}
	if m.Point != "" {
		parts = append(parts, "Diem "+m.Point)
	}
	if len(parts) == 0 {
		return ""
	}
	return "[" + strings.Join(parts, " > ") + "]"
}

// EnrichedText builds the deterministic embedding input for a chunk:
// title_path | parent_content[:K] | content, per spec §4.2 build step 3.
// Enrichment is deterministic so re-ingestion yields identical vectors.
func (s *Store) EnrichedText(c *model.Chunk, parentContextLength int) string {
	var b strings.Builder
	if path := s.TitlePath(c); path != "" {
		b.WriteString(path)
		b.WriteString(" | ")
	}
	if parents := s.Parents(c, 1); len(parents) > 0 {
		parentContent := parents[0].Content
		if len(parentContent) > parentContextLength {
			parentContent = parentContent[:parentContextLength]
		}
		b.WriteString(parentContent)
		b.WriteString(" | ")
	}
	b.WriteString(c.Content)
	return b.String()
}
