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

// Package model holds the shared data types described in spec §3: legal
// chunks, vector-store points, router exemplars, cache entries,
// conversation state, and the admission-score view rows.
package model

import "time"

// ChunkMetadata mirrors the legal-hierarchy metadata attached to a Chunk.
// Unknown keys from the ingestion file are preserved in Extra.
type ChunkMetadata struct {
	Source        string `json:"source,omitempty" yaml:"source,omitempty"`
	Chapter       string `json:"chapter,omitempty" yaml:"chapter,omitempty"`
	ChapterTitle  string `json:"chapter_title,omitempty" yaml:"chapter_title,omitempty"`
	Section       string `json:"section,omitempty" yaml:"section,omitempty"`
	SectionTitle  string `json:"section_title,omitempty" yaml:"section_title,omitempty"`
	Article       string `json:"article,omitempty" yaml:"article,omitempty"`
	ArticleTitle  string `json:"article_title,omitempty" yaml:"article_title,omitempty"`
	Clause        string `json:"clause,omitempty" yaml:"clause,omitempty"`
	Point         string `json:"point,omitempty" yaml:"point,omitempty"`
	ParentID      string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	ChunkID       string `json:"chunk_id,omitempty" yaml:"chunk_id,omitempty"`
	Extra         map[string]any `json:"-" yaml:"-"`
}

// HierarchyLevel classifies a chunk by the deepest populated field of its
// metadata, per the Chuong/Muc/Dieu/Khoan/Diem ladder in the glossary.
type HierarchyLevel int

const (
	LevelUnknown HierarchyLevel = iota
	LevelChapter                // chuong
	LevelSection                // muc
	LevelArticle                // dieu
	LevelClause                 // khoan
	LevelPoint                  // diem
)

// Depth returns the metadata's hierarchy depth, used by the merger
// (spec §4.12) to decide which of two overlapping chunks is "deeper".
func (m ChunkMetadata) Depth() HierarchyLevel {
	switch {
	case m.Point != "":
		return LevelPoint
	case m.Clause != "":
		return LevelClause
	case m.Article != "":
		return LevelArticle
	case m.Section != "":
		return LevelSection
	case m.Chapter != "":
		return LevelChapter
	default:
		return LevelUnknown
	}
}

// Chunk is a leaf unit of legal text, as described in spec §3. ParentID
// and ChildrenIDs form a read-only graph, built once at startup by
// chunkstore.Build and never mutated afterward.
type Chunk struct {
	ID          string
	Content     string
	Metadata    ChunkMetadata
	ChildrenIDs []string
}

// ParentID is a convenience accessor over Metadata.ParentID.
func (c *Chunk) ParentID() string { return c.Metadata.ParentID }

// Point is a vector-store record: an embedding plus its chunk metadata
// and content, per spec §3 "Vector-store point". Payloads round-trip
// through the store unchanged (spec §6).
type Point struct {
	ID       string
	Vector   []float32
	Payload  map[string]any
}

// Route is an intent exemplar set for the semantic router (spec §4.5).
type Route struct {
	Name        string
	Description string
	Examples    []string
}

// CacheEntry is one semantic-cache row (spec §4.7).
type CacheEntry struct {
	QueryText   string
	QueryVector []float32
	Response    any
	CreatedAt   time.Time
}

// Message is one turn of a session transcript (spec §3 "Conversation
// state").
type Message struct {
	Role      string // "user" or "assistant"
	Content   string
	CreatedAt time.Time
	Metadata  map[string]any
}

// AdmissionRow is one row of the read-only view_tra_cuu_diem relation
// (spec §3 "Admission-score view").
type AdmissionRow struct {
	Nam               int
	TenTruong         string
	TenKhongDau       string
	MaTruong          string
	LoaiTruong        string
	MaNganh           string
	TenNganh          string
	TenNganhKhongDau  string
	MaKhoi            string
	DiemChuan         float64
	ChiTieu           *int
	GioiTinh          *string
	KhuVuc            *string
	DoiTuong          *string
	GhiChu            *string
}

// School is one row of the `truong` table, backing the Supervisor's
// school_info node (spec §6 Relational contract).
type School struct {
	ID       int64
	MaTruong string
	TenTruong string
	TenKhongDau string
	LoaiTruong string
	DiaChi   string
	Website  string
	MoTa     string
	Active   bool
}

// Major is one row of the `nganh` table.
type Major struct {
	ID       int64
	TruongID int64
	MaNganh  string
	TenNganh string
	MoTa     string
	Active   bool
}
