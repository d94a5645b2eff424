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

// Package chunkstore implements component C2: an in-memory map of legal
// chunks with parent/children edges, the canonical graph for navigation.
//
// The graph is index-based (a map keyed by chunk id plus ordered id
// slices for children), not a web of owning pointers — per SPEC_FULL.md
// §9 this sidesteps cyclic-ownership concerns entirely, since nothing
// ever holds a *Chunk across a cycle.
package chunkstore

import (
	"fmt"

	"github.com/nhdandz/tsbot/internal/model"
)

const maxDepth = 5 // chuong=1 ... diem=5, spec §3 invariant (d)

// StructuralError marks a fatal ingestion-time defect (spec §7 kind 6):
// a cycle or a dangling parent_id. It never surfaces once Build
// succeeds.
type StructuralError struct {
	ChunkID string
	Reason  string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("chunkstore: structural error on chunk %q: %s", e.ChunkID, e.Reason)
}

// Store is the read-only chunk graph. All maps are built once in Build
// and never mutated afterward, so concurrent reads need no locking
// (spec §5 "Shared resources").
type Store struct {
	chunks map[string]*model.Chunk
	order  []string // document order, for deterministic iteration
}

// Build parses chunks, links parent/children edges, and validates the
// invariants in spec §4.2 and §3: every parent_id resolves, the graph is
// acyclic, and depth is bounded. Chunks is the full set as loaded from
// the ingestion file (spec §6); mutating a field of a returned *Chunk
// after Build violates the read-only contract and is not supported.
func Build(chunks []*model.Chunk) (*Store, error) {
	s := &Store{chunks: make(map[string]*model.Chunk, len(chunks)), order: make([]string, 0, len(chunks))}
	for _, c := range chunks {
		if _, dup := s.chunks[c.ID]; dup {
			return nil, &StructuralError{ChunkID: c.ID, Reason: "duplicate chunk id"}
		}
		s.chunks[c.ID] = c
		s.order = append(s.order, c.ID)
	}

	if err := s.linkChildren(); err != nil {
		return nil, err
	}
	if err := s.checkAcyclicAndDepth(); err != nil {
		return nil, err
	}
	return s, nil
}

// linkChildren appends each chunk's id to its parent's ChildrenIDs,
// deduplicating, per spec §4.2 build step 2.
func (s *Store) linkChildren() error {
	for _, id := range s.order {
		c := s.chunks[id]
		parentID := c.ParentID()
		if parentID == "" {
			continue
		}
		parent, ok := s.chunks[parentID]
		if !ok {
			return &StructuralError{ChunkID: id, Reason: fmt.Sprintf("parent_id %q does not resolve", parentID)}
		}
		already := false
		for _, existing := range parent.ChildrenIDs {
			if existing == id {
				already = true
				break
			}
		}
		if !already {
			parent.ChildrenIDs = append(parent.ChildrenIDs, id)
		}
	}
	return nil
}

// checkAcyclicAndDepth walks the parent chain of every chunk, aborting
// on a cycle or a chain longer than maxDepth.
func (s *Store) checkAcyclicAndDepth() error {
	for _, id := range s.order {
		visited := make(map[string]bool)
		cur := id
		for depth := 0; ; depth++ {
			if depth > maxDepth {
				return &StructuralError{ChunkID: id, Reason: "parent chain exceeds bounded depth"}
			}
			if visited[cur] {
				return &StructuralError{ChunkID: id, Reason: "cyclic parent_id chain"}
			}
			visited[cur] = true
			c := s.chunks[cur]
			parentID := c.ParentID()
			if parentID == "" {
				break
			}
			cur = parentID
		}
	}
	return nil
}

// Validate checks spec §4.2's invariants by running Build and discarding
// the Store, so an external ingestion tool can call it before committing
// (SPEC_FULL.md supplemented feature #4). Like Build, it appends child ids
// to the ChildrenIDs of the chunks passed in.
func Validate(chunks []*model.Chunk) error {
	_, err := Build(chunks)
	return err
}

// Get returns the chunk with the given id, or nil if absent.
func (s *Store) Get(id string) *model.Chunk {
	return s.chunks[id]
}

// Len returns the number of chunks in the store.
func (s *Store) Len() int { return len(s.order) }

// All returns chunks in their original document order. The returned
// slice must not be mutated by callers.
func (s *Store) All() []*model.Chunk {
	out := make([]*model.Chunk, len(s.order))
	for i, id := range s.order {
		out[i] = s.chunks[id]
	}
	return out
}

// Parents walks parent_id up to k levels, nearest first.
func (s *Store) Parents(c *model.Chunk, k int) []*model.Chunk {
	out := make([]*model.Chunk, 0, k)
	cur := c
	for i := 0; i < k; i++ {
		parentID := cur.ParentID()
		if parentID == "" {
			break
		}
		parent := s.chunks[parentID]
		if parent == nil {
			break
		}
		out = append(out, parent)
		cur = parent
	}
	return out
}

// Children returns c's direct children, in document order.
func (s *Store) Children(c *model.Chunk) []*model.Chunk {
	out := make([]*model.Chunk, 0, len(c.ChildrenIDs))
	for _, id := range c.ChildrenIDs {
		if child := s.chunks[id]; child != nil {
			out = append(out, child)
		}
	}
	return out
}

// Siblings returns up to k of c's parent's children, excluding c itself.
func (s *Store) Siblings(c *model.Chunk, k int) []*model.Chunk {
	parentID := c.ParentID()
	if parentID == "" {
		return nil
	}
	parent := s.chunks[parentID]
	if parent == nil {
		return nil
	}
	out := make([]*model.Chunk, 0, k)
	for _, id := range parent.ChildrenIDs {
		if id == c.ID {
			continue
		}
		if sib := s.chunks[id]; sib != nil {
			out = append(out, sib)
			if len(out) >= k {
				break
			}
		}
	}
	return out
}

// Descendants returns all of c's descendants via BFS over ChildrenIDs,
// in breadth-first order.
func (s *Store) Descendants(c *model.Chunk) []*model.Chunk {
	var out []*model.Chunk
	queue := append([]string{}, c.ChildrenIDs...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		child := s.chunks[id]
		if child == nil {
			continue
		}
		out = append(out, child)
		queue = append(queue, child.ChildrenIDs...)
	}
	return out
}

// IsAncestor reports whether a is an ancestor of b, walking b's parent
// chain up to maxDepth levels (spec §4.12's overlap test).
func (s *Store) IsAncestor(a, b *model.Chunk) bool {
	cur := b
	for i := 0; i < maxDepth; i++ {
		parentID := cur.ParentID()
		if parentID == "" {
			return false
		}
		if parentID == a.ID {
			return true
		}
		parent := s.chunks[parentID]
		if parent == nil {
			return false
		}
		cur = parent
	}
	return false
}
