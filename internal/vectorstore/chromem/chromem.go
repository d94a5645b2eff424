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

// Package chromem implements vectorstore.Store with chromem-go, an
// embedded in-process vector database. It is the zero-dependency
// backend for local development and single-node deployments that don't
// want to run a Qdrant server (spec §6, "SHOULD be swappable").
package chromem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/nhdandz/tsbot/internal/model"
	"github.com/nhdandz/tsbot/internal/vectorstore"
)

// Config configures the chromem-go backend.
type Config struct {
	// PersistPath, if set, persists the database to disk as a gob file.
	// Empty means memory-only.
	PersistPath string `yaml:"persist_path,omitempty"`
	Compress    bool   `yaml:"compress,omitempty"`
}

// Store implements vectorstore.Store with an in-process chromem-go
// database. Collections are lazily created and cached.
type Store struct {
	db          *chromem.DB
	cfg         Config
	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

var _ vectorstore.Store = (*Store)(nil)

func noEmbed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("chromem: embedding function invoked; vectors must be precomputed")
}

// New opens (or creates) the database described by cfg.
func New(cfg Config) (*Store, error) {
	var db *chromem.DB
	if cfg.PersistPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.PersistPath), 0o755); err != nil {
			return nil, fmt.Errorf("chromem: create persist dir: %w", err)
		}
		dbPath := cfg.PersistPath
		if cfg.Compress {
			dbPath += ".gz"
		}
		if _, err := os.Stat(dbPath); err == nil {
			loaded, loadErr := chromem.NewPersistentDB(dbPath, cfg.Compress)
			if loadErr != nil {
				db = chromem.NewDB()
			} else {
				db = loaded
			}
		} else {
			db = chromem.NewDB()
		}
	} else {
		db = chromem.NewDB()
	}
	return &Store{db: db, cfg: cfg, collections: make(map[string]*chromem.Collection)}, nil
}

func (s *Store) collection(name string) (*chromem.Collection, error) {
	s.mu.RLock()
	if c, ok := s.collections[name]; ok {
		s.mu.RUnlock()
		return c, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		return c, nil
	}
	c, err := s.db.GetOrCreateCollection(name, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("chromem: get/create collection %q: %w", name, err)
	}
	s.collections[name] = c
	return c, nil
}

// CreateCollection gets or creates the named collection now; dim is not
// used, since chromem-go stores each document's embedding as given.
func (s *Store) CreateCollection(ctx context.Context, name string, dim int) error {
	_, err := s.collection(name)
	return err
}

// Upsert writes all points in one AddDocuments call (runtime.NumCPU()
// concurrent workers), then persists the DB.
func (s *Store) Upsert(ctx context.Context, name string, points []model.Point) error {
	col, err := s.collection(name)
	if err != nil {
		return err
	}
	docs := make([]chromem.Document, 0, len(points))
	for _, p := range points {
		meta := make(map[string]string, len(p.Payload))
		for k, v := range p.Payload {
			meta[k] = fmt.Sprint(v)
		}
		content, _ := p.Payload["content"].(string)
		docs = append(docs, chromem.Document{ID: p.ID, Content: content, Metadata: meta, Embedding: p.Vector})
	}
	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("chromem: upsert into %q: %w", name, err)
	}
	return s.persist()
}

// Search runs a cosine query against the collection's precomputed
// embeddings.
func (s *Store) Search(ctx context.Context, name string, vector []float32, k int, minScore float32, filter *vectorstore.Filter) ([]vectorstore.Hit, error) {
	col, err := s.collection(name)
	if err != nil {
		return nil, err
	}
	where := mustFilter(filter)
	results, err := col.QueryEmbedding(ctx, vector, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: search %q: %w", name, err)
	}
	out := make([]vectorstore.Hit, 0, len(results))
	for _, r := range results {
		if r.Similarity < minScore {
			continue
		}
		payload := make(map[string]any, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			payload[k] = v
		}
		payload["content"] = r.Content
		out = append(out, vectorstore.Hit{ID: r.ID, Score: r.Similarity, Payload: payload})
	}
	return out, nil
}

// Count returns the collection's document count.
func (s *Store) Count(ctx context.Context, name string) (int64, error) {
	col, err := s.collection(name)
	if err != nil {
		return 0, err
	}
	return int64(col.Count()), nil
}

// DeleteByFilter removes documents matching filter's Must predicates;
// chromem-go's where-map only supports equality conjunction, so Should
// and MustNot are not representable and are ignored.
func (s *Store) DeleteByFilter(ctx context.Context, name string, filter *vectorstore.Filter) error {
	col, err := s.collection(name)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, mustFilter(filter), nil); err != nil {
		return fmt.Errorf("chromem: delete by filter in %q: %w", name, err)
	}
	return s.persist()
}

// Close persists the database if a persist path was configured.
func (s *Store) Close() error {
	return s.persist()
}

func (s *Store) persist() error {
	if s.cfg.PersistPath == "" {
		return nil
	}
	dbPath := s.cfg.PersistPath
	if s.cfg.Compress {
		dbPath += ".gz"
	}
	return s.db.ExportToFile(dbPath, s.cfg.Compress, "")
}

func mustFilter(f *vectorstore.Filter) map[string]string {
	if f == nil || len(f.Must) == 0 {
		return nil
	}
	out := make(map[string]string, len(f.Must))
	for _, op := range f.Must {
		out[op.Key] = fmt.Sprint(op.Value)
	}
	return out
}
