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

// Package pinecone implements vectorstore.Store against a managed
// Pinecone index, for deployments that prefer a hosted backend over
// running Qdrant themselves (spec §6, "SHOULD be swappable").
package pinecone

import (
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nhdandz/tsbot/internal/model"
	"github.com/nhdandz/tsbot/internal/vectorstore"
)

// Config configures the Pinecone connection. Name, in this backend,
// selects the index rather than a collection within one index: Pinecone
// indexes are provisioned out of band, so name must already exist.
type Config struct {
	APIKey string `yaml:"api_key"`
	Host   string `yaml:"host,omitempty"`
}

// Store implements vectorstore.Store over the Pinecone SDK. Each
// collection name maps to a distinct Pinecone index, looked up and
// cached on first use.
type Store struct {
	client  *pinecone.Client
	cfg     Config
	conns   map[string]*pinecone.IndexConnection
}

var _ vectorstore.Store = (*Store)(nil)

// New creates a Pinecone-backed store. APIKey is required.
func New(cfg Config) (*Store, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone: api key is required")
	}
	params := pinecone.NewClientParams{ApiKey: cfg.APIKey}
	if cfg.Host != "" {
		params.Host = cfg.Host
	}
	client, err := pinecone.NewClient(params)
	if err != nil {
		return nil, fmt.Errorf("pinecone: create client: %w", err)
	}
	return &Store{client: client, cfg: cfg, conns: make(map[string]*pinecone.IndexConnection)}, nil
}

func (s *Store) conn(ctx context.Context, index string) (*pinecone.IndexConnection, error) {
	if c, ok := s.conns[index]; ok {
		return c, nil
	}
	desc, err := s.client.DescribeIndex(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("pinecone: describe index %q: %w", index, err)
	}
	conn, err := s.client.Index(pinecone.NewIndexConnParams{Host: desc.Host})
	if err != nil {
		return nil, fmt.Errorf("pinecone: connect index %q: %w", index, err)
	}
	s.conns[index] = conn
	return conn, nil
}

// CreateCollection verifies the index already exists; Pinecone indexes
// are provisioned via the console or API, not at write time.
func (s *Store) CreateCollection(ctx context.Context, name string, dim int) error {
	indexes, err := s.client.ListIndexes(ctx)
	if err != nil {
		return fmt.Errorf("pinecone: list indexes: %w", err)
	}
	for _, idx := range indexes {
		if idx.Name == name {
			return nil
		}
	}
	return fmt.Errorf("pinecone: index %q does not exist; create it via the Pinecone console or API first", name)
}

// Upsert writes points to the index in one request.
func (s *Store) Upsert(ctx context.Context, name string, points []model.Point) error {
	conn, err := s.conn(ctx, name)
	if err != nil {
		return err
	}
	vectors := make([]*pinecone.Vector, 0, len(points))
	for _, p := range points {
		var meta *pinecone.Metadata
		if len(p.Payload) > 0 {
			m, err := structpb.NewStruct(p.Payload)
			if err != nil {
				return fmt.Errorf("pinecone: convert payload for %q: %w", p.ID, err)
			}
			meta = m
		}
		vectors = append(vectors, &pinecone.Vector{Id: p.ID, Values: p.Vector, Metadata: meta})
	}
	if _, err := conn.UpsertVectors(ctx, vectors); err != nil {
		return fmt.Errorf("pinecone: upsert into %q: %w", name, err)
	}
	return nil
}

// Search queries the index by vector value, optionally constrained by a
// metadata filter. minScore is applied client-side since the Pinecone
// query API has no server-side score threshold.
func (s *Store) Search(ctx context.Context, name string, vector []float32, k int, minScore float32, filter *vectorstore.Filter) ([]vectorstore.Hit, error) {
	conn, err := s.conn(ctx, name)
	if err != nil {
		return nil, err
	}
	var metaFilter *pinecone.MetadataFilter
	if f := toFilterMap(filter); len(f) > 0 {
		mf, err := structpb.NewStruct(f)
		if err != nil {
			return nil, fmt.Errorf("pinecone: convert filter: %w", err)
		}
		metaFilter = mf
	}
	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(k),
		MetadataFilter:  metaFilter,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone: search %q: %w", name, err)
	}
	out := make([]vectorstore.Hit, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m.Vector == nil || m.Score < minScore {
			continue
		}
		payload := map[string]any{}
		if m.Vector.Metadata != nil {
			payload = m.Vector.Metadata.AsMap()
		}
		out = append(out, vectorstore.Hit{ID: m.Vector.Id, Score: m.Score, Payload: payload})
	}
	return out, nil
}

// Count is not supported by the Pinecone query API without a full
// namespace describe; it is approximated via DescribeIndexStats.
func (s *Store) Count(ctx context.Context, name string) (int64, error) {
	conn, err := s.conn(ctx, name)
	if err != nil {
		return 0, err
	}
	stats, err := conn.DescribeIndexStats(ctx)
	if err != nil {
		return 0, fmt.Errorf("pinecone: describe stats for %q: %w", name, err)
	}
	return int64(stats.TotalVectorCount), nil
}

// DeleteByFilter removes vectors matching filter's Must predicates.
func (s *Store) DeleteByFilter(ctx context.Context, name string, filter *vectorstore.Filter) error {
	conn, err := s.conn(ctx, name)
	if err != nil {
		return err
	}
	f := toFilterMap(filter)
	var metaFilter *pinecone.MetadataFilter
	if len(f) > 0 {
		mf, err := structpb.NewStruct(f)
		if err != nil {
			return fmt.Errorf("pinecone: convert filter: %w", err)
		}
		metaFilter = mf
	}
	if err := conn.DeleteVectorsByFilter(ctx, metaFilter); err != nil {
		return fmt.Errorf("pinecone: delete by filter in %q: %w", name, err)
	}
	return nil
}

// Close releases all cached index connections.
func (s *Store) Close() error {
	for _, c := range s.conns {
		c.Close()
	}
	return nil
}

func toFilterMap(f *vectorstore.Filter) map[string]any {
	if f == nil || len(f.Must) == 0 {
		return nil
	}
	out := make(map[string]any, len(f.Must))
	for _, op := range f.Must {
		out[op.Key] = op.Value
	}
	return out
}
