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

// Package qdrant implements vectorstore.Store against a Qdrant server,
// the primary backend for component C4 (spec §4.4, §6).
package qdrant

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/nhdandz/tsbot/internal/model"
	"github.com/nhdandz/tsbot/internal/vectorstore"
)

// Config configures the Qdrant connection.
type Config struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key,omitempty"`
	UseTLS bool   `yaml:"use_tls,omitempty"`
}

// SetDefaults fills in the standard Qdrant gRPC port and localhost host.
func (c *Config) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
}

// Store implements vectorstore.Store over a Qdrant gRPC client.
type Store struct {
	client *qdrant.Client
	cfg    Config
}

var _ vectorstore.Store = (*Store)(nil)

// New dials a Qdrant server. The error wraps a short troubleshooting
// hint since a misconfigured host is the most common first-run failure.
func New(cfg Config) (*Store, error) {
	cfg.SetDefaults()

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: connect to %s:%d: %w\n"+
			"  check that Qdrant is running and reachable (docker run -p 6333:6333 -p 6334:6334 qdrant/qdrant)",
			cfg.Host, cfg.Port, err)
	}
	return &Store{client: client, cfg: cfg}, nil
}

// CreateCollection creates a cosine-metric collection if it doesn't
// already exist.
func (s *Store) CreateCollection(ctx context.Context, name string, dim int) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("qdrant: check collection %q: %w", name, err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("qdrant: create collection %q: %w", name, err)
	}
	return nil
}

// Upsert writes points in a single batch request.
func (s *Store) Upsert(ctx context.Context, name string, points []model.Point) error {
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload := make(map[string]*qdrant.Value, len(p.Payload))
		for k, v := range p.Payload {
			val, err := qdrant.NewValue(v)
			if err != nil {
				return fmt.Errorf("qdrant: convert payload key %q: %w", k, err)
			}
			payload[k] = val
		}
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		})
	}
	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: name, Points: structs}); err != nil {
		return fmt.Errorf("qdrant: upsert into %q: %w", name, err)
	}
	return nil
}

// Search performs a cosine-similarity search, optionally constrained by
// filter and minScore.
func (s *Store) Search(ctx context.Context, name string, vector []float32, k int, minScore float32, filter *vectorstore.Filter) ([]vectorstore.Hit, error) {
	req := &qdrant.SearchPoints{
		CollectionName: name,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	}
	if minScore > 0 {
		req.ScoreThreshold = &minScore
	}
	if filter != nil {
		req.Filter = buildFilter(filter)
	}

	result, err := s.client.GetPointsClient().Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant: search %q: %w", name, err)
	}
	return convertHits(result.Result), nil
}

// Count returns the number of points in the collection.
func (s *Store) Count(ctx context.Context, name string) (int64, error) {
	exact := true
	resp, err := s.client.GetPointsClient().Count(ctx, &qdrant.CountPoints{CollectionName: name, Exact: &exact})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count %q: %w", name, err)
	}
	return int64(resp.GetResult().GetCount()), nil
}

// DeleteByFilter removes every point matching filter.
func (s *Store) DeleteByFilter(ctx context.Context, name string, filter *vectorstore.Filter) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: buildFilter(filter)},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete by filter in %q: %w", name, err)
	}
	return nil
}

// Close releases the gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// buildFilter translates vectorstore.Filter's must/should/must_not
// equality predicates into Qdrant's condition tree (spec §4.4).
func buildFilter(f *vectorstore.Filter) *qdrant.Filter {
	if f == nil {
		return nil
	}
	return &qdrant.Filter{
		Must:    conditions(f.Must),
		Should:  conditions(f.Should),
		MustNot: conditions(f.MustNot),
	}
}

func conditions(ops []vectorstore.FilterOp) []*qdrant.Condition {
	out := make([]*qdrant.Condition, 0, len(ops))
	for _, op := range ops {
		val, err := qdrant.NewValue(op.Value)
		if err != nil {
			continue
		}
		out = append(out, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   op.Key,
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: val.GetStringValue()}},
				},
			},
		})
	}
	return out
}

func convertHits(points []*qdrant.ScoredPoint) []vectorstore.Hit {
	hits := make([]vectorstore.Hit, 0, len(points))
	for _, p := range points {
		var id string
		if p.Id != nil {
			switch v := p.Id.PointIdOptions.(type) {
			case *qdrant.PointId_Uuid:
				id = v.Uuid
			case *qdrant.PointId_Num:
				id = fmt.Sprintf("%d", v.Num)
			}
		}
		payload := make(map[string]any, len(p.Payload))
		for k, v := range p.Payload {
			payload[k] = decodeValue(v)
		}
		hits = append(hits, vectorstore.Hit{ID: id, Score: p.Score, Payload: payload})
	}
	return hits
}

func decodeValue(v *qdrant.Value) any {
	switch k := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_ListValue:
		if k.ListValue == nil {
			return nil
		}
		list := make([]any, len(k.ListValue.Values))
		for i, item := range k.ListValue.Values {
			list[i] = decodeValue(item)
		}
		return list
	default:
		return nil
	}
}
