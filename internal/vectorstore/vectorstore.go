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

// Package vectorstore defines component C4: a thin contract over a
// cosine-similarity vector database with payload filters and batch
// upsert. Concrete backends (qdrant, chromem, pinecone) live in
// subpackages and are selected by config at startup.
package vectorstore

import (
	"context"

	"github.com/nhdandz/tsbot/internal/model"
)

// Hit is one search result: an id, a cosine score, and its payload.
type Hit struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// FilterOp is an equality predicate on a payload field.
type FilterOp struct {
	Key   string
	Value any
}

// Filter composes Must/Should/MustNot equality predicates, per spec
// §4.4.
type Filter struct {
	Must    []FilterOp
	Should  []FilterOp
	MustNot []FilterOp
}

// Store is the vector-store adapter contract (spec §4.4).
type Store interface {
	// CreateCollection creates a cosine-metric collection of the given
	// dimension if it does not already exist.
	CreateCollection(ctx context.Context, name string, dim int) error

	// Upsert adds or replaces points in name, in caller-supplied batches
	// (spec §4.2 build step 4, §5 backpressure).
	Upsert(ctx context.Context, name string, points []model.Point) error

	// Search returns up to k hits ordered by score desc, optionally
	// filtered by payload and/or a minimum score.
	Search(ctx context.Context, name string, vector []float32, k int, minScore float32, filter *Filter) ([]Hit, error)

	// Count returns the number of points in the collection.
	Count(ctx context.Context, name string) (int64, error)

	// DeleteByFilter removes every point matching filter.
	DeleteByFilter(ctx context.Context, name string, filter *Filter) error

	// Close releases any held connections.
	Close() error
}

// Collection names fixed by spec §6 "External interfaces".
const (
	CollectionLegalDocuments = "legal_documents"
	CollectionSQLExamples    = "sql_examples"
	CollectionIntents        = "intents"
)
