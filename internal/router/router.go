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

// Package router implements component C5: a semantic router that
// embeds every route's exemplars once at startup, then classifies a
// query by nearest-exemplar cosine similarity. No state is mutated on a
// route call; cached embeddings live for the process lifetime.
package router

import (
	"context"
	"fmt"

	"github.com/nhdandz/tsbot/internal/model"
	"github.com/nhdandz/tsbot/internal/vecmath"
)

const (
	// DefaultThreshold is θ_router (spec §4.5 step 3).
	DefaultThreshold = 0.85
	// BestOfFloor is the lower bound of the "best-of" secondary-rule
	// band [0.75, θ_router) (spec §4.5 step 4).
	BestOfFloor = 0.75

	// UnknownIntent is returned when no route clears the threshold.
	UnknownIntent = "unknown"
)

// Embedder is the subset of embedder.Embedder the router needs.
type Embedder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	EncodeQuery(ctx context.Context, text string) ([]float32, error)
}

// Result is the outcome of a routing decision.
type Result struct {
	Intent         string
	Confidence     float64
	PerIntentScore map[string]float64
	Matched        bool
	// BestOfEligible is true when Confidence falls in
	// [BestOfFloor, DefaultThreshold) — the caller may still accept
	// Intent if it explicitly enables best-of mode (spec §4.5 step 4).
	BestOfEligible bool
}

// Router classifies queries against a fixed set of labelled routes.
type Router struct {
	threshold float64
	routes    []model.Route
	embedder  Embedder
	exemplars map[string][][]float32
}

// New constructs a Router. Exemplar embeddings are computed lazily on
// the first call to Route (or eagerly via Warm), so construction never
// blocks on the embedding service.
func New(routes []model.Route, embedder Embedder, threshold float64) *Router {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Router{threshold: threshold, routes: routes, embedder: embedder}
}

// Warm precomputes exemplar embeddings for every route, so the first
// real Route call isn't the one paying the embedding-service latency.
func (r *Router) Warm(ctx context.Context) error {
	if r.exemplars != nil {
		return nil
	}
	exemplars := make(map[string][][]float32, len(r.routes))
	for _, route := range r.routes {
		vectors, err := r.embedder.Encode(ctx, route.Examples)
		if err != nil {
			return fmt.Errorf("router: embed examples for route %q: %w", route.Name, err)
		}
		exemplars[route.Name] = vectors
	}
	r.exemplars = exemplars
	return nil
}

// Route classifies query against every route's exemplars and returns
// the best match (spec §4.5).
func (r *Router) Route(ctx context.Context, query string) (Result, error) {
	if err := r.Warm(ctx); err != nil {
		return Result{}, err
	}

	queryVector, err := r.embedder.EncodeQuery(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("router: embed query: %w", err)
	}

	scores := make(map[string]float64, len(r.routes))
	bestIntent := UnknownIntent
	bestScore := 0.0
	for _, route := range r.routes {
		score := vecmath.MaxCosine(queryVector, r.exemplars[route.Name])
		scores[route.Name] = score
		if score > bestScore {
			bestScore = score
			bestIntent = route.Name
		}
	}

	result := Result{Intent: UnknownIntent, Confidence: bestScore, PerIntentScore: scores}
	if bestScore >= r.threshold {
		result.Intent = bestIntent
		result.Matched = true
		return result, nil
	}
	if bestScore >= BestOfFloor {
		result.Intent = bestIntent
		result.BestOfEligible = true
	}
	return result, nil
}

// RouteInfo returns the route definition by name, or nil if absent.
func (r *Router) RouteInfo(name string) *model.Route {
	for i := range r.routes {
		if r.routes[i].Name == name {
			return &r.routes[i]
		}
	}
	return nil
}

// AddRoute registers a new route and invalidates cached exemplar
// embeddings so the next Route call re-warms (spec §4.5's router is
// otherwise static, but supports dynamic route registration for
// deployments that load routes from a config file, SPEC_FULL.md §6).
func (r *Router) AddRoute(route model.Route) {
	r.routes = append(r.routes, route)
	r.exemplars = nil
}
