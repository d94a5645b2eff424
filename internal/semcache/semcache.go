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

// Package semcache implements component C7: an answer-level query
// cache keyed by embedding cosine similarity rather than exact text
// match, so paraphrased queries still hit. Caching is answer-level, not
// retrieval-level, to preserve determinism of a re-run pipeline (spec
// §4.7).
package semcache

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nhdandz/tsbot/internal/model"
	"github.com/nhdandz/tsbot/internal/vecmath"
)

const (
	// DefaultMaxEntries is N_max (spec §4.7).
	DefaultMaxEntries = 200
	// DefaultThreshold is θ_cache (spec §4.7 step 2).
	DefaultThreshold = 0.92
	// sweepAt triggers a lazy full sweep of expired entries once the
	// backing map grows past this size, per spec §4.7 step 1.
	sweepAt = 1000
)

// Cache is a bounded, TTL-expiring, cosine-similarity query cache. All
// operations are guarded by a single mutex (spec §5 "Shared resources").
type Cache struct {
	mu        sync.Mutex
	entries   *lru.Cache[string, *model.CacheEntry]
	ttl       time.Duration
	threshold float64
}

// New constructs a Cache. maxEntries and ttl default to the spec
// constants when zero/negative.
func New(maxEntries int, ttl time.Duration, threshold float64) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	backing, _ := lru.New[string, *model.CacheEntry](maxEntries)
	return &Cache{entries: backing, ttl: ttl, threshold: threshold}
}

// Key hashes the lowercased query text, for logging/debugging only —
// lookup itself is by cosine similarity, not by this key.
func Key(query string) string {
	sum := md5.Sum([]byte(strings.ToLower(query)))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached response for the best cosine match at or
// above the cache's threshold, or (nil, false) on a miss. Expired
// entries are skipped and, once the cache has grown past sweepAt,
// purged as a side effect (spec §4.7 step 1).
func (c *Cache) Lookup(queryVector []float32) (*model.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	keys := c.entries.Keys()
	if len(keys) > sweepAt {
		c.sweepLocked(now)
		keys = c.entries.Keys()
	}

	var best *model.CacheEntry
	bestScore := -1.0
	for _, k := range keys {
		entry, ok := c.entries.Peek(k)
		if !ok || now.Sub(entry.CreatedAt) > c.ttl {
			continue
		}
		if score := vecmath.Cosine(queryVector, entry.QueryVector); score > bestScore {
			bestScore = score
			best = entry
		}
	}
	if best == nil || bestScore < c.threshold {
		return nil, false
	}
	return best, true
}

// Insert adds a new entry, evicting the oldest if the cache is full
// (spec §4.7 "Insert"). Lookup only ever Peeks, never Gets, so the
// underlying LRU's recency order stays equal to insertion order and its
// eviction is exactly "drop oldest", not "drop least recently read".
func (c *Cache) Insert(queryText string, queryVector []float32, response any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Add(Key(queryText)+"#"+strconv.FormatInt(time.Now().UnixNano(), 10), &model.CacheEntry{
		QueryText:   queryText,
		QueryVector: queryVector,
		Response:    response,
		CreatedAt:   time.Now(),
	})
}

// sweepLocked removes every expired entry. Callers must hold c.mu.
func (c *Cache) sweepLocked(now time.Time) {
	for _, k := range c.entries.Keys() {
		entry, ok := c.entries.Peek(k)
		if ok && now.Sub(entry.CreatedAt) > c.ttl {
			c.entries.Remove(k)
		}
	}
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
