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

package semcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_MissOnEmptyCache(t *testing.T) {
	c := New(10, time.Hour, 0.9)
	_, ok := c.Lookup([]float32{1, 0, 0})
	assert.False(t, ok)
}

func TestCache_HitAboveThreshold(t *testing.T) {
	c := New(10, time.Hour, 0.9)
	c.Insert("điểm chuẩn năm 2024", []float32{1, 0, 0}, "26 điểm")

	entry, ok := c.Lookup([]float32{1, 0, 0})
	require.True(t, ok)
	assert.Equal(t, "26 điểm", entry.Response)
}

func TestCache_MissBelowThreshold(t *testing.T) {
	c := New(10, time.Hour, 0.99)
	c.Insert("điểm chuẩn năm 2024", []float32{1, 0, 0}, "26 điểm")

	// Orthogonal vector: cosine similarity 0, well below threshold.
	_, ok := c.Lookup([]float32{0, 1, 0})
	assert.False(t, ok)
}

func TestCache_PicksBestMatchAmongMultipleEntries(t *testing.T) {
	c := New(10, time.Hour, 0.5)
	c.Insert("câu hỏi xa", []float32{0, 1, 0}, "xa")
	c.Insert("câu hỏi gần", []float32{0.99, 0.01, 0}, "gan")

	entry, ok := c.Lookup([]float32{1, 0, 0})
	require.True(t, ok)
	assert.Equal(t, "gan", entry.Response)
}

func TestCache_ExpiredEntryIsNotReturned(t *testing.T) {
	c := New(10, 10*time.Millisecond, 0.5)
	c.Insert("câu hỏi cũ", []float32{1, 0, 0}, "old answer")

	time.Sleep(25 * time.Millisecond)

	_, ok := c.Lookup([]float32{1, 0, 0})
	assert.False(t, ok, "expired entries must not be returned even at a perfect similarity match")
}

func TestCache_DefaultsAppliedForInvalidParams(t *testing.T) {
	c := New(0, 0, 0)
	assert.Equal(t, DefaultThreshold, c.threshold)
	assert.Equal(t, 24*time.Hour, c.ttl)
}

func TestCache_LenTracksInserts(t *testing.T) {
	c := New(10, time.Hour, 0.9)
	assert.Equal(t, 0, c.Len())
	c.Insert("a", []float32{1, 0}, "r1")
	c.Insert("b", []float32{0, 1}, "r2")
	assert.Equal(t, 2, c.Len())
}

func TestKey_IsCaseInsensitiveAndDeterministic(t *testing.T) {
	assert.Equal(t, Key("Điểm Chuẩn"), Key("điểm chuẩn"))
	assert.NotEqual(t, Key("a"), Key("b"))
}
