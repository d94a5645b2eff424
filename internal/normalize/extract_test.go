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

package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractYear(t *testing.T) {
	cases := []struct {
		name string
		text string
		want int
		ok   bool
	}{
		{"full four-digit year", "Điểm chuẩn năm 2024 là bao nhiêu?", 2024, true},
		{"short form below 50 maps to 20xx", "điểm chuẩn năm 23", 2023, true},
		{"short form at or above 50 maps to 19xx", "năm 99 có gì đặc biệt", 1999, true},
		{"no year present", "điểm chuẩn khối A00", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractYear(tc.text)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestExtractScore(t *testing.T) {
	cases := []struct {
		name string
		text string
		want float64
		ok   bool
	}{
		{"score with label", "điểm chuẩn là 26.5 điểm", 26.5, true},
		{"comma decimal", "đạt 24,75 điểm", 24.75, true},
		{"bare number in plausible range", "tôi được 27", 27, true},
		{"no score present", "thông tin về trường", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractScore(tc.text)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.InDelta(t, tc.want, got, 1e-9)
			}
		})
	}
}

func TestExtractKhoiThi(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"explicit code", "xét tuyển khối A00", "A00", true},
		{"textual form", "khối a năm nay", "A00", true},
		{"textual form with no diacritics", "khoi d nam nay", "D01", true},
		{"no khoi present", "thông tin chung", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractKhoiThi(tc.text)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractGender(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		// Literal spec §8 end-to-end scenario 2 query.
		{"accented nữ matches despite ASCII-only \\b", "Điểm chuẩn nữ Học viện Kỹ thuật Quân sự qua các năm", "nu", true},
		{"unaccented nu form", "diem chuan nu hoc vien", "nu", true},
		{"male gender", "điểm chuẩn nam sinh", "nam", true},
		{"no gender present", "điểm chuẩn khối A00", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractGender(tc.text)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractRegion(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"miền bắc accented", "trường ở miền bắc", "mien_bac", true},
		{"mien nam unaccented", "truong o mien nam", "mien_nam", true},
		{"no region present", "điểm chuẩn khối A00", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractRegion(tc.text)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
