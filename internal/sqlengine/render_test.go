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

package sqlengine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTable_EmptyRows(t *testing.T) {
	got := renderTable(nil)
	assert.Equal(t, "Không tìm thấy dữ liệu phù hợp với yêu cầu của bạn.", got)
}

func TestRenderTable_MergesRowsDifferingOnlyByKhoi(t *testing.T) {
	rows := []Row{
		{"nam": 2024, "ten_truong": "Học viện Kỹ thuật Quân sự", "diem_chuan": 26.0, "ma_khoi": "A00"},
		{"nam": 2024, "ten_truong": "Học viện Kỹ thuật Quân sự", "diem_chuan": 26.0, "ma_khoi": "A01"},
	}
	got := renderTable(rows)
	lines := strings.Split(got, "\n")
	// Header + separator + exactly one merged data row.
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[2], "A00, A01")
}

func TestRenderTable_KeepsDistinctGroupsSeparate(t *testing.T) {
	rows := []Row{
		{"nam": 2023, "ten_truong": "Trường A", "diem_chuan": 20.0},
		{"nam": 2024, "ten_truong": "Trường A", "diem_chuan": 22.0},
	}
	got := renderTable(rows)
	lines := strings.Split(got, "\n")
	assert.Len(t, lines, 4) // header + separator + 2 distinct rows
}

func TestRenderTable_DeduplicatesRepeatedKhoi(t *testing.T) {
	rows := []Row{
		{"nam": 2024, "ten_truong": "Trường A", "diem_chuan": 25.0, "ma_khoi": "A00"},
		{"nam": 2024, "ten_truong": "Trường A", "diem_chuan": 25.0, "ma_khoi": "A00"},
	}
	got := renderTable(rows)
	lines := strings.Split(got, "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, 1, strings.Count(lines[2], "A00"))
}

func TestRenderTable_TrimsCellWhitespaceViaFormatCell(t *testing.T) {
	rows := []Row{
		{"nam": 2024, "ten_truong": "Trường A", "diem_chuan": 25.0, "ghi_chu": "  đạt  "},
	}
	got := renderTable(rows)
	assert.Contains(t, got, "đạt")
	assert.NotContains(t, got, "  đạt  |")
}
