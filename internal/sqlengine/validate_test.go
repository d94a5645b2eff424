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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_RejectsForbiddenKeywords(t *testing.T) {
	e := &Engine{}
	cases := []string{
		"DROP TABLE view_tra_cuu_diem",
		"SELECT * FROM view_tra_cuu_diem; DELETE FROM view_tra_cuu_diem",
		"UPDATE view_tra_cuu_diem SET diem_chuan = 0",
		"SELECT * FROM view_tra_cuu_diem -- comment",
		"SELECT * FROM view_tra_cuu_diem /* comment */",
	}
	for _, sql := range cases {
		ok, reason := e.validate(context.Background(), sql)
		assert.False(t, ok, "expected %q to be rejected", sql)
		assert.NotEmpty(t, reason)
	}
}

func TestValidate_RequiresSelectPrefix(t *testing.T) {
	e := &Engine{}
	ok, reason := e.validate(context.Background(), "WITH cte AS (SELECT 1) SELECT * FROM cte")
	assert.False(t, ok)
	assert.Contains(t, reason, "SELECT")
}

func TestValidate_AcceptsSafeSelect(t *testing.T) {
	e := &Engine{}
	ok, _ := e.validate(context.Background(), "SELECT ten_truong, diem_chuan FROM view_tra_cuu_diem WHERE nam = 2024 LIMIT 50;")
	assert.True(t, ok)
}

func TestValidate_NoGraderSkipsGraderPass(t *testing.T) {
	// grader is nil: validate must not attempt to call it and must not
	// panic.
	e := &Engine{grader: nil}
	ok, reason := e.validate(context.Background(), "SELECT 1 FROM view_tra_cuu_diem")
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestExtractSQL_StripsMarkdownFenceAndThinkTags(t *testing.T) {
	raw := "<think>reasoning about the query</think>```sql\nSELECT * FROM view_tra_cuu_diem WHERE nam = 2024\n```"
	got := extractSQL(raw)
	assert.Equal(t, "SELECT * FROM view_tra_cuu_diem WHERE nam = 2024;", got)
}

func TestExtractSQL_TakesFirstSelectOnly(t *testing.T) {
	raw := "SELECT a FROM t1; SELECT b FROM t2;"
	got := extractSQL(raw)
	assert.Equal(t, "SELECT a FROM t1;", got)
}

func TestValueFix_OverridesGenderAndRegionLiterals(t *testing.T) {
	sql := "SELECT * FROM view_tra_cuu_diem WHERE gioi_tinh = 'nam' AND khu_vuc = 'mien_nam'"
	fixed := valueFix(sql, Entities{Gender: "nu", Region: "mien_bac"})
	require.Contains(t, fixed, "gioi_tinh = 'nu'")
	require.Contains(t, fixed, "khu_vuc = 'mien_bac'")
	assert.NotContains(t, fixed, "'nam'")
	assert.NotContains(t, fixed, "'mien_nam'")
}

func TestValueFix_LeavesSQLUnchangedWhenNoEntities(t *testing.T) {
	sql := "SELECT * FROM view_tra_cuu_diem WHERE gioi_tinh = 'nam'"
	fixed := valueFix(sql, Entities{})
	assert.Equal(t, sql, fixed)
}
