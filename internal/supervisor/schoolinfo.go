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

package supervisor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nhdandz/tsbot/internal/answer"
	"github.com/nhdandz/tsbot/internal/llm"
	"github.com/nhdandz/tsbot/internal/model"
	"github.com/nhdandz/tsbot/internal/normalize"
)

// SchoolLookup resolves the school_info node (spec §4.15): look up one
// school by name from the relational store, fetch its majors, and
// narrate the result the way sqlengine narrates a result table.
type SchoolLookup struct {
	db    *sql.DB
	model llm.LLM
}

// NewSchoolLookup constructs a SchoolLookup. model may be nil, in which
// case narration falls back to a templated summary.
func NewSchoolLookup(db *sql.DB, model llm.LLM) *SchoolLookup {
	return &SchoolLookup{db: db, model: model}
}

// Lookup implements the SchoolInfo interface: finds the school whose
// name is referenced in query, fetches its active majors, and returns a
// narrated answer plus citation sources. found is false when no school
// name in query matches a row.
func (l *SchoolLookup) Lookup(ctx context.Context, query string) (string, []answer.Source, bool, error) {
	school, err := l.matchSchool(ctx, query)
	if err != nil {
		return "", nil, false, fmt.Errorf("schoolinfo: match school: %w", err)
	}
	if school == nil {
		return "", nil, false, nil
	}

	majors, err := l.majorsFor(ctx, school.ID)
	if err != nil {
		return "", nil, false, fmt.Errorf("schoolinfo: load majors: %w", err)
	}

	text := l.narrate(ctx, query, *school, majors)
	source := answer.Source{
		Document:       school.TenTruong,
		Content:        l.formatDetail(*school, majors),
		ContentPreview: school.MoTa,
		Score:          1.0,
	}
	return text, []answer.Source{source}, true, nil
}

// matchSchool scans every active school and returns the first whose
// name (accent-stripped, case-insensitive) appears in query. The
// school table is small enough that a full scan per lookup is cheap
// and avoids depending on a fuzzy-search extension.
func (l *SchoolLookup) matchSchool(ctx context.Context, query string) (*model.School, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id, ma_truong, ten_truong, ten_khong_dau, loai_truong, dia_chi, website, mo_ta, active FROM truong WHERE active = true`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	normalizedQuery := normalize.Normalize(query)
	var best *model.School
	for rows.Next() {
		var s model.School
		if err := rows.Scan(&s.ID, &s.MaTruong, &s.TenTruong, &s.TenKhongDau, &s.LoaiTruong, &s.DiaChi, &s.Website, &s.MoTa, &s.Active); err != nil {
			return nil, err
		}
		if s.TenKhongDau != "" && strings.Contains(normalizedQuery, normalize.Normalize(s.TenKhongDau)) {
			return &s, nil
		}
		if best == nil && strings.Contains(normalizedQuery, normalize.Normalize(s.TenTruong)) {
			best = &s
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return best, nil
}

func (l *SchoolLookup) majorsFor(ctx context.Context, schoolID int64) ([]model.Major, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id, truong_id, ma_nganh, ten_nganh, mo_ta, active FROM nganh WHERE truong_id = ? AND active = true`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var majors []model.Major
	for rows.Next() {
		var m model.Major
		if err := rows.Scan(&m.ID, &m.TruongID, &m.MaNganh, &m.TenNganh, &m.MoTa, &m.Active); err != nil {
			return nil, err
		}
		majors = append(majors, m)
	}
	return majors, rows.Err()
}

func (l *SchoolLookup) formatDetail(school model.School, majors []model.Major) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\nĐịa chỉ: %s\nWebsite: %s\n", school.TenTruong, school.MaTruong, school.DiaChi, school.Website)
	if len(majors) > 0 {
		b.WriteString("Các ngành đào tạo:\n")
		for _, m := range majors {
			fmt.Fprintf(&b, "- %s (%s)\n", m.TenNganh, m.MaNganh)
		}
	}
	return b.String()
}

func (l *SchoolLookup) narrate(ctx context.Context, query string, school model.School, majors []model.Major) string {
	detail := l.formatDetail(school, majors)
	if l.model == nil {
		return detail
	}
	prompt := fmt.Sprintf("Câu hỏi: %s\n\nThông tin trường:\n%s\n\nViết một đoạn trả lời ngắn gọn, tự nhiên bằng tiếng Việt dựa trên thông tin trên.", query, detail)
	text, err := l.model.Generate(ctx, prompt, "")
	if err != nil || text == "" {
		return detail
	}
	return text
}
