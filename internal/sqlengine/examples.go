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

	"github.com/nhdandz/tsbot/internal/vectorstore"
)

// Example is one (question, SQL) few-shot pair.
type Example struct {
	Question string
	SQL      string
	Score    float64
}

// fewShotExamples embeds query and searches the sql_examples collection,
// per spec §4.14 step 2.
func (e *Engine) fewShotExamples(ctx context.Context, query string) ([]Example, error) {
	vec, err := e.embed.EncodeQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := e.vectors.Search(ctx, vectorstore.CollectionSQLExamples, vec, e.fewShotCount, e.fewShotMinScr, nil)
	if err != nil {
		return nil, err
	}
	examples := make([]Example, 0, len(hits))
	for _, h := range hits {
		q, _ := h.Payload["question"].(string)
		s, _ := h.Payload["sql"].(string)
		if q == "" || s == "" {
			continue
		}
		examples = append(examples, Example{Question: q, SQL: s, Score: float64(h.Score)})
	}
	if len(examples) == 0 {
		return nil, nil
	}
	return examples, nil
}

// defaultExamples is the hardcoded fallback used when semantic few-shot
// retrieval fails (spec §4.14 step 2), ported from the original's
// _get_default_examples.
func defaultExamples() []Example {
	return []Example{
		{
			Question: "Điểm chuẩn Học viện Kỹ thuật Quân sự năm 2024?",
			SQL: `SELECT ten_truong, ten_nganh, ma_khoi, diem_chuan, chi_tieu
FROM view_tra_cuu_diem
WHERE ten_khong_dau LIKE '%hoc vien ky thuat quan su%' AND nam = 2024
ORDER BY ten_nganh, ma_khoi
LIMIT 50;`,
		},
		{
			Question: "Với 25 điểm khối A, tôi có thể vào trường nào năm 2024?",
			SQL: `SELECT DISTINCT ten_truong, ten_nganh, ma_khoi, diem_chuan
FROM view_tra_cuu_diem
WHERE diem_chuan <= 25 AND ma_khoi = 'A00' AND nam = 2024
ORDER BY diem_chuan DESC
LIMIT 20;`,
		},
		{
			Question: "So sánh điểm chuẩn các trường quân đội năm 2023 và 2024?",
			SQL: `SELECT ten_truong, ten_nganh, ma_khoi,
    MAX(CASE WHEN nam = 2023 THEN diem_chuan END) AS diem_2023,
    MAX(CASE WHEN nam = 2024 THEN diem_chuan END) AS diem_2024
FROM view_tra_cuu_diem
WHERE nam IN (2023, 2024) AND loai_truong = 'quan_doi'
GROUP BY ten_truong, ten_nganh, ma_khoi
ORDER BY ten_truong, ten_nganh
LIMIT 50;`,
		},
		{
			Question: "Điểm chuẩn ngành công nghệ thông tin cho nữ năm 2024?",
			SQL: `SELECT ten_truong, ten_nganh, ma_khoi, diem_chuan, chi_tieu
FROM view_tra_cuu_diem
WHERE ten_khong_dau LIKE '%cong nghe thong tin%' AND gioi_tinh = 'nu' AND nam = 2024
ORDER BY diem_chuan DESC
LIMIT 50;`,
		},
		{
			Question: "Trường nào ở miền Bắc tuyển sinh khối D01 năm 2024?",
			SQL: `SELECT DISTINCT ten_truong, ten_nganh, ma_khoi, diem_chuan
FROM view_tra_cuu_diem
WHERE khu_vuc = 'mien_bac' AND ma_khoi = 'D01' AND nam = 2024
ORDER BY ten_truong
LIMIT 50;`,
		},
	}
}
