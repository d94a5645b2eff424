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
	"fmt"
	"strings"
)

// systemPrompt fixes the target view, column semantics, and the 14
// imperative rules required by spec §4.14 step 3. Ported and expanded
// from original_source/src/agents/sql_agent.py::SQL_SYSTEM_PROMPT, whose
// six rules are the seed for rules 1-6 below.
const systemPrompt = `Bạn là chuyên gia SQL cho hệ thống tra cứu điểm chuẩn tuyển sinh quân sự Việt Nam.

## View duy nhất được phép truy vấn:
view_tra_cuu_diem(diem_chuan_id, ma_truong, ten_truong, ten_khong_dau, loai_truong, ma_nganh, ten_nganh, ma_khoi, ten_khoi, mon_hoc, nam, diem_chuan, chi_tieu, gioi_tinh, khu_vuc, doi_tuong, ghi_chu)

## Quy tắc bắt buộc:
1. Luôn dùng view_tra_cuu_diem, không truy cập bảng gốc.
2. Chỉ sinh câu lệnh SELECT, không bao giờ sửa đổi dữ liệu.
3. Dùng ILIKE trên ten_khong_dau (không dấu) khi tìm theo tên trường/ngành.
4. Giá trị gioi_tinh chỉ là 'nam' hoặc 'nu', chữ thường, không dấu.
5. Giá trị khu_vuc chỉ là 'mien_bac' hoặc 'mien_nam', chữ thường.
6. Luôn chọn một tập cột giới hạn, có ý nghĩa với câu hỏi, không dùng SELECT *.
7. Luôn thêm LIMIT nếu câu hỏi không tự giới hạn theo năm/trường cụ thể.
8. Mặc định lấy năm gần nhất khi câu hỏi không nêu năm.
9. Khi so sánh nhiều năm, dùng GROUP BY và các cột MAX(CASE WHEN ...) thay vì JOIN nhiều lần.
10. Khi câu hỏi hỏi "có thể vào trường nào", lọc diem_chuan <= điểm đã cho.
11. Sắp xếp kết quả theo cột có ý nghĩa nhất với câu hỏi (diem_chuan, ten_truong, …).
12. Không dùng comment SQL (--, /*) trong câu lệnh sinh ra.
13. Không bao giờ sinh nhiều câu lệnh; chỉ một SELECT kết thúc bằng dấu chấm phẩy.
14. Chỉ trả về câu SQL, không giải thích, không markdown.`

// validationPrompt is the optional grader-LLM JSON check (spec §4.14
// step 6), ported from SQL_VALIDATION_PROMPT.
const validationPrompt = `Kiểm tra câu SQL sau có hợp lệ và an toàn không.

SQL: %s

Trả về JSON: {"valid": true/false, "error": "mô tả lỗi nếu có"}

Kiểm tra:
1. Không có DROP, DELETE, UPDATE, INSERT, ALTER, TRUNCATE
2. Cú pháp đúng
3. Chỉ tham chiếu view_tra_cuu_diem
4. Có LIMIT để tránh quá nhiều kết quả`

func (e *Engine) generateSQL(ctx context.Context, query string, examples []Example, entities Entities, errorHistory []string) (string, error) {
	var exampleLines []string
	for _, ex := range examples {
		exampleLines = append(exampleLines, fmt.Sprintf("Câu hỏi: %s\nSQL: %s", ex.Question, ex.SQL))
	}
	examplesText := strings.Join(exampleLines, "\n\n")

	var errorContext string
	if len(errorHistory) > 0 {
		recent := errorHistory
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		errorContext = "\n\nCác lỗi trước đó cần tránh:\n"
		for _, msg := range recent {
			errorContext += "- " + msg + "\n"
		}
	}

	var entityParts []string
	if entities.HasYear {
		entityParts = append(entityParts, fmt.Sprintf("Năm: %d", entities.Year))
	}
	if entities.HasScore {
		entityParts = append(entityParts, fmt.Sprintf("Điểm: %.2f", entities.Score))
	}
	if entities.KhoiThi != "" {
		entityParts = append(entityParts, "Khối: "+entities.KhoiThi)
	}
	if entities.Gender != "" {
		entityParts = append(entityParts, "Giới tính: "+entities.Gender)
	}
	if entities.Region != "" {
		entityParts = append(entityParts, "Khu vực: "+entities.Region)
	}
	var entityContext string
	if len(entityParts) > 0 {
		entityContext = "\n\nThông tin trích xuất: " + strings.Join(entityParts, ", ")
	}

	prompt := fmt.Sprintf("## Ví dụ:\n%s\n%s%s\n\n## Câu hỏi cần trả lời:\n%s\n\n## SQL:",
		examplesText, errorContext, entityContext, query)

	response, err := e.model.Generate(ctx, prompt, systemPrompt)
	if err != nil {
		return "", fmt.Errorf("sqlengine: generate: %w", err)
	}
	return extractSQL(response), nil
}

func (e *Engine) narrate(ctx context.Context, query string, rows []Row) (string, error) {
	table := renderTable(rows)
	if len(rows) == 0 {
		return "Không tìm thấy dữ liệu phù hợp với yêu cầu của bạn.", nil
	}

	prompt := fmt.Sprintf("Câu hỏi: %s\n\nSố dòng kết quả: %d\n\nViết 1-3 câu giới thiệu ngắn gọn, tự nhiên cho bảng kết quả bên dưới. Không liệt kê lại số liệu, chỉ nêu tổng quan.",
		query, len(rows))

	intro, err := e.model.Generate(ctx, prompt, "Bạn là trợ lý tư vấn tuyển sinh quân sự. Trả lời ngắn gọn, tự nhiên.")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(intro) + "\n\n" + table, nil
}
