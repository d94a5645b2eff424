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
	"fmt"
	"sort"
	"strings"
)

// groupColumns are the columns that define row identity for merging;
// rows sharing all of these differ only in ma_khoi, which is merged
// into a single comma-joined cell (spec §4.14 step 8).
var groupColumns = []string{"nam", "ten_truong", "ten_nganh", "gioi_tinh", "khu_vuc", "diem_chuan", "chi_tieu", "ghi_chu"}

type groupedRow struct {
	key     string
	values  map[string]string
	khois   []string
	seenKhoi map[string]bool
	order   int
}

// renderTable builds a deterministic markdown table in code, grouping
// rows that share groupColumns and merging distinct ma_khoi values with
// ", " (spec §4.14 step 8). Rendering never goes through the LLM.
func renderTable(rows []Row) string {
	if len(rows) == 0 {
		return "Không tìm thấy dữ liệu phù hợp với yêu cầu của bạn."
	}

	present := presentColumns(rows)
	groups := groupRows(rows, present)

	var cols []string
	for _, c := range groupColumns {
		if present[c] {
			cols = append(cols, c)
		}
	}
	if present["ma_khoi"] {
		cols = append(cols, "ma_khoi")
	}

	var b strings.Builder
	b.WriteString("| " + strings.Join(headerLabels(cols), " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(cols)) + "\n")
	for _, g := range groups {
		cells := make([]string, 0, len(cols))
		for _, c := range cols {
			if c == "ma_khoi" {
				cells = append(cells, strings.Join(g.khois, ", "))
				continue
			}
			cells = append(cells, g.values[c])
		}
		fmt.Fprintf(&b, "| %s |\n", strings.Join(cells, " | "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func presentColumns(rows []Row) map[string]bool {
	present := make(map[string]bool)
	for _, r := range rows {
		for k := range r {
			present[k] = true
		}
	}
	return present
}

func groupRows(rows []Row, present map[string]bool) []*groupedRow {
	index := make(map[string]*groupedRow)
	var order []*groupedRow

	for i, r := range rows {
		key := groupKey(r, present)
		g, ok := index[key]
		if !ok {
			g = &groupedRow{key: key, values: make(map[string]string), seenKhoi: make(map[string]bool), order: i}
			for _, c := range groupColumns {
				if present[c] {
					g.values[c] = formatCell(r[c])
				}
			}
			index[key] = g
			order = append(order, g)
		}
		if present["ma_khoi"] {
			khoi := formatCell(r["ma_khoi"])
			if khoi != "" && !g.seenKhoi[khoi] {
				g.seenKhoi[khoi] = true
				g.khois = append(g.khois, khoi)
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool { return order[i].order < order[j].order })
	return order
}

func groupKey(r Row, present map[string]bool) string {
	var parts []string
	for _, c := range groupColumns {
		if present[c] {
			parts = append(parts, formatCell(r[c]))
		}
	}
	return strings.Join(parts, "\x1f")
}

func formatCell(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}

func headerLabels(cols []string) []string {
	labels := map[string]string{
		"nam":        "Năm",
		"ten_truong": "Trường",
		"ten_nganh":  "Ngành",
		"gioi_tinh":  "Giới tính",
		"khu_vuc":    "Khu vực",
		"diem_chuan": "Điểm chuẩn",
		"chi_tieu":   "Chỉ tiêu",
		"ghi_chu":    "Ghi chú",
		"ma_khoi":    "Khối thi",
	}
	out := make([]string, len(cols))
	for i, c := range cols {
		if label, ok := labels[c]; ok {
			out[i] = label
		} else {
			out[i] = c
		}
	}
	return out
}
