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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nhdandz/tsbot/internal/tracing"
)

// Row is one generic result row, column name to scanned value. Only the
// columns view_tra_cuu_diem exposes are ever present.
type Row map[string]any

// execute wraps doExecute in a span, per spec §5's "trace every
// external call" ambient requirement.
func (e *Engine) execute(ctx context.Context, sqlText string) ([]Row, error) {
	ctx, span := tracing.StartSpan(ctx, "tsbot.sqlengine", "sqlengine.execute")
	defer span.End()

	rows, err := e.doExecute(ctx, sqlText)
	span.SetAttributes(attribute.Int("sqlengine.row_count", len(rows)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return rows, err
}

// doExecute appends a LIMIT if the generated SQL lacks one, then runs
// it read-only against the view (spec §4.14 step 7). Column scanning
// is generic (sql.Rows.Columns + []any targets), the same shape the
// teacher's SQL-backed indexing source uses for arbitrary result sets.
func (e *Engine) doExecute(ctx context.Context, sqlText string) ([]Row, error) {
	if !strings.Contains(strings.ToUpper(sqlText), "LIMIT") {
		sqlText = strings.TrimRight(strings.TrimSpace(sqlText), ";") + " LIMIT 50;"
	}

	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("sqlengine: query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlengine: columns: %w", err)
	}

	var results []Row
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("sqlengine: scan: %w", err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeScanned(values[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlengine: row iteration: %w", err)
	}
	return results, nil
}

// normalizeScanned turns driver byte-slice results (common for
// sqlite3/mysql string columns) into plain strings, so downstream
// table rendering never prints a Go []byte representation.
func normalizeScanned(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
