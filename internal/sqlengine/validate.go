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
	"regexp"
	"strings"
)

var (
	thinkTagRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
	selectRe   = regexp.MustCompile(`(?is)(SELECT\s+.+?)(?:;|$)`)

	genderValueRe = regexp.MustCompile(`(?i)gioi_tinh\s*=\s*'[^']*'`)
	regionValueRe = regexp.MustCompile(`(?i)khu_vuc\s*=\s*'[^']*'`)
)

// forbiddenKeywords is the case-insensitive deny list (spec §4.14 step 6).
var forbiddenKeywords = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "ALTER",
	"TRUNCATE", "CREATE", "GRANT", "REVOKE", "--", "/*",
}

// extractSQL strips markdown fences and any internal "thinking" tags,
// then takes the first SELECT ... ; body (spec §4.14 step 4).
func extractSQL(response string) string {
	response = strings.TrimSpace(response)
	response = thinkTagRe.ReplaceAllString(response, "")
	response = strings.TrimSpace(response)

	response = strings.TrimPrefix(response, "```sql")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	if m := selectRe.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1]) + ";"
	}
	return response
}

// valueFix regex-substitutes gioi_tinh/khu_vuc literal comparisons with
// the entities extracted from the original query, overriding whatever
// the LLM chose (spec §4.14 step 5).
func valueFix(sql string, entities Entities) string {
	if entities.Gender != "" {
		sql = genderValueRe.ReplaceAllString(sql, fmt.Sprintf("gioi_tinh = '%s'", entities.Gender))
	}
	if entities.Region != "" {
		sql = regionValueRe.ReplaceAllString(sql, fmt.Sprintf("khu_vuc = '%s'", entities.Region))
	}
	return sql
}

// validate runs the safety checks, then an optional grader-LLM JSON
// check that never blocks execution on its own failure (spec §4.14
// step 6).
func (e *Engine) validate(ctx context.Context, sqlText string) (bool, string) {
	upper := strings.ToUpper(sqlText)
	for _, kw := range forbiddenKeywords {
		if strings.Contains(upper, kw) {
			return false, "dangerous keyword detected: " + kw
		}
	}
	if !strings.HasPrefix(strings.TrimSpace(upper), "SELECT") {
		return false, "query must start with SELECT"
	}

	if e.grader == nil {
		return true, ""
	}

	var result struct {
		Valid bool   `json:"valid"`
		Error string `json:"error"`
	}
	prompt := fmt.Sprintf(validationPrompt, sqlText)
	if err := e.grader.GenerateJSON(ctx, prompt, "", &result); err != nil {
		// Grader failure does not block execution once basic checks pass.
		return true, ""
	}
	if !result.Valid {
		return false, result.Error
	}
	return true, ""
}
