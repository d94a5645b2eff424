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
	"regexp"
	"strconv"
	"strings"
)

var (
	yearFullRe  = regexp.MustCompile(`\b(20[0-9]{2})\b`)
	yearShortRe = regexp.MustCompile(`\b(?:năm|nam)\s*(\d{2})\b`)

	scorePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d{1,2}(?:[.,]\d+)?)\s*điểm`),
		regexp.MustCompile(`điểm\s*(?:là|:)?\s*(\d{1,2}(?:[.,]\d+)?)`),
		regexp.MustCompile(`(\d{1,2}(?:[.,]\d+)?)\s*(?:khối|block)`),
	}
	numberRe = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

	khoiCodeRe = regexp.MustCompile(`\b([ABCDabcd]\d{2})\b`)

	khoiTextMapping = []struct {
		key  string
		code string
	}{
		{"khối a", "A00"}, {"khoi a", "A00"},
		{"khối b", "B00"}, {"khoi b", "B00"},
		{"khối c", "C00"}, {"khoi c", "C00"},
		{"khối d", "D01"}, {"khoi d", "D01"},
	}

	// genderFemaleRe is matched against accent-stripped text (see
	// ExtractGender): Go's RE2 \b is an ASCII word-boundary check, so it
	// never fires immediately after a non-ASCII rune like "ữ".
	// genderMaleRe is matched against the lowercased text with its
	// accents kept, so the year word "năm" does not read as "nam".
	genderFemaleRe = regexp.MustCompile(`\bnu\b`)
	genderMaleRe   = regexp.MustCompile(`\bnam\b`)

	regionNorthRe = regexp.MustCompile(`miền\s*bắc|mien\s*bac`)
	regionSouthRe = regexp.MustCompile(`miền\s*nam|mien\s*nam`)
)

// ExtractYear finds a 4-digit year (20XX) or a short "năm NN" form,
// mapping NN<50 to 20NN and NN>=50 to 19NN, per spec §4.1.
func ExtractYear(text string) (int, bool) {
	if m := yearFullRe.FindStringSubmatch(text); m != nil {
		y, _ := strconv.Atoi(m[1])
		return y, true
	}
	lower := strings.ToLower(text)
	if m := yearShortRe.FindStringSubmatch(lower); m != nil {
		y, _ := strconv.Atoi(m[1])
		if y < 50 {
			return 2000 + y, true
		}
		return 1900 + y, true
	}
	return 0, false
}

// ExtractScore finds an admission score in [0,30] near "điểm", falling
// back to a bare number in the plausible [15,30] range.
func ExtractScore(text string) (float64, bool) {
	lower := strings.ToLower(text)
	for _, pattern := range scorePatterns {
		if m := pattern.FindStringSubmatch(lower); m != nil {
			if v, ok := parseVNFloat(m[1]); ok && v >= 0 && v <= 30 {
				return v, true
			}
		}
	}
	for _, m := range numberRe.FindAllString(lower, -1) {
		if v, ok := parseVNFloat(m); ok && v >= 15 && v <= 30 {
			return v, true
		}
	}
	return 0, false
}

func parseVNFloat(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ExtractKhoiThi finds an exam-group code like "A00", or maps a loose
// textual form ("khối a") to its canonical code.
func ExtractKhoiThi(text string) (string, bool) {
	if m := khoiCodeRe.FindStringSubmatch(strings.ToUpper(text)); m != nil {
		return strings.ToUpper(m[1]), true
	}
	normalized := Normalize(text)
	for _, entry := range khoiTextMapping {
		if strings.Contains(normalized, entry.key) {
			return entry.code, true
		}
	}
	return "", false
}

// ExtractGender returns "nu" or "nam" if the text names a gender, per
// the lowercase token vocabulary required by the view (spec §3).
func ExtractGender(text string) (string, bool) {
	normalized := Normalize(text)
	if genderFemaleRe.MatchString(normalized) {
		return "nu", true
	}
	if genderMaleRe.MatchString(strings.ToLower(text)) {
		return "nam", true
	}
	return "", false
}

// ExtractRegion returns "mien_bac" or "mien_nam" if the text names a
// region.
func ExtractRegion(text string) (string, bool) {
	lower := strings.ToLower(Normalize(text) + " " + text)
	if regionNorthRe.MatchString(lower) {
		return "mien_bac", true
	}
	if regionSouthRe.MatchString(lower) {
		return "mien_nam", true
	}
	return "", false
}
