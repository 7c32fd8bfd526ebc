package generation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"bvrag/pkg/log"
)

// knownTableValues is a static table of high-frequency SOLAS II-2 Table 9.x
// cell values (key "Table 9.X|(row)|(col)"), ported from
// original_source/generation/table_post_check.py's KNOWN_TABLE_VALUES.
var knownTableValues = map[string]string{
	"Table 9.5|(1)|(1)": "A-0", "Table 9.5|(1)|(2)": "A-0", "Table 9.5|(1)|(3)": "A-60",
	"Table 9.5|(1)|(4)": "A-0", "Table 9.5|(1)|(5)": "A-15", "Table 9.5|(1)|(6)": "A-60",
	"Table 9.5|(1)|(7)": "A-15", "Table 9.5|(1)|(8)": "A-60", "Table 9.5|(1)|(9)": "A-60",
	"Table 9.5|(2)|(2)": "C", "Table 9.5|(2)|(3)": "B-0", "Table 9.5|(2)|(4)": "B-0",
	"Table 9.5|(2)|(5)": "B-0", "Table 9.5|(2)|(6)": "A-60", "Table 9.5|(2)|(7)": "A-0",
	"Table 9.5|(2)|(8)": "A-60", "Table 9.5|(2)|(9)": "A-0", "Table 9.5|(3)|(3)": "C",
	"Table 9.5|(3)|(6)": "A-60", "Table 9.5|(3)|(7)": "A-0", "Table 9.5|(3)|(8)": "A-60",
	"Table 9.5|(3)|(9)": "A-0", "Table 9.5|(6)|(6)": "A-0", "Table 9.5|(6)|(9)": "A-60",

	"Table 9.7|(1)|(1)": "A-0", "Table 9.7|(1)|(2)": "A-0", "Table 9.7|(1)|(3)": "A-60",
	"Table 9.7|(1)|(4)": "A-0", "Table 9.7|(1)|(5)": "A-15", "Table 9.7|(1)|(6)": "A-60",
	"Table 9.7|(1)|(7)": "A-15", "Table 9.7|(1)|(8)": "A-60", "Table 9.7|(1)|(9)": "A-60",
	"Table 9.7|(2)|(2)": "C", "Table 9.7|(2)|(3)": "B-0", "Table 9.7|(2)|(4)": "B-0",
	"Table 9.7|(2)|(5)": "B-0", "Table 9.7|(2)|(6)": "A-60", "Table 9.7|(2)|(7)": "A-0",
	"Table 9.7|(2)|(8)": "A-60", "Table 9.7|(2)|(9)": "A-0", "Table 9.7|(3)|(3)": "C",
	"Table 9.7|(3)|(6)": "A-60", "Table 9.7|(3)|(7)": "A-0", "Table 9.7|(3)|(8)": "A-60",
	"Table 9.7|(3)|(9)": "A-0", "Table 9.7|(6)|(6)": "A-0", "Table 9.7|(6)|(9)": "A-60",

	"Table 9.1|(1)|(1)": "A-0", "Table 9.1|(1)|(2)": "A-0", "Table 9.1|(1)|(3)": "A-60",
	"Table 9.1|(1)|(6)": "A-60", "Table 9.1|(2)|(2)": "B-0", "Table 9.1|(2)|(3)": "B-0",
	"Table 9.1|(2)|(9)": "B-15", "Table 9.1|(3)|(6)": "A-60", "Table 9.1|(6)|(6)": "A-0",
	"Table 9.1|(6)|(9)": "A-60",

	"Table 9.3|(1)|(1)": "A-0", "Table 9.3|(1)|(2)": "A-0", "Table 9.3|(1)|(3)": "A-60",
	"Table 9.3|(1)|(6)": "A-60", "Table 9.3|(2)|(2)": "C", "Table 9.3|(2)|(3)": "B-0",
	"Table 9.3|(2)|(9)": "A-0", "Table 9.3|(3)|(6)": "A-60", "Table 9.3|(6)|(6)": "A-0",
	"Table 9.3|(6)|(9)": "A-60",
}

// shipTypeValidTables maps a detected ship-type key to the table digits it
// may legitimately cite, ported from SHIP_TYPE_VALID_TABLES.
var shipTypeValidTables = map[string][]string{
	"tanker":               {"7", "8"},
	"cargo_ship_non_tanker": {"5", "6"},
	"passenger_ship":        {"1", "2", "3", "4"},
}

var (
	tableRefRe  = regexp.MustCompile(`(?i)Table\s*9\.(\d)`)
	fireRatingRe = regexp.MustCompile(`\b(A-60|A-30|A-15|A-0|B-15|B-0|C)\b`)
	boldRatingRe = regexp.MustCompile(`\*\*(A-60|A-30|A-15|A-0|B-15|B-0|C)\*\*`)
	categoryRe   = regexp.MustCompile(`[Cc]ategory\s*\(?(\d{1,2})\)?\s*.*?[Cc]ategory\s*\(?(\d{1,2})\)?`)
	categoryCNRe = regexp.MustCompile(`[（(](\d{1,2})[)）]\s*[×xX]\s*[（(](\d{1,2})[)）]`)
)

var tankerKeywords = []string{"tanker", "油轮", "化学品船", "成品油轮", "可燃液体", "flammable liquid", "inflammable"}
var passengerKeywords = []string{"passenger", "客船", "客轮", "邮轮"}
var cargoKeywords = []string{"bulk carrier", "散货船", "集装箱船", "container ship", "杂货船", "general cargo", "货船", "cargo ship"}

// TableCheckResult is PostCheckTableLookup's verdict.
type TableCheckResult struct {
	ShipTypeDetected string
	TablesCited      []string
	ShouldRegenerate bool
	CorrectionContext string
}

// PostCheckTableLookup detects two classes of LLM table-lookup error — a
// ship-type/table mismatch, and a known-value mismatch against
// knownTableValues — returning correction text for a single regeneration
// pass (spec.md §4.10's "must not fabricate... A-60 vs A-0" invariant,
// restored as a deterministic backstop per SPEC_FULL.md).
func PostCheckTableLookup(answer, userQuery string) TableCheckResult {
	combined := userQuery + " " + answer
	shipType := extractShipType(combined)
	tablesCited := extractTableRefs(answer)
	if len(tablesCited) == 0 {
		return TableCheckResult{ShipTypeDetected: shipType}
	}

	var corrections []string

	if shipType != "" {
		validDigits := shipTypeValidTables[shipType]
		if len(validDigits) > 0 {
			for _, t := range tablesCited {
				if !containsStr(validDigits, t) {
					correctTables := joinTables(validDigits)
					corrections = append(corrections, fmt.Sprintf(
						"CORRECTION: %s 应使用 %s，但回答引用了 Table 9.%s。请使用 SOLAS II-2/Reg 9 中适用于 %s 的 %s",
						shipType, correctTables, t, shipType, correctTables))
				}
			}
		}
	}

	if row, col, ok := extractCategoryPair(answer); ok {
		lo, hi := row, col
		if lo > hi {
			lo, hi = hi, lo
		}
		actual := extractFireRating(answer)
		for _, t := range tablesCited {
			key := fmt.Sprintf("Table 9.%s|(%d)|(%d)", t, lo, hi)
			if expected, ok := knownTableValues[key]; ok && actual != "" && actual != expected {
				corrections = append(corrections, fmt.Sprintf(
					"CORRECTION: 查 %s 应为 %s，但回答给出 %s。正确值为 %s", key, expected, actual, expected))
			}
		}
	}

	result := TableCheckResult{
		ShipTypeDetected:   shipType,
		TablesCited:        tablesCited,
		ShouldRegenerate:   len(corrections) > 0,
		CorrectionContext:  strings.Join(corrections, "\n"),
	}
	if result.ShouldRegenerate {
		log.Infof("[TablePostCheck] %d warning(s): %s", len(corrections), result.CorrectionContext)
	}
	return result
}

func extractShipType(text string) string {
	lower := strings.ToLower(text)
	if containsAny(lower, tankerKeywords) {
		return "tanker"
	}
	if containsAny(lower, passengerKeywords) {
		return "passenger_ship"
	}
	if containsAny(lower, cargoKeywords) {
		return "cargo_ship_non_tanker"
	}
	return ""
}

func extractTableRefs(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range tableRefRe.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

func extractCategoryPair(answer string) (int, int, bool) {
	if m := categoryCNRe.FindStringSubmatch(answer); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		return a, b, true
	}
	if m := categoryRe.FindStringSubmatch(answer); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		return a, b, true
	}
	return 0, 0, false
}

func extractFireRating(answer string) string {
	if m := boldRatingRe.FindStringSubmatch(answer); m != nil {
		return m[1]
	}
	if m := fireRatingRe.FindStringSubmatch(answer); m != nil {
		return m[1]
	}
	return ""
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func joinTables(digits []string) string {
	parts := make([]string, len(digits))
	for i, d := range digits {
		parts[i] = "Table 9." + d
	}
	return strings.Join(parts, ", ")
}
