// Package utility implements C6 (Utility Store & Reranker): a learned,
// domain-adapted signal layered on top of fusion ranking, grounded on
// original_source/retrieval/utility_reranker.py (MemRL-inspired two-phase
// retrieval), reimplemented over MySQL/GORM instead of raw psycopg2 SQL.
package utility

import "strings"

// Category is one of the fixed query categories the utility store keys on
// (spec.md §4.6).
type Category string

const (
	CategoryFireSafety Category = "fire_safety"
	CategoryLifesaving Category = "lifesaving"
	CategoryPollution  Category = "pollution"
	CategoryStability  Category = "stability"
	CategoryStructure  Category = "structure"
	CategoryMachinery  Category = "machinery"
	CategoryNavigation Category = "navigation"
	CategorySurvey     Category = "survey"
	CategoryGeneral    Category = "general"
)

// categoryKeywords is the keyword router's lexicon, derived from the groups
// query.Enhance's terminologyMap/topicToRegulations already distinguish
// (original_source has no standalone category router for the utility store).
var categoryKeywords = map[Category][]string{
	CategoryFireSafety: {"灭火", "消防", "防火", "喷淋", "烟雾", "探火", "fire", "sprinkler", "smoke detect"},
	CategoryLifesaving: {"救生", "liferaft", "lifeboat", "davit", "lsa", "life-saving", "lifejacket", "lifebuoy"},
	CategoryPollution:  {"排放", "压载水", "油水分离", "残油", "marpol", "discharge", "ballast water", "oily water", "pollution"},
	CategoryStability:  {"稳性", "破损稳性", "stability", "heel", "trim"},
	CategoryStructure:  {"舱壁", "双壳", "干舷", "通道", "开口", "bulkhead", "hull", "freeboard", "access", "opening"},
	CategoryMachinery:  {"主机", "锅炉", "发电机", "engine", "boiler", "generator", "machinery", "propulsion"},
	CategoryNavigation: {"导航", "雷达", "无线电", "navigation", "radar", "gmdss", "colreg"},
	CategorySurvey:     {"检验", "换证", "年度检验", "survey", "certificate", "certification", "audit"},
}

// Categorize implements the fixed keyword router assigning a query to one of
// the nine query categories; falls back to CategoryGeneral.
func Categorize(query string, matchedTerms []string) Category {
	haystacks := append([]string{query}, matchedTerms...)
	for _, h := range haystacks {
		lower := strings.ToLower(h)
		for cat, keywords := range categoryKeywords {
			for _, kw := range keywords {
				if strings.Contains(h, kw) || strings.Contains(lower, strings.ToLower(kw)) {
					return cat
				}
			}
		}
	}
	return CategoryGeneral
}
