// Package query implements C4 (Query Classifier) and C5 (Query Enhancer):
// pure, deterministic transformations of a raw utterance, grounded on
// original_source/retrieval/query_classifier.py and query_enhancer.py.
package query

import (
	"regexp"
	"strconv"
	"strings"

	"bvrag/pkg/llm"
)

// Intent is one of the five classified query intents (spec.md §4.4).
type Intent string

const (
	IntentApplicability Intent = "applicability"
	IntentSpecification Intent = "specification"
	IntentProcedure     Intent = "procedure"
	IntentComparison    Intent = "comparison"
	IntentDefinition    Intent = "definition"
	IntentGeneral       Intent = "general"
)

// ShipInfo captures ship type/length/tonnage extracted from the utterance.
type ShipInfo struct {
	Type        string
	LengthM     *float64
	TonnageGT   *float64
}

// Classification is C4's output.
type Classification struct {
	Intent           Intent
	ShipInfo         ShipInfo
	RetrievalStrategy string // "broad" | "precise" | "normal"
	TopK             int
	ModelHint        llm.Tier
}

type intentConfig struct {
	intent            Intent
	triggersZH        []string
	triggersEN        []string
	retrievalStrategy string
	modelHint         llm.Tier
	topK              int
}

// intentPrecedence is checked in order; the first intent whose trigger lexicon
// matches the lower-cased utterance wins (spec.md §4.4: "the first matching
// intent wins under a fixed precedence"), NOT the max-trigger-count scoring
// used by original_source/retrieval/query_classifier.py.
var intentPrecedence = []intentConfig{
	{
		intent:     IntentApplicability,
		triggersZH: []string{"是否需要", "需不需要", "是否适用", "适用于", "要不要", "必须", "强制", "需要配备", "是否要求"},
		triggersEN: []string{"do i need", "is it required", "does it apply", "must i", "is it mandatory", "applicable to"},
		retrievalStrategy: "broad", modelHint: llm.TierPrimary, topK: 12,
	},
	{
		intent:     IntentComparison,
		triggersZH: []string{"区别", "不同", "比较", "对比"},
		triggersEN: []string{"difference", "compare", "versus", "vs"},
		retrievalStrategy: "broad", modelHint: llm.TierPrimary, topK: 10,
	},
	{
		intent:     IntentSpecification,
		triggersZH: []string{"最小", "最大", "多少", "尺寸", "数量", "间距", "高度", "宽度", "面积", "速度", "时间"},
		triggersEN: []string{"minimum", "maximum", "how many", "dimension", "size", "spacing", "height", "width"},
		retrievalStrategy: "precise", modelHint: llm.TierFast, topK: 5,
	},
	{
		intent:     IntentProcedure,
		triggersZH: []string{"怎么", "如何", "步骤", "流程", "程序", "操作"},
		triggersEN: []string{"how to", "procedure", "steps", "process"},
		retrievalStrategy: "normal", modelHint: llm.TierPrimary, topK: 8,
	},
	{
		intent:     IntentDefinition,
		triggersZH: []string{"什么是", "定义", "解释", "含义", "是什么意思"},
		triggersEN: []string{"what is", "define", "meaning of", "explanation"},
		retrievalStrategy: "precise", modelHint: llm.TierFast, topK: 5,
	},
}

type shipTypeEntry struct {
	key   string
	value string
}

// shipTypeTerms is the fixed bilingual ship-type lexicon used by ship-info
// extraction, ordered so each term comes before any shorter term it contains
// (mirroring intentPrecedence's ordered-slice-over-map pattern): a more
// specific term like "散货船"
// (bulk carrier) is matched before the shorter "货船" (cargo ship) it
// contains, rather than being decided by random map iteration order.
var shipTypeTerms = []shipTypeEntry{
	{"集装箱船", "container ship"},
	{"化学品船", "chemical tanker"},
	{"散货船", "bulk carrier"},
	{"气体船", "gas carrier"},
	{"滚装船", "ro-ro ship"},
	{"货船", "cargo ship"},
	{"客船", "passenger ship"},
	{"油轮", "oil tanker"},
	{"passenger", "passenger ship"},
	{"tanker", "oil tanker"},
	{"cargo", "cargo ship"},
	{"bulk", "bulk carrier"},
}

var (
	lengthRe  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(米|m|metres|meters)`)
	tonnageRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(吨|GT|总吨|gross tonnage)`)
)

// requirementTerms enumerates the Chinese/English "requirement" wording used by
// the C4 override rule (spec.md §4.4: ship-parameter + requirement term ⇒ force applicability).
var requirementTerms = []string{
	"是否", "需不需要", "需要", "要不要", "必须", "need", "require", "must",
}

// Classify implements C4: a pure function of its input.
func Classify(utterance string) Classification {
	lower := strings.ToLower(utterance)

	intent := IntentGeneral
	var matched intentConfig
	for _, cfg := range intentPrecedence {
		if containsAny(lower, cfg.triggersZH) || containsAny(lower, cfg.triggersEN) {
			intent = cfg.intent
			matched = cfg
			break
		}
	}

	shipInfo := extractShipInfo(utterance)

	hasDimensions := shipInfo.LengthM != nil || shipInfo.TonnageGT != nil
	if hasDimensions && containsAny(lower, requirementTerms) {
		intent = IntentApplicability
		matched = findConfig(IntentApplicability)
	}

	if intent == IntentGeneral {
		return Classification{
			Intent: IntentGeneral, ShipInfo: shipInfo,
			RetrievalStrategy: "normal", TopK: 8, ModelHint: llm.TierPrimary,
		}
	}

	return Classification{
		Intent: intent, ShipInfo: shipInfo,
		RetrievalStrategy: matched.retrievalStrategy, TopK: matched.topK, ModelHint: matched.modelHint,
	}
}

func findConfig(intent Intent) intentConfig {
	for _, cfg := range intentPrecedence {
		if cfg.intent == intent {
			return cfg
		}
	}
	return intentConfig{}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func extractShipInfo(query string) ShipInfo {
	info := ShipInfo{}
	lower := strings.ToLower(query)

	for _, entry := range shipTypeTerms {
		if strings.Contains(lower, strings.ToLower(entry.key)) {
			info.Type = entry.value
			break
		}
	}
	if info.Type == "" && strings.Contains(query, "国际航行") {
		info.Type = "cargo ship"
	}

	if m := lengthRe.FindStringSubmatch(query); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			info.LengthM = &v
		}
	}
	if m := tonnageRe.FindStringSubmatch(query); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			info.TonnageGT = &v
		}
	}
	return info
}
