package query

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// EnhancementResult is C5's output (spec.md §4.5).
type EnhancementResult struct {
	EnhancedQuery    string
	MatchedTerms     []string
	RegulationHints  []string
}

// terminologyMap maps Chinese/colloquial terms to groups of English regulatory
// terms, ported from original_source/retrieval/query_enhancer.py's
// TERMINOLOGY_MAP (≥50 bilaterally-indexed groups, spec.md §4.5 stage 1).
var terminologyMap = map[string][]string{
	// Life-saving appliances
	"救生筏":  {"liferaft", "life-raft", "inflatable liferaft"},
	"救生艇":  {"lifeboat", "survival craft"},
	"释放设备": {"launching appliance", "release mechanism", "davit", "launching device"},
	"吊车":   {"davit", "crane", "launching appliance"},
	"降落设备": {"davit", "launching appliance", "launching device"},
	"抛投式":  {"throw-overboard", "inflatable liferaft"},
	"自由降落": {"free-fall", "free fall lifeboat"},
	"登乘梯":  {"embarkation ladder", "boarding ladder"},
	"救生圈":  {"lifebuoy", "life buoy"},
	"救生衣":  {"lifejacket", "life-jacket"},
	"起降落":  {"launching appliance", "davit", "launching device"},
	// Fire safety
	"灭火器":  {"fire extinguisher", "portable extinguisher"},
	"消防泵":  {"fire pump", "fire main"},
	"喷淋系统": {"sprinkler system", "water spraying system", "fixed fire-extinguishing"},
	"防火门":  {"fire door", "fire-resistant division", "A-class division"},
	"烟雾探测": {"smoke detector", "fire detection", "smoke detection system"},
	"探火系统": {"fire detection system", "fire alarm"},
	"灭火系统": {"fire-extinguishing system", "fire fighting"},
	// Structure / access
	"通道":  {"access", "means of access", "passage", "gangway"},
	"开口":  {"opening", "clear opening", "hatchway"},
	"双壳":  {"double hull", "double skin", "double bottom"},
	"水密门": {"watertight door", "watertight"},
	"舱壁":  {"bulkhead", "watertight bulkhead"},
	"干舷":  {"freeboard"},
	// Ship types
	"散货船":  {"bulk carrier", "bulker"},
	"油轮":   {"oil tanker", "tanker"},
	"客船":   {"passenger ship", "passenger vessel"},
	"货船":   {"cargo ship", "cargo vessel"},
	"集装箱船": {"container ship", "container vessel"},
	"化学品船": {"chemical tanker", "chemical carrier"},
	"气体船":  {"gas carrier", "LNG carrier", "LPG carrier"},
	"滚装船":  {"ro-ro ship", "roll-on roll-off"},
	// Dimensions
	"船长":  {"length", "length overall", "LOA"},
	"总吨":  {"gross tonnage", "GT"},
	"载重吨": {"deadweight", "DWT"},
	// Navigation / radio
	"导航":  {"navigation", "navigational"},
	"雷达":  {"radar", "ARPA"},
	"无线电": {"radio", "GMDSS"},
	// Stability / damage control
	"稳性":  {"stability", "intact stability"},
	"破损稳性": {"damage stability"},
	"压载水": {"ballast water"},
	// Pollution prevention
	"油水分离器": {"oily water separator", "ODME", "oil discharge monitoring"},
	"排放":   {"discharge"},
	"压载":   {"ballast"},
	"残油":   {"sludge", "oil residue"},
	// Machinery
	"主机":   {"main engine", "propulsion machinery"},
	"应急发电机": {"emergency generator", "emergency source of electrical power"},
	"锅炉":   {"boiler"},
	// STCW / crewing
	"船员":   {"seafarer", "crew"},
	"适任证书": {"certificate of competency"},
	"值班":   {"watchkeeping"},
	// Survey / certification
	"年度检验": {"annual survey"},
	"换证检验": {"renewal survey"},
	"中间检验": {"intermediate survey"},
}

// topicToRegulations maps a detected topic keyword to relevant SOLAS/MARPOL chapters
// (spec.md §4.5 stage 2), ported from original_source's TOPIC_TO_REGULATIONS.
var topicToRegulations = map[string][]string{
	"liferaft":                 {"SOLAS III", "LSA Code"},
	"lifeboat":                 {"SOLAS III", "LSA Code"},
	"davit":                    {"SOLAS III", "LSA Code Chapter 6"},
	"launching appliance":      {"SOLAS III", "LSA Code Chapter 6"},
	"davit-launched liferaft":  {"SOLAS III/31", "SOLAS III/16", "LSA Code Chapter 6"},
	"free-fall":                {"SOLAS III/31", "LSA Code Chapter 6"},
	"fire":                     {"SOLAS II-2", "FSS Code"},
	"stability":                {"SOLAS II-1"},
	"pollution":                {"MARPOL"},
	"access":                   {"SOLAS II-1/3-6"},
	"navigation":               {"SOLAS V", "COLREG"},
	"radio":                    {"SOLAS IV", "GMDSS"},
	"cargo ship":               {"SOLAS III/31", "SOLAS III/32"},
	"passenger ship":           {"SOLAS III/21", "SOLAS III/22"},
}

var lsaKeywords = []string{"救生筏", "救生艇", "liferaft", "lifeboat", "起降", "davit", "释放", "降落", "launching"}

var enhancerLengthRe = regexp.MustCompile(`(\d+)\s*[米m]`)

// bilateralKeywords detect "both sides / each side" wording (spec.md §4.5 stage 5).
var bilateralKeywords = []string{"两舷", "两侧", "每舷", "both sides", "each side"}

// Enhance implements C5: a pure function of the utterance and the static term/topic tables.
func Enhance(query string) EnhancementResult {
	matchedTerms := map[string]struct{}{}
	relevantRegs := map[string]struct{}{}

	// Stage 1: term expansion.
	for zh, enTerms := range terminologyMap {
		if strings.Contains(query, zh) {
			for _, t := range enTerms {
				matchedTerms[t] = struct{}{}
			}
		}
	}

	// Stage 2: topic → regulation hints.
	for term := range matchedTerms {
		lowerTerm := strings.ToLower(term)
		for topic, regs := range topicToRegulations {
			if strings.Contains(lowerTerm, topic) {
				for _, r := range regs {
					relevantRegs[r] = struct{}{}
				}
			}
		}
	}

	hasLSA := containsAnySub(query, lsaKeywords)

	// Stage 3: ship-type → regulation hints.
	if containsAnySub(query, []string{"货船", "cargo"}) {
		relevantRegs["SOLAS III/31"] = struct{}{}
		relevantRegs["SOLAS III/32"] = struct{}{}
		if hasLSA {
			relevantRegs["SOLAS III/16"] = struct{}{}
			relevantRegs["LSA Code Chapter 6"] = struct{}{}
			matchedTerms["davit-launched liferaft"] = struct{}{}
			matchedTerms["free-fall lifeboat"] = struct{}{}
		}
	}
	if containsAnySub(query, []string{"客船", "passenger"}) {
		relevantRegs["SOLAS III/21"] = struct{}{}
		relevantRegs["SOLAS III/22"] = struct{}{}
		relevantRegs["SOLAS III/16"] = struct{}{}
	}

	// Stage 4: length-threshold rules.
	if m := enhancerLengthRe.FindStringSubmatch(query); m != nil {
		if length, err := strconv.Atoi(m[1]); err == nil && hasLSA {
			if length >= 85 {
				relevantRegs["SOLAS III/31"] = struct{}{}
				matchedTerms["davit-launched liferaft"] = struct{}{}
				matchedTerms["85 metres"] = struct{}{}
				matchedTerms["free-fall lifeboat"] = struct{}{}
			}
			if length >= 80 {
				relevantRegs["SOLAS III/16"] = struct{}{}
			}
			relevantRegs["LSA Code Chapter 6"] = struct{}{}
		}
		if strings.Contains(query, "国际航行") || strings.Contains(strings.ToLower(query), "international") {
			relevantRegs["SOLAS III/31"] = struct{}{}
		}
	}

	// Stage 5: bilateral/side detection.
	if containsAnySub(query, bilateralKeywords) && hasLSA {
		relevantRegs["SOLAS III/31.1.4"] = struct{}{}
		matchedTerms["each side"] = struct{}{}
	}

	terms := sortedKeys(matchedTerms)
	regs := sortedKeys(relevantRegs)

	parts := []string{query}
	if len(terms) > 0 {
		parts = append(parts, strings.Join(terms, " "))
	}
	if len(regs) > 0 {
		parts = append(parts, strings.Join(regs, " "))
	}

	enhanced := query
	if len(parts) > 1 {
		enhanced = strings.Join(parts, " | ")
	}

	return EnhancementResult{
		EnhancedQuery:   enhanced,
		MatchedTerms:    terms,
		RegulationHints: regs,
	}
}

func containsAnySub(haystack string, needles []string) bool {
	lower := strings.ToLower(haystack)
	for _, n := range needles {
		if strings.Contains(haystack, n) || strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
