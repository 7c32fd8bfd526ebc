// Package knowledge implements C8 (Practical-Knowledge Index): a YAML-sourced
// store of senior-surveyor commentary that bridges regulation text and
// real-world practice, grounded on
// original_source/knowledge/practical_knowledge.py.
package knowledge

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bvrag/pkg/log"

	"gopkg.in/yaml.v3"
)

// Entry is one practical-knowledge record, shaped after
// original_source/knowledge/practical_knowledge.py's YAML schema.
type Entry struct {
	ID                    string   `yaml:"id"`
	Title                 string   `yaml:"title"`
	Keywords              []string `yaml:"keywords"`
	Regulations           []string `yaml:"regulations"`
	Terms                 []string `yaml:"terms"`
	ShipTypes             []string `yaml:"ship_types"`
	CorrectInterpretation string   `yaml:"correct_interpretation"`
	CommonMistake         string   `yaml:"common_mistake"`
	TypicalConfigurations []string `yaml:"typical_configurations"`
	DecisionTree          []string `yaml:"decision_tree"`
	ScopeRequired         []string `yaml:"scope_required"` // optional gate, supplemented from the original
}

// scoring weights (spec.md §4.8).
const (
	scoreKeywordHit    = 2
	scoreRegBothSides  = 3
	scoreRegEitherSide = 2
	scoreTermHit       = 1
	scoreShipTypeHit   = 2
	minRelevanceScore  = 2
	maxResults         = 3
)

// Index is C8's in-memory lookup structure, built once at boot.
type Index struct {
	byID         map[string]Entry
	keywordIndex map[string][]string // lower-cased keyword -> entry ids
	regIndex     map[string][]string // lower-cased regulation identifier -> entry ids
	order        []string            // load order, for deterministic iteration
}

// Load reads every *.yaml file in dir and builds the identifier, keyword, and
// regulation indices (spec.md §4.8: "Loaded once at boot from a directory of
// YAML files").
func Load(dir string) (*Index, error) {
	idx := &Index{
		byID:         map[string]Entry{},
		keywordIndex: map[string][]string{},
		regIndex:     map[string][]string{},
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Errorf("[PracticalKB] 目录不存在: %s", dir)
			return idx, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".yaml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		b, err := os.ReadFile(path)
		if err != nil {
			log.Errorf("[PracticalKB] 读取文件失败 %s: %v", path, err)
			continue
		}
		var raw []Entry
		if err := yaml.Unmarshal(b, &raw); err != nil {
			log.Errorf("[PracticalKB] 解析 YAML 失败 %s: %v", path, err)
			continue
		}
		for _, entry := range raw {
			id := entry.ID
			if id == "" {
				id = strings.TrimSuffix(name, ".yaml")
			}
			idx.byID[id] = entry
			idx.order = append(idx.order, id)
			for _, kw := range entry.Keywords {
				k := strings.ToLower(kw)
				idx.keywordIndex[k] = append(idx.keywordIndex[k], id)
			}
			for _, reg := range entry.Regulations {
				r := strings.ToLower(reg)
				idx.regIndex[r] = append(idx.regIndex[r], id)
			}
		}
	}

	log.Infof("[PracticalKB] 已加载 %d 条实务知识条目", len(idx.byID))
	return idx, nil
}

// Query implements C8's additive scoring contract (spec.md §4.8).
func (idx *Index) Query(userQuery string, matchedTerms []string, relevantRegs []string) []Entry {
	queryLower := strings.ToLower(userQuery)
	scores := map[string]int{}

	for kw, ids := range idx.keywordIndex {
		if strings.Contains(queryLower, kw) {
			for _, id := range ids {
				scores[id] += scoreKeywordHit
			}
		}
	}

	for _, reg := range relevantRegs {
		r := strings.ToLower(reg)
		for _, id := range idx.regIndex[r] {
			scores[id] += scoreRegBothSides
		}
	}
	for reg, ids := range idx.regIndex {
		if strings.Contains(queryLower, reg) {
			for _, id := range ids {
				scores[id] += scoreRegEitherSide
			}
		}
	}

	termSet := make(map[string]bool, len(matchedTerms))
	for _, t := range matchedTerms {
		termSet[strings.ToLower(t)] = true
	}
	for id, entry := range idx.byID {
		for _, term := range entry.Terms {
			if termSet[strings.ToLower(term)] {
				scores[id] += scoreTermHit
			}
		}
	}

	for id, entry := range idx.byID {
		for _, st := range entry.ShipTypes {
			if strings.Contains(queryLower, strings.ToLower(st)) {
				scores[id] += scoreShipTypeHit
			}
		}
	}

	// Scope gate: an entry naming scope_required keywords is only eligible
	// when at least one of those keywords also appears in the query —
	// supplemented from the original to prevent broad ship-type matches
	// from injecting topic-specific knowledge into unrelated queries.
	for id, entry := range idx.byID {
		if len(entry.ScopeRequired) == 0 {
			continue
		}
		if _, ok := scores[id]; !ok {
			continue
		}
		matched := false
		for _, sw := range entry.ScopeRequired {
			if strings.Contains(queryLower, strings.ToLower(sw)) {
				matched = true
				break
			}
		}
		if !matched {
			delete(scores, id)
		}
	}

	type scored struct {
		id    string
		score int
	}
	ranked := make([]scored, 0, len(scores))
	for id, sc := range scores {
		if sc >= minRelevanceScore {
			ranked = append(ranked, scored{id, sc})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})
	if len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}

	out := make([]Entry, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, idx.byID[r.id])
	}
	return out
}

// FormatForLLM renders entries as a markdown block for injection into the
// generator's context (spec.md §4.8), grounded on
// original_source/knowledge/practical_knowledge.py's format_for_llm.
func FormatForLLM(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## 验船实务参考（来自资深验船师经验）\n\n")
	for _, e := range entries {
		b.WriteString("### " + e.Title + "\n")
		b.WriteString("**适用法规**: " + strings.Join(e.Regulations, ", ") + "\n")
		if e.CorrectInterpretation != "" {
			b.WriteString("**正确理解**: " + e.CorrectInterpretation + "\n")
		}
		if e.CommonMistake != "" {
			b.WriteString("**常见误解**: " + e.CommonMistake + "\n")
		}
		if len(e.TypicalConfigurations) > 0 {
			b.WriteString("**典型配置**:\n")
			for _, cfg := range e.TypicalConfigurations {
				b.WriteString("- " + cfg + "\n")
			}
		}
		if len(e.DecisionTree) > 0 {
			b.WriteString("**判断逻辑**:\n")
			for _, step := range e.DecisionTree {
				b.WriteString("- " + step + "\n")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
