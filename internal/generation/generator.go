// Package generation implements C10 (Answer Generator): model routing,
// evidence context packing, system-prompt assembly, safety/table
// post-checks and citation/confidence extraction, grounded on
// original_source/generation/generator.go.
package generation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"bvrag/internal/apperr"
	"bvrag/internal/query"
	"bvrag/internal/retrieval"
	"bvrag/pkg/llm"
	"bvrag/pkg/log"
)

// citationPattern extracts bracketed regulation citations, restricted to the
// enumerated document families (spec.md §4.10 "fixed regex matching the
// enumerated documents"), ported from original_source's CITATION_PATTERN.
var citationPattern = regexp.MustCompile(
	`\[(SOLAS|MARPOL|MSC|MEPC|ISM|ISPS|Resolution|LSA|FSS|FTP|STCW|COLREG|IBC|IGC|ICLL|BV\s*NR\d+)[^\]]*\]`,
)

// regIdentifierPattern detects a precise regulation identifier in the query,
// one of the C10 model-router demotion triggers (spec.md §4.10 step 3).
var regIdentifierPattern = regexp.MustCompile(`(?i)(SOLAS|MARPOL|STCW|COLREG|ISM|ISPS|LSA|FSS|IBC|IGC|ICLL)\s*[\w\-/.]+`)

var complexKeywords = []string{
	"compare", "比较", "区别", "difference", "vs",
	"所有相关", "修改", "amend", "解释", "interpret",
	"适用", "apply", "applicable", "豁免", "exempt",
}

var relationKeywords = []string{
	"所有", "哪些", "all", "which", "compare", "区别", "关系", "relationship",
}

var shipTypeKeywords = []string{
	"货船", "客船", "油轮", "散货", "集装箱", "滚装", "国际航行",
	"cargo ship", "passenger", "tanker", "bulk carrier",
}

var applicabilityKeywords = []string{
	"是否", "需不需要", "是否需要", "必须", "要不要",
	"do i need", "is it required", "must",
}

var shipParamPattern = regexp.MustCompile(`(?i)\d+\s*(米|m|吨|GT|DWT|总吨|载重)`)

// refusalPhrases flags a generated answer as an implicit refusal/low-grounding
// disclaimer, used to downgrade an otherwise-high confidence (spec.md §4.10
// post-processing: "known refusal phrase").
var refusalPhrases = []string{
	"检索结果中未找到", "未检索到", "无法在检索到的法规原文中找到", "建议查阅",
	"检索失效", "not found in the retrieved", "could not find", "please verify against",
}

const (
	fastMaxTokens        = 1024
	primaryMaxTokens     = 2048
	fastMaxContextTokens = 3000
	primaryMaxContextTok = 5000
	blockTruncateChars   = 1600
)

// Citation is one extracted bracketed regulation reference.
type Citation struct {
	Citation string `json:"citation"`
	Verified bool   `json:"verified"`
}

// Source is one retrieved-candidate provenance entry returned to the caller.
type Source struct {
	ChunkID    uint    `json:"chunk_id"`
	URL        string  `json:"url"`
	Breadcrumb string  `json:"breadcrumb"`
	Score      float64 `json:"score"`
}

// Input bundles everything Generate needs to assemble one answer (spec.md §4.10/§4.11 step 7).
type Input struct {
	Query             string
	EnhancedQuery     string
	ConversationTurns []llm.Message // recent messages, already windowed by C9 (2·max_turns, plus a summary pair when trimmed)
	Classification    query.Classification
	Candidates        []retrieval.Candidate
	PracticalContext  string // C8's markdown block, may be empty
	UserContext       string // one-line "most queried regulations" summary, may be empty
	ForceTier         llm.Tier // set by C11 on cross-model retry (spec.md §4.11/§7); empty uses the router
}

// Output is C10's result, mirroring the HTTP response envelope fields (spec.md §6).
type Output struct {
	AnswerText string
	Citations  []Citation
	Confidence string
	ModelUsed  string
	Sources    []Source
}

// Generator is C10. It holds no state beyond its LLM client — every decision
// is a pure function of its Input (plus one LLM round-trip, and a possible
// second round-trip on a table-check regeneration).
type Generator struct {
	llmClient llm.Client
}

func NewGenerator(llmClient llm.Client) *Generator {
	return &Generator{llmClient: llmClient}
}

// Generate implements C10's full pipeline: route → pack context → assemble
// prompt → call the model → safety post-check → table post-check (with at
// most one regeneration) → extract citations/confidence/sources.
func (g *Generator) Generate(ctx context.Context, in Input) (*Output, error) {
	tier := in.ForceTier
	if tier == "" {
		tier = g.selectModel(in)
	}
	isFast := tier == llm.TierFast

	maxTokens := primaryMaxTokens
	maxContextTokens := primaryMaxContextTok
	if isFast {
		maxTokens = fastMaxTokens
		maxContextTokens = fastMaxContextTokens
	}

	contextText := buildContext(in.Candidates, maxContextTokens)

	system := g.buildSystemPrompt(in, isFast)

	userParts := []string{fmt.Sprintf("## 检索到的法规内容\n\n%s", contextText)}
	if in.PracticalContext != "" {
		userParts = append(userParts, in.PracticalContext)
	}
	userParts = append(userParts, fmt.Sprintf("## 用户问题\n\n%s", in.EnhancedQuery))
	userMessage := strings.Join(userParts, "\n\n")

	messages := append([]llm.Message{{Role: "system", Content: system}}, in.ConversationTurns...)
	messages = append(messages, llm.Message{Role: "user", Content: userMessage})

	gen := &llm.GenerationParams{MaxTokens: &maxTokens}
	answer, err := g.llmClient.CompleteWithParams(ctx, tier, messages, gen)
	if err != nil {
		log.Errorf("[AnswerGenerator] 生成失败: %v", err)
		return nil, apperr.New(apperr.KindUnavailable, "generation.generate", "language model backend unavailable", apperr.ErrLLMUnavailable)
	}

	answer = SafetyPostCheck(answer, in.Query)

	tableCheck := PostCheckTableLookup(answer, in.Query)
	if tableCheck.ShouldRegenerate {
		log.Infof("[AnswerGenerator] 表格校验触发重新生成: %s", tableCheck.CorrectionContext)
		correctedUser := userMessage + "\n\nIMPORTANT CORRECTIONS:\n" + tableCheck.CorrectionContext +
			"\n\nPlease regenerate your answer with these corrections applied."
		correctedMessages := append([]llm.Message{}, messages[:len(messages)-1]...)
		correctedMessages = append(correctedMessages, llm.Message{Role: "user", Content: correctedUser})
		if corrected, cerr := g.llmClient.CompleteWithParams(ctx, tier, correctedMessages, gen); cerr == nil {
			answer = SafetyPostCheck(corrected, in.Query)
		} else {
			log.Errorf("[AnswerGenerator] 表格校验重新生成失败，保留原答案: %v", cerr)
		}
	}

	sources := buildSources(in.Candidates)
	answer = FixSourceLinks(answer, sources)

	citations := extractCitations(answer)
	confidence := assessConfidence(in.Candidates, answer)

	return &Output{
		AnswerText: answer,
		Citations:  citations,
		Confidence: confidence,
		ModelUsed:  g.llmClient.ModelFor(tier),
		Sources:    sources,
	}, nil
}

// selectModel implements spec.md §4.10's router exactly: start from C4's
// hint, promote to primary on any of five conditions, demote to fast on any
// of three, with promotion taking precedence over demotion.
func (g *Generator) selectModel(in Input) llm.Tier {
	tier := in.Classification.ModelHint
	if tier == "" {
		tier = llm.TierPrimary
	}

	q := in.EnhancedQuery
	if q == "" {
		q = in.Query
	}
	lower := strings.ToLower(q)

	promote := containsAny(lower, complexKeywords) ||
		shipParamPattern.MatchString(q) ||
		containsAny(lower, shipTypeKeywords) ||
		containsAny(lower, applicabilityKeywords) ||
		len([]rune(q)) > 60

	if promote {
		return llm.TierPrimary
	}

	topCombined := topCombinedScore(in.Candidates)
	wordCount := len(strings.Fields(q))

	demote := regIdentifierPattern.MatchString(q) ||
		topCombined > 0.75 ||
		(wordCount < 15 && !containsAny(lower, relationKeywords))

	if demote {
		return llm.TierFast
	}
	return tier
}

// ResolveTier exposes selectModel's routing decision so C11 can compute the
// alternate tier for its cross-model retry without duplicating the routing
// rules (spec.md §4.10 router, §4.11 retry policy).
func (g *Generator) ResolveTier(in Input) llm.Tier {
	if in.ForceTier != "" {
		return in.ForceTier
	}
	return g.selectModel(in)
}

// AlternateTier returns the other model tier for C11's one cross-model retry
// on GenerationUnavailable (spec.md §4.10/§7: "retry once with the other
// model"). TierCheap never routes answer generation, so it has no alternate.
func AlternateTier(tier llm.Tier) llm.Tier {
	if tier == llm.TierFast {
		return llm.TierPrimary
	}
	return llm.TierFast
}

func (g *Generator) buildSystemPrompt(in Input, isFast bool) string {
	system := systemPromptCore
	lang := detectLanguage(in.Query)
	if instr, ok := languageInstructions[lang]; ok {
		system += instr
	} else {
		system += languageInstructions["zh"]
	}

	if isFast {
		system += fastModeSuffix
	} else {
		system += primaryModeSuffix
	}

	if in.UserContext != "" {
		system += "\n\n## 用户偏好\n" + in.UserContext
	}

	if in.Classification.Intent == query.IntentApplicability {
		ship := in.Classification.ShipInfo
		if ship.Type != "" || ship.LengthM != nil || ship.TonnageGT != nil {
			var b strings.Builder
			b.WriteString("\n\n## 用户船舶信息")
			if ship.Type != "" {
				b.WriteString("\n- 船型: " + ship.Type)
			}
			if ship.LengthM != nil {
				b.WriteString("\n- 船长: " + strconv.FormatFloat(*ship.LengthM, 'f', -1, 64) + "米")
			}
			if ship.TonnageGT != nil {
				b.WriteString("\n- 总吨: " + strconv.FormatFloat(*ship.TonnageGT, 'f', -1, 64) + "GT")
			}
			b.WriteString("\n请根据这些参数给出明确的适用性判断。")
			system += b.String()
		}
	}

	return system
}

// buildContext packs candidates into breadcrumb-tagged blocks with
// per-block truncation and a cumulative token budget (spec.md §4.10
// "Context packing").
func buildContext(candidates []retrieval.Candidate, maxContextTokens int) string {
	var parts []string
	totalTokens := 0
	for _, c := range candidates {
		text := c.Text
		if len(text) > blockTruncateChars {
			text = text[:blockTruncateChars] + "..."
		}
		chunkTokens := len(text) / 4
		if totalTokens+chunkTokens > maxContextTokens {
			break
		}
		url := c.Metadata.SourceURL
		parts = append(parts, fmt.Sprintf("**[%s]** (Source: %s)\n%s", c.BreadcrumbPath, url, text))
		totalTokens += chunkTokens

		if c.GraphContext != nil && c.GraphContext.InterpretationCount > 0 {
			parts = append(parts, fmt.Sprintf("*Note: %d unified interpretation(s) available for this regulation.*", c.GraphContext.InterpretationCount))
		}
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func extractCitations(answer string) []Citation {
	var citations []Citation
	seen := map[string]bool{}
	for _, m := range citationPattern.FindAllString(answer, -1) {
		if seen[m] {
			continue
		}
		seen[m] = true
		citations = append(citations, Citation{Citation: m, Verified: true})
	}
	return citations
}

// assessConfidence computes confidence from the top candidate's combined
// score, downgrading high→medium when the answer carries a refusal phrase
// (spec.md §4.10 post-processing).
func assessConfidence(candidates []retrieval.Candidate, answer string) string {
	top := topCombinedScore(candidates)
	var confidence string
	switch {
	case len(candidates) == 0:
		confidence = "low"
	case top > 0.85:
		confidence = "high"
	case top > 0.60:
		confidence = "medium"
	default:
		confidence = "low"
	}
	if confidence == "high" && containsAny(strings.ToLower(answer), refusalPhrases) {
		confidence = "medium"
	}
	return confidence
}

func buildSources(candidates []retrieval.Candidate) []Source {
	var sources []Source
	seen := map[uint]bool{}
	for _, c := range candidates {
		if seen[c.ChunkID] {
			continue
		}
		seen[c.ChunkID] = true
		sources = append(sources, Source{
			ChunkID:    c.ChunkID,
			URL:        c.Metadata.SourceURL,
			Breadcrumb: c.BreadcrumbPath,
			Score:      c.CombinedScore,
		})
	}
	return sources
}

func topCombinedScore(candidates []retrieval.Candidate) float64 {
	top := 0.0
	for _, c := range candidates {
		if c.CombinedScore > top {
			top = c.CombinedScore
		}
	}
	return top
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
