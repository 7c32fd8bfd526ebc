package memory

import (
	"context"
	"fmt"
	"strings"

	"bvrag/pkg/llm"
	"bvrag/pkg/log"
)

// pronounLexicon backs L1 detection (spec.md §4.9: "regex against a
// bilingual pronoun/anaphor lexicon"), ported from
// original_source/memory/conversation_memory.py's PRONOUN_INDICATORS plus
// the additional English anaphors spec.md names explicitly.
var pronounLexicon = []string{
	"这个", "那个", "该", "它", "上面", "前面", "之前", "其", "此",
	"this", "that", "it", "the above", "same", "aforementioned", "these", "those",
}

const (
	coreferenceMinLen      = 5
	coreferenceMinRatio    = 0.3
	coreferenceMaxRatio    = 3.0
	coreferenceLastNTurns  = 6
)

// ResolveCoreferences implements C9's three-layer resolver (spec.md §4.9),
// short-circuiting at the first layer that doesn't apply.
func ResolveCoreferences(ctx context.Context, llmClient llm.Client, session *Session, currentQuery string) string {
	// L1 detect.
	if !hasPronoun(currentQuery) || len(session.ActiveRegulations) == 0 {
		return currentQuery
	}

	// L2 prefix injection (no external call).
	prefixed := prefixWithContext(session, currentQuery)

	// L3 model rewrite (single attempt).
	rewrite, ok := modelRewrite(ctx, llmClient, session, currentQuery)
	if ok {
		log.Infof("[ConversationMemory] 指代消解: '%s' -> '%s'", currentQuery, rewrite)
		return rewrite
	}
	return prefixed
}

func hasPronoun(query string) bool {
	lower := strings.ToLower(query)
	for _, p := range pronounLexicon {
		if strings.Contains(query, p) || strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// prefixWithContext prepends the last assistant turn's retrieved regulations,
// falling back to session-level active_regulations (spec.md §4.9 L2).
func prefixWithContext(session *Session, query string) string {
	regs := lastAssistantRetrievedRegulations(session)
	if len(regs) == 0 {
		regs = session.ActiveRegulations
	}
	if len(regs) == 0 {
		return query
	}
	return fmt.Sprintf("[Context: the previous question was about %s] %s", strings.Join(regs, ", "), query)
}

func lastAssistantRetrievedRegulations(session *Session) []string {
	for i := len(session.Turns) - 1; i >= 0; i-- {
		if session.Turns[i].Role == "assistant" {
			return session.Turns[i].Metadata.RetrievedRegulations
		}
	}
	return nil
}

// modelRewrite calls the cheap model tier for a self-contained rewrite and
// validates it against the length-ratio acceptance gate (spec.md §4.9 L3).
func modelRewrite(ctx context.Context, llmClient llm.Client, session *Session, query string) (string, bool) {
	if llmClient == nil {
		return "", false
	}

	recent := session.Turns
	if len(recent) > coreferenceLastNTurns {
		recent = recent[len(recent)-coreferenceLastNTurns:]
	}
	var exchanges strings.Builder
	for _, t := range recent {
		content := t.Content
		if len(content) > 200 {
			content = content[:200]
		}
		exchanges.WriteString(t.Role + ": " + content + "\n")
	}

	regs := session.ActiveRegulations
	if len(regs) > 5 {
		regs = regs[len(regs)-5:]
	}

	prompt := fmt.Sprintf(
		"Recent regulations discussed: %s\nRecent exchanges:\n%s\nRewrite the following question as a self-contained question in the user's own language, resolving any pronouns using the context above. Reply with only the rewritten question.\nQuestion: %s",
		strings.Join(regs, ", "), exchanges.String(), query,
	)

	text, err := llmClient.Complete(ctx, llm.TierCheap, []llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		log.Errorf("[ConversationMemory] 指代消解模型调用失败: %v", err)
		return "", false
	}
	rewritten := strings.TrimSpace(text)
	if !acceptRewrite(query, rewritten) {
		return "", false
	}
	return rewritten, true
}

func acceptRewrite(original, rewritten string) bool {
	if len(rewritten) < coreferenceMinLen {
		return false
	}
	ratio := float64(len([]rune(rewritten))) / float64(len([]rune(original)))
	return ratio >= coreferenceMinRatio && ratio <= coreferenceMaxRatio
}
