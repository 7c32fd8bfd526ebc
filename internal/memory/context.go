package memory

import (
	"context"
	"strings"

	"bvrag/internal/config"
	"bvrag/pkg/llm"
	"bvrag/pkg/log"
)

const defaultMaxTurns = 10
const summaryMaxTokens = 200

// BuildLLMContext implements C9's context-assembly contract (spec.md §4.9):
// take the most recent 2·max_turns messages, pre-summarising any earlier
// portion with a single bounded cheap-model call, then resolve coreferences
// on the current query.
func BuildLLMContext(ctx context.Context, llmClient llm.Client, cfg config.MemoryConfig, session *Session, currentQuery string) ([]llm.Message, string) {
	maxTurns := cfg.MaxContextTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	window := maxTurns * 2

	var messages []llm.Message
	recent := session.Turns
	if len(session.Turns) > window {
		early := session.Turns[:len(session.Turns)-window]
		recent = session.Turns[len(session.Turns)-window:]
		summary := summarize(ctx, llmClient, early)
		messages = append(messages,
			llm.Message{Role: "user", Content: "[Earlier conversation summary: " + summary + "]"},
			llm.Message{Role: "assistant", Content: "I understand the context from our earlier discussion."},
		)
	}
	for _, t := range recent {
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Content})
	}

	enhancedQuery := ResolveCoreferences(ctx, llmClient, session, currentQuery)
	return messages, enhancedQuery
}

// summarize produces a ~200-token-bounded summary of the pre-window turns.
func summarize(ctx context.Context, llmClient llm.Client, turns []Turn) string {
	if llmClient == nil || len(turns) == 0 {
		return "Previous maritime regulation discussion."
	}
	var b strings.Builder
	for _, t := range turns {
		content := t.Content
		if len(content) > 300 {
			content = content[:300]
		}
		b.WriteString(t.Role + ": " + content + "\n")
	}
	prompt := "Summarise the following maritime-regulation conversation in at most 200 tokens, preserving any cited regulation identifiers:\n\n" + b.String()

	maxTokens := summaryMaxTokens
	text, err := llmClient.CompleteWithParams(ctx, llm.TierCheap, []llm.Message{{Role: "user", Content: prompt}}, &llm.GenerationParams{MaxTokens: &maxTokens})
	if err != nil {
		log.Errorf("[ConversationMemory] 历史摘要调用失败: %v", err)
		return "Previous maritime regulation discussion."
	}
	return strings.TrimSpace(text)
}
