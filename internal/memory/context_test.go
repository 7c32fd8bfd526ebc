package memory

import (
	"context"
	"testing"

	"bvrag/internal/config"
	"bvrag/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func turnsN(n int) []Turn {
	out := make([]Turn, 0, n)
	for i := 0; i < n; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		out = append(out, Turn{Role: role, Content: "turn content"})
	}
	return out
}

func TestBuildLLMContext_ReturnsAllTurnsWhenWithinWindow(t *testing.T) {
	session := &Session{Turns: turnsN(4)}
	cfg := config.MemoryConfig{MaxContextTurns: 10}

	messages, _ := BuildLLMContext(context.Background(), &fakeLLMClient{}, cfg, session, "消防泵的排量是多少")
	assert.Len(t, messages, 4)
}

func TestBuildLLMContext_SummarisesEarlierTurnsBeyondWindow(t *testing.T) {
	session := &Session{Turns: turnsN(30)}
	cfg := config.MemoryConfig{MaxContextTurns: 5} // window = 10

	client := &fakeLLMClient{completeFn: func(tier llm.Tier, messages []llm.Message) (string, error) {
		require.Equal(t, llm.TierCheap, tier)
		return "先前讨论了消防泵相关规定。", nil
	}}
	messages, _ := BuildLLMContext(context.Background(), client, cfg, session, "消防泵的排量是多少")

	// 10 recent turns + 2 synthetic summary messages.
	require.Len(t, messages, 12)
	assert.Contains(t, messages[0].Content, "先前讨论了消防泵相关规定。")
}

func TestBuildLLMContext_DefaultsMaxTurnsWhenUnconfigured(t *testing.T) {
	session := &Session{Turns: turnsN(4)}
	cfg := config.MemoryConfig{}

	messages, _ := BuildLLMContext(context.Background(), &fakeLLMClient{}, cfg, session, "消防泵的排量是多少")
	assert.Len(t, messages, 4)
}

func TestBuildLLMContext_ReturnsEnhancedQueryFromCoreferenceResolution(t *testing.T) {
	session := &Session{}
	cfg := config.MemoryConfig{MaxContextTurns: 10}

	_, enhanced := BuildLLMContext(context.Background(), &fakeLLMClient{}, cfg, session, "消防泵的排量是多少")
	assert.Equal(t, "消防泵的排量是多少", enhanced)
}

func TestSummarize_FallsBackWhenClientIsNil(t *testing.T) {
	out := summarize(context.Background(), nil, turnsN(3))
	assert.Equal(t, "Previous maritime regulation discussion.", out)
}

func TestSummarize_EmptyTurnsFallsBack(t *testing.T) {
	out := summarize(context.Background(), &fakeLLMClient{}, nil)
	assert.Equal(t, "Previous maritime regulation discussion.", out)
}
