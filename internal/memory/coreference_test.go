package memory

import (
	"context"
	"strings"
	"testing"

	"bvrag/pkg/llm"

	"github.com/stretchr/testify/assert"
)

func TestResolveCoreferences_NoPronounReturnsQueryUnchanged(t *testing.T) {
	session := &Session{ActiveRegulations: []string{"SOLAS III/31"}}
	got := ResolveCoreferences(context.Background(), &fakeLLMClient{}, session, "消防泵的排量是多少")
	assert.Equal(t, "消防泵的排量是多少", got)
}

func TestResolveCoreferences_NoActiveRegulationsReturnsQueryUnchanged(t *testing.T) {
	session := &Session{}
	got := ResolveCoreferences(context.Background(), &fakeLLMClient{}, session, "这个要求是什么")
	assert.Equal(t, "这个要求是什么", got)
}

func TestResolveCoreferences_ModelRewriteAcceptedWhenWithinRatioGate(t *testing.T) {
	session := &Session{ActiveRegulations: []string{"SOLAS III/31"}}
	client := &fakeLLMClient{completeFn: func(tier llm.Tier, messages []llm.Message) (string, error) {
		return "SOLAS III/31的释放要求是什么", nil
	}}
	got := ResolveCoreferences(context.Background(), client, session, "这个要求是什么")
	assert.Equal(t, "SOLAS III/31的释放要求是什么", got)
}

func TestResolveCoreferences_FallsBackToPrefixWhenModelRewriteTooShort(t *testing.T) {
	session := &Session{
		ActiveRegulations: []string{"SOLAS III/31"},
		Turns: []Turn{
			{Role: "assistant", Metadata: TurnMetadata{RetrievedRegulations: []string{"SOLAS III/31"}}},
		},
	}
	client := &fakeLLMClient{completeFn: func(tier llm.Tier, messages []llm.Message) (string, error) {
		return "ok", nil
	}}
	got := ResolveCoreferences(context.Background(), client, session, "这个要求是什么")
	assert.True(t, strings.HasPrefix(got, "[Context: the previous question was about SOLAS III/31]"))
}

func TestResolveCoreferences_NilLLMClientFallsBackToPrefix(t *testing.T) {
	session := &Session{ActiveRegulations: []string{"SOLAS III/31"}}
	got := ResolveCoreferences(context.Background(), nil, session, "这个要求是什么")
	assert.Contains(t, got, "SOLAS III/31")
}

func TestAcceptRewrite_RejectsExcessiveLengthRatio(t *testing.T) {
	original := "这个"
	rewritten := strings.Repeat("非常长的重写内容用于测试比例门限拒绝逻辑超过三倍长度限制", 3)
	assert.False(t, acceptRewrite(original, rewritten))
}

func TestAcceptRewrite_AcceptsWithinRatioAndMinLength(t *testing.T) {
	assert.True(t, acceptRewrite("这个要求是什么", "SOLAS III/31的释放要求是什么"))
}
