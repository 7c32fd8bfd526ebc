package memory

import (
	"context"

	"bvrag/pkg/llm"
)

// fakeLLMClient is a minimal llm.Client test double shared across this
// package's test files.
type fakeLLMClient struct {
	completeFn func(tier llm.Tier, messages []llm.Message) (string, error)
}

func (f *fakeLLMClient) StreamChatMessages(ctx context.Context, tier llm.Tier, messages []llm.Message, gen *llm.GenerationParams, writer llm.MessageWriter) error {
	return nil
}

func (f *fakeLLMClient) Complete(ctx context.Context, tier llm.Tier, messages []llm.Message) (string, error) {
	if f.completeFn != nil {
		return f.completeFn(tier, messages)
	}
	return "", nil
}

func (f *fakeLLMClient) CompleteWithParams(ctx context.Context, tier llm.Tier, messages []llm.Message, gen *llm.GenerationParams) (string, error) {
	return f.Complete(ctx, tier, messages)
}

func (f *fakeLLMClient) ModelFor(tier llm.Tier) string {
	return "fake-model"
}
