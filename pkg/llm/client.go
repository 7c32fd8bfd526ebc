// Package llm provides a client for interacting with Large Language Models,
// routed across the primary/fast/cheap model tiers named in SPEC_FULL.md §4.10.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"bvrag/internal/config"

	"github.com/gorilla/websocket"
)

// MessageWriter defines an interface for writing WebSocket messages.
// This allows both a standard websocket.Conn and our interceptor to be used.
type MessageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// Tier selects which configured model answers a call.
type Tier string

const (
	// TierPrimary is the high-capability model used for the default generation path.
	TierPrimary Tier = "primary"
	// TierFast is the cheaper/faster model used for short, narrow queries (spec §4.10).
	TierFast Tier = "fast"
	// TierCheap is the lightweight model used for coreference rewriting and history summarisation (spec §4.9).
	TierCheap Tier = "cheap"
)

// Client defines the interface for an LLM client.
type Client interface {
	// StreamChatMessages streams a chat completion for the given tier to writer.
	StreamChatMessages(ctx context.Context, tier Tier, messages []Message, gen *GenerationParams, writer MessageWriter) error
	// Complete performs a single non-streaming completion, used by classification/coreference/safety steps.
	Complete(ctx context.Context, tier Tier, messages []Message) (string, error)
	// CompleteWithParams is Complete with an explicit generation-parameter override, used by C10
	// to apply the fast/primary max_tokens split (spec §4.10).
	CompleteWithParams(ctx context.Context, tier Tier, messages []Message, gen *GenerationParams) (string, error)
	// ModelFor resolves the concrete model identifier configured for a tier, surfaced in the
	// response envelope's model_used field (spec §6).
	ModelFor(tier Tier) string
}

type openAICompatibleClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates a new LLM client based on the provider in the config.
func NewClient(cfg config.LLMConfig) Client {
	return &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Delta   struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerationParams 控制生成行为
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// ModelFor exposes modelFor through the Client interface.
func (c *openAICompatibleClient) ModelFor(tier Tier) string {
	return c.modelFor(tier)
}

func (c *openAICompatibleClient) modelFor(tier Tier) string {
	switch tier {
	case TierFast:
		if c.cfg.Fast != "" {
			return c.cfg.Fast
		}
	case TierCheap:
		if c.cfg.Cheap != "" {
			return c.cfg.Cheap
		}
	}
	return c.cfg.Primary
}

func (c *openAICompatibleClient) buildRequest(tier Tier, messages []Message, gen *GenerationParams, stream bool) chatRequest {
	reqBody := chatRequest{
		Model:    c.modelFor(tier),
		Messages: messages,
		Stream:   stream,
	}
	if gen != nil {
		reqBody.Temperature = gen.Temperature
		reqBody.TopP = gen.TopP
		reqBody.MaxTokens = gen.MaxTokens
	} else {
		if c.cfg.Generation.Temperature != 0 {
			t := c.cfg.Generation.Temperature
			reqBody.Temperature = &t
		}
		if c.cfg.Generation.TopP != 0 {
			p := c.cfg.Generation.TopP
			reqBody.TopP = &p
		}
		if c.cfg.Generation.MaxTokens != 0 {
			m := c.cfg.Generation.MaxTokens
			reqBody.MaxTokens = &m
		}
	}
	return reqBody
}

// Complete 发送单条非流式请求，用于分类/指代消解/安全校验等短任务。
func (c *openAICompatibleClient) Complete(ctx context.Context, tier Tier, messages []Message) (string, error) {
	return c.CompleteWithParams(ctx, tier, messages, nil)
}

// CompleteWithParams is Complete with an explicit generation-parameter override.
func (c *openAICompatibleClient) CompleteWithParams(ctx context.Context, tier Tier, messages []Message, gen *GenerationParams) (string, error) {
	reqBody := c.buildRequest(tier, messages, gen, false)

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat api returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// StreamChatMessages calls the chat completions API and streams the response to writer.
func (c *openAICompatibleClient) StreamChatMessages(ctx context.Context, tier Tier, messages []Message, gen *GenerationParams, writer MessageWriter) error {
	reqBody := c.buildRequest(tier, messages, gen, true)

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to create chat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chat api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read from stream: %w", err)
		}

		if strings.HasPrefix(line, "data: ") {
			data := strings.TrimPrefix(line, "data: ")
			if strings.TrimSpace(data) == "[DONE]" {
				break
			}

			var chunk chatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}

			if len(chunk.Choices) > 0 {
				content := chunk.Choices[0].Delta.Content
				if content == "" {
					continue
				}
				if err := writer.WriteMessage(websocket.TextMessage, []byte(content)); err != nil {
					return fmt.Errorf("failed to write message to websocket: %w", err)
				}
			}
		}
	}
	return nil
}
