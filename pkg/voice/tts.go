package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"bvrag/internal/config"
	"bvrag/pkg/log"
)

// maritimeInstructions steers the TTS voice's pronunciation of regulation
// numbers, tonnage figures, and dates (original_source/voice/tts_service.py's
// MARITIME_INSTRUCTIONS, carried verbatim in meaning).
const maritimeInstructions = "You are narrating maritime regulatory guidance for a ship surveyor. " +
	"Read regulation references like \"SOLAS II-2/Reg 9\" naturally, as a surveyor would say them aloud " +
	"(\"SOLAS chapter two dash two, regulation nine\"), not as a string of individual characters. " +
	"Read tonnage figures with their unit (\"three thousand gross tons\"), and dates in full " +
	"(\"the first of July, two thousand and two\"). Speak at a measured, professional pace."

const (
	defaultTTSVoice = "ash"
	ttsMaxLength    = 1500
)

// TTSClient is C12's text-to-speech half.
type TTSClient interface {
	Synthesize(ctx context.Context, text, outputFormat string) ([]byte, error)
	PrepareText(answer string, maxLength int) string
}

type ttsClient struct {
	cfg    config.VoiceConfig
	client *http.Client
}

// NewTTSClient constructs C12's TTS adapter.
func NewTTSClient(cfg config.VoiceConfig) TTSClient {
	return &ttsClient{cfg: cfg, client: &http.Client{}}
}

type ttsRequest struct {
	Model        string `json:"model"`
	Input        string `json:"input"`
	Voice        string `json:"voice"`
	Instructions string `json:"instructions"`
	Format       string `json:"response_format,omitempty"`
}

// Synthesize renders text to speech through the configured external TTS
// endpoint, mirroring original_source/voice/tts_service.py's synthesize().
func (c *ttsClient) Synthesize(ctx context.Context, text, outputFormat string) ([]byte, error) {
	if outputFormat == "" {
		outputFormat = "mp3"
	}

	payload, err := json.Marshal(ttsRequest{
		Model:        "gpt-4o-mini-tts",
		Input:        text,
		Voice:        defaultTTSVoice,
		Instructions: maritimeInstructions,
		Format:       outputFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TTSBaseURL+"/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[VoiceAdapter] TTS 调用失败: %v", err)
		return nil, fmt.Errorf("tts backend unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Errorf("[VoiceAdapter] TTS 返回非 200 状态码: %s", resp.Status)
		return nil, fmt.Errorf("tts api returned non-200 status: %s", resp.Status)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts audio: %w", err)
	}
	return audio, nil
}

var (
	sourcesSectionRe = regexp.MustCompile(`(?is)\n(参考来源|Sources:|References:).*$`)
	boldMarkdownRe   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	headerRe         = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	blockquoteRe     = regexp.MustCompile(`(?m)^>\s*`)
	listBulletRe     = regexp.MustCompile(`(?m)^[-*]\s+`)
	urlRe            = regexp.MustCompile(`https?://\S+`)
	citationRe       = regexp.MustCompile(`\[[^\]]*\]`)
	excessNewlinesRe = regexp.MustCompile(`\n{3,}`)
	sentenceEndRe    = regexp.MustCompile(`[。！？.!?]`)
)

// PrepareText strips an answer of markdown, citations, links, and the
// trailing "sources" section, then truncates it to maxLength (preferring a
// sentence boundary) so spoken output never reads out bracketed citations or
// reference lists (original_source/voice/tts_service.py's
// prepare_tts_text, ported as the adapter's own method rather than a
// standalone function since it has no state of its own beyond the constant).
func (c *ttsClient) PrepareText(answer string, maxLength int) string {
	return prepareText(answer, maxLength)
}

func prepareText(answer string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = ttsMaxLength
	}

	text := sourcesSectionRe.ReplaceAllString(answer, "")
	text = boldMarkdownRe.ReplaceAllString(text, "$1")
	text = headerRe.ReplaceAllString(text, "")
	text = blockquoteRe.ReplaceAllString(text, "")
	text = listBulletRe.ReplaceAllString(text, "")
	text = urlRe.ReplaceAllString(text, "")
	text = citationRe.ReplaceAllString(text, "")
	text = excessNewlinesRe.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}

	truncated := runes[:maxLength]
	half := maxLength / 2
	if loc := lastSentenceEnd(truncated, half); loc >= 0 {
		return string(truncated[:loc+1])
	}
	return string(truncated)
}

func lastSentenceEnd(runes []rune, after int) int {
	last := -1
	for i, r := range runes {
		if i < after {
			continue
		}
		if sentenceEndRe.MatchString(string(r)) {
			last = i
		}
	}
	return last
}
