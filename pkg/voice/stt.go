// Package voice implements C12's speech adapters: thin wrappers around an
// external speech-to-text/text-to-speech API (spec.md §1 names these
// "deliberately out of scope ... thin adapters around an external API").
// Grounded on original_source/voice/stt_service.py and tts_service.py,
// reshaped into the teacher's pkg/embedding.Client constructor-plus-method
// shape (small config-holding struct, one *http.Client, one JSON round-trip).
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"bvrag/internal/config"
	"bvrag/pkg/log"
)

// Transcription is STT's result (spec.md §6 text-query response's
// "transcription" field).
type Transcription struct {
	Text       string `json:"text"`
	Language   string `json:"language"`
	ModelUsed  string `json:"model_used"`
	LatencyMS  int64  `json:"latency_ms"`
}

// STTClient is C12's speech-to-text half.
type STTClient interface {
	Transcribe(ctx context.Context, audio []byte, audioFormat, language string) (*Transcription, error)
}

type sttClient struct {
	cfg    config.VoiceConfig
	client *http.Client
}

// NewSTTClient constructs C12's STT adapter.
func NewSTTClient(cfg config.VoiceConfig) STTClient {
	return &sttClient{cfg: cfg, client: &http.Client{}}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe posts the raw audio to the configured external STT endpoint as
// multipart form data, mirroring the original's OpenAI audio.transcriptions
// call (model+file[+language]); the fallback-model retry named in
// original_source/voice/stt_service.py is the external provider's own
// concern once fronted by a single configured base URL, so it is not
// duplicated here (spec.md §1 Non-goals: STT is an external collaborator).
func (c *sttClient) Transcribe(ctx context.Context, audio []byte, audioFormat, language string) (*Transcription, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio."+audioFormat)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(audio)); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	if language != "" {
		_ = writer.WriteField("language", language)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.STTBaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, fmt.Errorf("create stt request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[VoiceAdapter] STT 调用失败: %v", err)
		return nil, fmt.Errorf("stt backend unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Errorf("[VoiceAdapter] STT 返回非 200 状态码: %s", resp.Status)
		return nil, fmt.Errorf("stt api returned non-200 status: %s", resp.Status)
	}

	var parsed transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode stt response: %w", err)
	}

	lang := language
	if lang == "" {
		lang = "auto"
	}
	return &Transcription{Text: parsed.Text, Language: lang}, nil
}
