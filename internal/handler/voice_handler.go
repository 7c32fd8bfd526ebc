package handler

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"bvrag/internal/apperr"
	"bvrag/internal/pipeline"
	"bvrag/pkg/log"
	"bvrag/pkg/storage"
	"bvrag/pkg/voice"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const ttsAudioFormat = "mp3"

// VoiceHandler implements the text-query/voice-query/tts/websocket surface
// of spec.md §6, fronting C11 and C12 (STT/TTS adapters).
type VoiceHandler struct {
	orchestrator *pipeline.Orchestrator
	stt          voice.STTClient
	tts          voice.TTSClient
	audioBucket  string
}

// NewVoiceHandler constructs the voice-surface handler.
func NewVoiceHandler(orchestrator *pipeline.Orchestrator, stt voice.STTClient, tts voice.TTSClient, audioBucket string) *VoiceHandler {
	return &VoiceHandler{orchestrator: orchestrator, stt: stt, tts: tts, audioBucket: audioBucket}
}

type transcriptionInfo struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// TextQuery implements POST /api/v1/voice/text-query.
func (h *VoiceHandler) TextQuery(c *gin.Context) {
	text := c.PostForm("text")
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	sessionID := c.PostForm("session_id")
	inputMode := c.DefaultPostForm("input_mode", "text")
	generateAudio, _ := strconv.ParseBool(c.DefaultPostForm("generate_audio", "false"))

	h.respond(c, sessionID, text, inputMode, generateAudio, nil)
}

// Query implements POST /api/v1/voice/query: STT first, then the text path.
func (h *VoiceHandler) Query(c *gin.Context) {
	file, _, err := c.Request.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio file is required"})
		return
	}
	defer file.Close()

	audioBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read audio upload"})
		return
	}

	sessionID := c.PostForm("session_id")
	inputMode := c.DefaultPostForm("input_mode", "voice")
	generateAudio, _ := strconv.ParseBool(c.DefaultPostForm("generate_audio", "false"))

	transcription, err := h.stt.Transcribe(c.Request.Context(), audioBytes, "webm", "")
	if err != nil {
		log.Errorf("[VoiceHandler] STT 转写失败: %v", err)
		c.Error(apperr.New(apperr.KindUnavailable, "handler.voice", "speech-to-text backend unavailable", err))
		return
	}

	h.respond(c, sessionID, transcription.Text, inputMode, generateAudio, &transcriptionInfo{
		Text: transcription.Text, Language: transcription.Language,
	})
}

// respond runs C11 and shapes the response envelope shared by TextQuery/Query.
func (h *VoiceHandler) respond(c *gin.Context, sessionID, text, inputMode string, generateAudio bool, transcription *transcriptionInfo) {
	resp, err := h.orchestrator.Handle(c.Request.Context(), pipeline.Request{
		SessionID: sessionID,
		Query:     text,
		InputMode: inputMode,
	})
	if err != nil {
		log.Errorf("[VoiceHandler] 管道处理失败: %v", err)
		c.Error(err)
		return
	}

	var audioBase64 interface{}
	if generateAudio {
		audio, err := h.synthesize(c, resp.Answer)
		if err != nil {
			log.Errorf("[VoiceHandler] TTS 合成失败: %v", err)
			audioBase64 = nil
		} else {
			audioBase64 = base64.StdEncoding.EncodeToString(audio)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":          resp.SessionID,
		"enhanced_query":      resp.EnhancedQuery,
		"answer_text":         resp.Answer,
		"answer_audio_base64": audioBase64,
		"citations":           resp.Citations,
		"confidence":          resp.Confidence,
		"model_used":          resp.ModelUsed,
		"sources":             resp.Sources,
		"timing":              resp.TimingMS,
		"input_mode":          inputMode,
		"transcription":       transcription,
	})
}

// TTS implements POST /api/v1/voice/tts.
func (h *VoiceHandler) TTS(c *gin.Context) {
	text := c.PostForm("text")
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	audio, err := h.synthesize(c, text)
	if err != nil {
		log.Errorf("[VoiceHandler] TTS 合成失败: %v", err)
		c.Error(apperr.New(apperr.KindUnavailable, "handler.voice", "text-to-speech backend unavailable", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"answer_audio_base64": base64.StdEncoding.EncodeToString(audio),
		"audio_format":        ttsAudioFormat,
	})
}

// synthesize caches generated audio in MinIO under a content hash of the
// prepared text, so repeat requests for the same answer skip the external
// TTS call (SPEC_FULL.md §2).
func (h *VoiceHandler) synthesize(c *gin.Context, answer string) ([]byte, error) {
	prepared := h.tts.PrepareText(answer, 0)
	sum := sha256.Sum256([]byte(prepared))
	objectName := hex.EncodeToString(sum[:]) + "." + ttsAudioFormat

	ctx := c.Request.Context()
	if storage.ObjectExists(ctx, h.audioBucket, objectName) {
		return storage.GetAudio(ctx, h.audioBucket, objectName)
	}

	audio, err := h.tts.Synthesize(ctx, prepared, ttsAudioFormat)
	if err != nil {
		return nil, err
	}
	if err := storage.PutAudio(ctx, h.audioBucket, objectName, audio, "audio/mpeg"); err != nil {
		log.Warnf("[VoiceHandler] TTS 音频缓存写入失败: %v", err)
	}
	return audio, nil
}

type wsInbound struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Audio string `json:"audio"`
}

// WebSocket implements WS /api/v1/voice/ws/{session_id}, structured like the
// teacher's ChatHandler.Handle streaming loop (message read → pipeline call
// → JSON write), generalised from a one-shot stream to BV-RAG's
// request/response envelope per message.
func (h *VoiceHandler) WebSocket(c *gin.Context) {
	sessionID := c.Param("session_id")

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("[VoiceHandler] WebSocket 升级失败: %v", err)
		return
	}
	defer conn.Close()

	log.Infof("[VoiceHandler] WebSocket 连接已建立, session=%s", sessionID)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("[VoiceHandler] 读取 WebSocket 消息失败: %v", err)
			return
		}

		var inbound wsInbound
		if err := json.Unmarshal(raw, &inbound); err != nil {
			writeWSError(conn, "invalid message payload")
			continue
		}

		ctx := c.Request.Context()
		var queryText, inputMode string
		switch inbound.Type {
		case "text":
			queryText = inbound.Text
			inputMode = "text"
		case "audio":
			audioBytes, err := base64.StdEncoding.DecodeString(inbound.Audio)
			if err != nil {
				writeWSError(conn, "invalid base64 audio payload")
				continue
			}
			transcription, err := h.stt.Transcribe(ctx, audioBytes, "webm", "")
			if err != nil {
				writeWSError(conn, "speech-to-text backend unavailable")
				continue
			}
			queryText = transcription.Text
			inputMode = "voice"
		default:
			writeWSError(conn, "unknown message type")
			continue
		}

		resp, err := h.orchestrator.Handle(ctx, pipeline.Request{SessionID: sessionID, Query: queryText, InputMode: inputMode})
		if err != nil {
			log.Errorf("[VoiceHandler] WebSocket 管道处理失败: %v", err)
			writeWSError(conn, "pipeline unavailable")
			continue
		}

		payload, _ := json.Marshal(gin.H{
			"type":           "response",
			"session_id":     resp.SessionID,
			"enhanced_query": resp.EnhancedQuery,
			"answer_text":    resp.Answer,
			"citations":      resp.Citations,
			"confidence":     resp.Confidence,
			"model_used":     resp.ModelUsed,
			"sources":        resp.Sources,
			"timing":         resp.TimingMS,
			"input_mode":     inputMode,
		})
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Warnf("[VoiceHandler] 写入 WebSocket 消息失败: %v", err)
			return
		}
	}
}

func writeWSError(conn *websocket.Conn, message string) {
	payload, _ := json.Marshal(gin.H{"type": "error", "message": message})
	_ = conn.WriteMessage(websocket.TextMessage, payload)
}
