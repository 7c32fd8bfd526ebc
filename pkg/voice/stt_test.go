package voice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"bvrag/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscribe_ParsesTextFromUpstreamResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"消防控制站应设在甲板室内"}`))
	}))
	defer server.Close()

	client := NewSTTClient(config.VoiceConfig{STTBaseURL: server.URL, APIKey: "test-key"})
	got, err := client.Transcribe(context.Background(), []byte("fake-audio-bytes"), "webm", "")

	require.NoError(t, err)
	assert.Equal(t, "消防控制站应设在甲板室内", got.Text)
	assert.Equal(t, "auto", got.Language)
}

func TestTranscribe_PropagatesLanguageWhenSpecified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"hello"}`))
	}))
	defer server.Close()

	client := NewSTTClient(config.VoiceConfig{STTBaseURL: server.URL, APIKey: "test-key"})
	got, err := client.Transcribe(context.Background(), []byte("fake-audio-bytes"), "wav", "en")

	require.NoError(t, err)
	assert.Equal(t, "en", got.Language)
}

func TestTranscribe_ReturnsErrorOnNon200Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewSTTClient(config.VoiceConfig{STTBaseURL: server.URL, APIKey: "test-key"})
	_, err := client.Transcribe(context.Background(), []byte("fake-audio-bytes"), "webm", "")

	assert.Error(t, err)
}
