package voice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bvrag/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize_PostsInstructionsAndReturnsAudioBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("fake-mp3-bytes"))
	}))
	defer server.Close()

	client := NewTTSClient(config.VoiceConfig{TTSBaseURL: server.URL, APIKey: "test-key"})
	got, err := client.Synthesize(context.Background(), "消防控制站应设在甲板室内", "mp3")

	require.NoError(t, err)
	assert.Equal(t, []byte("fake-mp3-bytes"), got)
}

func TestSynthesize_ReturnsErrorOnNon200Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewTTSClient(config.VoiceConfig{TTSBaseURL: server.URL, APIKey: "test-key"})
	_, err := client.Synthesize(context.Background(), "text", "mp3")

	assert.Error(t, err)
}

func TestPrepareText_StripsSourcesSectionAndMarkdown(t *testing.T) {
	answer := "**答案**：消防控制站应设在甲板室内 [SOLAS II-2/Reg 9]。\n\n参考来源：\n- SOLAS II-2/Reg 9\n- https://example.com/solas"
	got := prepareText(answer, 0)

	assert.Contains(t, got, "答案")
	assert.NotContains(t, got, "**")
	assert.NotContains(t, got, "参考来源")
	assert.NotContains(t, got, "[SOLAS II-2/Reg 9]")
	assert.NotContains(t, got, "https://")
}

func TestPrepareText_StripsHeadersBlockquotesAndBullets(t *testing.T) {
	answer := "# 标题\n> 引用内容\n- 第一点\n- 第二点"
	got := prepareText(answer, 0)

	assert.NotContains(t, got, "#")
	assert.NotContains(t, got, ">")
	assert.NotContains(t, got, "- ")
}

func TestPrepareText_TruncatesAtSentenceBoundaryPastHalfLimit(t *testing.T) {
	sentence := "这是一句用于测试的示例句子。"
	var b strings.Builder
	for len([]rune(b.String())) < 40 {
		b.WriteString(sentence)
	}
	answer := b.String()

	got := prepareText(answer, 20)

	assert.LessOrEqual(t, len([]rune(got)), 20)
	assert.True(t, strings.HasSuffix(got, "。"))
}

func TestPrepareText_FallsBackToHardTruncationWithoutSentenceBoundary(t *testing.T) {
	answer := strings.Repeat("a", 30)
	got := prepareText(answer, 10)
	assert.Equal(t, 10, len([]rune(got)))
}

func TestPrepareText_ShortTextPassesThroughUnchanged(t *testing.T) {
	answer := "消防控制站应设在甲板室内。"
	got := prepareText(answer, 1500)
	assert.Equal(t, answer, got)
}
