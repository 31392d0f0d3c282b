package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-receptionist/internal/config"
)

func newTestHuggingFace(t *testing.T, handler http.Handler) *HuggingFace {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewHuggingFace(config.ProviderConfig{
		APIKey:      "hf_test",
		BaseURL:     server.URL,
		TextModel:   "microsoft/DialoGPT-medium",
		SpeechModel: "openai/whisper-large-v3",
		TTSModel:    "microsoft/speecht5_tts",
		Timeout:     5 * time.Second,
	}, nil, slog.New(slog.DiscardHandler))
}

func TestHuggingFace_GenerateText_ArrayResponse(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models/microsoft/DialoGPT-medium", r.URL.Path)
		assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"generated_text": "assistant: Happy to help with that."},
		})
	})

	h := newTestHuggingFace(t, handler)
	text, err := h.GenerateText(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are a receptionist."},
		{Role: RoleUser, Content: "Can you help?"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Happy to help with that.", text)
}

func TestHuggingFace_GenerateText_ObjectResponse(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"generated_text": "Sure."})
	})

	h := newTestHuggingFace(t, handler)
	text, err := h.GenerateText(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})

	require.NoError(t, err)
	assert.Equal(t, "Sure.", text)
}

func TestHuggingFace_GenerateText_UnauthorizedIsQuotaExceeded(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	})

	h := newTestHuggingFace(t, handler)
	_, err := h.GenerateText(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})

	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestHuggingFace_GenerateText_ServerErrorIsUnavailable(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	})

	h := newTestHuggingFace(t, handler)
	_, err := h.GenerateText(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHuggingFace_TranscribeAudio(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models/openai/whisper-large-v3", r.URL.Path)
		assert.Equal(t, "audio/wav", r.Header.Get("Content-Type"))
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "hello receptionist"})
	})

	h := newTestHuggingFace(t, handler)
	tr, err := h.TranscribeAudio(context.Background(), []byte("wav-bytes"), "en-US")

	require.NoError(t, err)
	assert.Equal(t, "hello receptionist", tr.Transcript)
	assert.Equal(t, "en-US", tr.Language)
	assert.Greater(t, tr.Confidence, 0.0)
}

func TestHuggingFace_TranscribeAudio_FailureIsSoft(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no", http.StatusInternalServerError)
	})

	h := newTestHuggingFace(t, handler)
	tr, err := h.TranscribeAudio(context.Background(), []byte("wav-bytes"), "en-US")

	require.NoError(t, err) // soft failure keeps the conversation alive
	assert.Empty(t, tr.Transcript)
	assert.Zero(t, tr.Confidence)
}

func TestHuggingFace_SynthesizeSpeech(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models/microsoft/speecht5_tts", r.URL.Path)
		_, _ = w.Write([]byte("RIFF-audio-bytes"))
	})

	h := newTestHuggingFace(t, handler)
	speech, err := h.SynthesizeSpeech(context.Background(), "your table is ready", "alloy")

	require.NoError(t, err)
	assert.True(t, speech.Supported)
	assert.Equal(t, []byte("RIFF-audio-bytes"), speech.AudioData)
	assert.Equal(t, "wav", speech.Format)
}

func TestHuggingFace_HealthCheck(t *testing.T) {
	status := http.StatusOK
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	})

	h := newTestHuggingFace(t, handler)
	assert.True(t, h.HealthCheck(context.Background()))

	status = http.StatusServiceUnavailable
	assert.False(t, h.HealthCheck(context.Background()))
}

func TestExtractGeneratedText(t *testing.T) {
	assert.Equal(t, "a", extractGeneratedText([]byte(`[{"generated_text":"a"}]`)))
	assert.Equal(t, "b", extractGeneratedText([]byte(`[{"text":"b"}]`)))
	assert.Equal(t, "c", extractGeneratedText([]byte(`{"generated_text":"c"}`)))
	assert.Equal(t, "", extractGeneratedText([]byte(`[]`)))
	assert.Equal(t, "", extractGeneratedText([]byte(`not json`)))
}
