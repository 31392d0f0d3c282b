package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"ai-receptionist/internal/config"
	"ai-receptionist/internal/models"
)

// HuggingFace talks to the Inference API. Text generation works on simple
// conversational models that complete a flattened transcript; speech runs
// through hosted Whisper and SpeechT5 models.
type HuggingFace struct {
	client      *http.Client
	store       SessionStore
	apiKey      string
	baseURL     string
	textModel   string
	speechModel string
	ttsModel    string
	logger      *slog.Logger
}

var _ Adapter = (*HuggingFace)(nil)

var rolePrefix = regexp.MustCompile(`(?i)^(assistant|human|user):\s*`)

func NewHuggingFace(cfg config.ProviderConfig, store SessionStore, logger *slog.Logger) *HuggingFace {
	return &HuggingFace{
		client:      &http.Client{Timeout: cfg.Timeout},
		store:       store,
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		textModel:   cfg.TextModel,
		speechModel: cfg.SpeechModel,
		ttsModel:    cfg.TTSModel,
		logger:      logger,
	}
}

func (h *HuggingFace) Name() string { return "huggingface" }

func (h *HuggingFace) CreateSession(_ context.Context, call *models.Call) (SessionInfo, error) {
	sessionID := newSessionID("hf", call.ID)
	call.AISessionID = sessionID
	if h.store != nil {
		if err := h.store.SetAISessionID(call.ID, sessionID); err != nil {
			return SessionInfo{}, err
		}
	}
	h.logger.Info("created Hugging Face session", "session_id", sessionID)
	return SessionInfo{
		SessionID: sessionID,
		Provider:  h.Name(),
		Models: map[string]string{
			"text":   h.textModel,
			"speech": h.speechModel,
			"tts":    h.ttsModel,
		},
	}, nil
}

func (h *HuggingFace) GenerateText(ctx context.Context, messages []Message) (string, error) {
	// Flatten to a single conversation string for completion-style models.
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}

	payload := map[string]any{
		"inputs": strings.Join(lines, "\n"),
		"parameters": map[string]any{
			"max_new_tokens":   150,
			"temperature":      0.7,
			"do_sample":        true,
			"return_full_text": false,
		},
	}

	body, err := h.postJSON(ctx, h.modelURL(h.textModel), payload)
	if err != nil {
		return "", err
	}

	text := extractGeneratedText(body)
	text = rolePrefix.ReplaceAllString(strings.TrimSpace(text), "")
	if text == "" {
		return "", fmt.Errorf("%w: empty generation", ErrUnavailable)
	}
	return text, nil
}

// extractGeneratedText handles the Inference API's two response shapes:
// a bare object or a one-element array.
func extractGeneratedText(body []byte) string {
	var arr []struct {
		GeneratedText string `json:"generated_text"`
		Text          string `json:"text"`
	}
	if err := json.Unmarshal(body, &arr); err == nil && len(arr) > 0 {
		if arr[0].GeneratedText != "" {
			return arr[0].GeneratedText
		}
		return arr[0].Text
	}

	var obj struct {
		GeneratedText string `json:"generated_text"`
		Text          string `json:"text"`
	}
	if err := json.Unmarshal(body, &obj); err == nil {
		if obj.GeneratedText != "" {
			return obj.GeneratedText
		}
		return obj.Text
	}
	return ""
}

func (h *HuggingFace) TranscribeAudio(ctx context.Context, audio []byte, language string) (Transcription, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.modelURL(h.speechModel), bytes.NewReader(audio))
	if err != nil {
		return Transcription{Language: language}, nil
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Error("transcription failed", "error", err)
		return Transcription{Language: language}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.logger.Error("transcription failed", "status", resp.StatusCode)
		return Transcription{Language: language}, nil
	}

	var result struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		h.logger.Error("transcription decode failed", "error", err)
		return Transcription{Language: language}, nil
	}

	confidence := result.Confidence
	if confidence == 0 && result.Text != "" {
		confidence = 0.9
	}
	return Transcription{
		Transcript: result.Text,
		Language:   language,
		Confidence: confidence,
	}, nil
}

func (h *HuggingFace) SynthesizeSpeech(ctx context.Context, text, voice string) (Speech, error) {
	payload := map[string]any{
		"inputs":     text,
		"parameters": map[string]any{"voice": voice},
	}

	audio, err := h.postJSON(ctx, h.modelURL(h.ttsModel), payload)
	if err != nil {
		return Speech{}, err
	}
	return Speech{
		Supported: true,
		AudioData: audio,
		Format:    "wav",
		Voice:     voice,
	}, nil
}

func (h *HuggingFace) EndSession(_ context.Context, call *models.Call) error {
	call.AISessionID = ""
	if h.store != nil {
		return h.store.ClearAISessionID(call.ID)
	}
	return nil
}

func (h *HuggingFace) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.modelURL(h.textModel), nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Error("Hugging Face health check failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (h *HuggingFace) modelURL(model string) string {
	return fmt.Sprintf("%s/models/%s", h.baseURL, model)
}

func (h *HuggingFace) postJSON(ctx context.Context, url string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyStatus(resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
