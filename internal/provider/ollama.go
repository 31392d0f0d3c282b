package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"ai-receptionist/internal/config"
	"ai-receptionist/internal/models"
)

// Ollama is a text-only adapter on the Ollama generate API. The kubernetes
// flavor targets an in-cluster service, matches model names by base name in
// health checks and pulls missing models on demand.
type Ollama struct {
	client     *http.Client
	store      SessionStore
	baseURL    string
	textModel  string
	kubernetes bool
	logger     *slog.Logger
}

var _ Adapter = (*Ollama)(nil)

func NewOllama(cfg config.ProviderConfig, store SessionStore, logger *slog.Logger) *Ollama {
	return &Ollama{
		client:    &http.Client{Timeout: cfg.Timeout},
		store:     store,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		textModel: cfg.TextModel,
		logger:    logger,
	}
}

func NewKubernetesOllama(cfg config.ProviderConfig, store SessionStore, logger *slog.Logger) *Ollama {
	o := NewOllama(cfg, store, logger)
	o.kubernetes = true
	return o
}

func (o *Ollama) Name() string {
	if o.kubernetes {
		return "kubernetes-ollama"
	}
	return "ollama"
}

func (o *Ollama) CreateSession(_ context.Context, call *models.Call) (SessionInfo, error) {
	prefix := "ollama"
	if o.kubernetes {
		prefix = "k8s_ollama"
	}
	sessionID := newSessionID(prefix, call.ID)
	call.AISessionID = sessionID
	if o.store != nil {
		if err := o.store.SetAISessionID(call.ID, sessionID); err != nil {
			return SessionInfo{}, err
		}
	}
	o.logger.Info("created Ollama session", "session_id", sessionID, "kubernetes", o.kubernetes)
	return SessionInfo{
		SessionID: sessionID,
		Provider:  o.Name(),
		Models:    map[string]string{"text": o.textModel},
	}, nil
}

func (o *Ollama) GenerateText(ctx context.Context, messages []Message) (string, error) {
	prompt := buildOllamaPrompt(messages)

	payload := map[string]any{
		"model":  o.textModel,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": 0.7,
			"top_p":       0.9,
			"num_predict": 150,
			"stop":        []string{"User:", "Assistant:"},
		},
	}

	body, err := o.postJSON(ctx, o.baseURL+"/api/generate", payload)
	if err != nil {
		return "", err
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	text := rolePrefix.ReplaceAllString(strings.TrimSpace(result.Response), "")
	text = strings.TrimSpace(text)
	if text == "" {
		text = "I understand. How can I help you further?"
	}
	return text, nil
}

// buildOllamaPrompt flattens ordered context into the completion prompt the
// generate endpoint expects.
func buildOllamaPrompt(messages []Message) string {
	var system string
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = m.Content
			continue
		}
		role := "User"
		if m.Role == RoleAssistant {
			role = "Assistant"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, m.Content))
	}

	conversation := strings.Join(lines, "\n")
	if system == "" {
		system = "You are a helpful AI receptionist. Respond professionally and concisely."
	}
	return fmt.Sprintf("%s\n\nConversation:\n%s\n\nAssistant:", system, conversation)
}

func (o *Ollama) TranscribeAudio(_ context.Context, _ []byte, language string) (Transcription, error) {
	// Whisper support varies by deployment; treated as unavailable so the
	// conversation continues text-only.
	o.logger.Info("audio transcription not available, continuing with text-only")
	return Transcription{Language: language}, nil
}

func (o *Ollama) SynthesizeSpeech(_ context.Context, text, voice string) (Speech, error) {
	o.logger.Info("TTS requested but not supported by Ollama")
	return Speech{Voice: voice, TextFallback: text}, nil
}

func (o *Ollama) EndSession(_ context.Context, call *models.Call) error {
	call.AISessionID = ""
	if o.store != nil {
		return o.store.ClearAISessionID(call.ID)
	}
	return nil
}

// HealthCheck reports whether the service is reachable and the configured
// text model is present in its tag list.
func (o *Ollama) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		o.logger.Error("Ollama health check failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}

	want := o.textModel
	if o.kubernetes {
		// In-cluster deployments tag variants like llama2:7b-chat; match on
		// the base name.
		want, _, _ = strings.Cut(want, ":")
	}
	for _, m := range result.Models {
		if strings.Contains(m.Name, want) {
			return true
		}
	}
	return false
}

// EnsureModelAvailable checks the tag list and pulls the model if missing.
// Kubernetes deployments call this at startup so the first conversation
// does not pay the pull cost.
func (o *Ollama) EnsureModelAvailable(ctx context.Context, model string) bool {
	if o.HealthCheck(ctx) {
		return true
	}

	o.logger.Info("pulling model", "model", model)
	_, err := o.postJSON(ctx, o.baseURL+"/api/pull", map[string]any{"name": model})
	if err != nil {
		o.logger.Error("model pull failed", "model", model, "error", err)
		return false
	}
	return true
}

func (o *Ollama) postJSON(ctx context.Context, url string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyStatus(resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
