package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"ai-receptionist/internal/config"
	"ai-receptionist/internal/models"
)

// Gemini is a text-only adapter on the Gemini API. Speech operations are
// soft-unsupported: transcription would need Cloud Speech-to-Text, TTS
// would need Cloud Text-to-Speech.
type Gemini struct {
	client *genai.Client
	store  SessionStore
	model  string
	logger *slog.Logger
}

var _ Adapter = (*Gemini)(nil)

func NewGemini(ctx context.Context, cfg config.ProviderConfig, store SessionStore, logger *slog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{
		client: client,
		store:  store,
		model:  cfg.TextModel,
		logger: logger,
	}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) CreateSession(_ context.Context, call *models.Call) (SessionInfo, error) {
	sessionID := newSessionID("gemini", call.ID)
	call.AISessionID = sessionID
	if g.store != nil {
		if err := g.store.SetAISessionID(call.ID, sessionID); err != nil {
			return SessionInfo{}, err
		}
	}
	g.logger.Info("created Gemini session", "session_id", sessionID)
	return SessionInfo{
		SessionID: sessionID,
		Provider:  g.Name(),
		Models:    map[string]string{"text": g.model},
	}, nil
}

func (g *Gemini) GenerateText(ctx context.Context, messages []Message) (string, error) {
	contents := toGeminiContents(messages)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.7),
		TopP:            genai.Ptr[float32](0.9),
		TopK:            genai.Ptr[float32](40),
		MaxOutputTokens: 150,
	})
	if err != nil {
		return "", g.classify(err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty candidate", ErrUnavailable)
	}
	return text, nil
}

// toGeminiContents converts chat messages to Gemini's content format. The
// API has no system role; the system prompt is folded into the first user
// message.
func toGeminiContents(messages []Message) []*genai.Content {
	var system string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = m.Content
			continue
		}
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	if system != "" {
		for _, c := range contents {
			if c.Role == string(genai.RoleUser) && len(c.Parts) > 0 {
				c.Parts[0].Text = fmt.Sprintf("%s\n\nUser message: %s", system, c.Parts[0].Text)
				break
			}
		}
	}
	return contents
}

func (g *Gemini) TranscribeAudio(_ context.Context, _ []byte, language string) (Transcription, error) {
	g.logger.Info("audio transcription requested but not supported by Gemini adapter")
	return Transcription{Language: language}, nil
}

func (g *Gemini) SynthesizeSpeech(_ context.Context, text, voice string) (Speech, error) {
	g.logger.Info("speech synthesis requested but not supported by Gemini adapter")
	return Speech{Voice: voice, TextFallback: text}, nil
}

func (g *Gemini) EndSession(_ context.Context, call *models.Call) error {
	call.AISessionID = ""
	if g.store != nil {
		return g.store.ClearAISessionID(call.ID)
	}
	return nil
}

func (g *Gemini) HealthCheck(ctx context.Context) bool {
	contents := []*genai.Content{genai.NewContentFromText("Health check", genai.RoleUser)}
	_, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		g.logger.Error("Gemini health check failed", "error", err)
		return false
	}
	return true
}

func (g *Gemini) classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return ClassifyStatus(apiErr.Code)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
