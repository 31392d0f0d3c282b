package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"ai-receptionist/internal/config"
	"ai-receptionist/internal/models"
)

// OpenAI is the full-capability adapter: chat, transcription, TTS and
// embeddings.
type OpenAI struct {
	client      *openai.Client
	store       SessionStore
	textModel   string
	speechModel string
	ttsModel    string
	logger      *slog.Logger
}

var _ Adapter = (*OpenAI)(nil)
var _ Embedder = (*OpenAI)(nil)

func NewOpenAI(cfg config.ProviderConfig, store SessionStore, logger *slog.Logger) *OpenAI {
	return &OpenAI{
		client:      openai.NewClient(cfg.APIKey),
		store:       store,
		textModel:   cfg.TextModel,
		speechModel: cfg.SpeechModel,
		ttsModel:    cfg.TTSModel,
		logger:      logger,
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) CreateSession(_ context.Context, call *models.Call) (SessionInfo, error) {
	sessionID := newSessionID("openai", call.ID)
	call.AISessionID = sessionID
	if o.store != nil {
		if err := o.store.SetAISessionID(call.ID, sessionID); err != nil {
			return SessionInfo{}, err
		}
	}
	o.logger.Info("created OpenAI session", "session_id", sessionID)
	return SessionInfo{
		SessionID: sessionID,
		Provider:  o.Name(),
		Models: map[string]string{
			"text":   o.textModel,
			"speech": o.speechModel,
			"tts":    o.ttsModel,
		},
	}, nil
}

func (o *OpenAI) GenerateText(ctx context.Context, messages []Message) (string, error) {
	chat := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chat = append(chat, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.textModel,
		Messages:    chat,
		MaxTokens:   150,
		Temperature: 0.7,
	})
	if err != nil {
		return "", o.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrUnavailable
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) TranscribeAudio(ctx context.Context, audio []byte, language string) (Transcription, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.speechModel,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		o.logger.Error("transcription failed", "error", err)
		// Soft failure so the conversation can continue text-only.
		return Transcription{Language: language}, nil
	}
	return Transcription{
		Transcript: resp.Text,
		Language:   language,
		Confidence: 0.9,
	}, nil
}

func (o *OpenAI) SynthesizeSpeech(ctx context.Context, text, voice string) (Speech, error) {
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.ttsModel),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          1.0,
	})
	if err != nil {
		return Speech{}, o.classify(err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return Speech{}, o.classify(err)
	}
	return Speech{
		Supported: true,
		AudioData: audio,
		Format:    "mp3",
		Voice:     voice,
	}, nil
}

func (o *OpenAI) EndSession(_ context.Context, call *models.Call) error {
	call.AISessionID = ""
	if o.store != nil {
		return o.store.ClearAISessionID(call.ID)
	}
	return nil
}

func (o *OpenAI) HealthCheck(ctx context.Context) bool {
	_, err := o.client.ListModels(ctx)
	if err != nil {
		o.logger.Error("OpenAI health check failed", "error", err)
		return false
	}
	return true
}

// CreateEmbedding implements the optional Embedder capability.
func (o *OpenAI) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.AdaEmbeddingV2,
	})
	if err != nil {
		return nil, o.classify(err)
	}
	if len(resp.Data) == 0 {
		return nil, ErrUnavailable
	}
	return resp.Data[0].Embedding, nil
}

// classify maps go-openai errors onto the provider taxonomy.
func (o *OpenAI) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return ClassifyStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return ClassifyStatus(reqErr.HTTPStatusCode)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
