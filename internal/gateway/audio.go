package gateway

import (
	"context"
	"fmt"

	"ai-receptionist/internal/models"
	"ai-receptionist/internal/provider"
)

// AudioTurn is the outcome of one audio exchange: what was heard, what was
// answered, and the spoken reply when the provider supports TTS.
type AudioTurn struct {
	Transcript   string `json:"transcript"`
	TextResponse string `json:"text_response"`
	SessionID    string `json:"session_id"`
	AudioData    []byte `json:"audio_data,omitempty"`
	AudioFormat  string `json:"audio_format,omitempty"`
}

// ProcessAudio runs one audio turn: transcribe, respond, persist both
// sides, synthesize. An empty transcript (speech unsupported or inaudible)
// skips the user turn but still produces a response, so text-only providers
// keep the conversation alive. Provider failures yield the apology text.
func (g *Gateway) ProcessAudio(ctx context.Context, sessionID string, audio []byte, language string) (AudioTurn, error) {
	adapter := g.registry.Active()
	if adapter == nil {
		return AudioTurn{}, fmt.Errorf("no AI provider configured")
	}

	call, err := g.db.CallBySessionID(sessionID)
	if err != nil {
		return AudioTurn{}, fmt.Errorf("load call: %w", err)
	}

	transcription, err := adapter.TranscribeAudio(ctx, audio, language)
	if err != nil {
		// Adapters only fail transcription on hard errors; treat as inaudible.
		g.logger.Error("transcription failed", "provider", adapter.Name(), "error", err)
		transcription = provider.Transcription{Language: language}
	}

	if transcription.Transcript != "" {
		if err := g.db.AppendMessage(call.ID, models.SenderUser, transcription.Transcript); err != nil {
			return AudioTurn{}, fmt.Errorf("persist user turn: %w", err)
		}
	}

	loaded, err := g.db.LoadCallWithHistory(call.ID)
	if err != nil {
		return AudioTurn{}, fmt.Errorf("load call history: %w", err)
	}

	if loaded.AISessionID == "" {
		if _, err := adapter.CreateSession(ctx, loaded); err != nil {
			g.logger.Error("failed to create provider session", "provider", adapter.Name(), "error", err)
		}
	}

	faqs := g.loadFAQs(ctx, adapter, Request{PhoneNumberID: loaded.PhoneNumberID, Message: transcription.Transcript})
	customer := g.loadCustomer(loaded)
	recentCalls := g.loadRecentCalls(loaded, customer)

	// History already contains the transcribed user turn; the builder only
	// appends it when it is not persisted yet.
	var messages []provider.Message
	if transcription.Transcript != "" {
		if n := len(loaded.Messages); n > 0 {
			loaded.Messages = loaded.Messages[:n-1]
		}
		messages = g.builder.Build(loaded, faqs, customer, recentCalls, transcription.Transcript)
	} else {
		messages = g.builder.Build(loaded, faqs, customer, recentCalls, "(caller audio could not be understood)")
	}

	response, err := adapter.GenerateText(ctx, messages)
	if err != nil {
		g.logger.Error("text generation failed",
			"provider", adapter.Name(), "call_id", call.ID, "error", err)
		response = apologyProviderError
	}

	if err := g.db.AppendMessage(call.ID, models.SenderAssistant, response); err != nil {
		return AudioTurn{}, fmt.Errorf("persist assistant turn: %w", err)
	}

	turn := AudioTurn{
		Transcript:   transcription.Transcript,
		TextResponse: response,
		SessionID:    loaded.AISessionID,
	}

	speech, err := adapter.SynthesizeSpeech(ctx, response, "alloy")
	if err != nil {
		g.logger.Error("speech synthesis failed", "provider", adapter.Name(), "error", err)
		return turn, nil
	}
	if speech.Supported {
		turn.AudioData = speech.AudioData
		turn.AudioFormat = speech.Format
	}
	return turn, nil
}
