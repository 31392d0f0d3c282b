// Package provider abstracts the heterogeneous AI backends behind one
// capability interface. Adapters are constructed once from configuration
// and reused for the process lifetime.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-receptionist/internal/models"
)

// Message roles, mirroring the chat-completion convention.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of bounded conversational context. The first message
// handed to GenerateText is always the system prompt.
type Message struct {
	Role    string
	Content string
}

var (
	// ErrUnavailable covers network errors, timeouts and 5xx responses.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrQuotaExceeded covers 4xx responses: rate limits, bad credentials.
	ErrQuotaExceeded = errors.New("provider quota exceeded")
)

// ClassifyStatus maps an HTTP status to the provider error taxonomy.
func ClassifyStatus(code int) error {
	if code >= 400 && code < 500 {
		return fmt.Errorf("%w: status %d", ErrQuotaExceeded, code)
	}
	return fmt.Errorf("%w: status %d", ErrUnavailable, code)
}

// SessionInfo describes a provider session created for a call.
type SessionInfo struct {
	SessionID string
	Provider  string
	Models    map[string]string
}

// Transcription is the result of speech-to-text. Backends without speech
// support return an empty transcript with confidence 0 instead of failing,
// so text-only conversation can continue.
type Transcription struct {
	Transcript string
	Language   string
	Confidence float64
}

// Speech is the result of text-to-speech. Backends without TTS return
// Supported=false and the text to fall back on.
type Speech struct {
	Supported    bool
	AudioData    []byte
	Format       string
	Voice        string
	TextFallback string
}

// Adapter is the uniform capability surface over one AI backend.
type Adapter interface {
	// Name identifies the backend in logs and session info.
	Name() string

	// CreateSession issues an opaque session handle for a call and records
	// it on the call. Bookkeeping only; never contacts the network.
	CreateSession(ctx context.Context, call *models.Call) (SessionInfo, error)

	// GenerateText produces one assistant reply from ordered context. The
	// context is non-empty and begins with the system prompt. Fails with
	// ErrUnavailable or ErrQuotaExceeded; a single attempt, no retries.
	GenerateText(ctx context.Context, messages []Message) (string, error)

	// TranscribeAudio converts audio to text. Lack of speech support is a
	// soft result, not an error.
	TranscribeAudio(ctx context.Context, audio []byte, language string) (Transcription, error)

	// SynthesizeSpeech converts text to audio, or reports TTS unsupported.
	SynthesizeSpeech(ctx context.Context, text, voice string) (Speech, error)

	// EndSession releases the provider session handle.
	EndSession(ctx context.Context, call *models.Call) error

	// HealthCheck reports backend reachability. Best effort: errors map to
	// false and are never propagated. Side-effect free.
	HealthCheck(ctx context.Context) bool
}

// Embedder is an optional capability for adapters that can produce vector
// embeddings, used for FAQ retrieval.
type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// SessionStore is the slice of persistence the adapters need to track
// session handles.
type SessionStore interface {
	SetAISessionID(callID uint, sessionID string) error
	ClearAISessionID(callID uint) error
}

// newSessionID builds the conventional "<provider>_<call>_<unix>" handle.
func newSessionID(provider string, callID uint) string {
	return fmt.Sprintf("%s_%d_%d", provider, callID, time.Now().Unix())
}
