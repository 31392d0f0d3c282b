// Package config resolves the process configuration from the environment.
// Everything is read once at startup; the resulting structs are never
// mutated afterwards.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProviderKind identifies which AI backend the gateway talks to.
type ProviderKind string

const (
	ProviderOpenAI           ProviderKind = "openai"
	ProviderGemini           ProviderKind = "gemini"
	ProviderHuggingFace      ProviderKind = "huggingface"
	ProviderOllama           ProviderKind = "ollama"
	ProviderKubernetesOllama ProviderKind = "kubernetes-ollama"
	ProviderNone             ProviderKind = "none"
)

// ParseProviderKind maps a configuration string to a ProviderKind.
// Unknown values resolve to ProviderNone: a misconfigured provider degrades
// the gateway to its fallback response, it never prevents startup.
func ParseProviderKind(s string) ProviderKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai":
		return ProviderOpenAI
	case "gemini":
		return ProviderGemini
	case "huggingface", "hf":
		return ProviderHuggingFace
	case "ollama":
		return ProviderOllama
	case "kubernetes-ollama", "k8s-ollama":
		return ProviderKubernetesOllama
	case "", "none":
		return ProviderNone
	default:
		slog.Warn("unknown AI provider, falling back to none", "provider", s)
		return ProviderNone
	}
}

// ProviderConfig carries everything needed to construct one adapter.
type ProviderConfig struct {
	Kind        ProviderKind
	APIKey      string
	BaseURL     string
	TextModel   string
	SpeechModel string
	TTSModel    string
	Timeout     time.Duration
}

// DatabaseConfig mirrors the postgres connection parameters.
type DatabaseConfig struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     int
}

// Config is the full process configuration.
type Config struct {
	Addr     string
	Provider ProviderConfig
	Database DatabaseConfig
}

// Load reads configuration from the environment, applying the per-provider
// defaults of the reference deployment.
func Load() Config {
	kind := ParseProviderKind(os.Getenv("AI_PROVIDER"))

	pc := ProviderConfig{
		Kind:    kind,
		Timeout: durationEnv("AI_PROVIDER_TIMEOUT", 30*time.Second),
	}

	switch kind {
	case ProviderOpenAI:
		pc.APIKey = os.Getenv("OPENAI_API_KEY")
		pc.TextModel = envOr("OPENAI_TEXT_MODEL", "gpt-3.5-turbo")
		pc.SpeechModel = envOr("OPENAI_SPEECH_MODEL", "whisper-1")
		pc.TTSModel = envOr("OPENAI_TTS_MODEL", "tts-1")
	case ProviderGemini:
		pc.APIKey = os.Getenv("GOOGLE_API_KEY")
		pc.TextModel = envOr("GEMINI_MODEL", "gemini-pro")
	case ProviderHuggingFace:
		pc.APIKey = os.Getenv("HUGGINGFACE_API_KEY")
		pc.BaseURL = envOr("HUGGINGFACE_URL", "https://api-inference.huggingface.co")
		pc.TextModel = envOr("HF_TEXT_MODEL", "microsoft/DialoGPT-medium")
		pc.SpeechModel = envOr("HF_SPEECH_MODEL", "openai/whisper-large-v3")
		pc.TTSModel = envOr("HF_TTS_MODEL", "microsoft/speecht5_tts")
	case ProviderOllama:
		pc.BaseURL = envOr("OLLAMA_URL", "http://localhost:11434")
		pc.TextModel = envOr("OLLAMA_TEXT_MODEL", "llama2")
		pc.SpeechModel = envOr("OLLAMA_SPEECH_MODEL", "whisper")
	case ProviderKubernetesOllama:
		pc.BaseURL = envOr("OLLAMA_URL", "http://ollama-service.ai-services.svc.cluster.local:11434")
		pc.TextModel = envOr("OLLAMA_TEXT_MODEL", "llama2:7b")
		pc.SpeechModel = envOr("OLLAMA_SPEECH_MODEL", "whisper")
	}

	return Config{
		Addr:     envOr("LISTEN_ADDR", ":8080"),
		Provider: pc,
		Database: DatabaseConfig{
			Host:     envOr("DB_HOST", "localhost"),
			User:     envOr("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     envOr("DB_NAME", "receptionist"),
			Port:     intEnv("DB_PORT", 5432),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", v)
		return fallback
	}
	return n
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	// Accept both bare seconds ("30") and Go durations ("30s").
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", v)
		return fallback
	}
	return d
}
