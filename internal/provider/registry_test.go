package provider

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ai-receptionist/internal/config"
)

func newRegistry(t *testing.T, cfg config.ProviderConfig) *Registry {
	t.Helper()
	return NewRegistry(context.Background(), cfg, nil, slog.New(slog.DiscardHandler))
}

func TestRegistry_NoneResolvesToNoAdapter(t *testing.T) {
	r := newRegistry(t, config.ProviderConfig{Kind: config.ProviderNone})
	assert.Nil(t, r.Active())
}

func TestRegistry_MissingCredentialResolvesToNoAdapter(t *testing.T) {
	for _, kind := range []config.ProviderKind{
		config.ProviderOpenAI,
		config.ProviderGemini,
		config.ProviderHuggingFace,
	} {
		r := newRegistry(t, config.ProviderConfig{Kind: kind})
		assert.Nil(t, r.Active(), "kind %s without API key", kind)
	}
}

func TestRegistry_OpenAI(t *testing.T) {
	r := newRegistry(t, config.ProviderConfig{
		Kind:      config.ProviderOpenAI,
		APIKey:    "sk-test",
		TextModel: "gpt-3.5-turbo",
		Timeout:   30 * time.Second,
	})

	adapter := r.Active()
	assert.NotNil(t, adapter)
	assert.Equal(t, "openai", adapter.Name())

	// OpenAI is the embedding-capable adapter.
	_, ok := adapter.(Embedder)
	assert.True(t, ok)
}

func TestRegistry_OllamaNeedsNoCredential(t *testing.T) {
	r := newRegistry(t, config.ProviderConfig{
		Kind:      config.ProviderOllama,
		BaseURL:   "http://localhost:11434",
		TextModel: "llama2",
		Timeout:   30 * time.Second,
	})

	adapter := r.Active()
	assert.NotNil(t, adapter)
	assert.Equal(t, "ollama", adapter.Name())
}

func TestRegistry_KubernetesOllama(t *testing.T) {
	r := newRegistry(t, config.ProviderConfig{
		Kind:      config.ProviderKubernetesOllama,
		BaseURL:   "http://ollama-service.ai-services.svc.cluster.local:11434",
		TextModel: "llama2:7b",
		Timeout:   30 * time.Second,
	})

	adapter := r.Active()
	assert.NotNil(t, adapter)
	assert.Equal(t, "kubernetes-ollama", adapter.Name())
}

func TestRegistry_SameInstanceReused(t *testing.T) {
	r := newRegistry(t, config.ProviderConfig{
		Kind:      config.ProviderOllama,
		BaseURL:   "http://localhost:11434",
		TextModel: "llama2",
		Timeout:   30 * time.Second,
	})

	assert.Same(t, r.Active(), r.Active())
}

func TestClassifyStatus(t *testing.T) {
	assert.ErrorIs(t, ClassifyStatus(401), ErrQuotaExceeded)
	assert.ErrorIs(t, ClassifyStatus(429), ErrQuotaExceeded)
	assert.ErrorIs(t, ClassifyStatus(500), ErrUnavailable)
	assert.ErrorIs(t, ClassifyStatus(503), ErrUnavailable)
}
