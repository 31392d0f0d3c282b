package provider

import (
	"context"
	"log/slog"

	"ai-receptionist/internal/config"
)

// Registry resolves configuration to exactly one adapter instance,
// constructed once and reused for every request. A missing credential or an
// unknown kind resolves to no adapter rather than an error: a misconfigured
// provider degrades the gateway to its fallback response, it does not take
// the chat pipeline down.
type Registry struct {
	adapter Adapter
}

func NewRegistry(ctx context.Context, cfg config.ProviderConfig, store SessionStore, logger *slog.Logger) *Registry {
	return &Registry{adapter: buildAdapter(ctx, cfg, store, logger)}
}

// NewStaticRegistry wraps an already-constructed adapter. Used by tests and
// by callers that assemble adapters themselves.
func NewStaticRegistry(adapter Adapter) *Registry {
	return &Registry{adapter: adapter}
}

// Active returns the configured adapter, or nil when none is configured.
// Callers must branch on presence.
func (r *Registry) Active() Adapter {
	return r.adapter
}

func buildAdapter(ctx context.Context, cfg config.ProviderConfig, store SessionStore, logger *slog.Logger) Adapter {
	switch cfg.Kind {
	case config.ProviderOpenAI:
		if cfg.APIKey == "" {
			logger.Warn("OpenAI API key missing, running without AI provider")
			return nil
		}
		return NewOpenAI(cfg, store, logger)

	case config.ProviderGemini:
		if cfg.APIKey == "" {
			logger.Warn("Google API key missing, running without AI provider")
			return nil
		}
		adapter, err := NewGemini(ctx, cfg, store, logger)
		if err != nil {
			logger.Error("failed to initialize Gemini provider, running without AI provider", "error", err)
			return nil
		}
		return adapter

	case config.ProviderHuggingFace:
		if cfg.APIKey == "" {
			logger.Warn("Hugging Face API key missing, running without AI provider")
			return nil
		}
		return NewHuggingFace(cfg, store, logger)

	case config.ProviderOllama:
		return NewOllama(cfg, store, logger)

	case config.ProviderKubernetesOllama:
		return NewKubernetesOllama(cfg, store, logger)

	default:
		return nil
	}
}
