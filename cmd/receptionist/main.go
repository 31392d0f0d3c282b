package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ai-receptionist/internal/config"
	"ai-receptionist/internal/database"
	"ai-receptionist/internal/gateway"
	"ai-receptionist/internal/knowledge"
	"ai-receptionist/internal/provider"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	// Initialize database
	db, err := database.NewDB(
		cfg.Database.Host,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.Port,
	)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Resolve the AI provider once; a nil adapter means fallback responses.
	registry := provider.NewRegistry(context.Background(), cfg.Provider, db, logger)
	if adapter := registry.Active(); adapter != nil {
		logger.Info("AI provider configured", "provider", adapter.Name())
		if o, ok := adapter.(*provider.Ollama); ok && cfg.Provider.Kind == config.ProviderKubernetesOllama {
			// Warm the in-cluster model so the first caller does not wait
			// for a pull.
			go o.EnsureModelAvailable(context.Background(), cfg.Provider.TextModel)
		}
	} else {
		logger.Info("no AI provider configured, using fallback responses")
	}

	retriever := knowledge.NewRetriever(db, logger)
	gw := gateway.New(db, registry, retriever, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/ai/chat", handleChat(gw, logger))
	mux.HandleFunc("POST /api/v1/ai/audio", handleAudio(gw, logger))
	mux.HandleFunc("POST /api/v1/knowledge/chat", handleKnowledgeChat(retriever, logger))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		if !gw.HealthCheck(r.Context()) {
			http.Error(w, "provider not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	server := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		logger.Info("AI receptionist gateway listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
}

type chatRequest struct {
	SessionID     string `json:"session_id"`
	PhoneNumberID uint   `json:"phone_number_id"`
	CustomerID    *uint  `json:"customer_id"`
	Message       string `json:"message"`
}

func handleChat(gw *gateway.Gateway, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Message == "" || req.PhoneNumberID == 0 {
			http.Error(w, "message and phone_number_id are required", http.StatusBadRequest)
			return
		}

		reply, err := gw.GenerateResponse(r.Context(), gateway.Request{
			SessionID:     req.SessionID,
			PhoneNumberID: req.PhoneNumberID,
			CustomerID:    req.CustomerID,
			Message:       req.Message,
		})
		if err != nil {
			logger.Error("chat turn failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, reply)
	}
}

type audioRequest struct {
	SessionID string `json:"session_id"`
	AudioData string `json:"audio_data"` // base64 wav
	Language  string `json:"language"`
}

func handleAudio(gw *gateway.Gateway, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req audioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		audio, err := base64.StdEncoding.DecodeString(req.AudioData)
		if err != nil {
			http.Error(w, "audio_data must be base64", http.StatusBadRequest)
			return
		}
		if req.Language == "" {
			req.Language = "en-US"
		}

		turn, err := gw.ProcessAudio(r.Context(), req.SessionID, audio, req.Language)
		if err != nil {
			logger.Error("audio turn failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, turn)
	}
}

type knowledgeChatRequest struct {
	PhoneNumberID uint     `json:"phone_number_id"`
	Message       string   `json:"message"`
	History       []string `json:"history"`
}

// handleKnowledgeChat is the widget path: tiered matching against the
// stored knowledge base, no AI provider involved.
func handleKnowledgeChat(retriever *knowledge.Retriever, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req knowledgeChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Message == "" || req.PhoneNumberID == 0 {
			http.Error(w, "message and phone_number_id are required", http.StatusBadRequest)
			return
		}

		matcher, err := retriever.MatcherForPhoneNumber(req.PhoneNumberID)
		if err != nil {
			logger.Error("knowledge base load failed", "error", err)
			http.Error(w, "unknown phone number", http.StatusNotFound)
			return
		}

		match := matcher.Respond(req.Message, req.History)
		writeJSON(w, map[string]any{
			"response":   match.Response,
			"source":     match.Source,
			"confidence": match.Confidence,
		})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
