// Package gateway owns the per-turn control flow: build bounded context,
// invoke the active provider adapter, persist both sides of the turn, and
// fall back to canned text when the provider is missing or failing. The
// pipeline has no unhandled-failure exit: a response is always produced.
package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"ai-receptionist/internal/database"
	"ai-receptionist/internal/knowledge"
	"ai-receptionist/internal/models"
	"ai-receptionist/internal/provider"
)

// Response source tags.
const (
	SourceProvider = "provider"
	SourceFallback = "fallback"
)

// User-visible failure text. Internal error detail is logged, never
// returned to the caller.
const (
	apologyProviderError = "I apologize, but I'm having trouble processing your request right now. Please try again."
)

// Request is one inbound chat message.
type Request struct {
	SessionID     string // empty on the first message of a session
	PhoneNumberID uint
	CustomerID    *uint
	Message       string
}

// Reply is the gateway's answer for one turn.
type Reply struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	Source    string `json:"source"`
}

type Gateway struct {
	db        *database.DB
	registry  *provider.Registry
	retriever *knowledge.Retriever
	builder   ContextBuilder
	logger    *slog.Logger
}

func New(db *database.DB, registry *provider.Registry, retriever *knowledge.Retriever, logger *slog.Logger) *Gateway {
	return &Gateway{
		db:        db,
		registry:  registry,
		retriever: retriever,
		logger:    logger,
	}
}

// GenerateResponse processes one chat turn. It never returns an error for
// provider failures; only persistence or unknown-phone-number problems
// surface as errors. Duplicate submissions of the same message append
// duplicate user turns; there is no idempotency key.
func (g *Gateway) GenerateResponse(ctx context.Context, req Request) (Reply, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = newChatSessionID()
	}

	call, err := g.db.FindOrCreateChatCall(sessionID, req.PhoneNumberID, req.CustomerID)
	if err != nil {
		return Reply{}, fmt.Errorf("load call: %w", err)
	}

	if err := g.db.AppendMessage(call.ID, models.SenderUser, req.Message); err != nil {
		return Reply{}, fmt.Errorf("persist user turn: %w", err)
	}

	adapter := g.registry.Active()

	var response, source string
	if adapter != nil {
		response, source = g.respondWithProvider(ctx, adapter, call, req)
	} else {
		response, source = g.fallbackGreeting(req), SourceFallback
	}

	if err := g.db.AppendMessage(call.ID, models.SenderAssistant, response); err != nil {
		return Reply{}, fmt.Errorf("persist assistant turn: %w", err)
	}

	return Reply{Response: response, SessionID: sessionID, Source: source}, nil
}

func (g *Gateway) respondWithProvider(ctx context.Context, adapter provider.Adapter, call *models.Call, req Request) (string, string) {
	loaded, err := g.db.LoadCallWithHistory(call.ID)
	if err != nil {
		g.logger.Error("failed to load call history", "call_id", call.ID, "error", err)
		return apologyProviderError, SourceFallback
	}
	// The user turn just appended is context, not history.
	if n := len(loaded.Messages); n > 0 && loaded.Messages[n-1].Sender == models.SenderUser {
		loaded.Messages = loaded.Messages[:n-1]
	}

	if loaded.AISessionID == "" {
		if _, err := adapter.CreateSession(ctx, loaded); err != nil {
			g.logger.Error("failed to create provider session", "provider", adapter.Name(), "error", err)
		}
	}

	faqs := g.loadFAQs(ctx, adapter, req)
	customer := g.loadCustomer(loaded)
	recentCalls := g.loadRecentCalls(loaded, customer)

	messages := g.builder.Build(loaded, faqs, customer, recentCalls, req.Message)

	response, err := adapter.GenerateText(ctx, messages)
	if err != nil {
		g.logger.Error("text generation failed",
			"provider", adapter.Name(), "call_id", call.ID, "error", err)
		return apologyProviderError, SourceFallback
	}
	return response, SourceProvider
}

// loadFAQs prefers embedding retrieval when the adapter can embed, falling
// back to priority order on any retrieval problem.
func (g *Gateway) loadFAQs(ctx context.Context, adapter provider.Adapter, req Request) []models.FAQ {
	if embedder, ok := adapter.(provider.Embedder); ok && g.retriever != nil {
		faqs, err := g.retriever.SearchRelevantFAQs(ctx, embedder, req.Message, req.PhoneNumberID, maxPromptFAQs)
		if err == nil && len(faqs) > 0 {
			return faqs
		}
		if err != nil {
			g.logger.Warn("FAQ retrieval failed, using priority order", "error", err)
		}
	}

	faqs, err := g.db.FAQsForPhoneNumber(req.PhoneNumberID, maxPromptFAQs)
	if err != nil {
		g.logger.Warn("FAQ load failed", "phone_number_id", req.PhoneNumberID, "error", err)
		return nil
	}
	return faqs
}

func (g *Gateway) loadCustomer(call *models.Call) *models.Customer {
	if call.Customer != nil {
		return call.Customer
	}
	if call.CustomerID == nil {
		return nil
	}
	customer, err := g.db.CustomerByID(*call.CustomerID)
	if err != nil {
		g.logger.Warn("customer load failed", "customer_id", *call.CustomerID, "error", err)
		return nil
	}
	return customer
}

func (g *Gateway) loadRecentCalls(call *models.Call, customer *models.Customer) []models.Call {
	if customer == nil {
		return nil
	}
	calls, err := g.db.RecentCallsForCustomer(customer.ID, call.ID, maxRecentCalls)
	if err != nil {
		g.logger.Warn("recent call load failed", "customer_id", customer.ID, "error", err)
		return nil
	}
	return calls
}

// fallbackGreeting is the NO_PROVIDER response: caller and business name
// aware when known, fully generic otherwise.
func (g *Gateway) fallbackGreeting(req Request) string {
	greeting := "Hello"
	if req.CustomerID != nil {
		if customer, err := g.db.CustomerByID(*req.CustomerID); err == nil && customer != nil && customer.Name != "" {
			greeting = "Hello " + customer.Name
		}
	}

	businessName := "our business"
	if pn, err := g.db.PhoneNumberByID(req.PhoneNumberID); err == nil && pn.BusinessName != "" {
		businessName = pn.BusinessName
	}

	return fmt.Sprintf("%s! Thank you for contacting %s. I'm here to help you. How can I assist you today?",
		greeting, businessName)
}

// EndSession releases the provider session handle and marks the call
// completed.
func (g *Gateway) EndSession(ctx context.Context, sessionID string) error {
	call, err := g.db.CallBySessionID(sessionID)
	if err != nil {
		return fmt.Errorf("load call: %w", err)
	}

	if adapter := g.registry.Active(); adapter != nil && call.AISessionID != "" {
		if err := adapter.EndSession(ctx, call); err != nil {
			g.logger.Error("provider session cleanup failed", "session_id", sessionID, "error", err)
		}
	}
	return g.db.CompleteCall(call.ID)
}

// HealthCheck reports the active provider's reachability; false when no
// provider is configured. Side-effect free and safe to run concurrently
// with live traffic.
func (g *Gateway) HealthCheck(ctx context.Context) bool {
	adapter := g.registry.Active()
	if adapter == nil {
		return false
	}
	return adapter.HealthCheck(ctx)
}

func newChatSessionID() string {
	return "web_chat_" + uuid.NewString()
}
