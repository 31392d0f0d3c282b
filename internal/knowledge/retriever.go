package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pgvector/pgvector-go"

	"ai-receptionist/internal/database"
	"ai-receptionist/internal/models"
	"ai-receptionist/internal/provider"
)

// Retriever ranks FAQ entries by embedding similarity to the user message.
// It is only useful when the active adapter implements provider.Embedder;
// the gateway falls back to priority ordering otherwise.
type Retriever struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRetriever(db *database.DB, logger *slog.Logger) *Retriever {
	return &Retriever{db: db, logger: logger}
}

// SearchRelevantFAQs embeds the query and returns the nearest FAQ entries
// for the phone number.
func (r *Retriever) SearchRelevantFAQs(ctx context.Context, embedder provider.Embedder, query string, phoneNumberID uint, limit int) ([]models.FAQ, error) {
	embedding, err := embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	faqs, err := r.db.SearchSimilarFAQs(embedding, phoneNumberID, limit)
	if err != nil {
		return nil, fmt.Errorf("search FAQs: %w", err)
	}
	return faqs, nil
}

// IndexFAQ embeds an FAQ's question and answer and stores the entry. Used
// by the admin pipeline after creating or re-scanning an FAQ.
func (r *Retriever) IndexFAQ(ctx context.Context, embedder provider.Embedder, faq *models.FAQ) error {
	text := faq.Question + "\n" + faq.Answer
	embedding, err := embedder.CreateEmbedding(ctx, text)
	if err != nil {
		return fmt.Errorf("embed FAQ %d: %w", faq.ID, err)
	}

	vector := pgvector.NewVector(embedding)
	faq.Embedding = &vector
	faq.ContentHash = models.HashContent(faq.Answer)
	if err := r.db.Save(faq).Error; err != nil {
		return fmt.Errorf("store FAQ %d: %w", faq.ID, err)
	}
	r.logger.Debug("indexed FAQ", "faq_id", faq.ID)
	return nil
}

// MatcherForPhoneNumber assembles a Matcher from the persisted business
// profile and FAQ set, for the provider-less widget path.
func (r *Retriever) MatcherForPhoneNumber(phoneNumberID uint) (*Matcher, error) {
	pn, err := r.db.PhoneNumberByID(phoneNumberID)
	if err != nil {
		return nil, fmt.Errorf("load phone number: %w", err)
	}

	faqs, err := r.db.FAQsForPhoneNumber(phoneNumberID, 50)
	if err != nil {
		return nil, fmt.Errorf("load FAQs: %w", err)
	}

	entries := make([]FAQEntry, 0, len(faqs))
	for _, f := range faqs {
		entries = append(entries, FAQEntry{Question: f.Question, Answer: f.Answer})
	}

	return NewMatcher(BusinessInfo{
		Name:     pn.BusinessName,
		Hours:    pn.BusinessHours,
		Phone:    pn.Number,
		Email:    pn.ContactEmail,
		Address:  pn.Address,
		Services: pn.ServiceList(),
	}, entries), nil
}
