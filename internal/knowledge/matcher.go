// Package knowledge answers questions without an AI provider. The matcher
// walks four tiers in a fixed order and short-circuits at the first tier
// that matches anything: FAQ similarity, website content keywords, common
// business query patterns, then a contextual deflection that never fails.
// A weak tier-1 match beats a strong tier-2 match; the ordering is a
// product priority, not a scoring comparison.
package knowledge

import (
	"fmt"
	"strings"
)

// Match sources.
const (
	SourceFAQ          = "FAQ"
	SourceWebsite      = "Website"
	SourceBusinessInfo = "Business Info"
	SourceContextual   = "Contextual"
)

// faqThreshold is the minimum tier-1 score; matches at or below it are
// rejected.
const faqThreshold = 0.3

// contextualConfidence is the fixed confidence of the tier-4 fallback.
const contextualConfidence = 0.3

// Match is the matcher's transient result.
type Match struct {
	Response   string
	Source     string
	Confidence float64
}

// FAQEntry is the matcher's view of one FAQ.
type FAQEntry struct {
	Question string
	Answer   string
}

// ContentBlock is one indexed chunk of website content.
type ContentBlock struct {
	Title    string
	Content  string
	Keywords []string
}

// BusinessInfo seeds the website content index and the canned responders.
type BusinessInfo struct {
	Name     string
	Hours    string
	Phone    string
	Email    string
	Address  string
	Services []string
}

type commonQuery struct {
	name     string
	patterns []string
	respond  func(BusinessInfo) string
}

// Matcher holds the knowledge base for one business. Built once; not safe
// for concurrent mutation, but Respond only reads.
type Matcher struct {
	info    BusinessInfo
	faqs    []FAQEntry
	content []ContentBlock
	queries []commonQuery
}

func NewMatcher(info BusinessInfo, faqs []FAQEntry) *Matcher {
	if info.Name == "" {
		info.Name = "Our Business"
	}
	if info.Hours == "" {
		info.Hours = "Monday-Friday, 9 AM to 5 PM EST"
	}
	m := &Matcher{
		info:    info,
		faqs:    faqs,
		queries: commonQueries(),
	}
	m.indexWebsiteContent()
	return m
}

// Respond picks the best response source for a user message. history is the
// prior conversation, oldest first; only its user-visible text is examined
// for topic hints. Always returns a match.
func (m *Matcher) Respond(userMessage string, history []string) Match {
	message := strings.ToLower(strings.TrimSpace(userMessage))

	if faq, confidence, ok := m.bestFAQMatch(message); ok {
		return Match{Response: faq.Answer, Source: SourceFAQ, Confidence: confidence}
	}

	if block, confidence, ok := m.bestWebsiteMatch(message); ok {
		return Match{Response: block.Content, Source: SourceWebsite, Confidence: confidence}
	}

	if query, confidence, ok := m.bestCommonQueryMatch(message); ok {
		return Match{Response: query.respond(m.info), Source: SourceBusinessInfo, Confidence: confidence}
	}

	return Match{
		Response:   m.contextualFallback(message, history),
		Source:     SourceContextual,
		Confidence: contextualConfidence,
	}
}

// bestFAQMatch scores each FAQ as the better of whole-question Jaccard
// similarity and key-term containment. Ties keep the first FAQ encountered.
func (m *Matcher) bestFAQMatch(message string) (FAQEntry, float64, bool) {
	var best FAQEntry
	var bestScore float64

	for _, faq := range m.faqs {
		question := strings.ToLower(faq.Question)
		score := jaccardSimilarity(message, question)

		keyTerms := keyTerms(question)
		if len(keyTerms) > 0 {
			contained := 0
			for _, term := range keyTerms {
				if strings.Contains(message, term) {
					contained++
				}
			}
			if termScore := float64(contained) / float64(len(keyTerms)); termScore > score {
				score = termScore
			}
		}

		if score > bestScore && score > faqThreshold {
			bestScore = score
			best = faq
		}
	}
	return best, bestScore, bestScore > faqThreshold
}

func (m *Matcher) bestWebsiteMatch(message string) (ContentBlock, float64, bool) {
	var best ContentBlock
	var bestScore float64

	for _, block := range m.content {
		if len(block.Keywords) == 0 {
			continue
		}
		matched := 0
		for _, keyword := range block.Keywords {
			if strings.Contains(message, strings.ToLower(keyword)) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		if score := float64(matched) / float64(len(block.Keywords)); score > bestScore {
			bestScore = score
			best = block
		}
	}
	return best, bestScore, bestScore > 0
}

func (m *Matcher) bestCommonQueryMatch(message string) (commonQuery, float64, bool) {
	var best commonQuery
	var bestScore float64

	for _, query := range m.queries {
		matched := 0
		for _, pattern := range query.patterns {
			if strings.Contains(message, pattern) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		if score := float64(matched) / float64(len(query.patterns)); score > bestScore {
			bestScore = score
			best = query
		}
	}
	return best, bestScore, bestScore > 0
}

func (m *Matcher) contextualFallback(message string, history []string) string {
	var askedServices, askedPricing bool
	for _, prior := range history {
		lower := strings.ToLower(prior)
		if strings.Contains(lower, "service") {
			askedServices = true
		}
		if strings.Contains(lower, "price") {
			askedPricing = true
		}
	}

	if askedServices {
		return fmt.Sprintf("I understand you're interested in our services. Based on your question about %q, I'd recommend speaking with one of our specialists who can provide detailed information tailored to your needs. Would you like me to connect you?", message)
	}
	if askedPricing {
		return fmt.Sprintf("For specific pricing related to %q, I can connect you with our sales team who can provide accurate quotes and discuss options that fit your budget.", message)
	}
	return fmt.Sprintf("I understand you're asking about %q. While I search our knowledge base for more specific information, would you like me to connect you with one of our team members who can provide expert assistance?", message)
}

// indexWebsiteContent builds the about/services/contact blocks from the
// business info, standing in for scraped website sections.
func (m *Matcher) indexWebsiteContent() {
	m.content = []ContentBlock{
		{
			Title:    "About Us",
			Content:  "Information about our company, mission, and values.",
			Keywords: []string{"about", "company", "mission", "values", "who we are"},
		},
		{
			Title:    "Our Services",
			Content:  strings.Join(m.info.Services, ", "),
			Keywords: []string{"services", "what we do", "offerings", "products"},
		},
		{
			Title:    "Contact Information",
			Content:  fmt.Sprintf("Phone: %s, Email: %s, Address: %s", m.info.Phone, m.info.Email, m.info.Address),
			Keywords: []string{"contact", "phone", "email", "address", "location", "reach us"},
		},
	}
}

// commonQueries returns the fixed pattern sets in their evaluation order.
// A slice rather than a map keeps tie-breaking deterministic.
func commonQueries() []commonQuery {
	return []commonQuery{
		{
			name:     "hours",
			patterns: []string{"hours", "open", "closed", "when", "time", "schedule"},
			respond: func(info BusinessInfo) string {
				return fmt.Sprintf("Our business hours are %s.", info.Hours)
			},
		},
		{
			name:     "contact",
			patterns: []string{"contact", "phone", "call", "email", "reach"},
			respond: func(info BusinessInfo) string {
				var b strings.Builder
				b.WriteString("You can contact us ")
				if info.Phone != "" {
					fmt.Fprintf(&b, "by phone at %s, ", info.Phone)
				}
				if info.Email != "" {
					fmt.Fprintf(&b, "by email at %s, ", info.Email)
				}
				b.WriteString("or through this chat.")
				return b.String()
			},
		},
		{
			name:     "location",
			patterns: []string{"location", "address", "where", "find you", "directions"},
			respond: func(info BusinessInfo) string {
				if info.Address == "" {
					return "Please contact us for our location information."
				}
				return fmt.Sprintf("We're located at %s.", info.Address)
			},
		},
		{
			name:     "services",
			patterns: []string{"services", "what do you do", "offerings", "products", "help with"},
			respond: func(info BusinessInfo) string {
				if len(info.Services) == 0 {
					return "We offer various services. Please let me know what you're looking for and I can provide more specific information."
				}
				return fmt.Sprintf("We offer: %s. Would you like more details about any specific service?",
					strings.Join(info.Services, ", "))
			},
		},
		{
			name:     "pricing",
			patterns: []string{"pricing", "cost", "price", "how much", "fees", "rates"},
			respond: func(BusinessInfo) string {
				return "For detailed pricing information, I'd be happy to connect you with one of our representatives who can provide a customized quote based on your needs."
			},
		},
		{
			name:     "help",
			patterns: []string{"help", "support", "assistance", "problem", "issue"},
			respond: func(BusinessInfo) string {
				return "I'm here to help! You can ask me about our services, hours, contact information, or any other questions. If you need specialized assistance, I can connect you with a human agent."
			},
		},
	}
}

// jaccardSimilarity is set overlap over set union of whitespace tokens.
func jaccardSimilarity(a, b string) float64 {
	wordsA := tokenSet(a)
	wordsB := tokenSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

// keyTerms are a question's tokens longer than three characters.
func keyTerms(question string) []string {
	var terms []string
	for _, w := range strings.Fields(question) {
		if len(w) > 3 {
			terms = append(terms, w)
		}
	}
	return terms
}
