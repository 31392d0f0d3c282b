package gateway

import (
	"fmt"
	"strings"

	"ai-receptionist/internal/models"
	"ai-receptionist/internal/provider"
)

// Bounds on the context assembled for a turn.
const (
	maxPromptFAQs  = 10
	maxRecentCalls = 3
)

// ContextBuilder assembles the bounded, ordered message list for one turn:
// exactly one system prompt, the call history in chronological order, then
// the new user message last.
type ContextBuilder struct{}

// Build produces the provider context. recentCalls are the customer's prior
// calls, most recent first; faqs are already bounded and ordered by the
// caller. Absent FAQs and customer degrade the prompt to the generic
// identity and instructions block.
func (ContextBuilder) Build(call *models.Call, faqs []models.FAQ, customer *models.Customer, recentCalls []models.Call, userMessage string) []provider.Message {
	messages := make([]provider.Message, 0, len(call.Messages)+2)

	messages = append(messages, provider.Message{
		Role:    provider.RoleSystem,
		Content: buildSystemPrompt(call.PhoneNumber, faqs, customer, recentCalls),
	})

	for _, m := range call.Messages {
		// Any non-user sender renders as the assistant side of the dialogue.
		role := provider.RoleAssistant
		if m.Sender == models.SenderUser {
			role = provider.RoleUser
		}
		messages = append(messages, provider.Message{Role: role, Content: m.Content})
	}

	return append(messages, provider.Message{Role: provider.RoleUser, Content: userMessage})
}

func buildSystemPrompt(phoneNumber *models.PhoneNumber, faqs []models.FAQ, customer *models.Customer, recentCalls []models.Call) string {
	var b strings.Builder

	businessName := "our business"
	if phoneNumber != nil && phoneNumber.BusinessName != "" {
		businessName = phoneNumber.BusinessName
	}
	fmt.Fprintf(&b, "You are an AI receptionist for %s. ", businessName)
	b.WriteString("You are helpful, professional, and knowledgeable about the business. ")

	if customer != nil && customer.Name != "" {
		fmt.Fprintf(&b, "The caller's name is %s. ", customer.Name)
	}

	if phoneNumber != nil {
		if phoneNumber.BusinessHours != "" {
			fmt.Fprintf(&b, "Business hours are: %s. ", phoneNumber.BusinessHours)
		}
		if phoneNumber.BusinessDescription != "" {
			fmt.Fprintf(&b, "About the business: %s. ", phoneNumber.BusinessDescription)
		}
	}

	if len(faqs) > 0 {
		b.WriteString("\n\nFrequently Asked Questions and Answers:\n")
		for i, faq := range faqs {
			if i >= maxPromptFAQs {
				break
			}
			fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", faq.Question, faq.Answer)
		}
		b.WriteString("Use this FAQ information to answer customer questions when relevant. ")
	}

	if customer != nil {
		b.WriteString("\nCustomer Information:\n")
		if customer.Name != "" {
			fmt.Fprintf(&b, "- Name: %s\n", customer.Name)
		}
		if customer.Email != "" {
			fmt.Fprintf(&b, "- Email: %s\n", customer.Email)
		}
		if customer.Company != "" {
			fmt.Fprintf(&b, "- Company: %s\n", customer.Company)
		}
		if customer.Phone != "" {
			fmt.Fprintf(&b, "- Phone: %s\n", customer.Phone)
		}

		summaries := make([]string, 0, maxRecentCalls)
		for _, rc := range recentCalls {
			if len(summaries) >= maxRecentCalls {
				break
			}
			if rc.Summary != "" {
				summaries = append(summaries, fmt.Sprintf("- %s: %s",
					rc.CreatedAt.Format("2006-01-02"), rc.Summary))
			}
		}
		if len(summaries) > 0 {
			b.WriteString("\nRecent interaction history with this customer:\n")
			b.WriteString(strings.Join(summaries, "\n"))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n\nInstructions:\n")
	b.WriteString("- Keep responses concise and helpful (2-3 sentences max)\n")
	b.WriteString("- Be professional and friendly\n")
	b.WriteString("- Use the FAQ information when answering questions\n")
	b.WriteString("- If you don't know something specific, say so and offer to take a message or connect them to someone who can help\n")
	b.WriteString("- For appointment requests, ask for their preferred date and time\n")
	b.WriteString("- Always try to be helpful and move the conversation forward constructively\n")

	return b.String()
}
