package chatserver

import (
	"context"
	"strings"

	"github.com/Vovarama1992/shop-chat/internal/ai"
	"github.com/Vovarama1992/shop-chat/internal/chat"
)

// cannedRules map keywords in the visitor's text to scripted replies.
// First match wins.
var cannedRules = []struct {
	keywords []string
	reply    string
}{
	{
		keywords: []string{"order", "track"},
		reply:    "You can see all your orders and their status under Profile → Orders. Need a specific order checked? Tell me its number.",
	},
	{
		keywords: []string{"ship", "delivery", "deliver"},
		reply:    "Standard shipping takes 3-5 business days. You will get a tracking link by email as soon as the parcel leaves our warehouse.",
	},
	{
		keywords: []string{"return", "refund", "exchange"},
		reply:    "Returns are free within 30 days of delivery. Start one from Profile → Orders → Return item; the refund lands within 5 days of us receiving the parcel.",
	},
	{
		keywords: []string{"pay", "payment", "card", "invoice"},
		reply:    "We accept cards and all major wallets. Payments are charged when the order ships, never before.",
	},
	{
		keywords: []string{"contact", "human", "support", "agent"},
		reply:    "You can reach our support team through the chat bubble at the bottom right, or by email at support@example.com.",
	},
}

const fallbackReply = "I can help with: order, shipping, return, payment, contact. " +
	"Ask me about one of those, or reach a human through the support chat."

// CannedResponder is the scripted assistant: keyword matching first, an
// optional AI fallback for everything else. With no fallback configured,
// unmatched questions get the help text.
type CannedResponder struct {
	fallback ai.Responder
}

// NewCannedResponder builds the responder. fallback may be nil.
func NewCannedResponder(fallback ai.Responder) *CannedResponder {
	return &CannedResponder{fallback: fallback}
}

func (r *CannedResponder) Reply(ctx context.Context, history []chat.Message, userText string) (string, error) {
	t := strings.ToLower(userText)
	for _, rule := range cannedRules {
		for _, kw := range rule.keywords {
			if strings.Contains(t, kw) {
				return rule.reply, nil
			}
		}
	}

	if r.fallback != nil {
		reply, err := r.fallback.Reply(ctx, history, userText)
		if err == nil && reply != "" {
			return reply, nil
		}
		// AI trouble degrades to the scripted help text.
	}
	return fallbackReply, nil
}
