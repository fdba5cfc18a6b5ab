package ai

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Vovarama1992/shop-chat/internal/chat"
	"github.com/Vovarama1992/shop-chat/internal/identity"
	"github.com/Vovarama1992/shop-chat/internal/logging"
)

const supportPrompt = `You are the assistant of an online store.
Answer briefly and only about orders, shipping, returns, payment and contact.
If the question is outside those topics, ask the visitor to contact support.`

// OpenAIResponder answers bot conversations through the OpenAI chat API.
type OpenAIResponder struct {
	client *openai.Client
	model  string
}

// NewOpenAIResponder builds a responder. Model may be empty to use the
// default.
func NewOpenAIResponder(apiKey, model string) *OpenAIResponder {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIResponder{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (r *OpenAIResponder) Reply(ctx context.Context, history []chat.Message, userText string) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: supportPrompt,
	})

	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.SenderRole == identity.RoleBot || m.SenderRole == identity.RoleAdmin {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}

	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userText,
	})

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    r.model,
		Messages: msgs,
	})
	if err != nil {
		logging.Error().Err(err).Msg("openai completion failed")
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("ai: empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}
