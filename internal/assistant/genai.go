package assistant

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GenAIClient opens chats on the Gemini API.
type GenAIClient struct {
	client *genai.Client
	model  string
}

// NewChatClient returns a nil client when apiKey is empty, which NewService
// treats as unavailable.
func NewChatClient(ctx context.Context, apiKey, model string) (ChatClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, nil
	}
	if model == "" {
		model = DefaultModel
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &GenAIClient{client: c, model: model}, nil
}

func (g *GenAIClient) StartChat(ctx context.Context, systemInstruction string) (ChatSession, error) {
	chat, err := g.client.Chats.Create(ctx, g.model, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	}, nil)
	if err != nil {
		return nil, err
	}
	return genaiChat{chat: chat}, nil
}

type genaiChat struct {
	chat *genai.Chat
}

func (c genaiChat) Send(ctx context.Context, message string) (string, error) {
	resp, err := c.chat.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
