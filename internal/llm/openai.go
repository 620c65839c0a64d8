// Package llm wraps the chat-completion provider used for the assistant
// conversation and for condensing a conversation into note material.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// Client is the chat-completion surface the API layer depends on.
// It is an interface so handlers can be tested without network calls.
type Client interface {
	// Chat continues a conversation and returns the assistant's reply.
	Chat(ctx context.Context, messages []Message) (string, error)
	// Summarize condenses a conversation transcript into study-note text.
	Summarize(ctx context.Context, messages []Message) (string, error)
}

const summarizePrompt = "You are a study assistant. Summarize the following " +
	"conversation into a concise study note: capture the key concepts, " +
	"definitions, and examples discussed, in a form suitable for later review. " +
	"Respond with the note text only."

// OpenAI implements Client against the OpenAI chat completions API.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAI creates a chat-completion client.
func NewOpenAI(apiKey, model string, temperature float32, maxTokens int) *OpenAI {
	return &OpenAI{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// Chat sends the conversation as-is and returns the first choice.
func (o *OpenAI) Chat(ctx context.Context, messages []Message) (string, error) {
	return o.complete(ctx, toOpenAI(messages))
}

// Summarize prefixes the summarization instruction and sends the transcript
// as a single user message.
func (o *OpenAI) Summarize(ctx context.Context, messages []Message) (string, error) {
	var transcript strings.Builder
	for _, m := range messages {
		transcript.WriteString(m.Role)
		transcript.WriteString(": ")
		transcript.WriteString(m.Content)
		transcript.WriteString("\n")
	}
	return o.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: summarizePrompt},
		{Role: openai.ChatMessageRoleUser, Content: transcript.String()},
	})
}

func (o *OpenAI) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: provider returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAI(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		role := m.Role
		switch role {
		case openai.ChatMessageRoleSystem, openai.ChatMessageRoleAssistant, openai.ChatMessageRoleUser:
		default:
			role = openai.ChatMessageRoleUser
		}
		out[i] = openai.ChatCompletionMessage{Role: role, Content: m.Content}
	}
	return out
}
