package openai

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	"github.com/yanqian/pdfchat/internal/domain/chat"
	apperrors "github.com/yanqian/pdfchat/pkg/errors"
)

// ChatAdapter implements the chat completion boundary on the provider
// client. File attachments are encoded as inline PDF content parts.
type ChatAdapter struct {
	client      *Client
	model       string
	temperature float32
	timeout     time.Duration
	logger      *slog.Logger
}

var _ chat.LLM = (*ChatAdapter)(nil)

func NewChatAdapter(client *Client, model string, temperature float32, timeout time.Duration, logger *slog.Logger) *ChatAdapter {
	return &ChatAdapter{
		client:      client,
		model:       model,
		temperature: temperature,
		timeout:     timeout,
		logger:      logger.With("component", "llm_adapter"),
	}
}

func (a *ChatAdapter) Complete(ctx context.Context, messages []chat.LLMMessage) (string, error) {
	resp, err := a.call(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	choice, err := firstChoice(resp)
	if err != nil {
		return "", err
	}
	return contentText(choice.Content), nil
}

func (a *ChatAdapter) CompleteWithTools(ctx context.Context, messages []chat.LLMMessage, tools []chat.ToolSpec) (chat.ToolOutcome, error) {
	providerTools := make([]Tool, len(tools))
	for i, t := range tools {
		providerTools[i] = Tool{
			Type: "function",
			Function: ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}

	resp, err := a.call(ctx, messages, providerTools)
	if err != nil {
		return chat.ToolOutcome{}, err
	}
	choice, err := firstChoice(resp)
	if err != nil {
		return chat.ToolOutcome{}, err
	}

	if len(choice.ToolCalls) > 0 {
		call := choice.ToolCalls[0]
		return chat.ToolOutcome{
			Call: &chat.ToolCall{Name: call.Function.Name, Arguments: call.Function.Arguments},
		}, nil
	}
	return chat.ToolOutcome{Text: contentText(choice.Content)}, nil
}

func (a *ChatAdapter) call(ctx context.Context, messages []chat.LLMMessage, tools []Tool) (ChatCompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req := ChatCompletionRequest{
		Model:       a.model,
		Messages:    convertMessages(messages),
		Temperature: a.temperature,
		Tools:       tools,
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return ChatCompletionResponse{}, apperrors.Wrap(apperrors.CodeLLMFailure, "chat completion failed", err)
	}
	a.logger.Debug("chat completion finished", "messages", len(messages), "tools", len(tools), "elapsed", time.Since(start))
	return resp, nil
}

func convertMessages(messages []chat.LLMMessage) []Message {
	out := make([]Message, len(messages))
	for i, msg := range messages {
		if len(msg.Attachments) == 0 {
			out[i] = Message{Role: msg.Role, Content: msg.Content}
			continue
		}
		parts := make([]any, 0, len(msg.Attachments)+1)
		for _, att := range msg.Attachments {
			parts = append(parts, FilePart{
				Type: "file",
				File: FilePayload{
					Filename: att.Filename,
					FileData: "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(att.Data),
				},
			})
		}
		parts = append(parts, TextPart{Type: "text", Text: msg.Content})
		out[i] = Message{Role: msg.Role, Content: parts}
	}
	return out
}

func firstChoice(resp ChatCompletionResponse) (Message, error) {
	if len(resp.Choices) == 0 {
		return Message{}, apperrors.Wrap(apperrors.CodeLLMFailure, "provider returned no choices", nil)
	}
	return resp.Choices[0].Message, nil
}

func contentText(content any) string {
	if s, ok := content.(string); ok {
		return s
	}
	return ""
}
