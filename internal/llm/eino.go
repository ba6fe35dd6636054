package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EinoClient adapts an eino ChatModel (OpenAI, Azure OpenAI, Gemini, Bedrock)
// to the Client interface. Hosted backends have no cheap liveness endpoint,
// so CheckAvailability validates configuration only and actual reachability
// surfaces on the first request.
type EinoClient struct {
	chatModel model.ToolCallingChatModel
	backend   string
	model     string
}

// NewEinoClient wraps the given ChatModel as a Client.
func NewEinoClient(chatModel model.ToolCallingChatModel, backend, modelName string) *EinoClient {
	return &EinoClient{
		chatModel: chatModel,
		backend:   backend,
		model:     modelName,
	}
}

// Model returns the configured model name.
func (c *EinoClient) Model() string { return c.model }

// Complete generates a response to a single prompt.
func (c *EinoClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
}

// Chat generates the next assistant turn for a conversation.
func (c *EinoClient) Chat(ctx context.Context, turns []Turn) (string, error) {
	messages := make([]*schema.Message, len(turns))
	for i, turn := range turns {
		switch turn.Role {
		case RoleSystem:
			messages[i] = schema.SystemMessage(turn.Content)
		case RoleAssistant:
			messages[i] = schema.AssistantMessage(turn.Content, nil)
		default:
			messages[i] = schema.UserMessage(turn.Content)
		}
	}
	return c.generate(ctx, messages)
}

// CheckAvailability reports whether the client is usable. The hosted APIs
// have no tags-style endpoint worth probing on every health check, so a
// constructed client is considered available.
func (c *EinoClient) CheckAvailability(_ context.Context) error {
	if c.chatModel == nil {
		return fmt.Errorf("%w: %s client is not configured", ErrUnavailable, c.backend)
	}
	return nil
}

// ListModels returns the single configured model. Hosted providers expose
// model catalogs through management APIs that are out of scope here.
func (c *EinoClient) ListModels(_ context.Context) ([]string, error) {
	return []string{c.model}, nil
}

func (c *EinoClient) generate(ctx context.Context, messages []*schema.Message) (string, error) {
	resp, err := c.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("llm: %s generation failed: %w", c.backend, err)
	}
	if resp == nil {
		return "", fmt.Errorf("llm: %s returned an empty response", c.backend)
	}
	return resp.Content, nil
}
