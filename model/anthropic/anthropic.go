// Package anthropic provides a model.ChatModel over the Anthropic Messages
// API, as an alternate backend to the default Ollama adapter.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/dataninja/ragchat/core"
	"github.com/dataninja/ragchat/model"
)

// Options configure the Anthropic chat model adapter.
type Options struct {
	// Model is the model identifier, converted to the SDK's Model type at
	// request time so callers stay free of the SDK import.
	Model       string
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind model.ChatModel.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// New creates an Anthropic chat model using the official client.
func New(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       string(anthropic.ModelClaude3_5Sonnet20241022),
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewFromClient creates an Anthropic chat model from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       string(anthropic.ModelClaude3_5Sonnet20241022),
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Invoke implements model.ChatModel.
func (m *Model) Invoke(ctx context.Context, messages []core.Message, tools []model.ToolDefinition) (core.Message, error) {
	if len(messages) == 0 {
		return core.Message{}, fmt.Errorf("conversation must contain at least one message")
	}

	params := m.buildParams(messages, tools)
	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return core.Message{}, mapBackendError(err)
	}

	msg := core.Message{Role: core.RoleAI}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			msg.Content += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := map[string]any{}
			if toolBlock.Input != nil {
				if raw, err := json.Marshal(toolBlock.Input); err == nil {
					_ = json.Unmarshal(raw, &args)
				}
			}
			msg.ToolCalls = append(msg.ToolCalls, core.ToolCallRequest{
				ID:   toolBlock.ID,
				Name: toolBlock.Name,
				Args: args,
			})
		}
	}
	return msg, nil
}

// Stream implements model.ChatModel. Only text deltas are forwarded; the
// streaming path carries no tool binding.
func (m *Model) Stream(ctx context.Context, messages []core.Message) (*core.Stream, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("conversation must contain at least one message")
	}

	params := m.buildParams(messages, nil)
	stream := m.client.Messages.NewStreaming(ctx, params)

	ch := make(chan core.Fragment, 32)
	go func() {
		defer close(ch)
		for stream.Next() {
			event := stream.Current()
			delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" {
				select {
				case <-ctx.Done():
					ch <- core.Fragment{Err: mapBackendError(ctx.Err())}
					return
				case ch <- core.Fragment{Text: text.Text}:
				}
			}
		}
		if err := stream.Err(); err != nil {
			ch <- core.Fragment{Err: mapBackendError(err)}
		}
	}()
	return core.NewStream(ch), nil
}

func (m *Model) buildParams(messages []core.Message, tools []model.ToolDefinition) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(m.opts.Model),
		Messages:    m.buildMessages(messages),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}
	if system := m.systemBlocks(messages); len(system) > 0 {
		params.System = system
	}
	if len(tools) > 0 {
		params.Tools = buildTools(tools)
	}
	return params
}

// buildMessages converts the conversation to Anthropic messages. The Messages
// API carries system text out of band, so system messages are skipped here.
// Context-role tool results become user text: the graph's protocol feeds
// results back as instructions rather than tool_result blocks, and assistant
// tool-call requests are therefore rendered as text to keep the turn sequence
// valid for the API.
func (m *Model) buildMessages(messages []core.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, msg := range messages {
		switch msg.Role {
		case core.RoleSystem:
			continue
		case core.RoleHuman, core.RoleContext:
			if msg.Content != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			}
		case core.RoleAI:
			text := msg.Content
			if msg.HasToolCalls() && text == "" {
				if raw, err := json.Marshal(msg.ToolCalls); err == nil {
					text = fmt.Sprintf("Requested tool calls: %s", raw)
				}
			}
			if text != "" {
				out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(text)))
			}
		default:
			if msg.Content != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			}
		}
	}
	return out
}

func (m *Model) systemBlocks(messages []core.Message) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, msg := range messages {
		if msg.Role == core.RoleSystem && msg.Content != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: msg.Content})
		}
	}
	return blocks
}

func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, td := range tools {
		schema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if td.Parameters != nil {
			if properties, ok := td.Parameters["properties"]; ok {
				schema.Properties = properties
			}
			switch required := td.Parameters["required"].(type) {
			case []string:
				schema.Required = required
			case []any:
				for _, r := range required {
					if s, ok := r.(string); ok {
						schema.Required = append(schema.Required, s)
					}
				}
			}
		}
		out[i] = anthropic.ToolUnionParamOfTool(schema, td.Name)
	}
	return out
}

func mapBackendError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", model.ErrModelTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w: %v", model.ErrModelTimeout, err)
		}
		return fmt.Errorf("%w: %v", model.ErrModelUnavailable, err)
	}
}
