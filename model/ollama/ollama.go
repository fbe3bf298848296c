// Package ollama provides a model.ChatModel over an Ollama server's
// OpenAI-compatible chat completions endpoint (including streaming and
// function/tool calling). It adapts the conversation model into the SDK's
// message format and back.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/dataninja/ragchat/core"
	"github.com/dataninja/ragchat/model"
)

// Options configure the Ollama chat model adapter.
type Options struct {
	// Model is the backend model identifier (e.g. "qwen2:7b").
	Model string
	// Temperature controls sampling randomness.
	Temperature float64
	// MaxTokens caps generated output tokens.
	MaxTokens int64
	// BaseEndpoint is the network location of the Ollama server's
	// OpenAI-compatible API, e.g. "http://localhost:11434/v1".
	BaseEndpoint string
	// ResponseFormat optionally constrains output shape. Must be
	// model.FormatNone when tools are bound; the adapter enforces this by
	// dropping the constraint on the tool-binding path.
	ResponseFormat model.ResponseFormat
	// SystemPrompt is prepended as a system message when the conversation
	// carries none of its own.
	SystemPrompt string
}

// Model wraps the Ollama OpenAI-compatible API behind model.ChatModel.
type Model struct {
	client *openai.Client
	opts   Options
}

// New creates an Ollama chat model.
func New(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:        "qwen2:7b",
		Temperature:  0.7,
		MaxTokens:    2048,
		BaseEndpoint: "http://localhost:11434/v1",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	client := openai.NewClient(
		option.WithBaseURL(opts.BaseEndpoint),
		// Ollama ignores the key but the client requires one to be present.
		option.WithAPIKey("ollama"),
	)
	return &Model{client: &client, opts: opts}
}

// NewFromClient creates an Ollama chat model from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{Model: "qwen2:7b", Temperature: 0.7, MaxTokens: 2048}
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
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return core.Message{}, mapBackendError(err)
	}
	if len(resp.Choices) == 0 {
		return core.Message{}, fmt.Errorf("%w: no choices returned", model.ErrModelUnavailable)
	}

	choice := resp.Choices[0]
	msg := core.Message{Role: core.RoleAI, Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return core.Message{}, fmt.Errorf("unmarshal tool call arguments for %s: %w", tc.Function.Name, err)
			}
		}
		msg.ToolCalls = append(msg.ToolCalls, core.ToolCallRequest{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	return msg, nil
}

// Stream implements model.ChatModel. Backend errors surface as the terminal
// fragment of the returned stream.
func (m *Model) Stream(ctx context.Context, messages []core.Message) (*core.Stream, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("conversation must contain at least one message")
	}

	// No tool binding on the streaming path.
	params := m.buildParams(messages, nil)
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)

	ch := make(chan core.Fragment, 32)
	go func() {
		defer close(ch)
		for stream.Next() {
			chunk := stream.Current()
			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				select {
				case <-ctx.Done():
					ch <- core.Fragment{Err: mapBackendError(ctx.Err())}
					return
				case ch <- core.Fragment{Text: choice.Delta.Content}:
				}
			}
		}
		if err := stream.Err(); err != nil {
			ch <- core.Fragment{Err: mapBackendError(err)}
		}
	}()
	return core.NewStream(ch), nil
}

// buildParams assembles the request including tool definitions and the
// optional response-format constraint. The constraint is dropped whenever
// tools are bound: the two are mutually exclusive.
func (m *Model) buildParams(messages []core.Message, tools []model.ToolDefinition) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            m.buildMessages(messages),
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxTokens),
	}

	if len(tools) > 0 {
		defs := make([]openai.ChatCompletionToolParam, len(tools))
		for i, td := range tools {
			defs[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        td.Name,
					Description: openai.String(td.Description),
					Parameters:  shared.FunctionParameters(td.Parameters),
				},
			}
		}
		params.Tools = defs
		return params
	}

	if m.opts.ResponseFormat == model.FormatJSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params
}

// buildMessages converts the conversation to SDK messages. The internal
// context role is encoded as a system message, matching how tool results are
// fed back to the backend.
func (m *Model) buildMessages(messages []core.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)

	hasSystem := false
	for _, msg := range messages {
		if msg.Role == core.RoleSystem {
			hasSystem = true
			break
		}
	}
	if !hasSystem && m.opts.SystemPrompt != "" {
		out = append(out, openai.SystemMessage(m.opts.SystemPrompt))
	}

	for _, msg := range messages {
		switch msg.Role {
		case core.RoleSystem, core.RoleContext:
			out = append(out, openai.SystemMessage(msg.Content))
		case core.RoleHuman:
			out = append(out, openai.UserMessage(msg.Content))
		case core.RoleAI:
			if !msg.HasToolCalls() {
				out = append(out, openai.AssistantMessage(msg.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				argsJSON, err := json.Marshal(tc.Args)
				if err != nil {
					argsJSON = []byte("{}")
				}
				calls = append(calls, openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(argsJSON),
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: calls,
				},
			})
		default:
			if msg.Content != "" {
				out = append(out, openai.UserMessage(msg.Content))
			}
		}
	}
	return out
}

// mapBackendError folds transport failures into the model error taxonomy.
func mapBackendError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err):
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
