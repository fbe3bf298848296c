// Package ragchat provides a high-level façade over the agent graph, model
// adapters and tool registry, enabling quick construction of a
// retrieval-augmented chat assistant. Most applications interact with this
// package by:
//  1. Creating an Assistant via New() with a ChatModel (or FromSettings()
//     to build the model from configuration)
//  2. Registering tools (the multiply tool and retrieve_context come built
//     in when requested)
//  3. Asking questions synchronously (Ask) or as a token stream (AskStream)
//
// The façade delegates orchestration to agent.Graph while keeping setup
// concise. Defaults are safe for local development against Ollama.
package ragchat

import (
	"context"
	"fmt"

	"github.com/dataninja/ragchat/agent"
	"github.com/dataninja/ragchat/config"
	"github.com/dataninja/ragchat/core"
	"github.com/dataninja/ragchat/logging"
	"github.com/dataninja/ragchat/model"
	"github.com/dataninja/ragchat/model/anthropic"
	"github.com/dataninja/ragchat/model/ollama"
	"github.com/dataninja/ragchat/tool"
)

// Options configure the Assistant.
type Options struct {
	// SystemPrompt overrides the default agent system prompt.
	SystemPrompt string
	// Tools are registered in order; a duplicate name fails construction.
	Tools []tool.Tool
	// Logger (defaults to NoOp).
	Logger logging.Logger
}

// Assistant aggregates a tool registry with a synchronous and a streaming
// agent graph over the same chat model.
type Assistant struct {
	registry  *tool.Registry
	syncGraph *agent.Graph
	strGraph  *agent.Graph
}

// New creates an Assistant over the given chat model.
func New(chatModel model.ChatModel, optFns ...func(o *Options)) (*Assistant, error) {
	opts := Options{
		SystemPrompt: agent.DefaultSystemPrompt,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	registry := tool.NewRegistry()
	for _, t := range opts.Tools {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("register tool: %w", err)
		}
	}

	graphOpts := func(o *agent.Options) {
		o.SystemPrompt = opts.SystemPrompt
		o.Logger = opts.Logger
	}
	return &Assistant{
		registry:  registry,
		syncGraph: agent.New(chatModel, registry, graphOpts),
		strGraph:  agent.New(chatModel, registry, graphOpts, agent.WithStreaming()),
	}, nil
}

// FromSettings builds the chat model described by the settings and wraps it
// in an Assistant. Tools still come through the options.
func FromSettings(s *config.Settings, optFns ...func(o *Options)) (*Assistant, error) {
	chatModel, err := ModelFromSettings(s)
	if err != nil {
		return nil, err
	}
	withPrompt := func(o *Options) {
		if s.SystemPrompt != "" {
			o.SystemPrompt = s.SystemPrompt
		}
	}
	return New(chatModel, append([]func(o *Options){withPrompt}, optFns...)...)
}

// ModelFromSettings constructs the configured provider's ChatModel.
func ModelFromSettings(s *config.Settings) (model.ChatModel, error) {
	switch s.Provider {
	case config.ProviderOllama:
		return ollama.New(func(o *ollama.Options) {
			o.Model = s.Model
			o.Temperature = s.Temperature
			o.MaxTokens = int64(s.MaxTokens)
			o.BaseEndpoint = s.OllamaEndpoint()
		}), nil
	case config.ProviderAnthropic:
		return anthropic.New(func(o *anthropic.Options) {
			o.Model = s.Model
			o.Temperature = s.Temperature
			o.MaxTokens = int64(s.MaxTokens)
			o.APIKey = s.AnthropicKey
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", s.Provider)
	}
}

// Ask runs the prompt through the synchronous graph and returns the final
// answer.
func (a *Assistant) Ask(ctx context.Context, prompt string) (string, error) {
	return a.syncGraph.Run(ctx, prompt)
}

// AskStream runs the prompt through the streaming graph. Failures arrive
// in-band as fragments.
func (a *Assistant) AskStream(ctx context.Context, prompt string) <-chan core.Fragment {
	return a.strGraph.RunStreaming(ctx, prompt)
}

// Run answers a prompt in one shot; it adapts the Assistant to interfaces
// that expect a Run method, like the HTTP server.
func (a *Assistant) Run(ctx context.Context, prompt string) (string, error) {
	return a.Ask(ctx, prompt)
}

// RunStreaming adapts AskStream the same way.
func (a *Assistant) RunStreaming(ctx context.Context, prompt string) <-chan core.Fragment {
	return a.AskStream(ctx, prompt)
}

// Registry exposes the underlying tool registry for inspection.
func (a *Assistant) Registry() *tool.Registry {
	return a.registry
}
