package agent

import (
	"context"
	"fmt"

	"github.com/dataninja/ragchat/core"
	"github.com/dataninja/ragchat/logging"
	"github.com/dataninja/ragchat/model"
	"github.com/dataninja/ragchat/tool"
)

// DefaultSystemPrompt is used when no system prompt is configured.
const DefaultSystemPrompt = "You are a helpful AI assistant that can use tools to help answer questions. " +
	"When you need to perform calculations or retrieve information, use the available tools. " +
	"Always explain your reasoning and show your work when using tools."

// finalizingMarker is the transitional AI message appended before the final
// answer call. It mutates the visible conversation and is kept as an
// observable side effect of the protocol.
const finalizingMarker = "Finalizing answer..."

// Options configure graph construction.
type Options struct {
	// SystemPrompt is injected lazily by the assistant node on the first model
	// call of an invocation.
	SystemPrompt string
	// Streaming selects the final-answer variant at construction time, not
	// per call: a streaming graph serves RunStreaming, a synchronous graph
	// serves Run.
	Streaming bool
	// Logger receives structured node and tool events.
	Logger logging.Logger
}

// Graph is the compiled agent state machine:
//
//	START -> ASSISTANT -> {TOOLS -> FINAL_ANSWER, END}
//
// Every tool-using answer routes through exactly one tool round followed by
// exactly one final-answer call; a model requesting another tool call after
// seeing the first result is not re-dispatched. Callers needing multi-hop
// reasoning must extend the transition table.
//
// A Graph holds no per-invocation state and may be cached and reused across
// concurrent requests.
type Graph struct {
	chatModel    model.ChatModel
	registry     *tool.Registry
	executor     *Executor
	systemPrompt string
	streaming    bool
	logger       logging.Logger
}

// New compiles a graph over the given chat model and tool registry.
func New(chatModel model.ChatModel, registry *tool.Registry, optFns ...func(o *Options)) *Graph {
	opts := Options{
		SystemPrompt: DefaultSystemPrompt,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Graph{
		chatModel:    chatModel,
		registry:     registry,
		executor:     NewExecutor(registry, opts.Logger),
		systemPrompt: opts.SystemPrompt,
		streaming:    opts.Streaming,
		logger:       opts.Logger,
	}
}

// WithStreaming selects the streaming final-answer variant.
func WithStreaming() func(o *Options) {
	return func(o *Options) { o.Streaming = true }
}

// Run executes the graph synchronously and returns the final answer text.
func (g *Graph) Run(ctx context.Context, prompt string) (string, error) {
	if g.streaming {
		return "", fmt.Errorf("graph was compiled for streaming; use RunStreaming")
	}

	st, err := g.execute(ctx, prompt)
	if err != nil {
		return "", err
	}
	last, ok := st.Conversation.Last()
	if !ok {
		return "", fmt.Errorf("empty conversation after graph execution")
	}
	g.logger.Info("agent.run.complete", "messages", st.Conversation.Len())
	return last.Content, nil
}

// RunStreaming executes the graph and returns a lazy fragment sequence. On any
// internal failure the sequence carries exactly one fragment of the form
// "Error: <message>" and then ends; errors are in-band because the transport
// is a one-way append-only stream with no side channel once started.
func (g *Graph) RunStreaming(ctx context.Context, prompt string) <-chan core.Fragment {
	out := make(chan core.Fragment)
	go func() {
		defer close(out)

		if !g.streaming {
			out <- core.Fragment{Text: "Error: graph was compiled for synchronous execution"}
			return
		}

		st, err := g.execute(ctx, prompt)
		if err != nil {
			out <- core.Fragment{Text: fmt.Sprintf("Error: %s", err)}
			return
		}

		if st.Stream == nil {
			// Tool-free short circuit: the assistant's first response is the
			// final answer, delivered as a single fragment.
			if last, ok := st.Conversation.Last(); ok && last.Content != "" {
				out <- core.Fragment{Text: last.Content}
			}
			return
		}

		for {
			f, ok := st.Stream.Next(ctx)
			if !ok {
				return
			}
			if f.Err != nil {
				out <- core.Fragment{Text: fmt.Sprintf("Error: %s", f.Err)}
				return
			}
			select {
			case <-ctx.Done():
				return
			case out <- f:
			}
		}
	}()
	return out
}

// execute drives the transition table until END and returns the final state.
func (g *Graph) execute(ctx context.Context, prompt string) (*State, error) {
	st := &State{Conversation: core.NewConversation(core.HumanMessage(prompt))}

	current := nodeAssistant
	for current != nodeEnd {
		g.logger.Debug("agent.node.enter", "node", current.String())

		switch current {
		case nodeAssistant:
			resp, err := g.assistant(ctx, st)
			if err != nil {
				return nil, err
			}
			if resp.HasToolCalls() {
				current = nodeTools
			} else {
				current = nodeEnd
			}

		case nodeTools:
			last, _ := st.Conversation.Last()
			if err := g.executor.ExecuteCalls(ctx, st.Conversation, last.ToolCalls); err != nil {
				return nil, err
			}
			current = nodeFinalAnswer

		case nodeFinalAnswer:
			if err := g.finalAnswer(ctx, st); err != nil {
				return nil, err
			}
			current = nodeEnd
		}
	}
	return st, nil
}

// assistant runs the first model call of the invocation with the full registry
// bound. The system prompt is injected lazily, only when the conversation
// still holds just the seed message, so conversations replayed from elsewhere
// are not double-prefixed.
func (g *Graph) assistant(ctx context.Context, st *State) (core.Message, error) {
	if st.Conversation.Len() == 1 {
		st.Conversation.Append(core.SystemMessage(g.systemPrompt))
	}

	resp, err := g.chatModel.Invoke(ctx, st.Conversation.Messages(), toolDefinitions(g.registry))
	if err != nil {
		return core.Message{}, fmt.Errorf("assistant call: %w", err)
	}
	st.Conversation.Append(resp)
	g.logger.Info("agent.node.assistant", "tool_calls", len(resp.ToolCalls))
	return resp, nil
}

// finalAnswer appends the transitional marker and makes the single follow-up
// model call that produces the user-facing answer. No tools are bound here.
func (g *Graph) finalAnswer(ctx context.Context, st *State) error {
	st.Conversation.Append(core.AIMessage(finalizingMarker))

	if g.streaming {
		stream, err := g.chatModel.Stream(ctx, st.Conversation.Messages())
		if err != nil {
			return fmt.Errorf("final answer stream: %w", err)
		}
		st.Stream = stream
		return nil
	}

	resp, err := g.chatModel.Invoke(ctx, st.Conversation.Messages(), nil)
	if err != nil {
		return fmt.Errorf("final answer call: %w", err)
	}
	st.Conversation.Append(resp)
	return nil
}

// toolDefinitions converts the registry into the declarative form handed to
// the chat model.
func toolDefinitions(registry *tool.Registry) []model.ToolDefinition {
	tools := registry.Tools()
	defs := make([]model.ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		}
	}
	return defs
}
