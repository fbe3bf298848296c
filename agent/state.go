package agent

import "github.com/dataninja/ragchat/core"

// State is the mutable working state threaded through the graph for one
// invocation. It is created at invocation start, mutated by each node and
// discarded (or drained via Stream) at invocation end. No State field is ever
// shared between concurrent invocations.
type State struct {
	// Conversation accumulates the append-only message sequence.
	Conversation *core.Conversation

	// Stream holds the in-flight fragment sequence produced by the final
	// answer node in streaming mode; nil otherwise.
	Stream *core.Stream
}

// node identifies a position in the graph's transition table.
type node int

const (
	nodeStart node = iota
	nodeAssistant
	nodeTools
	nodeFinalAnswer
	nodeEnd
)

func (n node) String() string {
	switch n {
	case nodeStart:
		return "start"
	case nodeAssistant:
		return "assistant"
	case nodeTools:
		return "tools"
	case nodeFinalAnswer:
		return "final_answer"
	case nodeEnd:
		return "end"
	default:
		return "unknown"
	}
}
