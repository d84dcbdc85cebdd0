package core

import (
	"context"
	"encoding/json"
)

// ToolSpec describes one callable tool to the decision function: its name,
// when to use it, and a JSON Schema for its arguments.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolCall is one tool invocation requested by the decision function.
// The ID correlates the call with its result across rounds.
type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

// ToolOutcome is the captured result of one tool call, fed back to the
// decision function on the next round. Content is always a human-readable
// string; adapters never surface structured errors.
type ToolOutcome struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// Exchange records one completed round: the assistant's interim text, the
// tool calls it requested, and their outcomes. The decider replays prior
// exchanges to reconstruct its transcript, which keeps the Decider interface
// stateless between calls.
type Exchange struct {
	Text    string
	Calls   []ToolCall
	Results []ToolOutcome
}

// DecisionRequest is the full context handed to the decision function:
// system instructions, prior dialogue, the current message, the tool
// catalog, and the rounds already executed for this request.
type DecisionRequest struct {
	System  string
	History []Turn
	Message string
	Catalog []ToolSpec
	Rounds  []Exchange
}

// Decision is the tagged result of one decider invocation: either a final
// answer (no calls) or a batch of requested tool calls, optionally with
// interim text.
type Decision struct {
	Answer string
	Calls  []ToolCall
}

// IsFinal reports whether the decision carries no further tool calls.
func (d *Decision) IsFinal() bool { return len(d.Calls) == 0 }

// Decider is the external decision function, treated as a black box. A call
// is one-shot: no retries, and failures surface as errors for the
// orchestrator to normalize. Implementations must honor ctx cancellation.
type Decider interface {
	Decide(ctx context.Context, req *DecisionRequest) (*Decision, error)
}
