// Package engine runs the bounded decision loop that turns a user message
// into an answer. Per request the loop walks
// START → AWAIT_DECISION → (TOOL_CALL → AWAIT_DECISION)* → DONE, capped at a
// fixed round budget. Every failure mode (decider errors, timeouts,
// malformed tool calls, budget exhaustion) is normalized here into a plain
// {response, conversation id} result; nothing below the loop leaks to the
// transport boundary.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/konecto/actuator-agent/core"
	"github.com/konecto/actuator-agent/memory"
	"github.com/konecto/actuator-agent/observability"
)

const (
	// errorConversationID is the placeholder for a failure reported with
	// no conversation id at all.
	errorConversationID = "error"

	apologyMessage  = "I'm sorry, an error occurred while processing your request. Please try again."
	fallbackMessage = "I wasn't able to complete the search within the allotted steps. Could you rephrase or narrow down your question?"
)

// Config bounds one engine's behavior.
type Config struct {
	// MaxRounds caps AWAIT_DECISION/TOOL_CALL cycles per request.
	MaxRounds int
	// DeciderTimeout is the wall-clock bound on one decision-function call.
	DeciderTimeout time.Duration
	// ToolTimeout is the wall-clock bound on one tool invocation.
	ToolTimeout time.Duration
	// Debug appends technical failure detail to user-visible error text.
	Debug bool
	// SystemPrompt overrides DefaultSystemPrompt when non-empty.
	SystemPrompt string
}

// Engine orchestrates the decision function, the tool adapters, and the
// conversation memory for one process.
type Engine struct {
	decider       core.Decider
	registry      *ToolRegistry
	conversations *memory.Conversations
	cfg           Config
	logger        *slog.Logger
	recorder      observability.Recorder
	metrics       *observability.Metrics
}

// Option configures the engine.
type Option func(*Engine)

// WithRecorder sets the best-effort span recorder.
func WithRecorder(r observability.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithMetrics sets the Prometheus instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func New(decider core.Decider, registry *ToolRegistry, conversations *memory.Conversations, cfg Config, opts ...Option) *Engine {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 3
	}
	if cfg.DeciderTimeout <= 0 {
		cfg.DeciderTimeout = 60 * time.Second
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = 10 * time.Second
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	e := &Engine{
		decider:       decider,
		registry:      registry,
		conversations: conversations,
		cfg:           cfg,
		logger:        slog.Default().With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the uniform outcome of one request. Failures carry an apology in
// Response; the type never distinguishes them structurally, matching the
// conversational interface contract.
type Result struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

// Run processes one user message. conversationID may be empty, in which case
// a fresh id is minted before any work happens, so the returned result
// always carries a usable id, failures included.
func (e *Engine) Run(ctx context.Context, message, conversationID string) *Result {
	start := time.Now()
	if conversationID == "" {
		conversationID = e.conversations.NewID()
	}
	history := e.conversations.Get(conversationID)

	req := &core.DecisionRequest{
		System:  e.cfg.SystemPrompt,
		History: history,
		Message: message,
		Catalog: e.registry.Catalog(),
	}

	var lastText string
	answer := ""
	outcome := "fallback"

	rounds := 0
	for ; rounds < e.cfg.MaxRounds; rounds++ {
		decision, err := e.decide(ctx, req)
		if err != nil {
			e.logger.Error("decision function failed", "conversation_id", conversationID, "round", rounds+1, "err", err)
			e.finish(start, rounds+1, "error")
			return e.errorResult(conversationID, err)
		}

		if decision.Answer != "" {
			lastText = decision.Answer
		}
		if decision.IsFinal() {
			if decision.Answer != "" {
				answer = decision.Answer
				outcome = "complete"
				rounds++
				break
			}
			// Neither an answer nor tool calls: a malformed round. It
			// still consumes budget.
			e.logger.Warn("empty decision, counting as no-op round", "conversation_id", conversationID, "round", rounds+1)
			continue
		}

		results := e.executeCalls(ctx, conversationID, rounds+1, decision.Calls)
		req.Rounds = append(req.Rounds, core.Exchange{
			Text:    decision.Answer,
			Calls:   decision.Calls,
			Results: results,
		})
	}

	if answer == "" {
		// Budget exhausted: surface whatever partial text the decider
		// produced, or the generic fallback.
		answer = lastText
		if answer == "" {
			answer = fallbackMessage
		}
		e.logger.Warn("round budget exhausted", "conversation_id", conversationID, "rounds", rounds)
	}

	e.conversations.Append(conversationID,
		core.Turn{Role: core.RoleUser, Content: message},
		core.Turn{Role: core.RoleAssistant, Content: answer},
	)
	e.finish(start, rounds, outcome)
	return &Result{Response: answer, ConversationID: conversationID}
}

func (e *Engine) decide(ctx context.Context, req *core.DecisionRequest) (*core.Decision, error) {
	dctx, cancel := context.WithTimeout(ctx, e.cfg.DeciderTimeout)
	defer cancel()

	observability.Emit(ctx, e.recorder, "decision_round", map[string]string{
		"round": strconv.Itoa(len(req.Rounds) + 1),
	})

	decision, err := e.decider.Decide(dctx, req)
	if err != nil {
		return nil, err
	}
	if decision == nil {
		return nil, fmt.Errorf("decision function returned no decision")
	}
	return decision, nil
}

// executeCalls runs each requested tool synchronously and captures its
// string result. Unknown tool names become error observations fed back to
// the decider rather than failures.
func (e *Engine) executeCalls(ctx context.Context, conversationID string, round int, calls []core.ToolCall) []core.ToolOutcome {
	results := make([]core.ToolOutcome, 0, len(calls))
	for _, call := range calls {
		outcome := core.ToolOutcome{CallID: call.ID, Name: call.Name}

		tool, ok := e.registry.Get(call.Name)
		if !ok {
			outcome.Content = fmt.Sprintf("unknown tool: %s", call.Name)
			outcome.IsError = true
			e.countToolCall(call.Name, "unknown")
			e.logger.Warn("decision requested unknown tool", "conversation_id", conversationID, "round", round, "tool", call.Name)
			results = append(results, outcome)
			continue
		}

		tctx, cancel := context.WithTimeout(ctx, e.cfg.ToolTimeout)
		started := time.Now()
		outcome.Content, outcome.IsError = e.invokeTool(tctx, tool, call.Args)
		cancel()

		if outcome.IsError {
			e.countToolCall(call.Name, "panic")
			e.logger.Error("tool panicked", "conversation_id", conversationID, "round", round, "tool", call.Name, "detail", outcome.Content)
		} else {
			e.countToolCall(call.Name, "ok")
		}
		observability.Emit(ctx, e.recorder, "tool_call", map[string]string{
			"tool":        call.Name,
			"duration_ms": strconv.FormatInt(time.Since(started).Milliseconds(), 10),
		})
		results = append(results, outcome)
	}
	return results
}

// errorResult normalizes a decider failure. The id is the minted or
// client-supplied conversation id; the sentinel covers only the case where
// no id exists at all.
// invokeTool runs one adapter. A panic becomes an error observation fed
// back to the decider; it never crosses the loop boundary.
func (e *Engine) invokeTool(ctx context.Context, tool Tool, args json.RawMessage) (content string, isError bool) {
	defer func() {
		if r := recover(); r != nil {
			content = fmt.Sprintf("tool failure: %v", r)
			isError = true
		}
	}()
	return tool.Invoke(ctx, args), false
}

func (e *Engine) errorResult(conversationID string, err error) *Result {
	id := conversationID
	if id == "" {
		id = errorConversationID
	}
	response := apologyMessage
	if e.cfg.Debug {
		response = fmt.Sprintf("%s\n\nDebug detail: %v", apologyMessage, err)
	}
	return &Result{Response: response, ConversationID: id}
}

func (e *Engine) finish(start time.Time, rounds int, outcome string) {
	if e.metrics == nil {
		return
	}
	e.metrics.ObserveRequestDuration(time.Since(start))
	e.metrics.DecisionRounds.Observe(float64(rounds))
	e.metrics.RequestOutcomes.WithLabelValues(outcome).Inc()
	e.metrics.ActiveConversations.Set(float64(e.conversations.Len()))
}

func (e *Engine) countToolCall(tool, outcome string) {
	if e.metrics == nil {
		return
	}
	e.metrics.ToolCalls.WithLabelValues(tool, outcome).Inc()
}
