// Package llm implements the decision function on top of the Anthropic
// Messages API. The decider is stateless: each call rebuilds the full
// transcript from the request's history and prior rounds.
package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/konecto/actuator-agent/core"
)

// AnthropicConfig configures the Claude-backed decider.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int64
}

// AnthropicDecider translates the neutral decision contract into Anthropic
// tool-calling requests.
type AnthropicDecider struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropicDecider(cfg AnthropicConfig) *AnthropicDecider {
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicDecider{
		client:    &client,
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

// Decide performs one model call and maps the response onto the tagged
// Decision variant: text-only responses become a final answer, tool_use
// blocks become tool calls.
func (d *AnthropicDecider) Decide(ctx context.Context, req *core.DecisionRequest) (*core.Decision, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(d.model),
		MaxTokens: d.maxTokens,
		Messages:  buildMessages(req),
		System: []anthropic.TextBlockParam{
			{Text: req.System},
		},
	}
	if tools := apiTools(req.Catalog); len(tools) > 0 {
		params.Tools = tools
	}

	resp, err := d.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}

	decision := &core.Decision{}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			decision.Answer += block.Text
		case "tool_use":
			decision.Calls = append(decision.Calls, core.ToolCall{
				ID:   block.ID,
				Name: block.Name,
				Args: block.Input,
			})
		}
	}
	return decision, nil
}

// buildMessages reconstructs the transcript: prior dialogue turns, the
// current user message, then one assistant/user pair per executed round
// (tool_use blocks and their tool_result blocks).
func buildMessages(req *core.DecisionRequest) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(req.History)+1+2*len(req.Rounds))

	for _, turn := range req.History {
		switch turn.Role {
		case core.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		}
	}

	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Message)))

	for _, round := range req.Rounds {
		var assistantBlocks []anthropic.ContentBlockParamUnion
		if round.Text != "" {
			assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(round.Text))
		}
		for _, call := range round.Calls {
			assistantBlocks = append(assistantBlocks, anthropic.NewToolUseBlock(call.ID, call.Args, call.Name))
		}
		messages = append(messages, anthropic.NewAssistantMessage(assistantBlocks...))

		resultBlocks := make([]anthropic.ContentBlockParamUnion, 0, len(round.Results))
		for _, result := range round.Results {
			resultBlocks = append(resultBlocks, anthropic.NewToolResultBlock(result.CallID, result.Content, result.IsError))
		}
		messages = append(messages, anthropic.NewUserMessage(resultBlocks...))
	}

	return messages
}

func apiTools(catalog []core.ToolSpec) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(catalog))
	for _, spec := range catalog {
		properties, _ := spec.InputSchema["properties"].(map[string]any)
		required, _ := spec.InputSchema["required"].([]string)
		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        spec.Name,
				Description: anthropic.String(spec.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: properties,
					Required:   required,
				},
			},
		})
	}
	return tools
}
