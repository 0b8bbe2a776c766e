package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/dsa-core/dsa-core/internal/llm"
	"github.com/dsa-core/dsa-core/internal/logging"
)

// Config bounds one Loop.Execute call, generalizing the pack's
// AgentConfig (MaxTurns/MaxToolCalls/Timeout) unchanged.
type Config struct {
	MaxTurns     int
	MaxToolCalls int
	Timeout      time.Duration
}

func DefaultConfig() Config {
	return Config{MaxTurns: 10, MaxToolCalls: 15, Timeout: 5 * time.Minute}
}

// Generator is the C5 seam the loop calls into; *llm.Router satisfies it.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (llm.Response, error)
}

// StepKind labels one streamed progress event from Execute.
type StepKind string

const (
	StepThinking   StepKind = "thinking"
	StepToolStart  StepKind = "tool_start"
	StepToolDone   StepKind = "tool_done"
	StepFinalAnswer StepKind = "final_answer"
)

// Step is one progress notification emitted during Execute, suitable
// for relaying over an SSE connection.
type Step struct {
	Kind      StepKind
	Content   string
	ToolName  string
	IsError   bool
	Timestamp time.Time
}

// TurnRecord is one durable conversation attempt: a full LLM generation
// (successful or failed) or a tool observation fed back to the model.
// Execute emits one of these per attempt so the caller can persist the
// full turn count and ordering, not just the user message and the
// final answer.
type TurnRecord struct {
	Role          llm.Role
	Content       string
	ToolCalls     []llm.ToolCall
	ToolCallID    string
	ReasoningBlob string
	Failed        bool
}

// Loop is a bounded ReAct executor: reason, optionally call a tool,
// feed the observation back, repeat until the model stops requesting
// tools or a bound is hit.
type Loop struct {
	Router   Generator
	Tools    *Registry
	Model    string
	Log      *logging.Logger
	Config   Config
}

func NewLoop(router Generator, tools *Registry, model string, log *logging.Logger) *Loop {
	return &Loop{Router: router, Tools: tools, Model: model, Log: log, Config: DefaultConfig()}
}

// Execute runs one bounded conversation, streaming Step notifications
// through onStep and one TurnRecord per LLM attempt or tool exchange
// through onTurn (both may be nil). It returns the final
// natural-language answer plus the accumulated reasoning blob
// passthrough from the last model turn, if any.
func (l *Loop) Execute(ctx context.Context, systemPrompt, userMessage string, onStep func(Step), onTurn func(TurnRecord)) (answer string, reasoning string, err error) {
	ctx, cancel := context.WithTimeout(ctx, l.Config.Timeout)
	defer cancel()

	specs := make([]llm.ToolSpec, 0, len(l.Tools.List()))
	for _, t := range l.Tools.List() {
		specs = append(specs, llm.ToolSpec{Name: t.Name(), Description: t.Description(), Parameters: t.Schema()})
	}

	messages := []llm.Message{{Role: llm.RoleUser, Content: userMessage}}
	toolCallCount := 0

	for turn := 0; turn < l.Config.MaxTurns; turn++ {
		select {
		case <-ctx.Done():
			failMsg := fmt.Sprintf("timed out after %v: %v", l.Config.Timeout, ctx.Err())
			emit(onTurn, TurnRecord{Role: llm.RoleAssistant, Content: failMsg, Failed: true})
			return "", "", fmt.Errorf("agent loop: %s", failMsg)
		default:
		}

		emit(onStep, Step{Kind: StepThinking, Content: fmt.Sprintf("turn %d", turn+1), Timestamp: time.Now()})

		resp, genErr := l.Router.Generate(ctx, llm.Request{
			Model:             l.Model,
			SystemInstruction: systemPrompt,
			Messages:          messages,
			Tools:             specs,
			Temperature:       0.2,
			MaxTokens:         2048,
		})
		if genErr != nil {
			emit(onTurn, TurnRecord{Role: llm.RoleAssistant, Content: genErr.Error(), Failed: true})
			return "", "", fmt.Errorf("agent loop: llm call failed on turn %d: %w", turn+1, genErr)
		}
		reasoning = resp.ReasoningBlob

		if len(resp.ToolCalls) == 0 || !resp.FinishedOnTools {
			emit(onTurn, TurnRecord{Role: llm.RoleAssistant, Content: resp.Text, ReasoningBlob: reasoning})
			emit(onStep, Step{Kind: StepFinalAnswer, Content: resp.Text, Timestamp: time.Now()})
			return resp.Text, reasoning, nil
		}

		emit(onTurn, TurnRecord{Role: llm.RoleAssistant, Content: resp.Text, ToolCalls: resp.ToolCalls, ReasoningBlob: reasoning})
		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: resp.Text, ToolCalls: resp.ToolCalls})

		for _, call := range resp.ToolCalls {
			toolCallCount++
			if toolCallCount > l.Config.MaxToolCalls {
				failMsg := fmt.Sprintf("exceeded maximum tool calls (%d)", l.Config.MaxToolCalls)
				emit(onTurn, TurnRecord{Role: llm.RoleAssistant, Content: failMsg, Failed: true})
				return "", "", fmt.Errorf("agent loop: %s", failMsg)
			}

			emit(onStep, Step{Kind: StepToolStart, Content: call.Name, ToolName: call.Name, Timestamp: time.Now()})

			tool, ok := l.Tools.Resolve(call.Name)
			var result string
			var toolErr error
			if !ok {
				toolErr = fmt.Errorf("unknown tool %q", call.Name)
			} else {
				result, toolErr = tool.Execute(ctx, call.Arguments)
			}

			isError := toolErr != nil
			content := result
			if toolErr != nil {
				content = toolErr.Error()
				if l.Log != nil {
					l.Log.Warnf("agent loop: tool %s failed: %v", call.Name, toolErr)
				}
			}

			emit(onStep, Step{Kind: StepToolDone, Content: truncateStep(content, 200), ToolName: call.Name, IsError: isError, Timestamp: time.Now()})
			emit(onTurn, TurnRecord{Role: llm.RoleTool, Content: content, ToolCallID: call.ID, Failed: isError})

			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    content,
				ToolResult: &llm.ToolResult{ToolCallID: call.ID, Content: content, IsError: isError},
			})
		}
	}

	failMsg := fmt.Sprintf("did not complete within %d turns", l.Config.MaxTurns)
	emit(onTurn, TurnRecord{Role: llm.RoleAssistant, Content: failMsg, Failed: true})
	return "", "", fmt.Errorf("agent loop: %s", failMsg)
}

func emit[T any](fn func(T), v T) {
	if fn != nil {
		fn(v)
	}
}

func truncateStep(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
