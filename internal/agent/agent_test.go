package agent

import (
	"context"
	"testing"

	"github.com/dsa-core/dsa-core/internal/llm"
	"github.com/dsa-core/dsa-core/internal/logging"
)

type stubTool struct {
	name   string
	result string
	err    error
	calls  int
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return "stub" }
func (t *stubTool) Schema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}
func (t *stubTool) Execute(_ context.Context, _ map[string]interface{}) (string, error) {
	t.calls++
	return t.result, t.err
}

type scriptedGenerator struct {
	responses []llm.Response
	calls     int
}

func (g *scriptedGenerator) Generate(_ context.Context, _ llm.Request) (llm.Response, error) {
	if g.calls >= len(g.responses) {
		return llm.Response{}, nil
	}
	r := g.responses[g.calls]
	g.calls++
	return r, nil
}

func TestLoopDispatchesToolThenReturnsFinalAnswer(t *testing.T) {
	tool := &stubTool{name: "get_realtime_quote", result: `{"price":10.5}`}
	registry := NewRegistry(tool)
	gen := &scriptedGenerator{responses: []llm.Response{
		{Text: "checking quote", ToolCalls: []llm.ToolCall{{ID: "1", Name: "get_realtime_quote"}}, FinishedOnTools: true},
		{Text: "the price is 10.5", FinishedOnTools: false},
	}}
	loop := NewLoop(gen, registry, "claude-3-5-sonnet", logging.New("error"))

	var steps []Step
	answer, _, err := loop.Execute(context.Background(), "system", "what is the price?", func(s Step) { steps = append(steps, s) }, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "the price is 10.5" {
		t.Fatalf("unexpected final answer: %q", answer)
	}
	if tool.calls != 1 {
		t.Fatalf("expected tool called once, got %d", tool.calls)
	}
	var sawToolStart, sawFinal bool
	for _, s := range steps {
		if s.Kind == StepToolStart {
			sawToolStart = true
		}
		if s.Kind == StepFinalAnswer {
			sawFinal = true
		}
	}
	if !sawToolStart || !sawFinal {
		t.Fatal("expected tool_start and final_answer steps to be emitted")
	}
}

func TestLoopStopsImmediatelyWhenNoToolCallRequested(t *testing.T) {
	registry := NewRegistry()
	gen := &scriptedGenerator{responses: []llm.Response{{Text: "no tools needed", FinishedOnTools: false}}}
	loop := NewLoop(gen, registry, "claude-3-5-sonnet", logging.New("error"))

	answer, _, err := loop.Execute(context.Background(), "system", "hi", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "no tools needed" {
		t.Fatalf("unexpected answer: %q", answer)
	}
}

func TestLoopFeedsUnknownToolErrorBackToModel(t *testing.T) {
	registry := NewRegistry()
	gen := &scriptedGenerator{responses: []llm.Response{
		{Text: "trying", ToolCalls: []llm.ToolCall{{ID: "1", Name: "nonexistent"}}, FinishedOnTools: true},
		{Text: "done", FinishedOnTools: false},
	}}
	loop := NewLoop(gen, registry, "claude-3-5-sonnet", logging.New("error"))

	_, _, err := loop.Execute(context.Background(), "system", "hi", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoopEnforcesMaxToolCalls(t *testing.T) {
	tool := &stubTool{name: "get_realtime_quote", result: "ok"}
	registry := NewRegistry(tool)
	responses := make([]llm.Response, 0, 20)
	for i := 0; i < 20; i++ {
		responses = append(responses, llm.Response{Text: "again", ToolCalls: []llm.ToolCall{{ID: "x", Name: "get_realtime_quote"}}, FinishedOnTools: true})
	}
	gen := &scriptedGenerator{responses: responses}
	loop := NewLoop(gen, registry, "claude-3-5-sonnet", logging.New("error"))
	loop.Config.MaxToolCalls = 3
	loop.Config.MaxTurns = 20

	_, _, err := loop.Execute(context.Background(), "system", "hi", nil, nil)
	if err == nil {
		t.Fatal("expected an error once the tool call bound is exceeded")
	}
}

func TestLoopEnforcesMaxTurns(t *testing.T) {
	registry := NewRegistry()
	responses := make([]llm.Response, 0, 5)
	for i := 0; i < 5; i++ {
		responses = append(responses, llm.Response{Text: "still thinking", FinishedOnTools: true, ToolCalls: []llm.ToolCall{{ID: "x", Name: "nope"}}})
	}
	gen := &scriptedGenerator{responses: responses}
	loop := NewLoop(gen, registry, "claude-3-5-sonnet", logging.New("error"))
	loop.Config.MaxTurns = 2
	loop.Config.MaxToolCalls = 100

	_, _, err := loop.Execute(context.Background(), "system", "hi", nil, nil)
	if err == nil {
		t.Fatal("expected an error once max turns is exceeded")
	}
}
