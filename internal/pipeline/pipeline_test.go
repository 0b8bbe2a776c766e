package pipeline

import (
	"context"
	"testing"

	"github.com/dsa-core/dsa-core/internal/cache"
	"github.com/dsa-core/dsa-core/internal/evidence"
	"github.com/dsa-core/dsa-core/internal/fetcher"
	"github.com/dsa-core/dsa-core/internal/llm"
	"github.com/dsa-core/dsa-core/internal/logging"
	"github.com/dsa-core/dsa-core/internal/model"
	"github.com/dsa-core/dsa-core/internal/newsintel"
)

type fakeStore struct {
	saved []*model.AnalysisReport
}

func (s *fakeStore) SaveReport(_ context.Context, r *model.AnalysisReport) (int64, error) {
	s.saved = append(s.saved, r)
	return int64(len(s.saved)), nil
}
func (s *fakeStore) SaveNewsIntel(_ context.Context, _ int64, _ model.NewsIntel) error { return nil }
func (s *fakeStore) LatestReport(_ context.Context, _ string) (*model.AnalysisReport, error) {
	return nil, nil
}

type fakeEvents struct{ events []model.TaskEvent }

func (e *fakeEvents) Publish(_ string, ev model.TaskEvent) { e.events = append(e.events, ev) }

type fakeNotifier struct{ sent int }

func (n *fakeNotifier) Send(_ context.Context, _ *model.AnalysisReport) error {
	n.sent++
	return nil
}

type fakeGenerator struct {
	text string
	err  error
}

func (f *fakeGenerator) Generate(_ context.Context, _ llm.Request) (llm.Response, error) {
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.Response{Text: f.text}, nil
}

func newTestPipeline(t *testing.T, backendText string, store *fakeStore, events *fakeEvents, notifier *fakeNotifier) *Pipeline {
	t.Helper()
	mock := &fetcher.MockSource{Markets: []model.Market{model.MarketCN}}
	pool := fetcher.NewPool([]fetcher.Source{mock}, nil, cache.NewMemory(), logging.New("error"))
	news := newsintel.NewService(nil, nil, 7, logging.New("error"))
	asm := evidence.New(pool, news, false, logging.New("error"))

	return &Pipeline{Assembler: asm, Router: &fakeGenerator{text: backendText}, Store: store, Events: events, Notify: notifier, Log: logging.New("error")}
}

func TestPipelineRunHappyPath(t *testing.T) {
	store := &fakeStore{}
	events := &fakeEvents{}
	notifier := &fakeNotifier{}
	p := newTestPipeline(t, `{"sentiment_score":72,"analysis_summary":"steady uptrend","operation_advice":"hold","trend_prediction":"up","risk_alerts":[]}`, store, events, notifier)

	report, err := p.Run(context.Background(), "600519", Options{TaskID: "t1", Notify: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Summary.SentimentScore != 72 {
		t.Fatalf("expected sentiment score 72, got %v", report.Summary.SentimentScore)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected one report persisted, got %d", len(store.saved))
	}
	if notifier.sent != 1 {
		t.Fatalf("expected notifier invoked once, got %d", notifier.sent)
	}
	var sawCompleted bool
	for _, ev := range events.events {
		if ev.Kind == model.EventTaskCompleted {
			sawCompleted = true
		}
	}
	if !sawCompleted {
		t.Fatal("expected a task_completed event")
	}
}

func TestPipelineRunFailsOnUnparsableResponse(t *testing.T) {
	store := &fakeStore{}
	events := &fakeEvents{}
	p := newTestPipeline(t, "not json at all", store, events, &fakeNotifier{})

	_, err := p.Run(context.Background(), "600519", Options{TaskID: "t2"})
	if err == nil {
		t.Fatal("expected a parse error on unparsable LLM output")
	}
	if len(store.saved) != 0 {
		t.Fatal("expected nothing persisted on parse failure")
	}
}

func TestPipelineRunFailsHardOnHistoryFetchFailure(t *testing.T) {
	store := &fakeStore{}
	events := &fakeEvents{}
	mock := &fetcher.MockSource{Markets: []model.Market{model.MarketCN}, FailAfter: 0, FailErr: context.DeadlineExceeded}
	pool := fetcher.NewPool([]fetcher.Source{mock}, nil, cache.NewMemory(), logging.New("error"))
	news := newsintel.NewService(nil, nil, 7, logging.New("error"))
	asm := evidence.New(pool, news, false, logging.New("error"))

	p := &Pipeline{Assembler: asm, Router: &fakeGenerator{text: "{}"}, Store: store, Events: events, Log: logging.New("error")}
	_, err := p.Run(context.Background(), "600519", Options{TaskID: "t3"})
	if err == nil {
		t.Fatal("expected history fetch failure to abort the run")
	}
}
