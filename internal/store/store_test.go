package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dsa-core/dsa-core/internal/logging"
	"github.com/dsa-core/dsa-core/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, logging.New("error"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleReport(ticker string) *model.AnalysisReport {
	buy := 10.0
	stop := 8.0
	return &model.AnalysisReport{
		Meta: model.ReportMeta{Ticker: ticker, Name: "Test Corp", CreatedAt: time.Now(), CurrentPrice: 9.5, ReportType: "detailed", EngineVersion: "test"},
		Summary: model.ReportSummary{
			SentimentScore: 65, AnalysisSummary: "steady", OperationAdvice: "hold",
			TrendPrediction: "up", RiskAlerts: []string{"volatility elevated"},
		},
		Strategy: model.ReportStrategy{IdealBuy: &buy, StopLoss: &stop},
		Details:  model.ReportDetails{RawResult: "{}", ContextSnapshot: "{}"},
	}
}

func TestSaveAndFetchLatestReport(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.SaveReport(ctx, sampleReport("600519"))
	if err != nil {
		t.Fatalf("save report: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a non-zero record id")
	}

	got, err := s.LatestReport(ctx, "600519")
	if err != nil {
		t.Fatalf("latest report: %v", err)
	}
	if got == nil {
		t.Fatal("expected a report")
	}
	if got.Summary.SentimentScore != 65 || len(got.Summary.RiskAlerts) != 1 {
		t.Fatalf("unexpected round trip: %+v", got.Summary)
	}
	if got.Strategy.IdealBuy == nil || *got.Strategy.IdealBuy != 10.0 {
		t.Fatalf("expected ideal_buy round tripped, got %+v", got.Strategy)
	}
	if got.Strategy.TakeProfit != nil {
		t.Fatal("expected nil take_profit to remain nil")
	}
}

func TestLatestReportReturnsNilWhenAbsent(t *testing.T) {
	s := newTestStore(t)
	got, err := s.LatestReport(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for absent ticker, got %+v", got)
	}
}

func TestSaveNewsIntelAndRetrieve(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, _ := s.SaveReport(ctx, sampleReport("600519"))

	intel := model.NewsIntel{Ticker: "600519", Items: []model.NewsItem{{Title: "headline", Relevance: 0.9}}}
	if err := s.SaveNewsIntel(ctx, id, intel); err != nil {
		t.Fatalf("save news intel: %v", err)
	}

	got, err := s.NewsForRecord(ctx, id)
	if err != nil {
		t.Fatalf("news for record: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].Title != "headline" {
		t.Fatalf("unexpected news round trip: %+v", got)
	}
}

func TestHistoryFiltersByTickerAndPaginates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.SaveReport(ctx, sampleReport("600519"))
	}
	s.SaveReport(ctx, sampleReport("AAPL"))

	all, err := s.History(ctx, "600519", 10, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records for 600519, got %d", len(all))
	}

	page, err := s.History(ctx, "600519", 2, 0)
	if err != nil {
		t.Fatalf("history page: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}
}

func TestConversationTurnsRoundTripInOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	session := "sess-1"

	turns := []model.ConversationTurn{
		{SessionID: session, Role: model.RoleUser, Content: "what about 600519?"},
		{SessionID: session, Role: model.RoleAssistant, Content: "let me check", ToolCalls: []model.ToolCall{{ID: "1", Name: "get_realtime_quote", Arguments: "{}"}}},
		{SessionID: session, Role: model.RoleTool, Content: "price 10.5", ToolCallID: "1"},
	}
	for _, turn := range turns {
		if err := s.AppendTurn(ctx, turn); err != nil {
			t.Fatalf("append turn: %v", err)
		}
	}

	got, err := s.SessionHistory(ctx, session)
	if err != nil {
		t.Fatalf("session history: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(got))
	}
	if got[1].ToolCalls[0].Name != "get_realtime_quote" {
		t.Fatalf("expected tool call round tripped, got %+v", got[1].ToolCalls)
	}
	if got[2].ToolCallID != "1" {
		t.Fatalf("expected tool_call_id round tripped, got %q", got[2].ToolCallID)
	}
}

func TestDeleteSessionRemovesAllTurns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.AppendTurn(ctx, model.ConversationTurn{SessionID: "sess-x", Role: model.RoleUser, Content: "hi"})

	if err := s.DeleteSession(ctx, "sess-x"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	got, err := s.SessionHistory(ctx, "sess-x")
	if err != nil {
		t.Fatalf("session history: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty history after delete, got %d turns", len(got))
	}
}
