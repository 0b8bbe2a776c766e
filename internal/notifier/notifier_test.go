package notifier

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dsa-core/dsa-core/internal/logging"
	"github.com/dsa-core/dsa-core/internal/model"
)

type recordingChannel struct {
	sent []string
}

func (c *recordingChannel) Name() string { return "test" }
func (c *recordingChannel) SendText(_ context.Context, destination, text string) error {
	c.sent = append(c.sent, destination+":"+text)
	return nil
}

func sampleReport() *model.AnalysisReport {
	return &model.AnalysisReport{
		Meta:    model.ReportMeta{Ticker: "600519", Name: "Kweichow Moutai", CreatedAt: time.Now(), CurrentPrice: 1800.5, ChangePct: 1.2},
		Summary: model.ReportSummary{SentimentScore: 70, AnalysisSummary: "steady", OperationAdvice: "hold", TrendPrediction: "up"},
	}
}

func TestDispatcherSendRoutesToGroupDestinations(t *testing.T) {
	ch := &recordingChannel{}
	d := &Dispatcher{
		Channels:       map[string]Channel{"test": ch},
		Groups:         map[string][]string{"group1": {"600519"}},
		Destinations:   map[string][]string{"group1": {"user@example.com"}},
		DefaultChannel: "test",
		Log:            logging.New("error"),
	}

	if err := d.Send(context.Background(), sampleReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ch.sent) != 1 || !strings.Contains(ch.sent[0], "user@example.com") {
		t.Fatalf("expected one message routed to group destination, got %v", ch.sent)
	}
}

func TestDispatcherSendSkipsWhenNoGroupMatches(t *testing.T) {
	ch := &recordingChannel{}
	d := &Dispatcher{
		Channels:       map[string]Channel{"test": ch},
		Groups:         map[string][]string{"group1": {"AAPL"}},
		Destinations:   map[string][]string{"group1": {"user@example.com"}},
		DefaultChannel: "test",
		Log:            logging.New("error"),
	}

	if err := d.Send(context.Background(), sampleReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ch.sent) != 0 {
		t.Fatalf("expected no destinations for unmatched ticker, got %v", ch.sent)
	}
}

func TestChunkSplitsOnLineBoundaries(t *testing.T) {
	text := strings.Repeat("line one\n", 100)
	chunks := Chunk(text, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[0], "[1/") {
		t.Fatalf("expected page marker prefix, got %q", chunks[0][:10])
	}
	for _, c := range chunks {
		if len(c) > 50+20 {
			t.Fatalf("chunk exceeds max size with marker overhead: %d bytes", len(c))
		}
	}
}

func TestChunkReturnsSinglePageWithoutMarkerWhenUnderLimit(t *testing.T) {
	chunks := Chunk("short text", 1000)
	if len(chunks) != 1 || chunks[0] != "short text" {
		t.Fatalf("expected single unmarked chunk, got %v", chunks)
	}
}

func TestFormatReportIncludesRiskAlerts(t *testing.T) {
	r := sampleReport()
	r.Summary.RiskAlerts = []string{"bias above threshold"}
	out := FormatReport(r)
	if !strings.Contains(out, "bias above threshold") {
		t.Fatalf("expected risk alert in formatted report, got %q", out)
	}
}
