package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dsa-core/dsa-core/internal/apperr"
	"github.com/dsa-core/dsa-core/internal/calendar"
	"github.com/dsa-core/dsa-core/internal/evidence"
	"github.com/dsa-core/dsa-core/internal/llm"
	"github.com/dsa-core/dsa-core/internal/logging"
	"github.com/dsa-core/dsa-core/internal/model"
)

// EngineVersion is stamped on every produced report.
const EngineVersion = "dsactl-pipeline/1"

// ReportStore is the persistence seam the pipeline writes through (C11).
type ReportStore interface {
	SaveReport(ctx context.Context, report *model.AnalysisReport) (int64, error)
	SaveNewsIntel(ctx context.Context, recordID int64, intel model.NewsIntel) error
	LatestReport(ctx context.Context, ticker string) (*model.AnalysisReport, error)
}

// EventPublisher is the C10 event bus seam for progress updates.
type EventPublisher interface {
	Publish(taskID string, ev model.TaskEvent)
}

// Notifier is the C13 dispatch seam.
type Notifier interface {
	Send(ctx context.Context, report *model.AnalysisReport) error
}

// Generator is the C5 LLM router seam; *llm.Router satisfies it.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (llm.Response, error)
}

// Pipeline runs the full per-ticker analysis flow.
type Pipeline struct {
	Assembler     *evidence.Assembler
	Router        Generator
	Store         ReportStore
	Events        EventPublisher
	Notify        Notifier
	Log           *logging.Logger
	BiasThreshold float64
}

// Options configure one Run invocation.
type Options struct {
	TaskID     string
	QueryID    string
	ReportType string // "detailed" | "summary"
	Notify     bool
	DayCheck   bool // when true, honor the calendar gate (skip closed markets)
}

// Run executes Gate -> Assemble -> Generate -> Parse -> Persist -> Dispatch -> Publish
// for one ticker. A history-fetch, generation, parse or report-save
// failure ends the run with an error; a failed news-intel save or
// notification is logged and the run still completes.
func (p *Pipeline) Run(ctx context.Context, ticker string, opts Options) (*model.AnalysisReport, error) {
	p.publish(opts.TaskID, ticker, model.EventTaskStarted, 0, "starting analysis", "")

	if opts.DayCheck {
		mkt := model.InferMarket(ticker)
		if !calendar.IsOpen(mkt, time.Now()) {
			p.publish(opts.TaskID, ticker, model.EventTaskSkipped, 0, "market closed", string(apperr.CodeSkipped))
			return nil, apperr.Skipped(fmt.Sprintf("%s market closed today", mkt))
		}
	}

	previous, _ := p.Store.LatestReport(ctx, ticker)

	p.publish(opts.TaskID, ticker, model.EventHeartbeat, 0.2, "gathering evidence", "")
	bundle, err := p.Assembler.Assemble(ctx, ticker, previous)
	if err != nil {
		p.publish(opts.TaskID, ticker, model.EventTaskFailed, 0.2, "evidence gathering failed", string(apperr.CodeOf(err)))
		return nil, err
	}

	reportType := opts.ReportType
	if reportType == "" {
		reportType = "detailed"
	}

	p.publish(opts.TaskID, ticker, model.EventHeartbeat, 0.5, "generating analysis", "")
	req := llm.Request{
		SystemInstruction: SystemInstruction,
		Messages:          []llm.Message{{Role: llm.RoleUser, Content: BuildPrompt(bundle, reportType)}},
		JSONSchema:        ReportJSONSchema,
		Temperature:       0.3,
		MaxTokens:         2048,
	}
	resp, err := p.Router.Generate(ctx, req)
	if err != nil {
		p.publish(opts.TaskID, ticker, model.EventTaskFailed, 0.5, "llm generation failed", string(apperr.CodeOf(err)))
		return nil, err
	}

	summary, strategy, backfillName, err := ParseReportJSON(resp.Text)
	if err != nil {
		p.publish(opts.TaskID, ticker, model.EventTaskFailed, 0.7, "failed to parse llm response", string(apperr.CodeParseError))
		return nil, apperr.ParseError("pipeline: could not parse llm response", err)
	}
	if backfillName != "" {
		bundle.Name = backfillName
	}

	price, changePct := 0.0, 0.0
	if bundle.Quote != nil {
		price, changePct = bundle.Quote.Price, bundle.Quote.ChangePct
	}

	report := &model.AnalysisReport{
		Meta: model.ReportMeta{
			QueryID: firstNonEmpty(opts.QueryID, uuid.NewString()), Ticker: ticker, Name: bundle.Name,
			CreatedAt: time.Now(), CurrentPrice: price, ChangePct: changePct,
			ReportType: reportType, EngineVersion: EngineVersion,
		},
		Summary:  summary,
		Strategy: strategy,
		Details:  ReportDetails(resp.Text, bundle),
	}

	if alert := report.CheckStrategyOrdering(); alert != "" {
		report.Summary.RiskAlerts = append(report.Summary.RiskAlerts, alert)
	}
	if p.BiasThreshold > 0 {
		effective := effectiveBiasThreshold(p.BiasThreshold, bundle.Technical)
		if bundle.Technical.Bias20 > effective {
			report.Summary.RiskAlerts = append(report.Summary.RiskAlerts, fmt.Sprintf("price is %.1f%% above MA20, exceeding the %.1f%% alert band", bundle.Technical.Bias20, effective))
		}
	}

	p.publish(opts.TaskID, ticker, model.EventHeartbeat, 0.85, "persisting report", "")
	recordID, err := p.Store.SaveReport(ctx, report)
	if err != nil {
		p.publish(opts.TaskID, ticker, model.EventTaskFailed, 0.85, "persistence failed", string(apperr.CodePersistenceError))
		return nil, apperr.PersistenceError("pipeline: save report failed", err)
	}
	report.Meta.ID = recordID
	if err := p.Store.SaveNewsIntel(ctx, recordID, bundle.News); err != nil && p.Log != nil {
		p.Log.Warnf("pipeline: failed to persist news intel for %s: %v", ticker, err)
	}

	if opts.Notify && p.Notify != nil {
		if err := p.Notify.Send(ctx, report); err != nil && p.Log != nil {
			p.Log.Warnf("pipeline: notification dispatch failed for %s: %v", ticker, err)
		}
	}

	p.publish(opts.TaskID, ticker, model.EventTaskCompleted, 1.0, "analysis complete", "")
	return report, nil
}

func (p *Pipeline) publish(taskID, ticker string, kind model.EventKind, progress float64, msg, code string) {
	if p.Events == nil || taskID == "" {
		return
	}
	p.Events.Publish(taskID, model.TaskEvent{Kind: kind, TaskID: taskID, Ticker: ticker, Progress: progress, Message: msg, Code: code, At: time.Now()})
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
