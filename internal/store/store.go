// Package store is the C11 Persistence layer: a SQLite-backed
// ReportStore/session store, adapted from the pack's SQLiteRecorder
// (open-with-WAL, migrate-on-open, mutex-serialized writes) into the analysis_history/news_intel/conversation_messages
// schema this system needs instead of the teacher's fund-ledger tables.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dsa-core/dsa-core/internal/logging"
	"github.com/dsa-core/dsa-core/internal/model"
)

// Store opens (or creates) a SQLite database and exposes the reads and
// writes every component (pipeline, agent chat, HTTP API) needs.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	log *logging.Logger
}

// Open opens dbPath, enabling WAL mode for concurrent reads while the
// pipeline writes, and runs migrations.
func Open(dbPath string, log *logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	if log != nil {
		log.Infof("store: opened %s", dbPath)
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_history (
			record_id        INTEGER PRIMARY KEY AUTOINCREMENT,
			query_id         TEXT,
			ticker           TEXT NOT NULL,
			name             TEXT,
			created_at       INTEGER NOT NULL,
			current_price    REAL,
			change_pct       REAL,
			report_type      TEXT,
			engine_version   TEXT,
			sentiment_score  REAL,
			analysis_summary TEXT,
			operation_advice TEXT,
			trend_prediction TEXT,
			risk_alerts      TEXT,
			ideal_buy        REAL,
			secondary_buy    REAL,
			stop_loss        REAL,
			take_profit      REAL,
			raw_result       TEXT,
			context_snapshot TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_ticker_created ON analysis_history(ticker, created_at)`,

		`CREATE TABLE IF NOT EXISTS news_intel (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			record_id      INTEGER NOT NULL REFERENCES analysis_history(record_id),
			ticker         TEXT NOT NULL,
			search_fallback INTEGER NOT NULL,
			items_json     TEXT NOT NULL,
			created_at     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_news_record ON news_intel(record_id)`,

		`CREATE TABLE IF NOT EXISTS conversation_messages (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id      TEXT NOT NULL,
			role            TEXT NOT NULL,
			content         TEXT,
			tool_calls_json TEXT,
			tool_call_id    TEXT,
			reasoning_blob  TEXT,
			failed          INTEGER NOT NULL DEFAULT 0,
			created_at      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conv_session_created ON conversation_messages(session_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS auth_config (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS backtest_results (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker       TEXT NOT NULL,
			started_at   INTEGER NOT NULL,
			ended_at     INTEGER NOT NULL,
			total_return REAL,
			max_drawdown REAL,
			notes        TEXT,
			created_at   INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:30], err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.log != nil {
		s.log.Infof("store: closing")
	}
	return s.db.Close()
}

// withTx runs fn inside a transaction, committing on success and
// rolling back on any error or panic, following the pack's
// scoped-session commit/rollback convention.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	err = fn(tx)
	return err
}

// SaveReport persists a report and returns its assigned record ID,
// satisfying pipeline.ReportStore.
func (s *Store) SaveReport(ctx context.Context, report *model.AnalysisReport) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts, err := json.Marshal(report.Summary.RiskAlerts)
	if err != nil {
		return 0, err
	}

	var recordID int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO analysis_history
			(query_id, ticker, name, created_at, current_price, change_pct, report_type,
			 engine_version, sentiment_score, analysis_summary, operation_advice,
			 trend_prediction, risk_alerts, ideal_buy, secondary_buy, stop_loss, take_profit,
			 raw_result, context_snapshot)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			report.Meta.QueryID, report.Meta.Ticker, report.Meta.Name, report.Meta.CreatedAt.Unix(),
			report.Meta.CurrentPrice, report.Meta.ChangePct, report.Meta.ReportType, report.Meta.EngineVersion,
			report.Summary.SentimentScore, report.Summary.AnalysisSummary, report.Summary.OperationAdvice,
			report.Summary.TrendPrediction, string(alerts),
			nullableFloat(report.Strategy.IdealBuy), nullableFloat(report.Strategy.SecondaryBuy),
			nullableFloat(report.Strategy.StopLoss), nullableFloat(report.Strategy.TakeProfit),
			report.Details.RawResult, report.Details.ContextSnapshot,
		)
		if err != nil {
			return err
		}
		recordID, err = res.LastInsertId()
		return err
	})
	return recordID, err
}

// SaveNewsIntel persists the news bundle associated with a saved report.
func (s *Store) SaveNewsIntel(ctx context.Context, recordID int64, intel model.NewsIntel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, err := json.Marshal(intel.Items)
	if err != nil {
		return err
	}
	fallback := 0
	if intel.SearchFallback {
		fallback = 1
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO news_intel
			(record_id, ticker, search_fallback, items_json, created_at)
			VALUES (?,?,?,?,?)`,
			recordID, intel.Ticker, fallback, string(buf), time.Now().Unix(),
		)
		return err
	})
}

// LatestReport returns the most recently saved report for ticker, or
// nil if none exists yet.
func (s *Store) LatestReport(ctx context.Context, ticker string) (*model.AnalysisReport, error) {
	row := s.db.QueryRowContext(ctx, `SELECT record_id, query_id, ticker, name, created_at, current_price,
		change_pct, report_type, engine_version, sentiment_score, analysis_summary, operation_advice,
		trend_prediction, risk_alerts, ideal_buy, secondary_buy, stop_loss, take_profit,
		raw_result, context_snapshot
		FROM analysis_history WHERE ticker = ? ORDER BY created_at DESC LIMIT 1`, ticker)

	return scanReport(row)
}

// ReportByID returns one report by record ID for the /history/{record_id} endpoint.
func (s *Store) ReportByID(ctx context.Context, recordID int64) (*model.AnalysisReport, error) {
	row := s.db.QueryRowContext(ctx, `SELECT record_id, query_id, ticker, name, created_at, current_price,
		change_pct, report_type, engine_version, sentiment_score, analysis_summary, operation_advice,
		trend_prediction, risk_alerts, ideal_buy, secondary_buy, stop_loss, take_profit,
		raw_result, context_snapshot
		FROM analysis_history WHERE record_id = ?`, recordID)

	return scanReport(row)
}

// History lists reports newest-first, optionally filtered by ticker,
// paginated with limit/offset.
func (s *Store) History(ctx context.Context, ticker string, limit, offset int) ([]model.AnalysisReport, error) {
	var rows *sql.Rows
	var err error
	if ticker != "" {
		rows, err = s.db.QueryContext(ctx, `SELECT record_id, query_id, ticker, name, created_at, current_price,
			change_pct, report_type, engine_version, sentiment_score, analysis_summary, operation_advice,
			trend_prediction, risk_alerts, ideal_buy, secondary_buy, stop_loss, take_profit,
			raw_result, context_snapshot
			FROM analysis_history WHERE ticker = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`, ticker, limit, offset)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT record_id, query_id, ticker, name, created_at, current_price,
			change_pct, report_type, engine_version, sentiment_score, analysis_summary, operation_advice,
			trend_prediction, risk_alerts, ideal_buy, secondary_buy, stop_loss, take_profit,
			raw_result, context_snapshot
			FROM analysis_history ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AnalysisReport
	for rows.Next() {
		r, err := scanReportRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// NewsForRecord returns the news bundle tied to a saved report.
func (s *Store) NewsForRecord(ctx context.Context, recordID int64) (model.NewsIntel, error) {
	row := s.db.QueryRowContext(ctx, `SELECT ticker, search_fallback, items_json FROM news_intel WHERE record_id = ? ORDER BY id DESC LIMIT 1`, recordID)
	var intel model.NewsIntel
	var fallback int
	var itemsJSON string
	if err := row.Scan(&intel.Ticker, &fallback, &itemsJSON); err != nil {
		if err == sql.ErrNoRows {
			return model.NewsIntel{}, nil
		}
		return model.NewsIntel{}, err
	}
	intel.SearchFallback = fallback != 0
	if err := json.Unmarshal([]byte(itemsJSON), &intel.Items); err != nil {
		return model.NewsIntel{}, err
	}
	return intel, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*model.AnalysisReport, error) {
	r, err := scanReportRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func scanReportRow(row rowScanner) (*model.AnalysisReport, error) {
	var r model.AnalysisReport
	var createdAt int64
	var alertsJSON string
	var idealBuy, secondaryBuy, stopLoss, takeProfit sql.NullFloat64

	err := row.Scan(&r.Meta.ID, &r.Meta.QueryID, &r.Meta.Ticker, &r.Meta.Name, &createdAt,
		&r.Meta.CurrentPrice, &r.Meta.ChangePct, &r.Meta.ReportType, &r.Meta.EngineVersion,
		&r.Summary.SentimentScore, &r.Summary.AnalysisSummary, &r.Summary.OperationAdvice,
		&r.Summary.TrendPrediction, &alertsJSON,
		&idealBuy, &secondaryBuy, &stopLoss, &takeProfit,
		&r.Details.RawResult, &r.Details.ContextSnapshot,
	)
	if err != nil {
		return nil, err
	}
	r.Meta.CreatedAt = time.Unix(createdAt, 0)
	if alertsJSON != "" {
		if err := json.Unmarshal([]byte(alertsJSON), &r.Summary.RiskAlerts); err != nil {
			return nil, err
		}
	}
	r.Strategy.IdealBuy = fromNullFloat(idealBuy)
	r.Strategy.SecondaryBuy = fromNullFloat(secondaryBuy)
	r.Strategy.StopLoss = fromNullFloat(stopLoss)
	r.Strategy.TakeProfit = fromNullFloat(takeProfit)
	return &r, nil
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func fromNullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
