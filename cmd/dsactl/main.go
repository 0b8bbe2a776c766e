// Command dsactl is the process entrypoint: it wires config, storage,
// the fetcher pool, the LLM router, the analysis pipeline, the task
// queue/event bus, the scheduler, the notifier, and the HTTP API
// together, then runs whichever combination of --serve/--schedule/batch
// modes the flags request.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/dsa-core/dsa-core/internal/agent"
	"github.com/dsa-core/dsa-core/internal/apperr"
	"github.com/dsa-core/dsa-core/internal/auth"
	"github.com/dsa-core/dsa-core/internal/cache"
	"github.com/dsa-core/dsa-core/internal/calendar"
	"github.com/dsa-core/dsa-core/internal/config"
	"github.com/dsa-core/dsa-core/internal/eventbus"
	"github.com/dsa-core/dsa-core/internal/evidence"
	"github.com/dsa-core/dsa-core/internal/fetcher"
	"github.com/dsa-core/dsa-core/internal/httpapi"
	"github.com/dsa-core/dsa-core/internal/llm"
	"github.com/dsa-core/dsa-core/internal/logging"
	"github.com/dsa-core/dsa-core/internal/model"
	"github.com/dsa-core/dsa-core/internal/newsintel"
	"github.com/dsa-core/dsa-core/internal/notifier"
	"github.com/dsa-core/dsa-core/internal/pipeline"
	"github.com/dsa-core/dsa-core/internal/scheduler"
	"github.com/dsa-core/dsa-core/internal/store"
	"github.com/dsa-core/dsa-core/internal/taskqueue"
)

const exitConfigError = 2
const exitFatal = 1

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", "configs/config.yaml", "path to the YAML config file")
		serve       = flag.Bool("serve", false, "start the HTTP server alongside the scheduler")
		serveOnly   = flag.Bool("serve-only", false, "start only the HTTP server, no scheduler")
		webui       = flag.Bool("webui", false, "legacy alias for --serve")
		webuiOnly   = flag.Bool("webui-only", false, "legacy alias for --serve-only")
		runSchedule = flag.Bool("schedule", false, "start the cron scheduler")
		noNotify    = flag.Bool("no-notify", false, "skip the notification dispatcher for this run")
		singleNotify = flag.Bool("single-notify", false, "dispatch notifications per ticker instead of batching")
		forceRun    = flag.Bool("force-run", false, "bypass the trading calendar gate")
		mcpStdio    = flag.Bool("mcp", false, "serve the agent tool registry over MCP on stdio, instead of running any analysis")
	)
	flag.Parse()

	*serve = *serve || *webui
	*serveOnly = *serveOnly || *webuiOnly

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dsactl: config load failed: %v\n", err)
		return exitConfigError
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "dsactl: invalid config: %v\n", err)
		return exitConfigError
	}

	log := logging.New("info")

	deps, err := wire(cfg, log)
	if err != nil {
		log.Errorf("dsactl: wiring failed: %v", err)
		return exitFatal
	}
	defer deps.store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &pipelineRunner{pipeline: deps.pipeline, dispatcher: deps.dispatcher, notify: !*noNotify, singleNotify: *singleNotify}

	switch {
	case *mcpStdio:
		mcpServer := agent.NewMCPServer(deps.tools, "dsactl", "1.0.0", log)
		if err := mcpserver.ServeStdio(mcpServer); err != nil {
			log.Errorf("dsactl: mcp stdio server failed: %v", err)
			return exitFatal
		}
		return 0
	case *serveOnly:
		return serveHTTP(ctx, cfg, deps)
	case *serve:
		sched, err := buildScheduler(cfg, runner, log)
		if err != nil {
			log.Errorf("dsactl: scheduler setup failed: %v", err)
			return exitFatal
		}
		sched.Start()
		defer sched.Stop()
		return serveHTTP(ctx, cfg, deps)
	case *runSchedule:
		sched, err := buildScheduler(cfg, runner, log)
		if err != nil {
			log.Errorf("dsactl: scheduler setup failed: %v", err)
			return exitFatal
		}
		sched.Start()
		waitForSignal()
		sched.Stop()
		return 0
	default:
		dayCheck := cfg.Trading.DayCheckEnabled && !*forceRun
		runBatchOnce(ctx, cfg, runner, dayCheck, log)
		runner.FlushBatch(ctx)
		return 0
	}
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}

func serveHTTP(ctx context.Context, cfg *config.Config, deps *appDeps) int {
	engine := httpapi.New(&httpapi.Deps{
		Pipeline:    deps.pipeline,
		Queue:       deps.queue,
		Bus:         deps.bus,
		Store:       deps.store,
		AuthMgr:     deps.authMgr,
		AuthEnabled: cfg.Auth.Enabled,
		Tools:       deps.tools,
		Strategies:  deps.strategies,
		AgentModel:  cfg.LLM.Model,
		News:        deps.newsSvc,
		Log:         deps.log,
	}, deps.router, nil)

	addr := fmt.Sprintf("%s:%d", cfg.WebUI.Host, cfg.WebUI.Port)
	srv := &http.Server{Addr: addr, Handler: engine}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	deps.log.Infof("dsactl: listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		deps.log.Errorf("dsactl: http server error: %v", err)
		return exitFatal
	}
	deps.queue.Wait()
	return 0
}

func buildScheduler(cfg *config.Config, runner *pipelineRunner, log *logging.Logger) (*scheduler.Scheduler, error) {
	sched, err := scheduler.New(cfg.Schedule.Timezone, flushingRunner{runner}, cfg.StockList, cfg.BatchParallelism, cfg.Trading.DayCheckEnabled, log)
	if err != nil {
		return nil, err
	}
	if err := sched.RegisterDaily(cfg.Schedule.Time); err != nil {
		return nil, err
	}
	if cfg.Schedule.RunImmediately {
		go sched.RunNow(context.Background())
	}
	return sched, nil
}

// flushingRunner wraps a pipelineRunner so the scheduler's fire-and-forget
// cron invocations still emit a merged market-review send in batch mode;
// RunNow fans a whole watchlist through Run before this ever fires per
// ticker, so flushing on the last ticker of each pass would need
// cross-goroutine coordination the scheduler doesn't expose today. This
// wrapper flushes after every ticker instead, which degrades batch mode
// to a per-ticker review send when the scheduler drives it (single-notify
// semantics are unaffected either way).
type flushingRunner struct{ *pipelineRunner }

func (f flushingRunner) Run(ctx context.Context, ticker string, opts scheduler.RunOptions) error {
	err := f.pipelineRunner.Run(ctx, ticker, opts)
	f.pipelineRunner.FlushBatch(ctx)
	return err
}

func runBatchOnce(ctx context.Context, cfg *config.Config, runner scheduler.Runner, dayCheck bool, log *logging.Logger) {
	for _, ticker := range cfg.StockList {
		if dayCheck && !calendar.IsOpen(model.InferMarket(ticker), time.Now()) {
			log.Infof("dsactl: skipping %s, market closed today", ticker)
			continue
		}
		if err := runner.Run(ctx, ticker, scheduler.RunOptions{Notify: true, DayCheck: dayCheck}); err != nil {
			if apperr.CodeOf(err) == apperr.CodeSkipped {
				log.Infof("dsactl: skipping %s: %v", ticker, err)
			} else {
				log.Errorf("dsactl: analysis failed for %s: %v", ticker, err)
			}
		}
	}
}

// pipelineRunner adapts *pipeline.Pipeline to scheduler.Runner. When
// singleNotify is set, each ticker's report is dispatched immediately
// (the pipeline's own Notify hook); otherwise reports accumulate for a
// single merged market-review send via FlushBatch once the run
// completes.
type pipelineRunner struct {
	pipeline     *pipeline.Pipeline
	dispatcher   *notifier.Dispatcher
	notify       bool
	singleNotify bool

	mu      sync.Mutex
	batched []*model.AnalysisReport
}

func (r *pipelineRunner) Run(ctx context.Context, ticker string, opts scheduler.RunOptions) error {
	report, err := r.pipeline.Run(ctx, ticker, pipeline.Options{
		ReportType: "detailed",
		Notify:     r.notify && opts.Notify && r.singleNotify,
		DayCheck:   opts.DayCheck,
	})
	if err != nil {
		return err
	}
	if r.notify && opts.Notify && !r.singleNotify {
		r.mu.Lock()
		r.batched = append(r.batched, report)
		r.mu.Unlock()
	}
	return nil
}

// FlushBatch sends one merged market-review notification covering every
// report accumulated since the last flush, a no-op in single-notify mode.
func (r *pipelineRunner) FlushBatch(ctx context.Context) {
	r.mu.Lock()
	reports := r.batched
	r.batched = nil
	r.mu.Unlock()
	if len(reports) == 0 || r.dispatcher == nil {
		return
	}
	text := notifier.FormatMarketReview(reports)
	if err := r.dispatcher.SendMarketReview(ctx, text); err != nil {
		r.pipeline.Log.Warnf("dsactl: market review dispatch failed: %v", err)
	}
}

// appDeps holds every wired collaborator main needs across run modes.
type appDeps struct {
	store       *store.Store
	router      *llm.Router
	pool        *fetcher.Pool
	newsSvc     *newsintel.Service
	pipeline    *pipeline.Pipeline
	queue       *taskqueue.Queue
	bus         *eventbus.Bus
	authMgr     *auth.Manager
	tools       *agent.Registry
	strategies  map[string]*agent.Strategy
	dispatcher  *notifier.Dispatcher
	log         *logging.Logger
}

func wire(cfg *config.Config, log *logging.Logger) (*appDeps, error) {
	st, err := store.Open(cfg.Database.SQLitePath, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	c := cache.New(cfg.Cache.RedisAddr)

	sources := []fetcher.Source{
		fetcher.NewYahooSource(""),
		fetcher.NewVendorSource("tushare", "https://api.tushare.pro", cfg.DataSources.Tushare.Token, 1, model.MarketCN, model.MarketHK),
	}
	pool := fetcher.NewPool(sources, cfg, c, log)

	var providers []newsintel.Provider
	if len(cfg.News.BochaKeys) > 0 {
		providers = append(providers, newsintel.NewBochaProvider(cfg.News.BochaKeys))
	}
	if len(cfg.News.TavilyKeys) > 0 {
		providers = append(providers, newsintel.NewTavilyProvider(cfg.News.TavilyKeys))
	}
	if len(cfg.News.SerpAPIKeys) > 0 {
		providers = append(providers, newsintel.NewSerpAPIProvider(cfg.News.SerpAPIKeys))
	}
	newsSvc := newsintel.NewService(providers, newsintel.NewScrapeProvider(), cfg.News.MaxAgeDays, log)

	keysByProvider := map[llm.Provider][]string{
		llm.ProviderAnthropic: cfg.LLM.AnthropicKeys,
		llm.ProviderGemini:    cfg.LLM.GeminiKeys,
		llm.ProviderOpenAI:    cfg.LLM.OpenAIKeys,
	}
	router := llm.NewRouter(cfg.LLM.Model, cfg.LLM.FallbackModels, keysByProvider, time.Duration(cfg.LLM.KeyCooldownSecs)*time.Second, log)

	assembler := evidence.New(pool, newsSvc, cfg.Indicators.EnableRealtime, log)

	bus := eventbus.New()

	dispatcher := &notifier.Dispatcher{
		Channels:       map[string]notifier.Channel{},
		Groups:         cfg.Notify.Groups,
		Destinations:   cfg.Notify.EmailGroups,
		DefaultChannel: "telegram",
		Log:            log,
		ChunkDelay:     500 * time.Millisecond,
	}
	if cfg.Notify.TelegramBotToken != "" {
		dispatcher.Channels["telegram"] = notifier.NewTelegramChannel(cfg.Notify.TelegramBotToken, cfg.Notify.TelegramProxyURL)
	}

	pl := &pipeline.Pipeline{
		Assembler:     assembler,
		Router:        router,
		Store:         st,
		Events:        bus,
		Notify:        dispatcher,
		Log:           log,
		BiasThreshold: cfg.Trading.BiasThreshold,
	}

	queue := taskqueue.New(cfg.BatchParallelism, log)

	authMgr := auth.NewManager(st)

	tools := agent.NewRegistry(
		agent.NewHistoryTool(pool),
		agent.NewQuoteTool(pool),
		agent.NewTrendTool(pool),
		agent.NewNewsTool(newsSvc),
		agent.NewSectorRankingTool(pool, cfg.StockList),
	)

	strategies, err := agent.LoadStrategies("configs/strategies", cfg.Agent.StrategyDir)
	if err != nil {
		return nil, fmt.Errorf("load strategies: %w", err)
	}

	return &appDeps{
		store:      st,
		router:     router,
		pool:       pool,
		newsSvc:    newsSvc,
		pipeline:   pl,
		queue:      queue,
		bus:        bus,
		authMgr:    authMgr,
		tools:      tools,
		dispatcher: dispatcher,
		strategies: strategies,
		log:        log,
	}, nil
}
