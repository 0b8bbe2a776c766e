// Package config implements the process-wide typed configuration
// registry (C1): a flat YAML file overlaid with environment variable
// overrides, exactly as the teacher's internal/config does, generalized
// to the full recognized-options table in spec.md section 6.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// unsetMaxAgeDays marks News.MaxAgeDays as never configured, so an
// explicit 0 (discard all news) is not mistaken for the zero value and
// silently replaced by the default.
const unsetMaxAgeDays = -1

type ctxKey struct{}

// SourceConfig describes one registered data-fetcher source override.
type SourceConfig struct {
	Priority  int  `yaml:"priority"`
	Enabled   bool `yaml:"enabled"`
	RateLimit int  `yaml:"rate_limit"` // requests/sec, 0 uses the pool default
}

// Config holds all process-wide typed configuration.
type Config struct {
	StockList []string `yaml:"stock_list"`

	DataSources struct {
		Priority map[string]SourceConfig `yaml:"priority"`
		Tushare  struct {
			Token string `yaml:"token"`
		} `yaml:"tushare"`
	} `yaml:"data_sources"`

	News struct {
		BochaKeys   []string `yaml:"bocha_api_keys"`
		TavilyKeys  []string `yaml:"tavily_api_keys"`
		SerpAPIKeys []string `yaml:"serpapi_api_keys"`
		MaxAgeDays  int      `yaml:"news_max_age_days"`
	} `yaml:"news"`

	LLM struct {
		GeminiKeys      []string `yaml:"gemini_api_keys"`
		AnthropicKeys   []string `yaml:"anthropic_api_keys"`
		OpenAIKeys      []string `yaml:"openai_api_keys"`
		Model           string   `yaml:"litellm_model"`
		FallbackModels  []string `yaml:"litellm_fallback_models"`
		KeyCooldownSecs int      `yaml:"key_cooldown_seconds"`
	} `yaml:"llm"`

	Agent struct {
		Mode        bool     `yaml:"mode"`
		MaxSteps    int      `yaml:"max_steps"`
		Skills      []string `yaml:"skills"`
		StrategyDir string   `yaml:"strategy_dir"`
	} `yaml:"agent"`

	Trading struct {
		DayCheckEnabled bool   `yaml:"trading_day_check_enabled"`
		BiasThreshold   float64 `yaml:"bias_threshold"`
	} `yaml:"trading"`

	Indicators struct {
		EnableRealtime bool `yaml:"enable_realtime_technical_indicators"`
	} `yaml:"indicators"`

	MarketReview struct {
		Region string `yaml:"market_review_region"` // cn | us | both
	} `yaml:"market_review"`

	Report struct {
		SummaryOnly bool `yaml:"report_summary_only"`
	} `yaml:"report"`

	Notify struct {
		MergeEmail bool                `yaml:"merge_email_notification"`
		Groups     map[string][]string `yaml:"stock_groups"` // group name -> tickers
		EmailGroups map[string][]string `yaml:"email_groups"` // group name -> addresses
		TelegramBotToken string `yaml:"telegram_bot_token"`
		TelegramProxyURL string `yaml:"telegram_proxy_url"`
	} `yaml:"notify"`

	Auth struct {
		Enabled bool `yaml:"admin_auth_enabled"`
	} `yaml:"auth"`

	WebUI struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"webui"`

	Schedule struct {
		Time          string `yaml:"schedule_time"` // HH:MM
		Timezone      string `yaml:"timezone"`
		RunImmediately bool  `yaml:"run_immediately"`
	} `yaml:"schedule"`

	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`

	Cache struct {
		RedisAddr string `yaml:"redis_addr"`
	} `yaml:"cache"`

	BatchParallelism int `yaml:"batch_parallelism"`
}

// Registry is the hot-reloadable holder of the current Config.
type Registry struct {
	path string
	cur  atomic.Pointer[Config]
}

// Load reads Config from a YAML file, applies environment overrides,
// then defaults, mirroring the teacher's three-pass Load.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.News.MaxAgeDays = unsetMaxAgeDays // distinguishes "never configured" from an explicit 0

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STOCK_LIST"); v != "" {
		cfg.StockList = splitCSV(v)
	}
	if v := os.Getenv("TUSHARE_TOKEN"); v != "" {
		cfg.DataSources.Tushare.Token = v
	}
	if v := os.Getenv("BOCHA_API_KEYS"); v != "" {
		cfg.News.BochaKeys = splitCSV(v)
	}
	if v := os.Getenv("TAVILY_API_KEYS"); v != "" {
		cfg.News.TavilyKeys = splitCSV(v)
	}
	if v := os.Getenv("SERPAPI_API_KEYS"); v != "" {
		cfg.News.SerpAPIKeys = splitCSV(v)
	}
	if v := os.Getenv("GEMINI_API_KEYS"); v != "" {
		cfg.LLM.GeminiKeys = splitCSV(v)
	}
	if v := os.Getenv("ANTHROPIC_API_KEYS"); v != "" {
		cfg.LLM.AnthropicKeys = splitCSV(v)
	}
	if v := os.Getenv("OPENAI_API_KEYS"); v != "" {
		cfg.LLM.OpenAIKeys = splitCSV(v)
	}
	if v := os.Getenv("LITELLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LITELLM_FALLBACK_MODELS"); v != "" {
		cfg.LLM.FallbackModels = splitCSV(v)
	}
	if v := os.Getenv("AGENT_MODE"); v != "" {
		cfg.Agent.Mode = parseBool(v)
	}
	if v := os.Getenv("AGENT_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Agent.MaxSteps = n
		}
	}
	if v := os.Getenv("AGENT_SKILLS"); v != "" {
		cfg.Agent.Skills = splitCSV(v)
	}
	if v := os.Getenv("AGENT_STRATEGY_DIR"); v != "" {
		cfg.Agent.StrategyDir = v
	}
	if v := os.Getenv("TRADING_DAY_CHECK_ENABLED"); v != "" {
		cfg.Trading.DayCheckEnabled = parseBool(v)
	}
	if v := os.Getenv("ENABLE_REALTIME_TECHNICAL_INDICATORS"); v != "" {
		cfg.Indicators.EnableRealtime = parseBool(v)
	}
	if v := os.Getenv("MARKET_REVIEW_REGION"); v != "" {
		cfg.MarketReview.Region = v
	}
	if v := os.Getenv("NEWS_MAX_AGE_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.News.MaxAgeDays = n
		}
	}
	if v := os.Getenv("BIAS_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trading.BiasThreshold = f
		}
	}
	if v := os.Getenv("SCHEDULE_TIME"); v != "" {
		cfg.Schedule.Time = v
	}
	if v := os.Getenv("RUN_IMMEDIATELY"); v != "" {
		cfg.Schedule.RunImmediately = parseBool(v)
	}
	if v := os.Getenv("REPORT_SUMMARY_ONLY"); v != "" {
		cfg.Report.SummaryOnly = parseBool(v)
	}
	if v := os.Getenv("MERGE_EMAIL_NOTIFICATION"); v != "" {
		cfg.Notify.MergeEmail = parseBool(v)
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notify.TelegramBotToken = v
	}
	if v := os.Getenv("TELEGRAM_PROXY_URL"); v != "" {
		cfg.Notify.TelegramProxyURL = v
	}
	if v := os.Getenv("ADMIN_AUTH_ENABLED"); v != "" {
		cfg.Auth.Enabled = parseBool(v)
	}
	if v := os.Getenv("WEBUI_HOST"); v != "" {
		cfg.WebUI.Host = v
	}
	if v := os.Getenv("WEBUI_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WebUI.Port = n
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}

	// STOCK_GROUP_N / EMAIL_GROUP_N pairs.
	if cfg.Notify.Groups == nil {
		cfg.Notify.Groups = map[string][]string{}
	}
	if cfg.Notify.EmailGroups == nil {
		cfg.Notify.EmailGroups = map[string][]string{}
	}
	for _, e := range os.Environ() {
		k, v, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if n, ok := stripNumberedPrefix(k, "STOCK_GROUP_"); ok {
			cfg.Notify.Groups[n] = splitCSV(v)
		}
		if n, ok := stripNumberedPrefix(k, "EMAIL_GROUP_"); ok {
			cfg.Notify.EmailGroups[n] = splitCSV(v)
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.KeyCooldownSecs == 0 {
		cfg.LLM.KeyCooldownSecs = 60
	}
	if cfg.Agent.MaxSteps == 0 {
		cfg.Agent.MaxSteps = 8
	}
	if cfg.Agent.StrategyDir == "" {
		cfg.Agent.StrategyDir = "configs/strategies"
	}
	if cfg.News.MaxAgeDays == unsetMaxAgeDays {
		cfg.News.MaxAgeDays = 7
	}
	if cfg.MarketReview.Region == "" {
		cfg.MarketReview.Region = "cn"
	}
	if cfg.Schedule.Time == "" {
		cfg.Schedule.Time = "20:00"
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = "Asia/Shanghai"
	}
	if cfg.WebUI.Host == "" {
		cfg.WebUI.Host = "0.0.0.0"
	}
	if cfg.WebUI.Port == 0 {
		cfg.WebUI.Port = 8000
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/dsa_core.db"
	}
	if cfg.BatchParallelism == 0 {
		cfg.BatchParallelism = 4
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gemini-2.5-flash"
	}
}

// Validate checks that required fields are set, per spec's ConfigError
// ("missing/invalid option at startup, fatal-for-process").
func (c *Config) Validate() error {
	if len(c.LLM.GeminiKeys) == 0 && len(c.LLM.AnthropicKeys) == 0 && len(c.LLM.OpenAIKeys) == 0 {
		return fmt.Errorf("at least one of GEMINI_API_KEYS, ANTHROPIC_API_KEYS, OPENAI_API_KEYS is required")
	}
	if c.BatchParallelism < 1 {
		return fmt.Errorf("batch_parallelism must be >= 1")
	}
	return nil
}

// NewRegistry constructs a Registry from an already-loaded Config.
func NewRegistry(cfg *Config) *Registry {
	r := &Registry{}
	r.cur.Store(cfg)
	return r
}

// Current returns the live Config snapshot.
func (r *Registry) Current() *Config { return r.cur.Load() }

// Watch polls the config file's mtime every interval and hot-swaps the
// snapshot on change. Only callers that read Current see the new
// snapshot; a Scheduler built from a watchlist slice keeps that slice.
func (r *Registry) Watch(ctx context.Context, path string, interval time.Duration, onError func(error)) {
	r.path = path
	var lastMod time.Time
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			lastMod = info.ModTime()
			cfg, err := Load(path)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			r.cur.Store(cfg)
		}
	}
}

// WithRegistry injects the Registry into ctx per spec.md's "inject
// through a context value rather than module lookup" guidance.
func WithRegistry(ctx context.Context, r *Registry) context.Context {
	return context.WithValue(ctx, ctxKey{}, r)
}

// FromContext retrieves the Registry injected by WithRegistry.
func FromContext(ctx context.Context) (*Registry, bool) {
	r, ok := ctx.Value(ctxKey{}).(*Registry)
	return r, ok
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func stripNumberedPrefix(key, prefix string) (string, bool) {
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	suffix := strings.TrimPrefix(key, prefix)
	if _, err := strconv.Atoi(suffix); err != nil {
		return "", false
	}
	return suffix, true
}
