package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aegislabs/signalbridge/internal/observ"
)

type Parser struct {
	Indexes    []string `yaml:"indexes"`
	Confidence int      `yaml:"confidence"`
	Instrument string   `yaml:"instrument"`
}

type Dedup struct {
	WindowSeconds int `yaml:"window_seconds"`
	MaxKeys       int `yaml:"max_keys"`
}

type Risk struct {
	TargetInstrument   string  `yaml:"target_instrument"`
	ExcludedInstrument string  `yaml:"excluded_instrument"`
	MaxTradesPerDay    int     `yaml:"max_trades_per_day"`
	MaxRiskPerTrade    float64 `yaml:"max_risk_per_trade"`
	LotSize            int64   `yaml:"lot_size"`
	CounterPath        string  `yaml:"counter_path"`
	PanicPath          string  `yaml:"panic_path"`
}

type Feed struct {
	BaseURL        string `yaml:"base_url"`
	SignalsPath    string `yaml:"signals_path"`
	MessagesPath   string `yaml:"messages_path"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
	TimeoutMs      int    `yaml:"timeout_ms"`
	MaxAgeSeconds  int    `yaml:"max_age_seconds"` // live message cutoff
}

type Ingest struct {
	URL       string `yaml:"url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type Authority struct {
	SubmitURL string `yaml:"submit_url"`
	HaltURL   string `yaml:"halt_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type Feedback struct {
	URL       string `yaml:"url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type MetricsOverlay struct {
	// Enabled opts in to the fixed pass-the-gate metrics bundle. Off by
	// default: the authority then sees only what the signal supports.
	Enabled        bool    `yaml:"enabled"`
	ExpectedValue  float64 `yaml:"expected_value"`
	MinRRRatio     float64 `yaml:"min_rr_ratio"`
	AIConfidence   float64 `yaml:"ai_confidence"`
	SetupName      string  `yaml:"setup_name"`
	RegimeName     string  `yaml:"regime_name"`
	ADX            float64 `yaml:"adx"`
	Delta          float64 `yaml:"delta"`
	SpreadPct      float64 `yaml:"spread_pct"`
	LiquidityScore float64 `yaml:"liquidity_score"`
	IVRank         float64 `yaml:"iv_rank"`
}

type Bridge struct {
	ExecutionIntent string         `yaml:"execution_intent"`
	MetricsOverlay  MetricsOverlay `yaml:"metrics_overlay"`
}

type Alerts struct {
	Enabled       bool   `yaml:"enabled"`
	APIBase       string `yaml:"api_base"`
	BotToken      string `yaml:"bot_token"`
	ChatID        string `yaml:"chat_id"`
	RatePerMinute int    `yaml:"rate_per_minute"`
	QueueSize     int    `yaml:"queue_size"`
}

type Metrics struct {
	Addr string `yaml:"addr"`
}

type Root struct {
	Source    string           `yaml:"source"`   // x-source header value
	APIKey    string           `yaml:"api_key"`  // overridable via env in mains
	Timezone  string           `yaml:"timezone"` // exchange timezone for timestamps and day rollover
	Logging   observ.LogConfig `yaml:"logging"`
	Metrics   Metrics          `yaml:"metrics"`
	Parser    Parser           `yaml:"parser"`
	Dedup     Dedup            `yaml:"dedup"`
	Risk      Risk             `yaml:"risk"`
	Feed      Feed             `yaml:"feed"`
	Ingest    Ingest           `yaml:"ingest"`
	Authority Authority        `yaml:"authority"`
	Feedback  Feedback         `yaml:"feedback"`
	Bridge    Bridge           `yaml:"bridge"`
	Alerts    Alerts           `yaml:"alerts"`
}

func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	applyDefaults(&c)
	return c, nil
}

// Default returns a Root with every default applied, for tools that run
// without a config file.
func Default() Root {
	var c Root
	applyDefaults(&c)
	return c
}

func applyDefaults(c *Root) {
	if c.Source == "" {
		c.Source = "TELEGRAM"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Kolkata"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9109"
	}

	if len(c.Parser.Indexes) == 0 {
		c.Parser.Indexes = []string{"NIFTY", "BANKNIFTY", "SENSEX", "FINNIFTY", "MIDCPNIFTY"}
	}
	if c.Parser.Confidence == 0 {
		c.Parser.Confidence = 90
	}
	if c.Parser.Instrument == "" {
		c.Parser.Instrument = "NFO"
	}

	if c.Dedup.WindowSeconds == 0 {
		c.Dedup.WindowSeconds = 300
	}
	if c.Dedup.MaxKeys == 0 {
		c.Dedup.MaxKeys = 100
	}

	if c.Risk.TargetInstrument == "" {
		c.Risk.TargetInstrument = "NIFTY"
	}
	if c.Risk.ExcludedInstrument == "" {
		c.Risk.ExcludedInstrument = "BANKNIFTY"
	}
	if c.Risk.MaxTradesPerDay == 0 {
		c.Risk.MaxTradesPerDay = 1
	}
	if c.Risk.MaxRiskPerTrade == 0 {
		c.Risk.MaxRiskPerTrade = 500
	}
	if c.Risk.LotSize == 0 {
		c.Risk.LotSize = 75
	}
	if c.Risk.CounterPath == "" {
		c.Risk.CounterPath = "data/daily_trades.json"
	}
	if c.Risk.PanicPath == "" {
		c.Risk.PanicPath = "data/PANIC"
	}

	if c.Feed.BaseURL == "" {
		c.Feed.BaseURL = "http://localhost:4100"
	}
	if c.Feed.SignalsPath == "" {
		c.Feed.SignalsPath = "/api/v1/signals/today"
	}
	if c.Feed.MessagesPath == "" {
		c.Feed.MessagesPath = "/api/v1/messages/latest"
	}
	if c.Feed.PollIntervalMs == 0 {
		c.Feed.PollIntervalMs = 5000
	}
	if c.Feed.TimeoutMs == 0 {
		c.Feed.TimeoutMs = 5000
	}
	if c.Feed.MaxAgeSeconds == 0 {
		c.Feed.MaxAgeSeconds = 60
	}

	if c.Ingest.URL == "" {
		c.Ingest.URL = "http://localhost:4100/api/v1/signals/ingest"
	}
	if c.Ingest.TimeoutMs == 0 {
		c.Ingest.TimeoutMs = 10000
	}

	if c.Authority.SubmitURL == "" {
		c.Authority.SubmitURL = "http://localhost:4100/api/v1/kernel/submit"
	}
	if c.Authority.HaltURL == "" {
		c.Authority.HaltURL = "http://localhost:4100/api/v1/kernel/halt"
	}
	if c.Authority.TimeoutMs == 0 {
		c.Authority.TimeoutMs = 5000
	}

	if c.Feedback.URL == "" {
		c.Feedback.URL = "http://localhost:4100/api/v1/signals/report-outcome"
	}
	if c.Feedback.TimeoutMs == 0 {
		c.Feedback.TimeoutMs = 2000
	}

	if c.Bridge.ExecutionIntent == "" {
		c.Bridge.ExecutionIntent = "PAPER_TRADE"
	}
	mo := &c.Bridge.MetricsOverlay
	if mo.ExpectedValue == 0 {
		mo.ExpectedValue = 150
	}
	if mo.MinRRRatio == 0 {
		mo.MinRRRatio = 1.5
	}
	if mo.AIConfidence == 0 {
		mo.AIConfidence = 0.9
	}
	if mo.SetupName == "" {
		mo.SetupName = "TELEGRAM_TREND"
	}
	if mo.RegimeName == "" {
		mo.RegimeName = "TREND"
	}
	if mo.ADX == 0 {
		mo.ADX = 25
	}
	if mo.Delta == 0 {
		mo.Delta = 0.40
	}
	if mo.SpreadPct == 0 {
		mo.SpreadPct = 0.01
	}
	if mo.LiquidityScore == 0 {
		mo.LiquidityScore = 95
	}
	if mo.IVRank == 0 {
		mo.IVRank = 30
	}

	if c.Alerts.APIBase == "" {
		c.Alerts.APIBase = "https://api.telegram.org"
	}
	if c.Alerts.RatePerMinute == 0 {
		c.Alerts.RatePerMinute = 20
	}
	if c.Alerts.QueueSize == 0 {
		c.Alerts.QueueSize = 100
	}

	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 50
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
}
