package config

import (
	"time"

	"diagflow/pkg/listener"
	"diagflow/pkg/retry"
	"diagflow/pkg/settings"
	"diagflow/pkg/tracing"
)

type Config struct {
	Logging        LoggingConfig        `mapstructure:"logging"`
	Pipeline       PipelineConfig       `mapstructure:"pipeline"`
	Overrides      []OverrideConfig     `mapstructure:"overrides"`
	Filters        []FilterConfig       `mapstructure:"filters"`
	Listeners      []ListenerConfig     `mapstructure:"listeners"`
	Strings        StringsConfig        `mapstructure:"strings"`
	Inspector      InspectorConfig      `mapstructure:"inspector"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Retry          retry.Policy         `mapstructure:"retry"`
	Tracing        tracing.Config       `mapstructure:"tracing"`
	Perf           PerfConfig           `mapstructure:"perf"`
	Counters       CountersConfig       `mapstructure:"counters"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// PipelineConfig holds the global toggles and store settings.
type PipelineConfig struct {
	Name              string `mapstructure:"name"`
	settings.Defaults `mapstructure:",squash"`
	Capacity          int `mapstructure:"capacity"`
	// Color is a palette index; negative keeps the default color.
	Color        int      `mapstructure:"color"`
	Notifier     bool     `mapstructure:"notifier"`
	SkipPackages []string `mapstructure:"skip_packages"`
}

// OverrideConfig targets a type (package qualified, e.g.
// "example.com/app/orders.Service") or one of its methods. Unset toggles
// inherit.
type OverrideConfig struct {
	Type              string `mapstructure:"type"`
	Method            string `mapstructure:"method"`
	Enabled           *bool  `mapstructure:"enabled"`
	AssertShouldThrow *bool  `mapstructure:"assert_should_throw"`
	Store             *bool  `mapstructure:"store"`
	CaptureStack      *bool  `mapstructure:"capture_stack"`
	PlatformLog       *bool  `mapstructure:"platform_log"`
	NotifyListeners   *bool  `mapstructure:"notify_listeners"`
	NotifyNotifier    *bool  `mapstructure:"notify_notifier"`
}

func (o OverrideConfig) Override() settings.Override {
	return settings.Override{
		Enabled:               o.Enabled,
		AssertShouldThrow:     o.AssertShouldThrow,
		ShouldStore:           o.Store,
		ShouldCaptureStack:    o.CaptureStack,
		ShouldPlatformLog:     o.PlatformLog,
		ShouldNotifyListeners: o.NotifyListeners,
		ShouldNotifyNotifier:  o.NotifyNotifier,
	}
}

// FilterConfig describes one filter. Value is the kind for kind filters, the
// pattern for namespace, type and method filters, and the expected value for
// payload filters.
type FilterConfig struct {
	ID          int    `mapstructure:"id"`
	Type        string `mapstructure:"type"`
	Implication string `mapstructure:"implication"`
	Enabled     *bool  `mapstructure:"enabled"`
	Value       string `mapstructure:"value"`
	Expression  string `mapstructure:"expression"`
	Path        string `mapstructure:"path"`
}

type ListenerConfig struct {
	ID      int    `mapstructure:"id"`
	Type    string `mapstructure:"type"`
	Enabled *bool  `mapstructure:"enabled"`

	Console  listener.ConsoleConfig  `mapstructure:"console"`
	File     listener.FileConfig     `mapstructure:"file"`
	Span     SpanListenerConfig      `mapstructure:"span"`
	Redis    listener.RedisConfig    `mapstructure:"redis"`
	Kafka    listener.KafkaConfig    `mapstructure:"kafka"`
	MongoDB  listener.MongoConfig    `mapstructure:"mongodb"`
	Postgres listener.PostgresConfig `mapstructure:"postgres"`

	RateLimit      ThrottleConfig `mapstructure:"rate_limit"`
	CircuitBreaker bool           `mapstructure:"circuit_breaker"`
}

type SpanListenerConfig struct {
	MarkErrors bool `mapstructure:"mark_errors"`
}

// ThrottleConfig limits a listener to PerSecond messages with the given
// burst. Zero disables throttling.
type ThrottleConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

// StringsConfig feeds the "@key" string table. Inline entries win over
// entries loaded from files.
type StringsConfig struct {
	Files   []string          `mapstructure:"files"`
	Entries map[string]string `mapstructure:"entries"`
}

type InspectorConfig struct {
	Enabled   bool            `mapstructure:"enabled"`
	Port      int             `mapstructure:"port"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

// PerfConfig registers timed events up front. SummaryFile, when set, receives
// the iteration tables on shutdown.
type PerfConfig struct {
	ReportExceeding bool              `mapstructure:"report_exceeding"`
	SummaryFile     string            `mapstructure:"summary_file"`
	Events          []PerfEventConfig `mapstructure:"events"`
}

type PerfEventConfig struct {
	Name    string        `mapstructure:"name"`
	MaxTime time.Duration `mapstructure:"max_time"`
}

type CountersConfig struct {
	AutoReset   bool            `mapstructure:"auto_reset"`
	SummaryFile string          `mapstructure:"summary_file"`
	Types       []CounterConfig `mapstructure:"types"`
}

// CounterConfig names a package qualified type, e.g. "example.com/app.Conn".
// A non-empty Name adds a named category for the type. MaxCount 0 means no
// maximum.
type CounterConfig struct {
	Type     string `mapstructure:"type"`
	Name     string `mapstructure:"name"`
	MaxCount int    `mapstructure:"max_count"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
