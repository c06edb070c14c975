// Package config provides configuration loading and validation.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonathan/job-radar/internal/schemas"
	"github.com/jonathan/job-radar/internal/types"
)

// DefaultPath is used when neither --config nor JOBRADAR_CONFIG is given.
const DefaultPath = "jobradar.json"

// Defaults
const (
	DefaultIntervalHours    = 6
	DefaultMaxConcurrency   = 4
	DefaultAdapterTimeout   = 2 * time.Minute
	DefaultShutdownTimeout  = 5 * time.Second
	DefaultAlertThreshold   = 0.8
	DefaultAlertTimeout     = 10 * time.Second
	DefaultMinInterval      = time.Second
	DefaultBurst            = 1
	DefaultMaxAttempts      = 3
	DefaultBaseDelay        = time.Second
	DefaultMaxDelay         = time.Minute
	DefaultFailureThreshold = 3
	DefaultCooldown         = time.Hour
	DefaultServerAddr       = ":8080"
)

// SourceTimeoutFactor derives the default source_timeout from adapter_timeout.
const SourceTimeoutFactor = 2

// Duration is a time.Duration that reads "30s" style strings or a number of
// seconds from JSON.
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		d.Duration = parsed
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("duration must be a string or number of seconds: %s", string(b))
	}
	d.Duration = time.Duration(secs * float64(time.Second))
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Config is the full job-radar configuration. A loaded Config is treated as
// immutable; reloading produces a new value.
type Config struct {
	DatabaseURL string                `json:"database_url,omitempty"`
	RedisURL    string                `json:"redis_url,omitempty"`
	LogLevel    string                `json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Schedule    ScheduleConfig        `json:"schedule"`
	Pipeline    PipelineConfig        `json:"pipeline"`
	Throttle    ThrottleConfig        `json:"throttle"`
	Preferences types.Preferences     `json:"preferences"`
	Weights     *types.ScoringWeights `json:"weights,omitempty"`
	Alerts      AlertsConfig          `json:"alerts"`
	Sources     []SourceConfig        `json:"sources" validate:"dive"`
	Server      ServerConfig          `json:"server"`

	path        string
	intervalSet bool
}

// ScheduleConfig controls when cycles run.
type ScheduleConfig struct {
	IntervalHours int    `json:"interval_hours,omitempty"`
	Cron          string `json:"cron,omitempty"`
	Enabled       bool   `json:"enabled"`
	RunOnStart    bool   `json:"run_on_start,omitempty"`
}

// Interval returns the configured interval as a duration.
func (s ScheduleConfig) Interval() time.Duration {
	return time.Duration(s.IntervalHours) * time.Hour
}

// PipelineConfig bounds the work done in one cycle.
type PipelineConfig struct {
	MaxConcurrency  int      `json:"max_concurrency,omitempty" validate:"gte=0,lte=64"`
	AdapterTimeout  Duration `json:"adapter_timeout,omitempty"`
	// SourceTimeout bounds one source's whole task: every attempt plus the
	// backoff between them. Defaults to SourceTimeoutFactor × AdapterTimeout.
	SourceTimeout   Duration `json:"source_timeout,omitempty"`
	ShutdownTimeout Duration `json:"shutdown_timeout,omitempty"`
	RetentionDays   int      `json:"retention_days,omitempty" validate:"gte=0"`
}

// ThrottleConfig tunes a source's rate/backoff controller.
type ThrottleConfig struct {
	MinInterval      Duration `json:"min_interval,omitempty"`
	Burst            int      `json:"burst,omitempty" validate:"gte=0"`
	MaxAttempts      int      `json:"max_attempts,omitempty" validate:"gte=0,lte=10"`
	BaseDelay        Duration `json:"base_delay,omitempty"`
	MaxDelay         Duration `json:"max_delay,omitempty"`
	FailureThreshold int      `json:"failure_threshold,omitempty" validate:"gte=0"`
	Cooldown         Duration `json:"cooldown,omitempty"`
}

// AlertsConfig selects the notification channels.
type AlertsConfig struct {
	Threshold float64        `json:"threshold,omitempty" validate:"gte=0,lte=1"`
	Timeout   Duration       `json:"timeout,omitempty"`
	Log       bool           `json:"log,omitempty"`
	Webhook   *WebhookConfig `json:"webhook,omitempty"`
	Email     *EmailConfig   `json:"email,omitempty"`
	Redis     *RedisChannel  `json:"redis,omitempty"`
	Kafka     *KafkaChannel  `json:"kafka,omitempty"`
}

// WebhookConfig posts alerts as JSON.
type WebhookConfig struct {
	URL     string            `json:"url" validate:"required,url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// EmailConfig sends alerts over SMTP.
type EmailConfig struct {
	Host     string   `json:"host" validate:"required"`
	Port     int      `json:"port,omitempty" validate:"gte=0,lte=65535"`
	Username string   `json:"username,omitempty"`
	Password string   `json:"password,omitempty"`
	From     string   `json:"from" validate:"required,email"`
	To       []string `json:"to" validate:"required,min=1,dive,email"`
}

// RedisChannel publishes alerts to a Redis pub/sub channel.
type RedisChannel struct {
	Channel string `json:"channel" validate:"required"`
}

// KafkaChannel produces alerts to a Kafka topic.
type KafkaChannel struct {
	Brokers []string `json:"brokers" validate:"required,min=1"`
	Topic   string   `json:"topic" validate:"required"`
}

// SourceConfig declares one source adapter instance.
type SourceConfig struct {
	Name     string            `json:"name" validate:"required"`
	Type     string            `json:"type" validate:"required"`
	Enabled  *bool             `json:"enabled,omitempty"`
	Params   map[string]string `json:"params,omitempty"`
	Queries  []string          `json:"queries,omitempty"`
	Throttle *ThrottleConfig   `json:"throttle,omitempty"`
}

// IsEnabled reports whether the source should run. Sources are enabled
// unless explicitly disabled.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Param returns a parameter value, or def when unset.
func (s SourceConfig) Param(key, def string) string {
	if v, ok := s.Params[key]; ok && v != "" {
		return v
	}
	return def
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string   `json:"addr,omitempty"`
	CORSOrigins []string `json:"cors_origins,omitempty"`
}

// LoadConfig loads, validates and defaults configuration from a JSON file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.path = path
	return cfg, nil
}

// Parse builds a Config from JSON bytes: decode, schema check, environment
// overrides, defaults, then semantic validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := schemas.ValidateConfig(data); err != nil {
		return nil, fmt.Errorf("config does not match schema: %w", err)
	}

	// An explicit interval of 0 is an error, an omitted one gets the default.
	var presence struct {
		Schedule struct {
			IntervalHours *int `json:"interval_hours"`
		} `json:"schedule"`
	}
	if err := json.Unmarshal(data, &presence); err == nil {
		cfg.intervalSet = presence.Schedule.IntervalHours != nil
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Path returns the file the config was loaded from, if any.
func (c *Config) Path() string {
	return c.path
}

// Reload re-reads the file this config came from.
func (c *Config) Reload() (*Config, error) {
	if c.path == "" {
		return nil, fmt.Errorf("config was not loaded from a file")
	}
	return LoadConfig(c.path)
}

// ScoringWeights returns the configured weights or the defaults.
func (c *Config) ScoringWeights() types.ScoringWeights {
	if c.Weights == nil {
		return types.DefaultWeights()
	}
	return *c.Weights
}

// ThrottleFor merges a source's throttle override onto the global defaults.
func (c *Config) ThrottleFor(src SourceConfig) ThrottleConfig {
	t := c.Throttle
	if o := src.Throttle; o != nil {
		if o.MinInterval.Duration > 0 {
			t.MinInterval = o.MinInterval
		}
		if o.Burst > 0 {
			t.Burst = o.Burst
		}
		if o.MaxAttempts > 0 {
			t.MaxAttempts = o.MaxAttempts
		}
		if o.BaseDelay.Duration > 0 {
			t.BaseDelay = o.BaseDelay
		}
		if o.MaxDelay.Duration > 0 {
			t.MaxDelay = o.MaxDelay
		}
		if o.FailureThreshold > 0 {
			t.FailureThreshold = o.FailureThreshold
		}
		if o.Cooldown.Duration > 0 {
			t.Cooldown = o.Cooldown
		}
	}
	return t
}

// EnabledSources returns the sources that should run.
func (c *Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}

// Clone returns a deep copy, used as the immutable snapshot for one cycle.
func (c *Config) Clone() *Config {
	out := *c
	out.Preferences = c.Preferences.Clone()
	if c.Weights != nil {
		w := *c.Weights
		out.Weights = &w
	}
	out.Sources = make([]SourceConfig, len(c.Sources))
	for i, s := range c.Sources {
		cp := s
		if s.Enabled != nil {
			e := *s.Enabled
			cp.Enabled = &e
		}
		if s.Params != nil {
			cp.Params = make(map[string]string, len(s.Params))
			for k, v := range s.Params {
				cp.Params[k] = v
			}
		}
		cp.Queries = append([]string(nil), s.Queries...)
		if s.Throttle != nil {
			t := *s.Throttle
			cp.Throttle = &t
		}
		out.Sources[i] = cp
	}
	out.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	return &out
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("JOBRADAR_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("JOBRADAR_INTERVAL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Schedule.IntervalHours = n
			c.intervalSet = true
		}
	}
	if c.Alerts.Email != nil {
		if v := os.Getenv("SMTP_PASSWORD"); v != "" {
			c.Alerts.Email.Password = v
		}
	}
	// Params may reference secrets as ${NAME}.
	for i := range c.Sources {
		for k, v := range c.Sources[i].Params {
			c.Sources[i].Params[k] = os.ExpandEnv(v)
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Schedule.IntervalHours == 0 && c.Schedule.Cron == "" && !c.intervalSet {
		c.Schedule.IntervalHours = DefaultIntervalHours
	}
	if c.Pipeline.MaxConcurrency == 0 {
		c.Pipeline.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.Pipeline.AdapterTimeout.Duration == 0 {
		c.Pipeline.AdapterTimeout.Duration = DefaultAdapterTimeout
	}
	if c.Pipeline.SourceTimeout.Duration == 0 {
		c.Pipeline.SourceTimeout.Duration = SourceTimeoutFactor * c.Pipeline.AdapterTimeout.Duration
	}
	if c.Pipeline.ShutdownTimeout.Duration == 0 {
		c.Pipeline.ShutdownTimeout.Duration = DefaultShutdownTimeout
	}
	if c.Throttle.MinInterval.Duration == 0 {
		c.Throttle.MinInterval.Duration = DefaultMinInterval
	}
	if c.Throttle.Burst == 0 {
		c.Throttle.Burst = DefaultBurst
	}
	if c.Throttle.MaxAttempts == 0 {
		c.Throttle.MaxAttempts = DefaultMaxAttempts
	}
	if c.Throttle.BaseDelay.Duration == 0 {
		c.Throttle.BaseDelay.Duration = DefaultBaseDelay
	}
	if c.Throttle.MaxDelay.Duration == 0 {
		c.Throttle.MaxDelay.Duration = DefaultMaxDelay
	}
	if c.Throttle.FailureThreshold == 0 {
		c.Throttle.FailureThreshold = DefaultFailureThreshold
	}
	if c.Throttle.Cooldown.Duration == 0 {
		c.Throttle.Cooldown.Duration = DefaultCooldown
	}
	if c.Alerts.Threshold == 0 {
		c.Alerts.Threshold = DefaultAlertThreshold
	}
	if c.Alerts.Timeout.Duration == 0 {
		c.Alerts.Timeout.Duration = DefaultAlertTimeout
	}
	if c.Alerts.Email != nil && c.Alerts.Email.Port == 0 {
		c.Alerts.Email.Port = 587
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
}
