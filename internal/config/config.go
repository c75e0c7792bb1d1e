package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/newthinker/triggerlab/internal/backtest"
	"github.com/newthinker/triggerlab/internal/core"
	"github.com/newthinker/triggerlab/internal/series"
)

// EnvPrefix prefixes environment overrides, e.g. TRIGGERLAB_SERVER_PORT
const EnvPrefix = "TRIGGERLAB"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Collector CollectorConfig `mapstructure:"collector"`
	Backtest  BacktestConfig  `mapstructure:"backtest"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	APIKey      string `mapstructure:"api_key"`
	JobTTLHours int    `mapstructure:"job_ttl_hours"`
	MaxJobs     int    `mapstructure:"max_jobs"`
	// MaxUploadMB caps multipart uploads on the evaluate endpoint
	MaxUploadMB int `mapstructure:"max_upload_mb"`
}

// CollectorConfig configures online history retrieval
type CollectorConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	Timezone         string        `mapstructure:"timezone"`
	IntradayInterval string        `mapstructure:"intraday_interval"`
	MaxIntradayDays  int           `mapstructure:"max_intraday_days"`
	CacheSize        int           `mapstructure:"cache_size"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
}

// BacktestConfig holds default run parameters for the CLI and API
type BacktestConfig struct {
	Mode      string   `mapstructure:"mode"`
	Threshold float64  `mapstructure:"threshold"`
	Side      string   `mapstructure:"side"`
	ExitTime  string   `mapstructure:"exit_time"`
	StartTime string   `mapstructure:"start_time"`
	EndTime   string   `mapstructure:"end_time"`
	Weekdays  []string `mapstructure:"weekdays"`
}

type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "localfs", "s3" or "none"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// JournalConfig holds the SQLite run journal settings.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file on top of Defaults.
// An empty path loads defaults plus environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand ${VAR} references in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every default so env overrides work without a file
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.api_key", d.Server.APIKey)
	v.SetDefault("server.job_ttl_hours", d.Server.JobTTLHours)
	v.SetDefault("server.max_jobs", d.Server.MaxJobs)
	v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)

	v.SetDefault("collector.base_url", d.Collector.BaseURL)
	v.SetDefault("collector.timeout", d.Collector.Timeout)
	v.SetDefault("collector.timezone", d.Collector.Timezone)
	v.SetDefault("collector.intraday_interval", d.Collector.IntradayInterval)
	v.SetDefault("collector.max_intraday_days", d.Collector.MaxIntradayDays)
	v.SetDefault("collector.cache_size", d.Collector.CacheSize)
	v.SetDefault("collector.cache_ttl", d.Collector.CacheTTL)

	v.SetDefault("backtest.mode", d.Backtest.Mode)
	v.SetDefault("backtest.threshold", d.Backtest.Threshold)
	v.SetDefault("backtest.side", d.Backtest.Side)
	v.SetDefault("backtest.exit_time", d.Backtest.ExitTime)
	v.SetDefault("backtest.start_time", d.Backtest.StartTime)
	v.SetDefault("backtest.end_time", d.Backtest.EndTime)
	v.SetDefault("backtest.weekdays", d.Backtest.Weekdays)

	v.SetDefault("archive.type", d.Archive.Type)
	v.SetDefault("archive.path", d.Archive.Path)
	v.SetDefault("archive.s3.bucket", "")
	v.SetDefault("archive.s3.endpoint", "")
	v.SetDefault("archive.s3.region", "")
	v.SetDefault("archive.s3.access_key", "")
	v.SetDefault("archive.s3.secret_key", "")
	v.SetDefault("archive.s3.prefix", "")

	v.SetDefault("journal.enabled", d.Journal.Enabled)
	v.SetDefault("journal.path", d.Journal.Path)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			JobTTLHours: 1,
			MaxJobs:     100,
			MaxUploadMB: 32,
		},
		Collector: CollectorConfig{
			Timeout:          30 * time.Second,
			Timezone:         "America/Sao_Paulo",
			IntradayInterval: core.Interval15m,
			MaxIntradayDays:  60,
			CacheSize:        64,
			CacheTTL:         time.Hour,
		},
		Backtest: BacktestConfig{
			Mode:      string(backtest.ModeTrigger),
			Threshold: 0.5,
			Side:      string(core.SideLong),
			ExitTime:  "18:00",
			StartTime: "09:00",
			EndTime:   "18:00",
		},
		Archive: ArchiveConfig{
			Type: "localfs",
			Path: "data/runs",
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    "data/triggerlab.db",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxJobs < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_jobs must be positive, got %d", c.Server.MaxJobs))
	}

	if c.Collector.Timezone != "" {
		if _, err := time.LoadLocation(c.Collector.Timezone); err != nil {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("timezone: %w", err))
		}
	}
	if c.Collector.CacheSize < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("cache_size cannot be negative, got %d", c.Collector.CacheSize))
	}

	if _, err := c.Backtest.Params(); err != nil {
		return err
	}

	switch c.Archive.Type {
	case "", "none":
	case "localfs":
		if c.Archive.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("archive path required when type is localfs"))
		}
	case "s3":
		if c.Archive.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 bucket required when archive type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown archive type %q", c.Archive.Type))
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("journal path required when enabled"))
	}

	return nil
}

// Params converts the configured defaults into run parameters.
// The exit time doubles as the window end in window mode unless end_time is set.
func (b BacktestConfig) Params() (backtest.Params, error) {
	p := backtest.Params{
		Mode:      backtest.Mode(b.Mode),
		Threshold: b.Threshold,
		Side:      core.Side(b.Side),
	}

	var err error
	switch p.Mode {
	case backtest.ModeTrigger:
		if p.End, err = series.ParseClock(b.ExitTime); err != nil {
			return p, err
		}
	case backtest.ModeWindow:
		if p.Start, err = series.ParseClock(b.StartTime); err != nil {
			return p, err
		}
		end := b.EndTime
		if end == "" {
			end = b.ExitTime
		}
		if p.End, err = series.ParseClock(end); err != nil {
			return p, err
		}
	}

	if p.Weekdays, err = ParseWeekdays(b.Weekdays); err != nil {
		return p, err
	}
	return p, p.Validate()
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday, "dom": time.Sunday, "domingo": time.Sunday,
	"mon": time.Monday, "monday": time.Monday, "seg": time.Monday, "segunda": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday, "ter": time.Tuesday, "terca": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday, "qua": time.Wednesday, "quarta": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday, "qui": time.Thursday, "quinta": time.Thursday,
	"fri": time.Friday, "friday": time.Friday, "sex": time.Friday, "sexta": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday, "sab": time.Saturday, "sabado": time.Saturday,
}

// ParseWeekdays reads English or Portuguese weekday names, full or abbreviated
func ParseWeekdays(names []string) ([]time.Weekday, error) {
	var out []time.Weekday
	seen := make(map[time.Weekday]bool)
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if key == "" {
			continue
		}
		d, ok := weekdayNames[key]
		if !ok {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown weekday %q", n))
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out, nil
}
