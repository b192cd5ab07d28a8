package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"us-ingest/internal/provider/polygon"
	"us-ingest/internal/writer"
)

// ErrMissingConfig is wrapped by LoadConfig when required settings are absent.
var ErrMissingConfig = errors.New("missing required configuration")

// Job names one of the two ingestion entry points.
type Job string

const (
	JobDaily Job = "daily"
	JobFiles Job = "files"
)

// InfluxConfig is the store connection.
type InfluxConfig struct {
	Host     string `yaml:"host"`
	Token    string `yaml:"token"`
	Database string `yaml:"database"`
}

// Config holds application configuration. It is read once at startup from
// .env, an optional YAML file named by INGEST_CONFIG and the environment,
// with the environment taking precedence.
type Config struct {
	Influx InfluxConfig   `yaml:"influx"`
	Writer writer.Options `yaml:"writer"`

	PolygonAPIKey  string `yaml:"polygon_api_key"`
	PolygonBaseURL string `yaml:"polygon_base_url"`
	TickersFile    string `yaml:"tickers_file"`

	DataDir       string `yaml:"data_dir"`
	ArchiveFormat string `yaml:"archive_format"` // csv | json | parquet, empty = off
	ArchiveDir    string `yaml:"archive_dir"`
	LedgerPath    string `yaml:"ledger_path"` // empty = off
	ReportDir     string `yaml:"report_dir"`  // empty = off

	LogLevel           string `yaml:"log_level"`  // debug | info | warn | error
	LogFormat          string `yaml:"log_format"` // text | json
	SkipNonTradingDays bool   `yaml:"skip_non_trading_days"`
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() *Config {
	return &Config{
		Writer:             writer.DefaultOptions(),
		PolygonBaseURL:     polygon.DefaultBaseURL,
		DataDir:            "data",
		ArchiveDir:         "archive",
		LedgerPath:         ".ingest/ledger.db",
		ReportDir:          ".ingest",
		LogLevel:           "info",
		LogFormat:          "text",
		SkipNonTradingDays: true,
	}
}

// LoadConfig reads and validates the configuration for job.
func LoadConfig(job Job) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path := os.Getenv("INGEST_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(job); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	setString(&c.Influx.Host, "INFLUX_HOST")
	setString(&c.Influx.Token, "INFLUX_TOKEN")
	setString(&c.Influx.Database, "INFLUX_DATABASE")
	setString(&c.PolygonAPIKey, "POLYGON_API_KEY")
	setString(&c.PolygonBaseURL, "POLYGON_BASE_URL")
	setString(&c.TickersFile, "TICKERS_FILE")
	setString(&c.DataDir, "DATA_DIR")
	setString(&c.ArchiveFormat, "ARCHIVE_FORMAT")
	setString(&c.ArchiveDir, "ARCHIVE_DIR")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	// Set but empty disables these.
	if v, ok := os.LookupEnv("LEDGER_PATH"); ok {
		c.LedgerPath = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("REPORT_DIR"); ok {
		c.ReportDir = strings.TrimSpace(v)
	}

	var errs []error
	w := &c.Writer
	errs = append(errs,
		setBool(&c.SkipNonTradingDays, "SKIP_NON_TRADING_DAYS"),
		setInt(&w.BatchSize, "INFLUX_BATCH_SIZE"),
		setMillis(&w.FlushInterval, "INFLUX_FLUSH_INTERVAL_MS"),
		setMillis(&w.JitterInterval, "INFLUX_JITTER_INTERVAL_MS"),
		setMillis(&w.RetryInterval, "INFLUX_RETRY_INTERVAL_MS"),
		setInt(&w.MaxRetries, "INFLUX_MAX_RETRIES"),
		setMillis(&w.MaxRetryDelay, "INFLUX_MAX_RETRY_DELAY_MS"),
		setInt(&w.ExponentialBase, "INFLUX_EXPONENTIAL_BASE"),
		setInt(&w.Workers, "INFLUX_WRITE_WORKERS"),
	)
	return errors.Join(errs...)
}

// Validate checks that job can run with c. Missing required values are
// reported together.
func (c *Config) Validate(job Job) error {
	var missing []string
	if c.Influx.Host == "" {
		missing = append(missing, "INFLUX_HOST")
	}
	if c.Influx.Token == "" {
		missing = append(missing, "INFLUX_TOKEN")
	}
	if c.Influx.Database == "" {
		missing = append(missing, "INFLUX_DATABASE")
	}
	if job == JobDaily && c.PolygonAPIKey == "" {
		missing = append(missing, "POLYGON_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}

	switch strings.ToLower(c.ArchiveFormat) {
	case "", "csv", "json", "parquet":
	default:
		return fmt.Errorf("unsupported ARCHIVE_FORMAT %q (use: csv, parquet, json)", c.ArchiveFormat)
	}
	if err := c.Writer.Validate(); err != nil {
		return fmt.Errorf("writer options: %w", err)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setMillis(dst *time.Duration, key string) error {
	ms := -1
	if err := setInt(&ms, key); err != nil {
		return err
	}
	if ms >= 0 {
		*dst = time.Duration(ms) * time.Millisecond
	}
	return nil
}

func setBool(dst *bool, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
