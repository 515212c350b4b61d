package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Source kinds.
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
	SourceOracle   = "oracle"
)

// Sink kinds.
const (
	SinkPostgres = "postgres"
	SinkOracle   = "oracle"
	SinkWebhook  = "webhook"
	SinkAMQP     = "amqp"
	SinkNone     = "none"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// SourceConfig selects where orders are read from.
type SourceConfig struct {
	Kind        string `yaml:"kind"`
	Path        string `yaml:"path"`
	DatabaseURL string `yaml:"database_url"`
	OrdersTable string `yaml:"orders_table"`
}

// DatabaseConfig holds connection settings shared by SQL sinks.
type DatabaseConfig struct {
	PostgresURL string `yaml:"postgres_url"`
	OracleURL   string `yaml:"oracle_url"`
	TotalsTable string `yaml:"totals_table"`
}

// WebhookConfig configures the ledger webhook sink.
type WebhookConfig struct {
	URL       string        `yaml:"url"`
	JWTSecret string        `yaml:"jwt_secret"`
	Issuer    string        `yaml:"issuer"`
	Timeout   time.Duration `yaml:"timeout"`
}

// AMQPConfig configures the broker sink.
type AMQPConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
}

// ExportConfig configures report files written after a run.
type ExportConfig struct {
	Dir      string   `yaml:"dir"`
	Formats  []string `yaml:"formats"`
	Currency string   `yaml:"currency"`
}

// MetricsConfig configures the Pushgateway push.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// Config is the batch configuration.
type Config struct {
	LogMode        string         `yaml:"log_mode"`
	SentinelAmount string         `yaml:"sentinel_amount"`
	PersistOnAbort bool           `yaml:"persist_on_abort"`
	MaxBatchSize   int            `yaml:"max_batch_size"`
	Source         SourceConfig   `yaml:"source"`
	Sinks          []string       `yaml:"sinks"`
	Database       DatabaseConfig `yaml:"database"`
	Webhook        WebhookConfig  `yaml:"webhook"`
	AMQP           AMQPConfig     `yaml:"amqp"`
	Export         ExportConfig   `yaml:"export"`
	Metrics        MetricsConfig  `yaml:"metrics"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogMode:        "development",
		SentinelAmount: "-1",
		PersistOnAbort: true,
		Source: SourceConfig{
			Kind:        SourceCSV,
			OrdersTable: "orders",
		},
		Database: DatabaseConfig{TotalsTable: "customer_totals"},
		Webhook: WebhookConfig{
			Issuer:  "customer-totals",
			Timeout: 10 * time.Second,
		},
		AMQP: AMQPConfig{
			Exchange:   "customer_totals",
			RoutingKey: "totals.replaced",
		},
		Export:  ExportConfig{Currency: "USD"},
		Metrics: MetricsConfig{Job: "customer_totals"},
	}
}

// Load reads defaults, then the YAML file at path (if any), then env overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("ORDERS_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.LogMode = getenvDefault("LOG_MODE", cfg.LogMode)
	cfg.SentinelAmount = getenvDefault("ORDERS_SENTINEL_AMOUNT", cfg.SentinelAmount)
	cfg.PersistOnAbort = getenvBoolDefault("ORDERS_PERSIST_ON_ABORT", cfg.PersistOnAbort)
	cfg.MaxBatchSize = getenvIntDefault("ORDERS_MAX_BATCH_SIZE", cfg.MaxBatchSize)

	cfg.Source.Kind = getenvDefault("ORDERS_SOURCE", cfg.Source.Kind)
	cfg.Source.Path = getenvDefault("ORDERS_SOURCE_PATH", cfg.Source.Path)
	cfg.Source.DatabaseURL = getenvDefault("ORDERS_SOURCE_DSN", cfg.Source.DatabaseURL)
	cfg.Source.OrdersTable = getenvDefault("ORDERS_TABLE", cfg.Source.OrdersTable)

	if sinks := splitCSV(os.Getenv("ORDERS_SINKS")); len(sinks) > 0 {
		cfg.Sinks = sinks
	}
	cfg.Database.PostgresURL = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", cfg.Database.PostgresURL))
	cfg.Database.OracleURL = getenvDefault("ORACLE_DSN", cfg.Database.OracleURL)
	cfg.Database.TotalsTable = getenvDefault("TOTALS_TABLE", cfg.Database.TotalsTable)

	cfg.Webhook.URL = getenvDefault("TOTALS_WEBHOOK_URL", cfg.Webhook.URL)
	cfg.Webhook.JWTSecret = getenvDefault("TOTALS_WEBHOOK_JWT_SECRET", cfg.Webhook.JWTSecret)
	cfg.Webhook.Issuer = getenvDefault("TOTALS_WEBHOOK_ISSUER", cfg.Webhook.Issuer)
	cfg.Webhook.Timeout = getenvDuration("TOTALS_WEBHOOK_TIMEOUT", cfg.Webhook.Timeout)

	cfg.AMQP.URL = getenvDefault("AMQP_URL", cfg.AMQP.URL)
	cfg.AMQP.Exchange = getenvDefault("AMQP_EXCHANGE", cfg.AMQP.Exchange)
	cfg.AMQP.RoutingKey = getenvDefault("AMQP_ROUTING_KEY", cfg.AMQP.RoutingKey)

	cfg.Export.Dir = getenvDefault("EXPORT_DIR", cfg.Export.Dir)
	if formats := splitCSV(os.Getenv("EXPORT_FORMATS")); len(formats) > 0 {
		cfg.Export.Formats = formats
	}
	cfg.Export.Currency = getenvDefault("CURRENCY", cfg.Export.Currency)

	cfg.Metrics.PushgatewayURL = getenvDefault("PUSHGATEWAY_URL", cfg.Metrics.PushgatewayURL)
	cfg.Metrics.Job = getenvDefault("PUSHGATEWAY_JOB", cfg.Metrics.Job)
}

// Validate reports the first missing or inconsistent setting.
func (c Config) Validate() error {
	if _, err := c.Sentinel(); err != nil {
		return err
	}
	if c.MaxBatchSize < 0 {
		return errors.New("config: max_batch_size must be >= 0")
	}
	switch c.Source.Kind {
	case SourceCSV:
		if c.Source.Path == "" {
			return errors.New("config: ORDERS_SOURCE_PATH is required for csv source")
		}
	case SourcePostgres:
		if c.Source.DatabaseURL == "" && c.Database.PostgresURL == "" {
			return errors.New("config: DATABASE_URL or ORDERS_SOURCE_DSN is required for postgres source")
		}
	case SourceOracle:
		if c.Source.DatabaseURL == "" && c.Database.OracleURL == "" {
			return errors.New("config: ORACLE_DSN or ORDERS_SOURCE_DSN is required for oracle source")
		}
	default:
		return fmt.Errorf("config: unknown source kind %q", c.Source.Kind)
	}
	for _, sink := range c.Sinks {
		switch sink {
		case SinkNone:
		case SinkPostgres:
			if c.Database.PostgresURL == "" {
				return errors.New("config: DATABASE_URL is required for postgres sink")
			}
		case SinkOracle:
			if c.Database.OracleURL == "" {
				return errors.New("config: ORACLE_DSN is required for oracle sink")
			}
		case SinkWebhook:
			if c.Webhook.URL == "" || c.Webhook.JWTSecret == "" {
				return errors.New("config: TOTALS_WEBHOOK_URL and TOTALS_WEBHOOK_JWT_SECRET are required for webhook sink")
			}
		case SinkAMQP:
			if c.AMQP.URL == "" {
				return errors.New("config: AMQP_URL is required for amqp sink")
			}
		default:
			return fmt.Errorf("config: unknown sink %q", sink)
		}
	}
	for _, format := range c.Export.Formats {
		switch format {
		case FormatCSV, FormatXLSX, FormatPDF:
		default:
			return fmt.Errorf("config: unknown export format %q", format)
		}
	}
	if len(c.Export.Formats) > 0 && c.Export.Dir == "" {
		return errors.New("config: EXPORT_DIR is required when export formats are set")
	}
	return nil
}

// Sentinel parses the configured abort amount.
func (c Config) Sentinel() (decimal.Decimal, error) {
	raw := strings.TrimSpace(c.SentinelAmount)
	if raw == "" {
		raw = "-1"
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("config: invalid sentinel amount %q: %w", c.SentinelAmount, err)
	}
	return value, nil
}

// SourceDSN returns the DSN used by a SQL source.
func (c Config) SourceDSN() string {
	if c.Source.DatabaseURL != "" {
		return c.Source.DatabaseURL
	}
	if c.Source.Kind == SourceOracle {
		return c.Database.OracleURL
	}
	return c.Database.PostgresURL
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
