package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ORDERS_CONFIG", "LOG_MODE", "ORDERS_SENTINEL_AMOUNT", "ORDERS_PERSIST_ON_ABORT", "ORDERS_MAX_BATCH_SIZE",
		"ORDERS_SOURCE", "ORDERS_SOURCE_PATH", "ORDERS_SOURCE_DSN", "ORDERS_TABLE", "ORDERS_SINKS",
		"DATABASE_URL", "PG_DSN", "ORACLE_DSN", "TOTALS_TABLE",
		"TOTALS_WEBHOOK_URL", "TOTALS_WEBHOOK_JWT_SECRET", "TOTALS_WEBHOOK_ISSUER", "TOTALS_WEBHOOK_TIMEOUT",
		"AMQP_URL", "AMQP_EXCHANGE", "AMQP_ROUTING_KEY", "EXPORT_DIR", "EXPORT_FORMATS", "CURRENCY",
		"PUSHGATEWAY_URL", "PUSHGATEWAY_JOB",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ORDERS_SOURCE_PATH", "orders.csv")
	t.Setenv("ORDERS_SINKS", "postgres, webhook")
	t.Setenv("DATABASE_URL", "postgres://localhost/orders")
	t.Setenv("TOTALS_WEBHOOK_URL", "http://ledger.local/totals")
	t.Setenv("TOTALS_WEBHOOK_JWT_SECRET", "s3cret")
	t.Setenv("TOTALS_WEBHOOK_TIMEOUT", "3s")
	t.Setenv("ORDERS_PERSIST_ON_ABORT", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, SourceCSV, cfg.Source.Kind)
	assert.Equal(t, []string{SinkPostgres, SinkWebhook}, cfg.Sinks)
	assert.Equal(t, 3*time.Second, cfg.Webhook.Timeout)
	assert.False(t, cfg.PersistOnAbort)

	sentinel, err := cfg.Sentinel()
	require.NoError(t, err)
	assert.True(t, sentinel.Equal(decimal.NewFromInt(-1)))
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.yaml")
	content := `
log_mode: production
sentinel_amount: "-99.5"
max_batch_size: 500
source:
  kind: oracle
  database_url: oracle://scott:tiger@db:1521/ORCLPDB1
sinks: [oracle]
database:
  oracle_url: oracle://scott:tiger@db:1521/ORCLPDB1
  totals_table: cust_totals
export:
  dir: out
  formats: [csv, pdf]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("ORDERS_MAX_BATCH_SIZE", "10")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.LogMode)
	assert.Equal(t, 10, cfg.MaxBatchSize)
	assert.Equal(t, "cust_totals", cfg.Database.TotalsTable)
	assert.Equal(t, "orders", cfg.Source.OrdersTable)
	assert.Equal(t, "oracle://scott:tiger@db:1521/ORCLPDB1", cfg.SourceDSN())
	assert.True(t, cfg.PersistOnAbort)

	sentinel, err := cfg.Sentinel()
	require.NoError(t, err)
	assert.True(t, sentinel.Equal(decimal.RequireFromString("-99.5")))
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"missing csv path":   func(c *Config) { c.Source.Path = "" },
		"unknown source":     func(c *Config) { c.Source.Kind = "kafka" },
		"bad sentinel":       func(c *Config) { c.SentinelAmount = "minus one" },
		"negative batch":     func(c *Config) { c.MaxBatchSize = -1 },
		"unknown sink":       func(c *Config) { c.Sinks = []string{"s3"} },
		"webhook w/o secret": func(c *Config) { c.Sinks = []string{SinkWebhook}; c.Webhook.URL = "http://x" },
		"amqp w/o url":       func(c *Config) { c.Sinks = []string{SinkAMQP} },
		"format w/o dir":     func(c *Config) { c.Export.Formats = []string{FormatCSV} },
		"unknown format":     func(c *Config) { c.Export.Dir = "out"; c.Export.Formats = []string{"docx"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Source.Path = "orders.csv"
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Source.Path = "orders.csv"
	assert.NoError(t, cfg.Validate())
}

func TestLoadAcceptsNoneSink(t *testing.T) {
	clearEnv(t)
	t.Setenv("ORDERS_SOURCE_PATH", "orders.csv")
	t.Setenv("ORDERS_SINKS", "none")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{SinkNone}, cfg.Sinks)
}
