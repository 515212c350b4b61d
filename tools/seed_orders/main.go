package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	orders "order-totals/internal/orders/domain"
	"order-totals/internal/orders/infrastructure/csvfile"
	"order-totals/internal/orders/infrastructure/sqlstore"
	"order-totals/internal/platform/logger"
)

type config struct {
	out          string
	dialect      string
	dsn          string
	table        string
	createTable  bool
	customers    int
	orders       int
	startDate    string
	sentinelAt   int
	sentinel     string
	customerBase int64
}

func main() {
	cfg := parseConfig()
	log, err := logger.New(envOrDefault("LOG_MODE", "development"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	if cfg.customers <= 0 {
		log.Fatal("customers must be > 0")
	}
	if cfg.orders <= 0 {
		log.Fatal("orders must be > 0")
	}
	if cfg.out == "" && cfg.dsn == "" {
		log.Fatal("either -out or -dsn is required")
	}
	start, err := parseStartDate(cfg.startDate)
	if err != nil {
		log.Fatal("invalid start-date", "error", err)
	}
	sentinel, err := decimal.NewFromString(cfg.sentinel)
	if err != nil {
		log.Fatal("invalid sentinel", "error", err)
	}

	records := buildOrders(cfg, start, sentinel)
	ctx := context.Background()

	if cfg.out != "" {
		if err := writeCSV(cfg.out, records); err != nil {
			log.Fatal("write csv", "error", err)
		}
		log.Info("orders written", "path", cfg.out, "orders", len(records))
	}

	if cfg.dsn != "" {
		if err := seedTable(ctx, cfg, records); err != nil {
			log.Fatal("seed table", "error", err)
		}
		log.Info("orders inserted", "dialect", cfg.dialect, "table", cfg.table, "orders", len(records))
	}
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.out, "out", envOrDefault("SEED_OUT", ""), "CSV file to write")
	flag.StringVar(&cfg.dialect, "dialect", envOrDefault("SEED_DIALECT", "postgres"), "SQL dialect (postgres|oracle)")
	flag.StringVar(&cfg.dsn, "dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "database DSN")
	flag.StringVar(&cfg.table, "table", envOrDefault("ORDERS_TABLE", "orders"), "orders table")
	flag.BoolVar(&cfg.createTable, "create-table", envOrBool("SEED_CREATE_TABLE", false), "create the orders table before inserting")
	flag.IntVar(&cfg.customers, "customers", envOrInt("SEED_CUSTOMERS", 5), "number of distinct customers")
	flag.IntVar(&cfg.orders, "orders", envOrInt("SEED_ORDERS", 20), "number of orders")
	flag.StringVar(&cfg.startDate, "start-date", envOrDefault("START_DATE", ""), "first order date (YYYY-MM-DD)")
	flag.IntVar(&cfg.sentinelAt, "sentinel-at", envOrInt("SEED_SENTINEL_AT", 0), "order id carrying the sentinel amount (0 = none)")
	flag.StringVar(&cfg.sentinel, "sentinel", envOrDefault("ORDERS_SENTINEL_AMOUNT", "-1"), "sentinel amount")
	flag.Int64Var(&cfg.customerBase, "customer-base", 100, "first customer id")
	flag.Parse()
	return cfg
}

func parseStartDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Now().UTC().AddDate(0, 0, -7).Truncate(24 * time.Hour), nil
	}
	parsed, err := time.Parse(csvfile.DateLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

// buildOrders produces the same batch for the same flags.
func buildOrders(cfg config, start time.Time, sentinel decimal.Decimal) []orders.OrderRecord {
	list := make([]orders.OrderRecord, 0, cfg.orders)
	for i := 1; i <= cfg.orders; i++ {
		customerID := cfg.customerBase + int64((i-1)%cfg.customers)
		day := start.AddDate(0, 0, (i-1)/cfg.customers)
		amount := decimal.New(int64((i*3719)%50000+1000), -2)
		if i == cfg.sentinelAt {
			amount = sentinel
		}
		list = append(list, orders.NewOrderRecord(int64(i), customerID, day, amount))
	}
	return list
}

func writeCSV(path string, records []orders.OrderRecord) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()
	return csvfile.Encode(file, records)
}

func seedTable(ctx context.Context, cfg config, records []orders.OrderRecord) error {
	dialect, err := sqlstore.DialectByName(cfg.dialect)
	if err != nil {
		return err
	}
	db, err := sqlstore.Open(ctx, dialect, cfg.dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.createTable {
		if _, err := db.ExecContext(ctx, createTableSQL(dialect, cfg.table)); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	store := sqlstore.NewStore(db, dialect, sqlstore.WithOrdersTable(cfg.table))
	return store.InsertOrders(ctx, records)
}

func createTableSQL(dialect sqlstore.Dialect, table string) string {
	if dialect.Name == sqlstore.Oracle.Name {
		return fmt.Sprintf("CREATE TABLE %s (order_id NUMBER(19) PRIMARY KEY, customer_id NUMBER(19), order_date DATE, order_amount NUMBER(12,2))", table)
	}
	return fmt.Sprintf("CREATE TABLE %s (order_id BIGINT PRIMARY KEY, customer_id BIGINT, order_date DATE, order_amount NUMERIC(12,2))", table)
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
