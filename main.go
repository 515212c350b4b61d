package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"

	"order-totals/internal/config"
	"order-totals/internal/observability/metrics"
	"order-totals/internal/orders/application"
	orders "order-totals/internal/orders/domain"
	"order-totals/internal/orders/infrastructure/broker"
	"order-totals/internal/orders/infrastructure/csvfile"
	"order-totals/internal/orders/infrastructure/sqlstore"
	"order-totals/internal/orders/infrastructure/webhook"
	"order-totals/internal/orders/interfaces"
	"order-totals/internal/platform/logger"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults to ORDERS_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("batch failed", "error", err)
		log.Sync()
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger) (err error) {
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i].Close())
		}
	}()

	sentinel, err := cfg.Sentinel()
	if err != nil {
		return err
	}

	databases := map[string]*sql.DB{}
	openDB := func(dialect sqlstore.Dialect, dsn string) (*sql.DB, error) {
		key := dialect.Name + "|" + dsn
		if db, ok := databases[key]; ok {
			return db, nil
		}
		db, err := sqlstore.Open(ctx, dialect, dsn)
		if err != nil {
			return nil, err
		}
		databases[key] = db
		closers = append(closers, db)
		return db, nil
	}

	source, err := buildSource(cfg, openDB)
	if err != nil {
		return err
	}

	sinks := make([]application.NamedSink, 0, len(cfg.Sinks))
	for _, kind := range cfg.Sinks {
		sink, closer, err := buildSink(cfg, kind, openDB)
		if err != nil {
			return err
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		if sink != nil {
			sinks = append(sinks, application.NamedSink{Name: kind, Sink: sink})
		}
	}

	m := metrics.New()
	app, err := application.NewBatchAggregationService(
		source,
		orders.NewAggregator(orders.WithSentinel(sentinel)),
		application.WithSinks(sinks...),
		application.WithPublisher(interfaces.NewLoggingPublisher(log)),
		application.WithMetrics(m),
		application.WithPersistOnAbort(cfg.PersistOnAbort),
		application.WithMaxBatchSize(cfg.MaxBatchSize),
	)
	if err != nil {
		return err
	}

	log.Info("batch starting",
		"source", cfg.Source.Kind,
		"sinks", cfg.Sinks,
		"sentinel", sentinel.String(),
		"persist_on_abort", cfg.PersistOnAbort,
	)
	report, runErr := app.Run(ctx)
	if runErr == nil {
		log.Info("batch finished",
			"run_id", report.RunID,
			"result", report.Outcome(),
			"duration", report.FinishedAt.Sub(report.StartedAt).String(),
		)
		paths, exportErr := interfaces.WriteReports(cfg.Export.Dir, cfg.Export.Formats, interfaces.TotalsReport{
			Report:   report,
			Currency: cfg.Export.Currency,
		})
		if exportErr != nil {
			runErr = exportErr
		} else if len(paths) > 0 {
			log.Info("reports written", "paths", paths)
		}
	}

	if cfg.Metrics.PushgatewayURL != "" {
		if err := m.Push(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
			log.Warn("metrics push failed", "error", err)
		}
	}
	return runErr
}

type dbOpener func(dialect sqlstore.Dialect, dsn string) (*sql.DB, error)

func buildSource(cfg config.Config, openDB dbOpener) (orders.OrderSource, error) {
	if cfg.Source.Kind == config.SourceCSV {
		source, err := csvfile.NewSource(cfg.Source.Path)
		if err != nil {
			return nil, err
		}
		return source, nil
	}
	dialect, err := sqlstore.DialectByName(cfg.Source.Kind)
	if err != nil {
		return nil, err
	}
	db, err := openDB(dialect, cfg.SourceDSN())
	if err != nil {
		return nil, err
	}
	return sqlstore.NewStore(db, dialect, sqlstore.WithOrdersTable(cfg.Source.OrdersTable)), nil
}

func buildSink(cfg config.Config, kind string, openDB dbOpener) (orders.TotalsSink, io.Closer, error) {
	switch kind {
	case config.SinkNone:
		return nil, nil, nil
	case config.SinkPostgres, config.SinkOracle:
		dialect, err := sqlstore.DialectByName(kind)
		if err != nil {
			return nil, nil, err
		}
		dsn := cfg.Database.PostgresURL
		if kind == config.SinkOracle {
			dsn = cfg.Database.OracleURL
		}
		db, err := openDB(dialect, dsn)
		if err != nil {
			return nil, nil, err
		}
		return sqlstore.NewStore(db, dialect, sqlstore.WithTotalsTable(cfg.Database.TotalsTable)), nil, nil
	case config.SinkWebhook:
		sink, err := webhook.NewSink(cfg.Webhook.URL, []byte(cfg.Webhook.JWTSecret),
			webhook.WithIssuer(cfg.Webhook.Issuer),
			webhook.WithTimeout(cfg.Webhook.Timeout),
		)
		if err != nil {
			return nil, nil, err
		}
		return sink, nil, nil
	case config.SinkAMQP:
		sink, err := broker.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.RoutingKey)
		if err != nil {
			return nil, nil, err
		}
		return sink, sink, nil
	default:
		return nil, nil, fmt.Errorf("unknown sink %q", kind)
	}
}
