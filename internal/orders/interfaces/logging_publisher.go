package interfaces

import (
	"context"
	"errors"

	"order-totals/internal/orders/application"
	"order-totals/internal/platform/logger"
)

// LoggingPublisher logs totals aggregated events.
type LoggingPublisher struct {
	log *logger.Logger
}

// NewLoggingPublisher constructs a logging publisher.
func NewLoggingPublisher(log *logger.Logger) *LoggingPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &LoggingPublisher{log: log}
}

// PublishTotalsAggregated logs the event.
func (p *LoggingPublisher) PublishTotalsAggregated(ctx context.Context, event application.TotalsAggregated) error {
	_ = ctx
	if p == nil {
		return errors.New("totals publisher: nil publisher")
	}
	fields := []interface{}{
		"run_id", event.RunID,
		"customers", event.Customers,
		"processed", event.Processed,
		"persisted", event.Persisted,
		"aborted", event.Aborted,
	}
	if event.AbortOrderID != nil {
		fields = append(fields, "abort_order_id", *event.AbortOrderID)
	}
	if event.Aborted {
		p.log.Warn("customer totals aggregated with sentinel abort", fields...)
		return nil
	}
	p.log.Info("customer totals aggregated", fields...)
	return nil
}
