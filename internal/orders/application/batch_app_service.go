package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"order-totals/internal/observability/metrics"
	orders "order-totals/internal/orders/domain"
)

// ErrBatchTooLarge is returned when a source yields more records than the configured bound.
var ErrBatchTooLarge = errors.New("batch aggregation: batch exceeds max size")

// TotalsAggregated is emitted after every successful run.
type TotalsAggregated struct {
	RunID        string
	Customers    int
	Processed    int
	Aborted      bool
	AbortOrderID *int64
	Persisted    bool
	OccurredAt   time.Time
}

// TotalsPublisher emits run events.
type TotalsPublisher interface {
	PublishTotalsAggregated(ctx context.Context, event TotalsAggregated) error
}

// NamedSink pairs a sink with the label used in logs and metrics.
type NamedSink struct {
	Name string
	Sink orders.TotalsSink
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// RunReport describes a finished run.
type RunReport struct {
	RunID      string
	Result     orders.AggregationResult
	Persisted  bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Outcome returns the metrics label for the run.
func (r RunReport) Outcome() string {
	if r.Result.Aborted {
		return metrics.ResultAborted
	}
	return metrics.ResultCompleted
}

// BatchAggregationService loads orders, aggregates them and hands the totals to sinks.
type BatchAggregationService struct {
	source         orders.OrderSource
	aggregator     *orders.Aggregator
	sinks          []NamedSink
	publisher      TotalsPublisher
	metrics        *metrics.Metrics
	clock          Clock
	persistOnAbort bool
	maxBatchSize   int
	newRunID       func() string
}

// Option configures the service.
type Option func(*BatchAggregationService)

// WithSinks sets the sinks, called in order.
func WithSinks(sinks ...NamedSink) Option {
	return func(s *BatchAggregationService) {
		for _, sink := range sinks {
			if sink.Sink != nil {
				s.sinks = append(s.sinks, sink)
			}
		}
	}
}

// WithPublisher sets the event publisher.
func WithPublisher(publisher TotalsPublisher) Option {
	return func(s *BatchAggregationService) {
		s.publisher = publisher
	}
}

// WithMetrics sets the metrics bundle.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *BatchAggregationService) {
		s.metrics = m
	}
}

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(s *BatchAggregationService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithPersistOnAbort controls whether partial totals reach the sinks after a sentinel abort.
func WithPersistOnAbort(persist bool) Option {
	return func(s *BatchAggregationService) {
		s.persistOnAbort = persist
	}
}

// WithMaxBatchSize bounds the number of records in one run. Zero means unbounded.
func WithMaxBatchSize(max int) Option {
	return func(s *BatchAggregationService) {
		if max >= 0 {
			s.maxBatchSize = max
		}
	}
}

// WithRunIDFactory overrides run id generation.
func WithRunIDFactory(factory func() string) Option {
	return func(s *BatchAggregationService) {
		if factory != nil {
			s.newRunID = factory
		}
	}
}

// NewBatchAggregationService constructs the service.
func NewBatchAggregationService(source orders.OrderSource, aggregator *orders.Aggregator, opts ...Option) (*BatchAggregationService, error) {
	if source == nil {
		return nil, orders.ErrNilSource
	}
	if aggregator == nil {
		aggregator = orders.NewAggregator()
	}
	s := &BatchAggregationService{
		source:         source,
		aggregator:     aggregator,
		clock:          SystemClock{},
		persistOnAbort: true,
		newRunID:       func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run executes one batch. Validation and sink errors are returned unchanged.
// A publish failure also fails the run and is counted as an error.
func (s *BatchAggregationService) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{RunID: s.newRunID(), StartedAt: s.clock.Now()}

	err := s.run(ctx, &report)
	report.FinishedAt = s.clock.Now()
	if err == nil {
		err = s.publish(ctx, report)
	}

	outcome := report.Outcome()
	if err != nil {
		outcome = metrics.ResultError
	}
	s.metrics.ObserveRun(outcome, report.FinishedAt.Sub(report.StartedAt), report.Result.Processed, len(report.Result.Totals))
	return report, err
}

func (s *BatchAggregationService) publish(ctx context.Context, report RunReport) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.PublishTotalsAggregated(ctx, TotalsAggregated{
		RunID:        report.RunID,
		Customers:    len(report.Result.Totals),
		Processed:    report.Result.Processed,
		Aborted:      report.Result.Aborted,
		AbortOrderID: report.Result.AbortOrderID,
		Persisted:    report.Persisted,
		OccurredAt:   report.FinishedAt,
	})
}

func (s *BatchAggregationService) run(ctx context.Context, report *RunReport) error {
	records, err := s.source.ListOrders(ctx)
	if err != nil {
		return err
	}
	if s.maxBatchSize > 0 && len(records) > s.maxBatchSize {
		return fmt.Errorf("%w: %d records, max %d", ErrBatchTooLarge, len(records), s.maxBatchSize)
	}

	result, err := s.aggregator.Aggregate(records)
	if err != nil {
		return err
	}
	report.Result = result

	if result.Aborted && !s.persistOnAbort {
		return nil
	}
	for _, named := range s.sinks {
		if err := named.Sink.ReplaceTotals(ctx, result.Totals.Clone()); err != nil {
			s.metrics.IncSinkError(named.Name)
			return err
		}
	}
	report.Persisted = len(s.sinks) > 0
	return nil
}
