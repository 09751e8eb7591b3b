package metrics

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/angeloszaimis/nutrition-proxy/internal/upstream"
)

type EventType string

const (
	EventUpstreamAttempt EventType = "upstream_attempt"
	EventUpstreamOutcome EventType = "upstream_outcome"
)

// kindError labels failures that carry no upstream.Kind, such as an
// interrupted backoff.
const kindError = "error"

type MetricEvent struct {
	Type       EventType
	Operation  string
	Duration   time.Duration
	StatusCode int
	Kind       string
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
	dropped atomic.Int64
}

var _ upstream.Observer = (*Collector)(nil)

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

// Emit queues an event without blocking. Events are dropped when the buffer is full.
func (c *Collector) Emit(event MetricEvent) {
	if c == nil {
		return
	}

	select {
	case c.eventCh <- event:
	default:
		c.dropped.Add(1)
	}
}

func (c *Collector) ObserveAttempt(a upstream.Attempt) {
	c.Emit(MetricEvent{
		Type:       EventUpstreamAttempt,
		Operation:  string(a.Operation),
		Duration:   a.Duration,
		StatusCode: a.StatusCode,
	})
}

func (c *Collector) ObserveOutcome(o upstream.Outcome) {
	var kind string
	if o.Err != nil {
		kind = string(upstream.KindOf(o.Err))
		if kind == "" {
			kind = kindError
		}
	}

	c.Emit(MetricEvent{
		Type:      EventUpstreamOutcome,
		Operation: string(o.Operation),
		Duration:  o.Duration,
		Kind:      kind,
	})
}

// Run processes events until ctx is done, then drains what is left.
func (c *Collector) Run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventUpstreamAttempt:
		c.metrics.RecordAttempt(event.Operation, event.StatusCode)

	case EventUpstreamOutcome:
		c.metrics.RecordOutcome(event.Operation, event.Duration, event.Kind)

	default:
		c.logger.Warn("Unknown metric event", slog.String("type", string(event.Type)))
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{Operations: map[string]OperationMetrics{}}
	}

	snap := c.metrics.Snapshot()
	snap.Dropped = c.dropped.Load()
	return snap
}
