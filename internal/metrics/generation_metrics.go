package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("generation-metrics")

// GenerationMetrics provides metrics collection for the slot generation
// lifecycle: dispatches, completions, failures, stale discards.
type GenerationMetrics struct {
	requestedCounter  metric.Int64Counter
	completedCounter  metric.Int64Counter
	failedCounter     metric.Int64Counter
	discardedCounter  metric.Int64Counter
	durationHistogram metric.Float64Histogram
	inFlightGauge     metric.Int64UpDownCounter
}

// NewGenerationMetrics creates a new generation metrics collector
func NewGenerationMetrics() (*GenerationMetrics, error) {
	requestedCounter, err := meter.Int64Counter(
		"remap.generations.requested",
		metric.WithDescription("Total number of generation requests dispatched"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	completedCounter, err := meter.Int64Counter(
		"remap.generations.completed",
		metric.WithDescription("Total number of generations completed successfully"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	failedCounter, err := meter.Int64Counter(
		"remap.generations.failed",
		metric.WithDescription("Total number of generations that failed"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	discardedCounter, err := meter.Int64Counter(
		"remap.generations.discarded",
		metric.WithDescription("Total number of generation results discarded as stale or gated"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	durationHistogram, err := meter.Float64Histogram(
		"remap.generation.duration",
		metric.WithDescription("Duration of generation service calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	inFlightGauge, err := meter.Int64UpDownCounter(
		"remap.generations.in_flight",
		metric.WithDescription("Number of generation requests currently in flight"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &GenerationMetrics{
		requestedCounter:  requestedCounter,
		completedCounter:  completedCounter,
		failedCounter:     failedCounter,
		discardedCounter:  discardedCounter,
		durationHistogram: durationHistogram,
		inFlightGauge:     inFlightGauge,
	}, nil
}

// RecordRequested records a dispatched generation request
func (gm *GenerationMetrics) RecordRequested(ctx context.Context, nodeID, slotID string) {
	gm.requestedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("node.id", nodeID),
			attribute.String("slot.id", slotID),
		),
	)
	gm.inFlightGauge.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("node.id", nodeID),
		),
	)
}

// RecordCompleted records a successful generation completion
func (gm *GenerationMetrics) RecordCompleted(ctx context.Context, nodeID, slotID string, duration time.Duration) {
	gm.completedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("node.id", nodeID),
			attribute.String("slot.id", slotID),
			attribute.String("status", "completed"),
		),
	)
	gm.durationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("node.id", nodeID),
			attribute.String("slot.id", slotID),
			attribute.String("status", "completed"),
		),
	)
	gm.inFlightGauge.Add(ctx, -1,
		metric.WithAttributes(
			attribute.String("node.id", nodeID),
		),
	)
}

// RecordFailed records a failed generation call
func (gm *GenerationMetrics) RecordFailed(ctx context.Context, nodeID, slotID, errorType string, duration time.Duration) {
	gm.failedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("node.id", nodeID),
			attribute.String("slot.id", slotID),
			attribute.String("status", "failed"),
			attribute.String("error.type", errorType),
		),
	)
	gm.durationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("node.id", nodeID),
			attribute.String("slot.id", slotID),
			attribute.String("status", "failed"),
		),
	)
	gm.inFlightGauge.Add(ctx, -1,
		metric.WithAttributes(
			attribute.String("node.id", nodeID),
		),
	)
}

// RecordDiscarded records a completion thrown away by the stale guard or a
// closed gate. Discards terminate an in-flight request, so the gauge drops.
func (gm *GenerationMetrics) RecordDiscarded(ctx context.Context, nodeID, slotID, reason string) {
	gm.discardedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("node.id", nodeID),
			attribute.String("slot.id", slotID),
			attribute.String("reason", reason),
		),
	)
	gm.inFlightGauge.Add(ctx, -1,
		metric.WithAttributes(
			attribute.String("node.id", nodeID),
		),
	)
}
