package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// DispatchMetricsMeterName is the name used for the dispatch metrics meter
	DispatchMetricsMeterName = "github.com/involucelate/chef/dispatch"

	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/involucelate/chef/sync"
)

// DispatchMetrics holds the OpenTelemetry instruments for resolution metrics
type DispatchMetrics struct {
	resolutionsTotal   metric.Int64Counter
	resolutionDuration metric.Float64Histogram
	tableEntries       metric.Int64Gauge
}

// NewDispatchMetrics creates a new DispatchMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewDispatchMetrics(provider metric.MeterProvider) (*DispatchMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(DispatchMetricsMeterName)

	resolutionsTotal, err := meter.Int64Counter(
		"chef_dispatch_resolutions_total",
		metric.WithDescription("Number of resolution requests per table"),
		metric.WithUnit("{resolution}"),
	)
	if err != nil {
		return nil, err
	}

	resolutionDuration, err := meter.Float64Histogram(
		"chef_dispatch_resolution_duration_seconds",
		metric.WithDescription("Duration of resolution requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1),
	)
	if err != nil {
		return nil, err
	}

	tableEntries, err := meter.Int64Gauge(
		"chef_dispatch_table_entries",
		metric.WithDescription("Number of entries in each dispatch table"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &DispatchMetrics{
		resolutionsTotal:   resolutionsTotal,
		resolutionDuration: resolutionDuration,
		tableEntries:       tableEntries,
	}, nil
}

// RecordResolution records one resolution attempt against a table.
// The matched attribute distinguishes hits from misses; keys are left out
// of the attribute set to keep cardinality bounded.
func (m *DispatchMetrics) RecordResolution(ctx context.Context, tableName string, duration time.Duration, matched bool) {
	if m == nil || m.resolutionsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("table", tableName),
		attribute.Bool("matched", matched),
	}

	m.resolutionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.resolutionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordTableEntries records the current number of entries in a dispatch table
func (m *DispatchMetrics) RecordTableEntries(ctx context.Context, tableName string, count int64) {
	if m == nil || m.tableEntries == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("table", tableName),
	}

	m.tableEntries.Record(ctx, count, metric.WithAttributes(attrs...))
}

// SyncMetrics holds the OpenTelemetry instruments for sync operation metrics
type SyncMetrics struct {
	syncDuration metric.Float64Histogram
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	syncDuration, err := meter.Float64Histogram(
		"chef_dispatch_sync_duration_seconds",
		metric.WithDescription("Duration of sync operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncDuration: syncDuration,
	}, nil
}

// RecordSyncDuration records the duration of a sync operation for a table
func (m *SyncMetrics) RecordSyncDuration(ctx context.Context, tableName string, duration time.Duration, success bool) {
	if m == nil || m.syncDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("table", tableName),
		attribute.Bool("success", success),
	}

	m.syncDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
