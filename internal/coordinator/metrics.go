package coordinator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/breatheroute/gios/internal/coordinator"

// Metrics holds the OpenTelemetry instruments for station refreshes.
type Metrics struct {
	refreshDuration metric.Float64Histogram
	refreshTotal    metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with initialized instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	refreshDuration, err := meter.Float64Histogram(
		"gios.refresh.duration",
		metric.WithDescription("Duration of station data refreshes in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	refreshTotal, err := meter.Int64Counter(
		"gios.refresh.total",
		metric.WithDescription("Total number of station data refreshes"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		refreshDuration: refreshDuration,
		refreshTotal:    refreshTotal,
	}, nil
}

// RecordRefresh records the outcome of one refresh.
func (m *Metrics) RecordRefresh(ctx context.Context, stationID int, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.Int("gios.station_id", stationID),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Detach from ctx so a cancelled refresh is still counted.
	ctx = context.WithoutCancel(ctx)
	m.refreshDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.refreshTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}
