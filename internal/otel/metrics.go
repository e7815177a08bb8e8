package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RaceMetrics counts what the simulator produced.
type RaceMetrics struct {
	races     metric.Int64Counter
	knockouts metric.Int64Counter
	fallbacks metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewRaceMetrics registers the race instruments on meter.
func NewRaceMetrics(meter metric.Meter) (*RaceMetrics, error) {
	var (
		m   RaceMetrics
		err error
	)
	if m.races, err = meter.Int64Counter("racedraw.races",
		metric.WithDescription("Races run to a winner")); err != nil {
		return nil, err
	}
	if m.knockouts, err = meter.Int64Counter("racedraw.knockouts",
		metric.WithDescription("Racers knocked out")); err != nil {
		return nil, err
	}
	if m.fallbacks, err = meter.Int64Counter("racedraw.fallback_resolutions",
		metric.WithDescription("Races decided without a finisher")); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("racedraw.race.duration",
		metric.WithDescription("Race duration"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return &m, nil
}

// RaceFinished records one race and its resolution.
func (m *RaceMetrics) RaceFinished(ctx context.Context, resolution string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("resolution", resolution))
	m.races.Add(ctx, 1, attrs)
	m.duration.Record(ctx, seconds, attrs)
	if resolution == "all_knocked_out" || resolution == "timeout" {
		m.fallbacks.Add(ctx, 1, attrs)
	}
}

// Knockout records one knockout by cause.
func (m *RaceMetrics) Knockout(ctx context.Context, cause string) {
	m.knockouts.Add(ctx, 1, metric.WithAttributes(attribute.String("cause", cause)))
}
