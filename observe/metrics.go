// Package observe holds the OpenTelemetry instruments recorded by the safety
// monitor. [InitProvider] bridges them to Prometheus so /metrics can be
// scraped. Tests should build their own [Metrics] with [NewMetrics] over a
// manual reader.
package observe

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "safety-monitor"

// Metrics holds all instruments. A nil *Metrics records nothing.
type Metrics struct {
	// Analyses counts verdicts. Attribute: distress_level.
	Analyses metric.Int64Counter

	AnalysisDuration metric.Float64Histogram

	// Alerts counts raised alerts. Attribute: alert_type.
	Alerts metric.Int64Counter

	// Notifications counts simulated contact notifications. Attribute: method.
	Notifications metric.Int64Counter

	ClassifierErrors metric.Int64Counter

	// ActiveSockets tracks connected Socket.IO clients.
	ActiveSockets metric.Int64UpDownCounter

	// HTTPRequestDuration uses attributes method and path.
	HTTPRequestDuration metric.Float64Histogram
}

// Verdicts are computed in microseconds; the upper buckets catch the
// remote-classifier round trip.
var latencyBuckets = []float64{
	0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5,
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Analyses, err = m.Int64Counter("safety.analyses",
		metric.WithDescription("Total distress analyses by resulting level."),
	); err != nil {
		return nil, err
	}
	if met.AnalysisDuration, err = m.Float64Histogram("safety.analysis.duration",
		metric.WithDescription("Latency of a single analysis including classification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Alerts, err = m.Int64Counter("safety.alerts",
		metric.WithDescription("Total safety alerts raised by alert type."),
	); err != nil {
		return nil, err
	}
	if met.Notifications, err = m.Int64Counter("safety.notifications",
		metric.WithDescription("Total emergency contact notifications by method."),
	); err != nil {
		return nil, err
	}
	if met.ClassifierErrors, err = m.Int64Counter("safety.classifier.errors",
		metric.WithDescription("Total failed remote classification requests."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSockets, err = m.Int64UpDownCounter("safety.active_sockets",
		metric.WithDescription("Number of connected realtime clients."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("safety.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a package-level instance over the global provider.
// Call it after [InitProvider] so the instruments reach the exporter.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

func (m *Metrics) RecordAnalysis(ctx context.Context, level string, d time.Duration) {
	if m == nil {
		return
	}
	m.Analyses.Add(ctx, 1, metric.WithAttributes(attribute.String("distress_level", level)))
	m.AnalysisDuration.Record(ctx, d.Seconds())
}

func (m *Metrics) RecordAlert(ctx context.Context, alertType string) {
	if m == nil {
		return
	}
	m.Alerts.Add(ctx, 1, metric.WithAttributes(attribute.String("alert_type", alertType)))
}

func (m *Metrics) RecordNotification(ctx context.Context, method string) {
	if m == nil {
		return
	}
	m.Notifications.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
}

func (m *Metrics) RecordClassifierError(ctx context.Context) {
	if m == nil {
		return
	}
	m.ClassifierErrors.Add(ctx, 1)
}

func (m *Metrics) SocketConnected(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSockets.Add(ctx, 1)
}

func (m *Metrics) SocketDisconnected(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSockets.Add(ctx, -1)
}

// Middleware records request duration for every request passing through,
// labelled by the matched route pattern.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			// ServeMux fills in Pattern while routing.
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.HTTPRequestDuration.Record(r.Context(), time.Since(start).Seconds(),
				metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("route", route),
				),
			)
		})
	}
}
