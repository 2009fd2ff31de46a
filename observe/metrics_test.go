package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the counter value for the data point carrying key=value.
func sumFor(t *testing.T, met *metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", met.Name)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	return 0
}

func TestRecordAnalysis(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAnalysis(ctx, "high", 2*time.Millisecond)
	m.RecordAnalysis(ctx, "high", time.Millisecond)
	m.RecordAnalysis(ctx, "none", time.Millisecond)

	rm := collect(t, reader)
	met := findMetric(rm, "safety.analyses")
	if met == nil {
		t.Fatal("safety.analyses not found")
	}
	if got := sumFor(t, met, "distress_level", "high"); got != 2 {
		t.Errorf("high analyses = %d, want 2", got)
	}
	if got := sumFor(t, met, "distress_level", "none"); got != 1 {
		t.Errorf("none analyses = %d, want 1", got)
	}

	hist := findMetric(rm, "safety.analysis.duration")
	if hist == nil {
		t.Fatal("safety.analysis.duration not found")
	}
	h, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok || len(h.DataPoints) == 0 {
		t.Fatal("duration histogram has no data points")
	}
	if got := h.DataPoints[0].Count; got != 3 {
		t.Errorf("duration samples = %d, want 3", got)
	}
}

func TestRecordAlertsAndNotifications(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAlert(ctx, "sos")
	m.RecordNotification(ctx, "SMS")
	m.RecordNotification(ctx, "SMS")
	m.RecordNotification(ctx, "Email")
	m.RecordClassifierError(ctx)

	rm := collect(t, reader)
	if got := sumFor(t, findMetric(rm, "safety.alerts"), "alert_type", "sos"); got != 1 {
		t.Errorf("sos alerts = %d, want 1", got)
	}
	notes := findMetric(rm, "safety.notifications")
	if got := sumFor(t, notes, "method", "SMS"); got != 2 {
		t.Errorf("SMS notifications = %d, want 2", got)
	}
	if got := sumFor(t, notes, "method", "Email"); got != 1 {
		t.Errorf("Email notifications = %d, want 1", got)
	}
	if findMetric(rm, "safety.classifier.errors") == nil {
		t.Error("safety.classifier.errors not recorded")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	ctx := context.Background()
	m.RecordAnalysis(ctx, "low", time.Millisecond)
	m.RecordAlert(ctx, "safety_check")
	m.RecordNotification(ctx, "SMS")
	m.RecordClassifierError(ctx)
	m.SocketConnected(ctx)
	m.SocketDisconnected(ctx)

	h := Middleware(nil)(http.NotFoundHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMiddlewareRecordsDuration(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	met := findMetric(collect(t, reader), "safety.http.request.duration")
	if met == nil {
		t.Fatal("safety.http.request.duration not found")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Errorf("unexpected data points: %+v", hist.DataPoints)
	}
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/scenarios/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(m)(mux)

	for _, path := range []string{"/api/scenarios/high", "/api/scenarios/low", "/nope/1", "/nope/2"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	met := findMetric(collect(t, reader), "safety.http.request.duration")
	if met == nil {
		t.Fatal("safety.http.request.duration not found")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	counts := map[string]uint64{}
	for _, dp := range hist.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("route"))
		counts[v.AsString()] += dp.Count
	}
	if len(counts) != 2 || counts["/api/scenarios/{name}"] != 2 || counts["unmatched"] != 2 {
		t.Errorf("route counts = %v", counts)
	}
}

func TestInitProvider(t *testing.T) {
	shutdown, err := InitProvider(context.Background(), ProviderConfig{ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("InitProvider() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
