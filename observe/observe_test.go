package observe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

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

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestRecordProvider(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.RecordProvider(ctx, "llm", nil)
	m.RecordProvider(ctx, "llm", nil)
	m.RecordProvider(ctx, "tts", errors.New("failed"))

	found := findMetric(t, reader, "alex.provider.requests")
	if found == nil {
		t.Fatal("metric not found")
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", found.Data)
	}
	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		kind, _ := dp.Attributes.Value(attribute.Key("kind"))
		status, _ := dp.Attributes.Value(attribute.Key("status"))
		counts[kind.AsString()+"/"+status.AsString()] = dp.Value
	}
	if counts["llm/ok"] != 2 {
		t.Errorf("expected 2 successful llm calls, got %d", counts["llm/ok"])
	}
	if counts["tts/error"] != 1 {
		t.Errorf("expected 1 failed tts call, got %d", counts["tts/error"])
	}
}

type flushRecorder struct {
	*httptest.ResponseRecorder
	flushed int
}

func (f *flushRecorder) Flush() {
	f.flushed++
}

func TestMiddleware(t *testing.T) {
	m, reader := newTestMetrics(t)
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	h := Middleware(log, m, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.(http.Flusher).Flush()
	}))
	w := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/ai", nil))

	if w.Code != http.StatusTeapot {
		t.Errorf("expected status %d, got %d", http.StatusTeapot, w.Code)
	}
	if w.flushed != 1 {
		t.Errorf("expected flush to be passed through, got %d flushes", w.flushed)
	}
	found := findMetric(t, reader, "alex.http.request.duration")
	if found == nil {
		t.Fatal("metric not found")
	}
	hist, ok := found.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", found.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Errorf("expected a single observation, got %+v", hist.DataPoints)
	}
}

func TestDiscard(t *testing.T) {
	m := Discard()
	m.RecordProvider(context.Background(), "llm", nil)
}
