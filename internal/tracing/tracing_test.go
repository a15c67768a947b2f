package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if p.IsEnabled() {
		t.Error("provider should be disabled")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() on disabled provider = %v", err)
	}
	if p.Tracer("x") == nil {
		t.Error("disabled provider should still return a tracer")
	}
}

func TestNewProvider_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"missing service name", Config{Enabled: true, SamplingRate: 0.5}, ErrMissingServiceName},
		{"negative rate", Config{Enabled: true, ServiceName: "api", SamplingRate: -0.1}, ErrInvalidSamplingRate},
		{"rate above one", Config{Enabled: true, ServiceName: "api", SamplingRate: 1.5}, ErrInvalidSamplingRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProvider(tt.cfg); !errors.Is(err, tt.wantErr) {
				t.Errorf("NewProvider() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewProvider_UnsupportedExporter(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, ServiceName: "api", SamplingRate: 1, ExporterType: "zipkin"})
	if err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return recorder
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestStartDBSpan(t *testing.T) {
	recorder := withRecorder(t)

	_, end := StartDBSpan(context.Background(), "photos", DBOperationUpdate)
	end(nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "update photos" {
		t.Errorf("span name = %q", spans[0].Name())
	}
	if v, ok := attrValue(spans[0].Attributes(), "db.sql.table"); !ok || v.AsString() != "photos" {
		t.Errorf("db.sql.table = %v", v)
	}
}

func TestStartStorageSpan_RecordsError(t *testing.T) {
	recorder := withRecorder(t)

	_, end := StartStorageSpan(context.Background(), "DeleteObjects", "media", 3)
	end(errors.New("access denied"))

	span := recorder.Ended()[0]
	if span.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", span.Status().Code)
	}
	if v, _ := attrValue(span.Attributes(), "storage.objects"); v.AsInt64() != 3 {
		t.Errorf("storage.objects = %v", v)
	}
}

func TestStartSpan_AddEvent(t *testing.T) {
	recorder := withRecorder(t)

	ctx, end := StartSpan(context.Background(), "moderation.approve_photos", attribute.Int("batch", 2))
	AddEvent(ctx, "cache.invalidated")
	end(nil)

	span := recorder.Ended()[0]
	if len(span.Events()) != 1 || span.Events()[0].Name != "cache.invalidated" {
		t.Errorf("events = %v", span.Events())
	}
}
