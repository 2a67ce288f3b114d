package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TestMiddleware_Wrap(t *testing.T) {
	recorder, tr := newRecordingTracer(t)
	reader, mp := newManualMeter(t)
	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	mw := NewMiddleware(tr, metrics, NewLoggerWithWriter("info", &buf))

	meta := CallMeta{Upstream: "pokeapi", Operation: "species"}
	var sawSpan bool
	call := mw.Wrap(meta, func(ctx context.Context) error {
		sawSpan = trace.SpanContextFromContext(ctx).IsValid()
		return nil
	})

	if err := call(context.Background()); err != nil {
		t.Fatalf("call returned %v", err)
	}
	if !sawSpan {
		t.Error("wrapped call should run inside the span")
	}
	if n := len(recorder.Ended()); n != 1 {
		t.Errorf("ended spans = %d, want 1", n)
	}

	rm := collect(t, reader)
	if got := sumValue(t, rm, "upstream.calls.total",
		attribute.String("upstream.name", "pokeapi"),
		attribute.String("upstream.operation", "species"),
	); got != 1 {
		t.Errorf("upstream.calls.total = %d, want 1", got)
	}

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	if entries[0]["msg"] != "upstream call completed" || entries[0]["upstream"] != "pokeapi" {
		t.Errorf("unexpected log entry %v", entries[0])
	}
	if _, ok := entries[0]["trace_id"]; !ok {
		t.Error("log entry should carry the span's trace_id")
	}
}

func TestMiddleware_ErrorPropagatesUnchanged(t *testing.T) {
	var buf bytes.Buffer
	mw := NewMiddleware(nil, nil, NewLoggerWithWriter("info", &buf))
	sentinel := errors.New("PokeAPI failed with status 500")

	err := mw.Wrap(CallMeta{Upstream: "pokeapi"}, func(context.Context) error { return sentinel })(context.Background())
	if err != sentinel {
		t.Fatalf("error = %v, want the wrapped call's error", err)
	}

	e := decodeLines(t, &buf)[0]
	if e["level"] != "warn" || e["error"] != sentinel.Error() {
		t.Errorf("unexpected log entry %v", e)
	}
}

func TestMiddlewareFromObserver(t *testing.T) {
	if _, err := MiddlewareFromObserver(nil); !errors.Is(err, ErrNilObserver) {
		t.Fatalf("MiddlewareFromObserver(nil) = %v, want ErrNilObserver", err)
	}

	obs, err := NewObserver(context.Background(), Config{ServiceName: "pokedex"})
	if err != nil {
		t.Fatal(err)
	}
	mw, err := MiddlewareFromObserver(obs)
	if err != nil {
		t.Fatalf("MiddlewareFromObserver() error = %v", err)
	}
	if err := NopMiddleware().Wrap(CallMeta{Upstream: "x"}, func(context.Context) error { return nil })(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := mw.Wrap(CallMeta{Upstream: "x"}, func(context.Context) error { return nil })(context.Background()); err != nil {
		t.Fatal(err)
	}
}
