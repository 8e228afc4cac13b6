package receiver

import (
	"context"
	"testing"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"

	"github.com/nixlim/po-stats/internal/engine"
	"github.com/nixlim/po-stats/internal/storage"
)

// startTestLoop runs an engine loop over an in-memory store until the test
// ends.
func startTestLoop(t *testing.T) *engine.Loop {
	t.Helper()

	eng := engine.New(storage.NewMemoryKV())
	loop := engine.NewLoop(eng, 16)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
		eng.Close()
	})
	return loop
}

// stoppedLoop returns a loop that has already shut down.
func stoppedLoop(t *testing.T) *engine.Loop {
	t.Helper()

	eng := engine.New(storage.NewMemoryKV())
	t.Cleanup(eng.Close)
	loop := engine.NewLoop(eng, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = loop.Run(ctx)
	return loop
}

func strVal(s string) *commonpb.AnyValue {
	return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: s}}
}

func intVal(n int64) *commonpb.AnyValue {
	return &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: n}}
}

func doubleVal(f float64) *commonpb.AnyValue {
	return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: f}}
}

func kvlistVal(kvs ...*commonpb.KeyValue) *commonpb.AnyValue {
	return &commonpb.AnyValue{Value: &commonpb.AnyValue_KvlistValue{
		KvlistValue: &commonpb.KeyValueList{Values: kvs},
	}}
}

func kv(key string, v *commonpb.AnyValue) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: key, Value: v}
}
