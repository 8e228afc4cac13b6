// Package receiver accepts producer signals over the network and feeds
// them to the engine loop. It serves OTLP logs over gRPC and HTTP, and a
// small JSON control API on the HTTP port.
package receiver

import (
	"context"

	"github.com/nixlim/po-stats/internal/engine"
	"github.com/nixlim/po-stats/internal/events"
)

// Dispatcher runs a signal through the engine. *engine.Loop implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, sig engine.Signal) (engine.Outcome, error)
}

// Backend is what the HTTP control API needs on top of dispatching.
// *engine.Loop implements it.
type Backend interface {
	Dispatcher
	Snapshot() engine.Snapshot
	Audit(limit int) []events.Entry
	Debug(ctx context.Context) (engine.DebugInfo, error)
}

// dispatchAll dispatches sigs in order, logging each to sl. It stops at the
// first dispatch error, which is only returned once the loop is closed or
// ctx is done.
func dispatchAll(ctx context.Context, d Dispatcher, sl Logger, source string, sigs []engine.Signal) ([]engine.Outcome, error) {
	outcomes := make([]engine.Outcome, 0, len(sigs))
	for _, sig := range sigs {
		out, err := d.Dispatch(ctx, sig)
		if err != nil {
			return outcomes, err
		}
		sl.LogSignal(source, sig, out)
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}
