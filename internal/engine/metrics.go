package engine

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/nixlim/po-stats/internal/engine"

type instruments struct {
	events          metric.Int64Counter
	fallbackTasks   metric.Int64Counter
	persistFailures metric.Int64Counter
	persistWrites   metric.Int64Counter
}

func newInstruments(mp metric.MeterProvider) *instruments {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m := mp.Meter(meterName)
	return &instruments{
		events:          counter(m, "postats.events", "Events processed, by kind and outcome."),
		fallbackTasks:   counter(m, "postats.fallback_tasks", "Task ids synthesized because no task was active."),
		persistFailures: counter(m, "postats.persist.failures", "Failed writes of the cumulative record."),
		persistWrites:   counter(m, "postats.persist.writes", "Successful writes of the cumulative record."),
	}
}

func counter(m metric.Meter, name, desc string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}
