package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	gorbac "github.com/MrEthical07/goRBAC"
)

// droppedName is the counter for audit events the dispatcher had to
// discard.
const droppedName = "gorbac_audit_events_dropped_total"

// Register creates one observable counter per engine metric on meter
// and observes fresh values from snapshot at every collection. The
// returned registration unregisters the callback.
//
// Typical wiring:
//
//	reg, err := otel.Register(meter, eng.Metrics)
func Register(meter metric.Meter, snapshot func() gorbac.MetricsSnapshot) (metric.Registration, error) {
	if meter == nil || snapshot == nil {
		return nil, fmt.Errorf("otel: meter and snapshot func required")
	}

	initial := snapshot()
	counters := make(map[string]metric.Int64ObservableCounter, len(initial.Counters)+1)
	observables := make([]metric.Observable, 0, len(initial.Counters)+1)
	for name := range initial.Counters {
		c, err := meter.Int64ObservableCounter(name)
		if err != nil {
			return nil, fmt.Errorf("otel: instrument %s: %w", name, err)
		}
		counters[name] = c
		observables = append(observables, c)
	}
	dropped, err := meter.Int64ObservableCounter(droppedName)
	if err != nil {
		return nil, fmt.Errorf("otel: instrument %s: %w", droppedName, err)
	}
	observables = append(observables, dropped)

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		snap := snapshot()
		for name, c := range counters {
			o.ObserveInt64(c, int64(snap.Counters[name]))
		}
		o.ObserveInt64(dropped, int64(snap.AuditDropped))
		return nil
	}, observables...)
}
