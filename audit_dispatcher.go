package gorbac

import (
	"sync"
	"sync/atomic"
	"time"
)

// auditDispatcher decouples flow latency from sink latency: events are
// queued on a buffered channel and delivered by a single goroutine.
// When the buffer is full the event is either dropped (counted) or the
// emitter blocks, per configuration.
type auditDispatcher struct {
	sink       AuditSink
	events     chan AuditEvent
	dropIfFull bool
	dropped    atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
}

func newAuditDispatcher(sink AuditSink, cfg AuditConfig) *auditDispatcher {
	d := &auditDispatcher{
		sink:       sink,
		events:     make(chan AuditEvent, cfg.BufferSize),
		dropIfFull: cfg.DropIfFull,
		done:       make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	for ev := range d.events {
		d.sink.Write(ev)
	}
	close(d.done)
}

// Emit queues an event. Safe for concurrent use; after Close the event
// is dropped.
func (d *auditDispatcher) Emit(ev AuditEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	defer func() {
		// Send on a closed channel after Close.
		if recover() != nil {
			d.dropped.Add(1)
		}
	}()
	if d.dropIfFull {
		select {
		case d.events <- ev:
		default:
			d.dropped.Add(1)
		}
		return
	}
	d.events <- ev
}

// Dropped returns how many events were discarded because the buffer
// was full or the dispatcher was closed.
func (d *auditDispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close stops the dispatcher after draining queued events.
func (d *auditDispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.events)
		<-d.done
	})
}
