package gatewayauth

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// auditDispatcher hands audit events to the sink on a dedicated goroutine
// so that a slow sink never sits on the authentication path.
type auditDispatcher struct {
	sink       AuditSink
	logger     *zap.Logger
	dropIfFull bool

	events chan AuditEvent
	stop   chan struct{}
	worker sync.WaitGroup

	dropped  atomic.Uint64
	stopping atomic.Bool
	stopOnce sync.Once
}

// newAuditDispatcher returns nil when audit is disabled; every method is
// safe on a nil dispatcher.
func newAuditDispatcher(cfg AuditConfig, sink AuditSink, logger *zap.Logger) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}

	d := &auditDispatcher{
		sink:       sink,
		logger:     logger,
		dropIfFull: cfg.DropIfFull,
		events:     make(chan AuditEvent, size),
		stop:       make(chan struct{}),
	}
	d.worker.Add(1)
	go d.loop()
	return d
}

func (d *auditDispatcher) loop() {
	defer d.worker.Done()
	for {
		select {
		case ev := <-d.events:
			d.deliver(ev)
		case <-d.stop:
			for n := len(d.events); n > 0; n-- {
				d.deliver(<-d.events)
			}
			return
		}
	}
}

// deliver shields the worker from a panicking sink.
func (d *auditDispatcher) deliver(ev AuditEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("audit sink panicked",
				zap.String("event_type", ev.EventType),
				zap.Any("panic", r),
			)
		}
	}()
	d.sink.Emit(context.Background(), ev)
}

// Emit enqueues ev. In drop mode a full buffer discards ev and counts it.
// Otherwise Emit waits for room; an event abandoned because ctx ended is
// also counted as dropped.
func (d *auditDispatcher) Emit(ctx context.Context, ev AuditEvent) {
	if d == nil || d.stopping.Load() {
		return
	}

	if d.dropIfFull {
		select {
		case d.events <- ev:
		default:
			if d.dropped.Add(1) == 1 {
				d.logger.Warn("audit buffer full, dropping events")
			}
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.events <- ev:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
	}
}

// Close rejects further events, delivers what is buffered and waits for
// the worker to exit. Calling it twice is fine.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.stopping.Store(true)
		close(d.stop)
		d.worker.Wait()
	})
}

// Dropped reports how many events never reached the sink.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
