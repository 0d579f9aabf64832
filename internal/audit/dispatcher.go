package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DispatcherConfig controls buffering behavior. With DropIfFull unset Emit
// waits up to MaxBlock for buffer space before dropping.
type DispatcherConfig struct {
	BufferSize int
	DropIfFull bool
	MaxBlock   time.Duration
}

// Dispatcher asynchronously forwards audit events to a sink.
type Dispatcher struct {
	cfg       DispatcherConfig
	sink      Sink
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the delivery goroutine. Close drains pending events.
func NewDispatcher(cfg DispatcherConfig, sink Sink) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.MaxBlock <= 0 {
		cfg.MaxBlock = 50 * time.Millisecond
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan Event, cfg.BufferSize),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	defer func() {
		// sink panics count as drops
		if recover() != nil {
			d.dropped.Add(1)
		}
	}()
	d.sink.Emit(context.Background(), event)
}

// Emit enqueues event without ever failing the caller.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	timer := time.NewTimer(d.cfg.MaxBlock)
	defer timer.Stop()

	select {
	case d.ch <- event:
	case <-timer.C:
		d.dropped.Add(1)
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.done:
	}
}

// Close stops intake and waits until buffered events are delivered.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped counts events discarded under backpressure.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
