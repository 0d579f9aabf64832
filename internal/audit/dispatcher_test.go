package audit

import (
	"context"
	"testing"
	"time"
)

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Emit(context.Context, Event) {
	<-s.release
}

func TestDispatcherDropIfFullNeverBlocks(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(DispatcherConfig{BufferSize: 1, DropIfFull: true}, sink)

	start := time.Now()
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{Type: EventLogout})
	}
	if time.Since(start) > time.Second {
		t.Fatal("emit blocked with DropIfFull")
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops under backpressure")
	}

	close(sink.release)
	d.Close()
}

func TestDispatcherBoundedBlock(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(DispatcherConfig{BufferSize: 1, MaxBlock: 10 * time.Millisecond}, sink)

	start := time.Now()
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{Type: EventLogout})
	}
	if time.Since(start) > time.Second {
		t.Fatal("emit exceeded its block bound")
	}

	close(sink.release)
	d.Close()
}

func TestChannelSink(t *testing.T) {
	sink := NewChannelSink(2)
	d := NewDispatcher(DispatcherConfig{BufferSize: 4}, sink)
	d.Emit(context.Background(), Event{Type: EventLoginSuccess})
	d.Close()

	select {
	case e := <-sink.Events():
		if e.Type != EventLoginSuccess {
			t.Fatalf("unexpected event %q", e.Type)
		}
	default:
		t.Fatal("expected event on channel")
	}
}
