package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
)

type sinkStub struct {
	mu        sync.Mutex
	delivered []event
	err       error
}

func (s *sinkStub) Deliver(_ context.Context, kind, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, event{kind: kind, message: message})
	return s.err
}

func (s *sinkStub) events() []event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event(nil), s.delivered...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCloseDrainsQueuedEvents(t *testing.T) {
	sink := &sinkStub{}
	n := New(discardLogger(), 16, sink)

	n.Log("transfer settled")
	n.LogValuation("weekly valuation")
	n.Close()

	got := sink.events()
	if len(got) != 2 {
		t.Fatalf("delivered %d events, want 2", len(got))
	}
	if got[0].kind != KindTransaction || got[0].message != "transfer settled" {
		t.Fatalf("first event = %+v", got[0])
	}
	if got[1].kind != KindValuation {
		t.Fatalf("second event kind = %q, want %q", got[1].kind, KindValuation)
	}
}

func TestSinkErrorsDoNotStopDelivery(t *testing.T) {
	failing := &sinkStub{err: errors.New("boom")}
	healthy := &sinkStub{}
	n := New(discardLogger(), 16, failing, healthy)

	n.Log("one")
	n.Log("two")
	n.Close()

	if len(healthy.events()) != 2 {
		t.Fatalf("healthy sink saw %d events, want 2", len(healthy.events()))
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	n := New(discardLogger(), 4)
	n.Log("x")
	n.Close()
	n.Close()
}

func TestEnqueueNeverBlocksWhenFull(t *testing.T) {
	// No sinks and a tiny buffer; the worker is racing the producer, so some
	// messages may drop, but Log must return regardless.
	n := New(discardLogger(), 1)
	for i := 0; i < 1000; i++ {
		n.Log("burst")
	}
	n.Close()
}
