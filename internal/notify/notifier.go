/**
 * @description
 * The fire-and-forget logging collaborator. Ledger operations hand a message
 * to a bounded channel after releasing their locks; a dedicated worker drains
 * the channel to the configured sinks (structured log, webhook, message
 * broker). A full channel drops the message rather than block the critical
 * path — delivery is best-effort and can never fail or roll back the
 * operation it describes.
 */

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// deliveryTimeout bounds one sink call so a slow webhook cannot back up the
// worker indefinitely.
const deliveryTimeout = 10 * time.Second

// Sink delivers one message somewhere external.
type Sink interface {
	Deliver(ctx context.Context, kind, message string) error
}

// Kinds of message, used as routing hints by sinks.
const (
	KindTransaction = "transaction"
	KindValuation   = "valuation"
)

type event struct {
	kind    string
	message string
}

// Notifier implements the ledger's Notifier contract over a bounded queue.
type Notifier struct {
	logger *slog.Logger
	sinks  []Sink
	ch     chan event

	closeOnce sync.Once
	done      chan struct{}
}

// New starts a notifier with the given queue depth and sinks. Close releases
// the worker.
func New(logger *slog.Logger, buffer int, sinks ...Sink) *Notifier {
	if buffer <= 0 {
		buffer = 256
	}
	n := &Notifier{
		logger: logger,
		sinks:  sinks,
		ch:     make(chan event, buffer),
		done:   make(chan struct{}),
	}
	go n.run()
	return n
}

// Log enqueues a transaction message. Never blocks.
func (n *Notifier) Log(message string) { n.enqueue(KindTransaction, message) }

// LogValuation enqueues a valuation message. Never blocks.
func (n *Notifier) LogValuation(message string) { n.enqueue(KindValuation, message) }

func (n *Notifier) enqueue(kind, message string) {
	select {
	case n.ch <- event{kind: kind, message: message}:
	default:
		n.logger.Warn("notification dropped, queue full", "kind", kind)
	}
}

// Close stops the worker after draining what is already queued.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() {
		close(n.ch)
		<-n.done
	})
}

func (n *Notifier) run() {
	defer close(n.done)
	for ev := range n.ch {
		n.logger.Info("ledger event", "kind", ev.kind, "message", ev.message)
		for _, sink := range n.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
			if err := sink.Deliver(ctx, ev.kind, ev.message); err != nil {
				n.logger.Warn("notification delivery failed", "kind", ev.kind, "error", err)
			}
			cancel()
		}
	}
}
