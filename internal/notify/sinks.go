package notify

import (
	"context"
	"time"

	"github.com/TheL321/PrimeBank-sub000/pkg/rabbitmq"
)

// PublisherSink forwards ledger notifications to a message broker, routed as
// "ledger.<kind>" on a topic exchange.
type PublisherSink struct {
	Publisher rabbitmq.Publisher
	Exchange  string
}

func (s *PublisherSink) Deliver(ctx context.Context, kind, message string) error {
	return s.Publisher.Publish(ctx, s.Exchange, "ledger."+kind, rabbitmq.LedgerEvent{
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now(),
	})
}
