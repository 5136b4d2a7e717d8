package messaging

import (
	"context"
)

// Broker is the publish/subscribe fabric the notification service and the
// connection gateway are written against. The in-memory hub satisfies it for
// single-process deployments; the redis implementation extends delivery
// across processes. Callers must treat Publish as best-effort: an error means
// the message may not have reached anyone, never that state was corrupted.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Delivery is a message received from a pattern subscription, tagged with
// the concrete channel it arrived on.
type Delivery struct {
	Channel string
	Payload []byte
}
