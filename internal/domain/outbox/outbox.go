package outbox

import "context"

// Event is a domain fact published after the state change it describes was stored.
type Event interface {
	EventName() string
}

// Keyed events carry the key that orders them downstream, e.g. a cart or payment id.
// Events sharing a key must be delivered in publish order by transports that partition.
type Keyed interface {
	PartitionKey() string
}

// Handler processes a published event. Returned errors are logged, never retried.
type Handler func(ctx context.Context, e Event) error

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Subscriber interface {
	Subscribe(eventName string, h Handler)
}

// KeyOf returns the partition key of e, or "" when e is not Keyed.
func KeyOf(e Event) string {
	if k, ok := e.(Keyed); ok {
		return k.PartitionKey()
	}
	return ""
}
