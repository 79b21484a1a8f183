package eventbus

import "context"

// Publisher delivers one envelope to the bus. Implementations are expected
// to be safe for concurrent use; retry and dead-lettering live in the Relay,
// not in publishers.
type Publisher interface {
	Publish(ctx context.Context, envelope Envelope) error
}
