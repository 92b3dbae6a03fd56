package ports

import (
	"context"

	"wa-gateway/internal/domain"
)

// SendPublisher queues messages for asynchronous delivery.
type SendPublisher interface {
	Publish(ctx context.Context, req domain.SendRequest) error
}

// SendConsumer consumes queued messages.
type SendConsumer interface {
	// Consume passes each delivery to the handler.
	// Blocks until ctx is cancelled or a fatal error occurs.
	Consume(ctx context.Context, handler func(ctx context.Context, req domain.SendRequest) error) error
}
