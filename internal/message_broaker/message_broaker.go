package message_broaker

import "context"

type MessageBroker interface {
	// Publish sends message with the given routing key.
	Publish(routingKey string, message []byte) error
	Consume(ctx context.Context, queue string) (<-chan []byte, error)
	Close() error
}
