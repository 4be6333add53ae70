package app

import (
	"github.com/redis/go-redis/v9"

	"github.com/RezaEskandarii/cronhook/internal/message_broaker"
	"github.com/RezaEskandarii/cronhook/internal/runner"
	"github.com/RezaEskandarii/cronhook/internal/store"
)

// ContainerOption configures Container creation. Used for testing and customization.
type ContainerOption func(*containerConfig)

type containerConfig struct {
	// Optional: inject a store instead of opening one from config
	store  store.Store
	redis  redis.UniversalClient
	broker message_broaker.MessageBroker
	// dispatcher replaces the HTTP dispatcher
	dispatcher runner.Dispatcher
}

// WithStore injects a custom store. Useful for testing.
func WithStore(s store.Store) ContainerOption {
	return func(c *containerConfig) {
		c.store = s
	}
}

// WithRedis injects a custom Redis client. Useful for testing.
func WithRedis(client redis.UniversalClient) ContainerOption {
	return func(c *containerConfig) {
		c.redis = client
	}
}

// WithBroker injects the broker run events are published to.
func WithBroker(b message_broaker.MessageBroker) ContainerOption {
	return func(c *containerConfig) {
		c.broker = b
	}
}

func WithDispatcher(d runner.Dispatcher) ContainerOption {
	return func(c *containerConfig) {
		c.dispatcher = d
	}
}
