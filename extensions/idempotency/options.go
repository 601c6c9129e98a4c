package idempotency

import "time"

// DefaultTTL is how long successful results are replayed.
const DefaultTTL = 10 * time.Minute

type config struct {
	ttl   time.Duration
	store Store
}

// Option configures Wrap.
type Option func(*config)

// WithTTL sets the cache TTL of the default in-memory store.
// Ignored when WithStore is given.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.ttl = ttl
	}
}

// WithStore sets a custom Store, for example one shared between replicas.
func WithStore(store Store) Option {
	return func(c *config) {
		c.store = store
	}
}
