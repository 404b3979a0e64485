// Package redis mirrors engine state to Redis for dashboards and
// ad-hoc inspection. Everything written here is observability data;
// the engine never reads it back.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"spread-systemv1/internal/model"
)

const (
	// Stream trimming: a few weeks of hourly lifecycle events
	eventStreamMaxLen = 10000

	eventStream = "stream:spread:events"
	ledgerKey   = "spread:ledger:latest"
	pubsubCh    = "pub:spread:events"
)

// Config configures the Redis publisher.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes spread lifecycle events and ledger snapshots. All
// writes go through a circuit breaker: when Redis is down, writes are
// skipped immediately instead of stalling on timeouts every tick.
type Publisher struct {
	client  *goredis.Client
	breaker *CircuitBreaker
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// New creates a new Publisher and pings the server.
func New(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	breaker := NewCircuitBreaker(5, 10*time.Second)
	breaker.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s → %s", from, to)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client, breaker: breaker}, nil
}

// PublishEvent appends one lifecycle event to the event stream and
// fans it out over pub/sub. Failures are logged, never propagated.
func (p *Publisher) PublishEvent(ctx context.Context, ev model.SpreadEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	err = p.breaker.Execute(func() error {
		if err := p.client.XAdd(ctx, &goredis.XAddArgs{
			Stream: eventStream,
			MaxLen: eventStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": string(data)},
		}).Err(); err != nil {
			return err
		}
		return p.client.Publish(ctx, pubsubCh, string(data)).Err()
	})
	if err != nil && err != ErrCircuitOpen {
		log.Printf("[redis] event publish failed: %v", err)
	}
}

// WriteSnapshot overwrites the latest ledger snapshot key.
func (p *Publisher) WriteSnapshot(ctx context.Context, open []model.OpenSpread) {
	data, err := json.Marshal(open)
	if err != nil {
		return
	}
	err = p.breaker.Execute(func() error {
		return p.client.Set(ctx, ledgerKey, string(data), 0).Err()
	})
	if err != nil && err != ErrCircuitOpen {
		log.Printf("[redis] snapshot write failed: %v", err)
	}
}

// Ping reports whether the server is reachable.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
