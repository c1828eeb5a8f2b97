// Package pubsub fans request lifecycle events out of the scheduler.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"streamgen/internal/engine"
)

const (
	defaultChannel   = "streamgen:events"
	defaultBuffer    = 256
	publishTimeout   = 2 * time.Second
	closeDrainWindow = 5 * time.Second
)

var droppedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "streamgen",
	Subsystem: "pubsub",
	Name:      "dropped_events_total",
	Help:      "Lifecycle events not delivered to the broker",
}, []string{"reason"})

func init() {
	prometheus.MustRegister(droppedEvents)
}

// RedisConfig configures a RedisPublisher.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
	// Buffer bounds events waiting to be sent; further events are dropped.
	Buffer int
}

type publishFunc func(ctx context.Context, channel string, payload []byte) error

// RedisPublisher sends events as JSON to a Redis Pub/Sub channel. Publish
// never blocks the scheduler: events are queued to a single sender
// goroutine and dropped when the queue is full.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	send    publishFunc
	events  chan engine.Event
	log     zerolog.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
}

var _ engine.EventPublisher = (*RedisPublisher)(nil)

// NewRedisPublisher connects to Redis and starts the sender goroutine.
func NewRedisPublisher(cfg RedisConfig, log zerolog.Logger) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	p := newPublisher(cfg, log, func(ctx context.Context, channel string, payload []byte) error {
		return client.Publish(ctx, channel, payload).Err()
	})
	p.client = client
	return p
}

func newPublisher(cfg RedisConfig, log zerolog.Logger, send publishFunc) *RedisPublisher {
	if cfg.Channel == "" {
		cfg.Channel = defaultChannel
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}
	p := &RedisPublisher{
		channel: cfg.Channel,
		send:    send,
		events:  make(chan engine.Event, cfg.Buffer),
		log:     log.With().Str("component", "pubsub").Str("channel", cfg.Channel).Logger(),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Ping checks the Redis connection.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	if p.client == nil {
		return nil
	}
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis_pubsub: ping: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Publish(e engine.Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		droppedEvents.WithLabelValues("closed").Inc()
		return
	}
	select {
	case p.events <- e:
	default:
		droppedEvents.WithLabelValues("full").Inc()
	}
}

func (p *RedisPublisher) run() {
	defer close(p.done)
	for e := range p.events {
		payload, err := json.Marshal(e)
		if err != nil {
			droppedEvents.WithLabelValues("encode").Inc()
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err = p.send(ctx, p.channel, payload)
		cancel()
		if err != nil {
			droppedEvents.WithLabelValues("send").Inc()
			p.log.Warn().Err(err).Str("event", e.Name).Str("request_id", e.RequestID).Msg("redis_pubsub: publish failed")
		}
	}
}

// Close stops accepting events, flushes what is queued (bounded by a short
// window) and closes the Redis client.
func (p *RedisPublisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.events)
		p.mu.Unlock()
		select {
		case <-p.done:
		case <-time.After(closeDrainWindow):
			p.log.Warn().Msg("redis_pubsub: close timed out with events pending")
		}
		if p.client != nil {
			if cerr := p.client.Close(); cerr != nil {
				err = fmt.Errorf("redis_pubsub: close: %w", cerr)
			}
		}
	})
	return err
}
