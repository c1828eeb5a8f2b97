package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxConcurrent    = 4
	defaultMaxQueueDepth    = 32
	defaultRequestTimeout   = 300 * time.Second
	defaultInterruptTimeout = 2 * time.Second
	defaultSnapshotBuffer   = 16
	defaultStreamBuffer     = 64
	defaultHistoryTTL       = 5 * time.Minute
	defaultRecordTimeout    = 2 * time.Second
)

// Recorder persists finished requests. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(ctx context.Context, info RequestInfo) error
}

// Config encapsulates all tunables for Scheduler construction.
type Config struct {
	Backend Backend
	// MaxConcurrent is the concurrency budget: simultaneously running sessions.
	MaxConcurrent int
	// MaxQueueDepth bounds the number of queued (not yet admitted) requests.
	MaxQueueDepth int
	// RequestTimeout bounds a request from submission to terminal status.
	RequestTimeout time.Duration
	// InterruptTimeout bounds how long a cancelled session may take to
	// acknowledge an interrupt before its slot is reclaimed anyway.
	InterruptTimeout time.Duration
	// StreamBuffer sizes the streamer -> consumer channel.
	StreamBuffer int
	// HistoryTTL is how long finished requests remain visible via Lookup.
	HistoryTTL time.Duration

	Logger    *zerolog.Logger
	Publisher EventPublisher
	Recorder  Recorder
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = defaultMaxQueueDepth
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.InterruptTimeout <= 0 {
		c.InterruptTimeout = defaultInterruptTimeout
	}
	if c.StreamBuffer <= 0 {
		c.StreamBuffer = defaultStreamBuffer
	}
	if c.HistoryTTL <= 0 {
		c.HistoryTTL = defaultHistoryTTL
	}
	if c.Logger == nil {
		l := zerolog.Nop()
		c.Logger = &l
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	return c
}
