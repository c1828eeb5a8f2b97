package pubsub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"streamgen/internal/engine"
)

type sink struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
	block    chan struct{}
	err      error
}

func (s *sink) send(ctx context.Context, channel string, payload []byte) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = append(s.channels, channel)
	s.payloads = append(s.payloads, payload)
	return s.err
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

func TestRedisPublisher_SendsJSON(t *testing.T) {
	s := &sink{}
	p := newPublisher(RedisConfig{}, zerolog.Nop(), s.send)
	p.Publish(engine.Event{Name: engine.EventQueued, RequestID: "r1", Fields: map[string]any{"max_tokens": 128}})
	p.Publish(engine.Event{Name: engine.EventCompleted, RequestID: "r1"})
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if s.count() != 2 {
		t.Fatalf("expected 2 payloads, got %d", s.count())
	}
	if s.channels[0] != defaultChannel {
		t.Fatalf("unexpected channel %q", s.channels[0])
	}
	var ev engine.Event
	if err := json.Unmarshal(s.payloads[0], &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Name != "queued" || ev.RequestID != "r1" || ev.Fields["max_tokens"] != float64(128) {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestRedisPublisher_DropsWhenFull(t *testing.T) {
	s := &sink{block: make(chan struct{})}
	p := newPublisher(RedisConfig{Channel: "c", Buffer: 1}, zerolog.Nop(), s.send)
	before := testutil.ToFloat64(droppedEvents.WithLabelValues("full"))
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			p.Publish(engine.Event{Name: "queued", RequestID: "r"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Publish blocked on a stalled broker")
	}
	if got := testutil.ToFloat64(droppedEvents.WithLabelValues("full")); got < before+8 {
		t.Fatalf("expected drops to be counted: %v -> %v", before, got)
	}
	close(s.block)
	_ = p.Close()
	p.Publish(engine.Event{Name: "late"})
}

func TestRedisPublisher_SendErrorsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	s := &sink{err: errors.New("connection refused")}
	p := newPublisher(RedisConfig{}, zerolog.New(&buf), s.send)
	p.Publish(engine.Event{Name: "failed", RequestID: "r9"})
	_ = p.Close()
	if !bytes.Contains(buf.Bytes(), []byte("publish failed")) || !bytes.Contains(buf.Bytes(), []byte("r9")) {
		t.Fatalf("expected warning in log, got %s", buf.String())
	}
}

func TestMulti(t *testing.T) {
	a, b := engine.NewMemoryPublisher(), engine.NewMemoryPublisher()
	var buf bytes.Buffer
	m := Multi{a, b, LogPublisher{Log: zerolog.New(&buf).Level(zerolog.DebugLevel)}}
	m.Publish(engine.Event{Name: "admitted", RequestID: "x", Fields: map[string]any{"running": 1}})
	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Fatalf("event not fanned out")
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"event":"admitted"`)) {
		t.Fatalf("log publisher wrote %s", buf.String())
	}
}
