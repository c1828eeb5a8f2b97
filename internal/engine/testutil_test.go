package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// scriptBackend emits a fixed list of cumulative snapshots per session. When
// release is set, each session then blocks until it receives one token from
// release (or is interrupted).
type scriptBackend struct {
	snaps    []string
	release  chan struct{}
	startErr error
	hold     time.Duration

	mu        sync.Mutex
	prompts   []string
	active    int32
	maxActive int32
	starts    int32
}

func (b *scriptBackend) StartSession(ctx context.Context, prompt string, cfg SamplingConfig) (Session, error) {
	atomic.AddInt32(&b.starts, 1)
	if b.startErr != nil {
		return nil, b.startErr
	}
	b.mu.Lock()
	b.prompts = append(b.prompts, prompt)
	b.mu.Unlock()
	return NewSession(ctx, 4, func(ctx context.Context, emit func(string) error) (string, error) {
		n := atomic.AddInt32(&b.active, 1)
		defer atomic.AddInt32(&b.active, -1)
		for {
			cur := atomic.LoadInt32(&b.maxActive)
			if n <= cur || atomic.CompareAndSwapInt32(&b.maxActive, cur, n) {
				break
			}
		}
		for _, s := range b.snaps {
			if err := emit(s); err != nil {
				return "", err
			}
		}
		if b.hold > 0 {
			select {
			case <-time.After(b.hold):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		if b.release != nil {
			select {
			case <-b.release:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		return "stop", nil
	}), nil
}

// stuckBackend returns sessions that emit one snapshot and then ignore
// Interrupt forever.
type stuckBackend struct{}

type stuckSession struct{ ch chan Snapshot }

func (stuckBackend) StartSession(ctx context.Context, prompt string, cfg SamplingConfig) (Session, error) {
	s := &stuckSession{ch: make(chan Snapshot, 1)}
	s.ch <- Snapshot{Text: "a"}
	return s, nil
}

func (s *stuckSession) Snapshots() <-chan Snapshot { return s.ch }
func (s *stuckSession) Interrupt()                 {}

// blockingStartBackend blocks inside StartSession. With honorCtx it returns
// ctx.Err() once the request context ends; otherwise it waits for release and
// then hands out a session that finishes immediately.
type blockingStartBackend struct {
	honorCtx bool
	release  chan struct{}
	entered  chan struct{}
	returned chan struct{}
}

func newBlockingStartBackend(honorCtx bool) *blockingStartBackend {
	return &blockingStartBackend{
		honorCtx: honorCtx,
		release:  make(chan struct{}),
		entered:  make(chan struct{}, 16),
		returned: make(chan struct{}, 16),
	}
}

func (b *blockingStartBackend) StartSession(ctx context.Context, prompt string, cfg SamplingConfig) (Session, error) {
	b.entered <- struct{}{}
	defer func() { b.returned <- struct{}{} }()
	if b.honorCtx {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.release:
		}
	} else {
		<-b.release
	}
	return NewSession(context.Background(), 1, func(ctx context.Context, emit func(string) error) (string, error) {
		return "stop", nil
	}), nil
}

func newTestScheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s
}

// collect reads a stream to its terminal fragment.
func collect(t *testing.T, st *Stream) ([]string, Fragment) {
	t.Helper()
	var deltas []string
	timeout := time.After(3 * time.Second)
	for {
		select {
		case f, ok := <-st.Fragments():
			if !ok {
				t.Fatalf("stream closed without terminal fragment")
			}
			if f.Final {
				return deltas, f
			}
			deltas = append(deltas, f.Delta)
		case <-timeout:
			t.Fatalf("timed out waiting for stream %s; got %q", st.ID(), deltas)
		}
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func statusOf(t *testing.T, s *Scheduler, id string) Status {
	t.Helper()
	info, err := s.Lookup(id)
	if err != nil {
		t.Fatalf("lookup %s: %v", id, err)
	}
	return info.Status
}

var errBoom = errors.New("boom")
