package engine

import "sync"

// Fragment is one unit delivered to a consumer: a text delta, or the
// terminal marker (Final) carrying the request's final status.
type Fragment struct {
	Delta  string
	Final  bool
	Status Status
	Err    error
}

// Consumer receives the fragments of one request in order. Deliver may block
// for backpressure; it returns ErrStreamDetached once the client is gone.
type Consumer interface {
	Deliver(f Fragment) error
}

// Stream is the channel-backed Consumer handed to callers of Submit.
// Fragments arrive on Fragments(); the channel is closed after the terminal
// fragment.
type Stream struct {
	id       string
	ch       chan Fragment
	detached chan struct{}

	detachOnce sync.Once
	closeOnce  sync.Once
	onDetach   func()
}

func newStream(id string, buffer int, onDetach func()) *Stream {
	if buffer <= 0 {
		buffer = 1
	}
	return &Stream{id: id, ch: make(chan Fragment, buffer), detached: make(chan struct{}), onDetach: onDetach}
}

// ID returns the generation request id this stream belongs to.
func (s *Stream) ID() string { return s.id }

// Fragments returns the receive side of the stream.
func (s *Stream) Fragments() <-chan Fragment { return s.ch }

// Detach marks the client as gone and cancels the request. Safe to call
// more than once and after the stream has ended.
func (s *Stream) Detach() {
	s.detachOnce.Do(func() {
		close(s.detached)
		if s.onDetach != nil {
			s.onDetach()
		}
	})
}

// Detached is closed once Detach has been called.
func (s *Stream) Detached() <-chan struct{} { return s.detached }

// Deliver implements Consumer. Only one goroutine delivers to a stream at a
// time, and nothing is delivered after the terminal fragment.
func (s *Stream) Deliver(f Fragment) error {
	select {
	case <-s.detached:
		return ErrStreamDetached
	default:
	}
	select {
	case s.ch <- f:
		if f.Final {
			s.closeOnce.Do(func() { close(s.ch) })
		}
		return nil
	case <-s.detached:
		return ErrStreamDetached
	}
}
