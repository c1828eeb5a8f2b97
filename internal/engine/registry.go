package engine

import "sync"

// StreamRegistry maps in-flight request ids to their single consumer.
type StreamRegistry struct {
	mu       sync.Mutex
	streams  map[string]Consumer
	onDetach func(id string)
}

// NewStreamRegistry returns an empty registry. onDetach is invoked once for a
// request whose consumer is found detached during Dispatch.
func NewStreamRegistry(onDetach func(id string)) *StreamRegistry {
	return &StreamRegistry{streams: make(map[string]Consumer), onDetach: onDetach}
}

// Register associates c with id. A second registration for an id that is
// still registered fails and leaves the existing consumer untouched.
func (r *StreamRegistry) Register(id string, c Consumer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.streams[id]; ok {
		return duplicateStreamError{id: id}
	}
	r.streams[id] = c
	return nil
}

// Dispatch delivers f to the consumer registered for id. When no consumer is
// registered, or the consumer has detached, it is a no-op that returns
// ErrStreamDetached. A terminal fragment unregisters the consumer.
func (r *StreamRegistry) Dispatch(id string, f Fragment) error {
	r.mu.Lock()
	c, ok := r.streams[id]
	r.mu.Unlock()
	if !ok {
		return ErrStreamDetached
	}
	// Delivery may block on a slow client; never hold the lock across it.
	err := c.Deliver(f)
	if err != nil {
		if IsStreamDetached(err) && r.unregisterIf(id, c) && r.onDetach != nil {
			r.onDetach(id)
		}
		return err
	}
	if f.Final {
		r.unregisterIf(id, c)
	}
	return nil
}

// Unregister drops the consumer for id, if any.
func (r *StreamRegistry) Unregister(id string) {
	r.mu.Lock()
	delete(r.streams, id)
	r.mu.Unlock()
}

// unregisterIf removes id only while it still maps to c.
func (r *StreamRegistry) unregisterIf(id string, c Consumer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.streams[id]; ok && cur == c {
		delete(r.streams, id)
		return true
	}
	return false
}

// Len returns the number of registered consumers.
func (r *StreamRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}
