package engine

import "strings"

// ResponseStreamer turns the cumulative snapshots of one request into deltas
// and forwards them through the registry. Snapshots must be pushed from a
// single goroutine in arrival order.
type ResponseStreamer struct {
	id     string
	reg    *StreamRegistry
	cursor int
	last   string
	ended  bool
}

// NewResponseStreamer returns a streamer for request id with its cursor at 0.
func NewResponseStreamer(id string, reg *StreamRegistry) *ResponseStreamer {
	return &ResponseStreamer{id: id, reg: reg}
}

// Cursor is the byte offset into the cumulative text already delivered.
func (s *ResponseStreamer) Cursor() int { return s.cursor }

// Delivered returns the text delivered so far.
func (s *ResponseStreamer) Delivered() string { return s.last[:s.cursor] }

// Push forwards snapshot[cursor:] and advances the cursor by its length.
// Snapshots that do not extend the delivered text are rejected, and empty
// deltas are not forwarded since an empty fragment marks end of stream.
func (s *ResponseStreamer) Push(snapshot string) error {
	if s.ended {
		return nil
	}
	if len(snapshot) < s.cursor || !strings.HasPrefix(snapshot, s.last[:s.cursor]) {
		return nonMonotonicError{cursor: s.cursor, got: len(snapshot)}
	}
	delta := snapshot[s.cursor:]
	if delta == "" {
		return nil
	}
	if err := s.reg.Dispatch(s.id, Fragment{Delta: delta}); err != nil {
		return err
	}
	s.cursor += len(delta)
	s.last = snapshot
	return nil
}

// Finish sends the terminal marker exactly once. A detached consumer is not
// an error here.
func (s *ResponseStreamer) Finish(status Status, cause error) error {
	if s.ended {
		return nil
	}
	s.ended = true
	err := s.reg.Dispatch(s.id, Fragment{Final: true, Status: status, Err: cause})
	if IsStreamDetached(err) {
		return nil
	}
	return err
}
