package engine

import "context"

// Backend is the inference engine the scheduler drives. It owns the model
// forward pass, tokenization and sampling; the scheduler only sees text.
type Backend interface {
	// StartSession begins generating for prompt. The returned session must
	// stop and close its snapshot channel when ctx is canceled.
	StartSession(ctx context.Context, prompt string, cfg SamplingConfig) (Session, error)
}

// Session is one in-flight generation.
type Session interface {
	// Snapshots yields cumulative text, each value extending the previous
	// one, and ends with a snapshot that has Done or Err set. The channel
	// is closed afterwards, or early after Interrupt.
	Snapshots() <-chan Snapshot
	// Interrupt asks the backend to stop generating and release resources.
	// It must not block.
	Interrupt()
}

// Snapshot is the full text generated so far for one session.
type Snapshot struct {
	Text         string
	Done         bool
	FinishReason string
	Err          error
}

// GenerateFunc produces text for one session. It calls emit with the full
// text generated so far each time it grows and returns the finish reason.
// emit fails once the session is interrupted.
type GenerateFunc func(ctx context.Context, emit func(cumulative string) error) (finishReason string, err error)

// NewSession runs gen on its own goroutine and exposes it as a Session whose
// snapshot channel holds at most buffer pending values.
func NewSession(parent context.Context, buffer int, gen GenerateFunc) Session {
	if buffer <= 0 {
		buffer = defaultSnapshotBuffer
	}
	ctx, cancel := context.WithCancel(parent)
	s := &funcSession{ch: make(chan Snapshot, buffer), cancel: cancel}
	go s.run(ctx, gen)
	return s
}

type funcSession struct {
	ch     chan Snapshot
	cancel context.CancelFunc
}

func (s *funcSession) Snapshots() <-chan Snapshot { return s.ch }
func (s *funcSession) Interrupt()                 { s.cancel() }

func (s *funcSession) run(ctx context.Context, gen GenerateFunc) {
	defer close(s.ch)
	defer s.cancel()
	var last string
	emit := func(text string) error {
		select {
		case s.ch <- Snapshot{Text: text}:
			last = text
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	reason, err := gen(ctx, emit)
	if ctx.Err() != nil {
		return
	}
	final := Snapshot{Text: last, Done: true, FinishReason: reason}
	if err != nil {
		final = Snapshot{Text: last, Err: err}
	}
	select {
	case s.ch <- final:
	case <-ctx.Done():
	}
}
