package engine

import (
	"errors"
	"time"
)

// drive runs one admitted request: it opens the backend session, relays its
// snapshots through a ResponseStreamer and reports the outcome. The slot is
// released before the terminal marker is sent, so a client that has seen its
// stream end can rely on the capacity being free again.
func (s *Scheduler) drive(run *runEntry) {
	req := run.req
	defer run.stop()
	log := s.log.With().Str("request_id", req.ID).Logger()
	st := NewResponseStreamer(req.ID, s.registry)

	out := s.runSession(run, st)
	out.OutputBytes = st.Cursor()
	deliveredBytesTotal.Add(float64(st.Cursor()))

	final := s.complete(req.ID, out)
	if err := st.Finish(final.Status, final.Err); err != nil {
		log.Debug().Err(err).Msg("terminal marker not delivered")
	}
	ev := log.Debug()
	if final.Status == StatusFailed {
		ev = log.Warn()
	}
	ev.Str("status", string(final.Status)).Str("reason", final.Reason).Int("output_bytes", out.OutputBytes).Msg("request finished")
}

func (s *Scheduler) runSession(run *runEntry, st *ResponseStreamer) Outcome {
	sess, failed := s.startSession(run)
	if failed != nil {
		return *failed
	}
	snapshots := sess.Snapshots()
	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return Outcome{Status: StatusFailed, Reason: "session ended without result", Err: errors.New("backend session closed without a final snapshot")}
			}
			if err := st.Push(snap.Text); err != nil {
				if IsStreamDetached(err) {
					s.interrupt(run, sess, "client detached")
					return Outcome{Status: StatusCancelled, Reason: "client detached"}
				}
				s.interrupt(run, sess, "invalid snapshot")
				return Outcome{Status: StatusFailed, Reason: "invalid snapshot", Err: err}
			}
			if snap.Err != nil {
				return Outcome{Status: StatusFailed, Reason: "backend error", Err: snap.Err}
			}
			if snap.Done {
				return Outcome{Status: StatusCompleted, Reason: snap.FinishReason}
			}
		case <-run.cancelCh:
			s.interrupt(run, sess, run.reason)
			return Outcome{Status: StatusCancelled, Reason: run.reason}
		}
	}
}

type startResult struct {
	sess Session
	err  error
}

// startSession opens the backend session while still honouring cancellation:
// run.ctx is cancelled with the request, and a backend that does not return
// from StartSession within InterruptTimeout after that loses the slot anyway.
func (s *Scheduler) startSession(run *runEntry) (Session, *Outcome) {
	req := run.req
	res := make(chan startResult, 1)
	go func() {
		sess, err := s.backend.StartSession(run.ctx, req.Prompt, req.Sampling)
		res <- startResult{sess: sess, err: err}
	}()

	select {
	case r := <-res:
		if r.err == nil {
			return r.sess, nil
		}
		select {
		case <-run.cancelCh:
			return nil, &Outcome{Status: StatusCancelled, Reason: run.reason}
		default:
		}
		return nil, &Outcome{Status: StatusFailed, Reason: "backend start failed", Err: backendStartError{err: r.err}}
	case <-run.cancelCh:
	}

	timer := time.NewTimer(s.cfg.InterruptTimeout)
	defer timer.Stop()
	select {
	case r := <-res:
		if r.sess != nil {
			s.interrupt(run, r.sess, run.reason)
		}
	case <-timer.C:
		s.interruptTimedOut(run, run.reason)
		go func() {
			r := <-res
			if r.sess == nil {
				return
			}
			r.sess.Interrupt()
			for range r.sess.Snapshots() {
			}
		}()
	}
	return nil, &Outcome{Status: StatusCancelled, Reason: run.reason}
}

// interrupt stops sess and waits for it to close its snapshot channel, at
// most InterruptTimeout. Past that the slot is reclaimed regardless and the
// channel is drained in the background so the backend never blocks on send.
func (s *Scheduler) interrupt(run *runEntry, sess Session, reason string) {
	sess.Interrupt()
	snapshots := sess.Snapshots()
	timer := time.NewTimer(s.cfg.InterruptTimeout)
	defer timer.Stop()
	for {
		select {
		case _, ok := <-snapshots:
			if !ok {
				return
			}
		case <-timer.C:
			s.interruptTimedOut(run, reason)
			go func() {
				for range snapshots {
				}
			}()
			return
		}
	}
}

func (s *Scheduler) interruptTimedOut(run *runEntry, reason string) {
	interruptTimeoutsTotal.Inc()
	s.log.Warn().Str("request_id", run.req.ID).Str("reason", reason).Dur("timeout", s.cfg.InterruptTimeout).Msg("backend did not acknowledge interrupt; reclaiming slot")
	// Published from the driver goroutine; publishers must be safe for concurrent use.
	s.cfg.Publisher.Publish(Event{Name: EventInterruptTimeout, RequestID: run.req.ID, Fields: map[string]any{"reason": reason}})
}
