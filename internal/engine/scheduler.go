package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Scheduler admits generation requests into the backend within the
// concurrency budget and drives their streams to completion.
//
// The queue, the running set and the counters are owned by a single
// goroutine (loop). Exported methods hand closures to it and wait.
type Scheduler struct {
	cfg      Config
	backend  Backend
	registry *StreamRegistry
	history  *history
	log      zerolog.Logger

	ops      chan func()
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	// Owned by loop.
	queue   *RequestQueue
	running map[string]*runEntry
	timers  map[string]*time.Timer
	closed  bool
	stats   Stats
}

// runEntry is the scheduler-side handle of an admitted request.
type runEntry struct {
	req      *GenerationRequest
	cancelCh chan struct{}
	once     sync.Once
	reason   string

	// ctx is handed to the backend and ends with the request.
	ctx  context.Context
	stop context.CancelFunc
}

// signal asks the driver to interrupt the session. reason is written before
// the channel is closed and read only after.
func (r *runEntry) signal(reason string) {
	r.once.Do(func() {
		r.reason = reason
		close(r.cancelCh)
		r.stop()
	})
}

// New constructs a Scheduler and starts its goroutine. cfg.Backend is required.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Backend == nil {
		return nil, errors.New("engine: backend is required")
	}
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:        cfg,
		backend:    cfg.Backend,
		history:    newHistory(cfg.HistoryTTL),
		log:        cfg.Logger.With().Str("component", "scheduler").Logger(),
		ops:        make(chan func()),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		baseCtx:    ctx,
		baseCancel: cancel,
		queue:      NewRequestQueue(cfg.MaxQueueDepth),
		running:    make(map[string]*runEntry),
		timers:     make(map[string]*time.Timer),
	}
	s.stats.MaxConcurrent = cfg.MaxConcurrent
	s.stats.MaxQueueDepth = s.queue.Cap()
	s.registry = NewStreamRegistry(func(id string) { _ = s.cancel(id, "client detached") })
	go s.loop()
	return s, nil
}

func (s *Scheduler) loop() {
	defer close(s.done)
	for {
		select {
		case op := <-s.ops:
			op()
		case <-s.quit:
			return
		}
	}
}

// do runs fn on the scheduler goroutine and waits for it to return.
func (s *Scheduler) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case s.ops <- func() { fn(); close(finished) }:
	case <-s.done:
		return ErrShuttingDown
	}
	<-finished
	return nil
}

// Registry exposes the stream registry, mainly for tests and diagnostics.
func (s *Scheduler) Registry() *StreamRegistry { return s.registry }

// Submit validates and enqueues a request and returns the stream its output
// will be delivered on. It never waits for admission: the result is an
// immediate accept or a ValidationError / CapacityExceeded rejection.
func (s *Scheduler) Submit(prompt string, sampling SamplingConfig) (*Stream, error) {
	if err := validate(prompt, sampling); err != nil {
		rejectionsTotal.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}
	req := &GenerationRequest{
		ID:          newRequestID(),
		Prompt:      prompt,
		Sampling:    sampling,
		SubmittedAt: time.Now(),
		Status:      StatusQueued,
	}
	st := newStream(req.ID, s.cfg.StreamBuffer, func() { _ = s.cancel(req.ID, "client detached") })
	// Register before the request becomes visible to admission so no delta
	// can be dispatched without a consumer.
	if err := s.registry.Register(req.ID, st); err != nil {
		return nil, err
	}
	var err error
	if opErr := s.do(func() { err = s.enqueueLocked(req) }); opErr != nil {
		err = opErr
	}
	if err != nil {
		s.registry.Unregister(req.ID)
		rejectionsTotal.WithLabelValues(rejectReason(err)).Inc()
		s.log.Debug().Str("request_id", req.ID).Err(err).Msg("submission rejected")
		return nil, err
	}
	return st, nil
}

func validate(prompt string, sampling SamplingConfig) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrValidation("prompt", "is required")
	}
	return sampling.Validate()
}

func (s *Scheduler) enqueueLocked(req *GenerationRequest) error {
	if s.closed {
		return ErrShuttingDown
	}
	if err := s.queue.Enqueue(req); err != nil {
		s.stats.Rejected++
		return err
	}
	s.stats.Submitted++
	id := req.ID
	s.timers[id] = time.AfterFunc(s.cfg.RequestTimeout, func() { _ = s.cancel(id, "timeout") })
	s.cfg.Publisher.Publish(Event{Name: EventQueued, RequestID: id, Fields: map[string]any{"max_tokens": req.Sampling.MaxTokens}})
	s.backfill()
	return nil
}

// backfill admits queued requests while slots are free. It runs in the same
// scheduler turn that freed a slot, so released capacity is never observed
// idle while work is queued.
func (s *Scheduler) backfill() {
	for s.admit() != nil {
	}
	queueDepthGauge.Set(float64(s.queue.Len()))
	runningGauge.Set(float64(len(s.running)))
}

// admit moves the oldest queued request into a backend slot and starts its
// driver. It returns nil when no slot is free or nothing is queued.
func (s *Scheduler) admit() *GenerationRequest {
	if s.closed || len(s.running) >= s.cfg.MaxConcurrent {
		return nil
	}
	req := s.queue.DequeueNext()
	if req == nil {
		return nil
	}
	req.Status = StatusRunning
	req.admittedAt = time.Now()
	ctx, stop := context.WithCancel(s.baseCtx)
	run := &runEntry{req: req, cancelCh: make(chan struct{}), ctx: ctx, stop: stop}
	s.running[req.ID] = run
	queueWaitSeconds.Observe(req.admittedAt.Sub(req.SubmittedAt).Seconds())
	s.cfg.Publisher.Publish(Event{Name: EventAdmitted, RequestID: req.ID, Fields: map[string]any{"running": len(s.running)}})
	s.log.Debug().Str("request_id", req.ID).Int("running", len(s.running)).Msg("admitted")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.drive(run)
	}()
	return req
}

// Cancel stops a queued or running request. Cancelling a request that has
// already finished is a no-op; unknown ids return a NotFound error.
func (s *Scheduler) Cancel(id string) error { return s.cancel(id, "cancelled by client") }

func (s *Scheduler) cancel(id, reason string) error {
	var err error
	opErr := s.do(func() {
		if req, ok := s.queue.Remove(id); ok {
			s.finalizeLocked(req, Outcome{Status: StatusCancelled, Reason: reason})
			queueDepthGauge.Set(float64(s.queue.Len()))
			// No driver exists for a queued request; end its stream here.
			go func() { _ = s.registry.Dispatch(id, Fragment{Final: true, Status: StatusCancelled}) }()
			return
		}
		if run, ok := s.running[id]; ok {
			if run.req.Status == StatusRunning {
				run.req.Status = StatusCancelled
				run.req.reason = reason
				run.signal(reason)
				s.log.Debug().Str("request_id", id).Str("reason", reason).Msg("cancel requested")
			}
			return
		}
		if _, ok := s.history.get(id); !ok {
			err = ErrNotFound(id)
		}
	})
	if opErr != nil {
		if _, ok := s.history.get(id); ok {
			return nil
		}
		return opErr
	}
	return err
}

// complete is called by a request's driver when its session has ended. It
// releases the slot exactly once, backfills from the queue and returns the
// outcome that was recorded. A cancel that raced an unfinished session wins;
// a generation already delivered in full stays completed.
func (s *Scheduler) complete(id string, out Outcome) Outcome {
	final := out
	_ = s.do(func() {
		run, ok := s.running[id]
		if !ok {
			return
		}
		delete(s.running, id)
		if run.req.Status == StatusCancelled && out.Status != StatusCompleted {
			final.Status = StatusCancelled
			final.Reason = run.req.reason
			final.Err = nil
		}
		s.finalizeLocked(run.req, final)
		s.backfill()
	})
	return final
}

// finalizeLocked moves req to its terminal status and out of the scheduler.
func (s *Scheduler) finalizeLocked(req *GenerationRequest, out Outcome) {
	req.Status = out.Status
	req.reason = out.Reason
	req.outputLen = out.OutputBytes
	req.finishedAt = time.Now()
	if t := s.timers[req.ID]; t != nil {
		t.Stop()
		delete(s.timers, req.ID)
	}
	switch out.Status {
	case StatusCompleted:
		s.stats.Completed++
	case StatusCancelled:
		s.stats.Cancelled++
	default:
		s.stats.Failed++
	}
	requestsTotal.WithLabelValues(string(out.Status)).Inc()

	info := req.info()
	s.history.put(info)
	fields := map[string]any{"output_bytes": out.OutputBytes}
	if out.Reason != "" {
		fields["reason"] = out.Reason
	}
	s.cfg.Publisher.Publish(Event{Name: terminalEventName(out.Status), RequestID: req.ID, Fields: fields})

	if s.cfg.Recorder != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), defaultRecordTimeout)
			defer cancel()
			if err := s.cfg.Recorder.Record(ctx, info); err != nil {
				s.log.Warn().Str("request_id", info.ID).Err(err).Msg("journal record failed")
			}
		}()
	}
}

// Lookup returns the current view of an active or recently finished request.
func (s *Scheduler) Lookup(id string) (RequestInfo, error) {
	var (
		info  RequestInfo
		found bool
	)
	_ = s.do(func() {
		if req, ok := s.queue.Get(id); ok {
			info, found = req.info(), true
			return
		}
		if run, ok := s.running[id]; ok {
			info, found = run.req.info(), true
		}
	})
	if found {
		return info, nil
	}
	if info, ok := s.history.get(id); ok {
		return info, nil
	}
	return RequestInfo{}, ErrNotFound(id)
}

// Stats returns a consistent snapshot of queue and slot usage.
func (s *Scheduler) Stats() Stats {
	var st Stats
	if err := s.do(func() {
		st = s.stats
		st.QueueDepth = s.queue.Len()
		st.Running = len(s.running)
		st.Closed = s.closed
	}); err != nil {
		st = Stats{MaxConcurrent: s.cfg.MaxConcurrent, MaxQueueDepth: s.cfg.MaxQueueDepth, Closed: true}
	}
	return st
}

// Ready reports whether new submissions are accepted.
func (s *Scheduler) Ready() bool { return !s.Stats().Closed }

// Close stops accepting work, cancels queued and running requests and waits
// for their drivers until ctx expires. The scheduler goroutine is stopped
// afterwards either way.
func (s *Scheduler) Close(ctx context.Context) error {
	_ = s.do(func() {
		if s.closed {
			return
		}
		s.closed = true
		for _, req := range s.queue.Drain() {
			id := req.ID
			s.finalizeLocked(req, Outcome{Status: StatusCancelled, Reason: "shutdown"})
			go func() { _ = s.registry.Dispatch(id, Fragment{Final: true, Status: StatusCancelled}) }()
		}
		for _, run := range s.running {
			if run.req.Status == StatusRunning {
				run.req.Status = StatusCancelled
				run.req.reason = "shutdown"
				run.signal("shutdown")
			}
		}
		queueDepthGauge.Set(0)
	})

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()
	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = ctx.Err()
		s.log.Warn().Err(err).Msg("close: drivers still running")
	}
	s.baseCancel()
	s.stopOnce.Do(func() { close(s.quit) })
	<-s.done
	s.history.close()
	return err
}

// newRequestID returns a random 32-char hex id.
func newRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
