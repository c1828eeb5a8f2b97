// Package service adapts the scheduler, the request journal and the model
// card into the surface the HTTP layer serves.
package service

import (
	"context"
	"net/http"
	"time"

	"streamgen/internal/engine"
	"streamgen/internal/httpapi"
	"streamgen/pkg/types"
)

// Journal lists recently finished requests.
type Journal interface {
	Recent(ctx context.Context, limit int) ([]engine.RequestInfo, error)
}

// Service implements httpapi.Service on top of an engine.Scheduler.
type Service struct {
	sched   *engine.Scheduler
	journal Journal
	card    types.ModelCard
	backend string
	started time.Time
}

var _ httpapi.Service = (*Service)(nil)

// New wires a Service. journal may be nil when persistence is disabled.
func New(sched *engine.Scheduler, card types.ModelCard, backendName string, journal Journal) *Service {
	return &Service{sched: sched, journal: journal, card: card, backend: backendName, started: time.Now()}
}

func (s *Service) Generate(prompt string, maxTokens int) (httpapi.Generation, error) {
	st, err := s.sched.Submit(prompt, engine.SamplingConfig{MaxTokens: maxTokens})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) Cancel(id string) error { return s.sched.Cancel(id) }

func (s *Service) Lookup(id string) (types.RequestStatus, error) {
	info, err := s.sched.Lookup(id)
	if err != nil {
		return types.RequestStatus{}, err
	}
	return ToRequestStatus(info), nil
}

// journalDisabledError is returned by Recent when no journal is configured.
type journalDisabledError struct{}

func (journalDisabledError) Error() string   { return "request journal disabled" }
func (journalDisabledError) StatusCode() int { return http.StatusNotFound }

func (s *Service) Recent(ctx context.Context, limit int) ([]types.RequestStatus, error) {
	if s.journal == nil {
		return nil, journalDisabledError{}
	}
	infos, err := s.journal.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]types.RequestStatus, 0, len(infos))
	for _, info := range infos {
		out = append(out, ToRequestStatus(info))
	}
	return out, nil
}

func (s *Service) Status() types.StatusResponse {
	st := s.sched.Stats()
	state := "ready"
	if st.Closed {
		state = "draining"
	}
	now := time.Now()
	return types.StatusResponse{
		QueueDepth:     st.QueueDepth,
		MaxQueueDepth:  st.MaxQueueDepth,
		Running:        st.Running,
		MaxConcurrent:  st.MaxConcurrent,
		Submitted:      st.Submitted,
		Rejected:       st.Rejected,
		Completed:      st.Completed,
		Cancelled:      st.Cancelled,
		Failed:         st.Failed,
		State:          state,
		Backend:        s.backend,
		UptimeSeconds:  int64(now.Sub(s.started).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
}

func (s *Service) ModelCard() types.ModelCard { return s.card }

func (s *Service) Ready() bool { return s.sched.Ready() }

// ToRequestStatus converts the engine view of a request to its wire form.
func ToRequestStatus(info engine.RequestInfo) types.RequestStatus {
	rs := types.RequestStatus{
		ID:          info.ID,
		Status:      string(info.Status),
		MaxTokens:   info.MaxTokens,
		PromptBytes: info.PromptBytes,
		OutputBytes: info.OutputBytes,
		Reason:      info.Reason,
		SubmittedAt: info.SubmittedAt,
		QueueWaitMS: info.QueueWait.Milliseconds(),
	}
	if !info.AdmittedAt.IsZero() {
		t := info.AdmittedAt
		rs.AdmittedAt = &t
	}
	if !info.FinishedAt.IsZero() {
		t := info.FinishedAt
		rs.FinishedAt = &t
	}
	return rs
}
