package httpapi

import (
	"context"
	"errors"
	"sync"

	"streamgen/internal/engine"
	"streamgen/pkg/types"
)

type fakeGen struct {
	id       string
	ch       chan engine.Fragment
	detached chan struct{}
	once     sync.Once
}

func newFakeGen(id string, frags ...engine.Fragment) *fakeGen {
	g := &fakeGen{id: id, ch: make(chan engine.Fragment, len(frags)+1), detached: make(chan struct{})}
	for _, f := range frags {
		g.ch <- f
	}
	return g
}

func (g *fakeGen) ID() string                        { return g.id }
func (g *fakeGen) Fragments() <-chan engine.Fragment { return g.ch }
func (g *fakeGen) Detach()                           { g.once.Do(func() { close(g.detached) }) }

func deltas(ds ...string) []engine.Fragment {
	out := make([]engine.Fragment, 0, len(ds))
	for _, d := range ds {
		out = append(out, engine.Fragment{Delta: d})
	}
	return out
}

func final(status engine.Status, err error) engine.Fragment {
	return engine.Fragment{Final: true, Status: status, Err: err}
}

type mockService struct {
	mu        sync.Mutex
	gen       *fakeGen
	genErr    error
	prompt    string
	maxTokens int

	statuses  map[string]types.RequestStatus
	cancelled []string
	recent    []types.RequestStatus
	recentErr error
	status    types.StatusResponse
	card      types.ModelCard
	ready     bool
}

func (m *mockService) Generate(prompt string, maxTokens int) (Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompt, m.maxTokens = prompt, maxTokens
	if m.genErr != nil {
		return nil, m.genErr
	}
	if m.gen == nil {
		m.gen = newFakeGen("gen-1", append(deltas("ok"), final(engine.StatusCompleted, nil))...)
	}
	return m.gen, nil
}

func (m *mockService) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.statuses[id]
	if !ok {
		return engine.ErrNotFound(id)
	}
	m.cancelled = append(m.cancelled, id)
	st.Status = string(engine.StatusCancelled)
	m.statuses[id] = st
	return nil
}

func (m *mockService) Lookup(id string) (types.RequestStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.statuses[id]
	if !ok {
		return types.RequestStatus{}, engine.ErrNotFound(id)
	}
	return st, nil
}

func (m *mockService) Recent(ctx context.Context, limit int) ([]types.RequestStatus, error) {
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	if limit > 0 && limit < len(m.recent) {
		return m.recent[:limit], nil
	}
	return m.recent, nil
}

func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) ModelCard() types.ModelCard   { return m.card }
func (m *mockService) Ready() bool                  { return m.ready }

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

var errBackend = errors.New("backend error")
