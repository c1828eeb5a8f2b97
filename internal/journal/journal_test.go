package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"streamgen/internal/engine"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestRecordAndRecent(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Minute)
	entries := []engine.RequestInfo{
		{ID: "a", Status: engine.StatusCompleted, MaxTokens: 128, PromptBytes: 5, OutputBytes: 9, SubmittedAt: base, AdmittedAt: base.Add(time.Second), FinishedAt: base.Add(2 * time.Second)},
		{ID: "b", Status: engine.StatusCancelled, MaxTokens: 512, Reason: "cancelled by client", SubmittedAt: base, FinishedAt: base.Add(3 * time.Second)},
		{ID: "c", Status: engine.StatusFailed, MaxTokens: 256, Reason: "backend start failed", SubmittedAt: base, AdmittedAt: base, FinishedAt: base.Add(4 * time.Second)},
	}
	for _, e := range entries {
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("record %s: %v", e.ID, err)
		}
	}
	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[1].Reason != "cancelled by client" || !got[1].AdmittedAt.IsZero() || got[1].QueueWait != 0 {
		t.Fatalf("unexpected queued-cancel row %+v", got[1])
	}

	all, err := s.Recent(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("recent all: %d %v", len(all), err)
	}
	a := all[2]
	if a.Status != engine.StatusCompleted || a.OutputBytes != 9 || a.QueueWait != time.Second || !a.SubmittedAt.Equal(base) {
		t.Fatalf("unexpected row %+v", a)
	}
}

func TestRecordRejectsInvalid(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	if err := s.Record(ctx, engine.RequestInfo{Status: engine.StatusCompleted}); err == nil {
		t.Fatalf("expected error for missing id")
	}
	if err := s.Record(ctx, engine.RequestInfo{ID: "x", Status: engine.StatusRunning}); err == nil {
		t.Fatalf("expected error for non-terminal status")
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	s, path := openTemp(t)
	if err := s.Record(context.Background(), engine.RequestInfo{ID: "keep", Status: engine.StatusCompleted, MaxTokens: 128}); err != nil {
		t.Fatalf("record: %v", err)
	}
	_ = s.Close()
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, err := s2.Recent(context.Background(), 10)
	if err != nil || len(got) != 1 || got[0].ID != "keep" {
		t.Fatalf("unexpected after reopen: %+v %v", got, err)
	}
}

func TestSchedulerRecordsIntoJournal(t *testing.T) {
	s, _ := openTemp(t)
	sched, err := engine.New(engine.Config{Backend: echoBackend{}, Recorder: s})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	st, err := sched.Submit("hello", engine.SamplingConfig{MaxTokens: 128})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	for f := range st.Fragments() {
		if f.Final {
			break
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// Close waits for pending journal writes.
	if err := sched.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	got, err := s.Recent(context.Background(), 10)
	if err != nil || len(got) != 1 || got[0].ID != st.ID() || got[0].OutputBytes != len("hello") {
		t.Fatalf("unexpected journal: %+v %v", got, err)
	}
}

type echoBackend struct{}

func (echoBackend) StartSession(ctx context.Context, prompt string, cfg engine.SamplingConfig) (engine.Session, error) {
	return engine.NewSession(ctx, 1, func(ctx context.Context, emit func(string) error) (string, error) {
		return "stop", emit(prompt)
	}), nil
}
