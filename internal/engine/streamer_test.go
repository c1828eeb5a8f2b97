package engine

import (
	"math/rand"
	"strings"
	"testing"
)

func newTestStreamer(t *testing.T) (*ResponseStreamer, *recordingConsumer) {
	t.Helper()
	reg := NewStreamRegistry(nil)
	c := &recordingConsumer{}
	if err := reg.Register("r1", c); err != nil {
		t.Fatalf("register: %v", err)
	}
	return NewResponseStreamer("r1", reg), c
}

func TestStreamer_DeltasFromSnapshots(t *testing.T) {
	s, c := newTestStreamer(t)
	for _, snap := range []string{"Hi", "Hi there", "Hi there!"} {
		if err := s.Push(snap); err != nil {
			t.Fatalf("push %q: %v", snap, err)
		}
	}
	if err := s.Finish(StatusCompleted, nil); err != nil {
		t.Fatalf("finish: %v", err)
	}
	want := []string{"Hi", " there", "!"}
	if len(c.got) != len(want)+1 {
		t.Fatalf("got %d fragments: %+v", len(c.got), c.got)
	}
	for i, w := range want {
		if c.got[i].Delta != w || c.got[i].Final {
			t.Fatalf("fragment %d = %+v, want delta %q", i, c.got[i], w)
		}
	}
	end := c.got[len(c.got)-1]
	if !end.Final || end.Delta != "" || end.Status != StatusCompleted {
		t.Fatalf("unexpected terminal fragment: %+v", end)
	}
}

func TestStreamer_ConcatenationEqualsFinal(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	final := strings.Repeat("héllo wörld ✓ ", 40)
	for trial := 0; trial < 50; trial++ {
		s, c := newTestStreamer(t)
		// Random prefix cut points, including repeats (zero growth).
		cut := 0
		for cut < len(final) {
			cut += rng.Intn(12)
			if cut > len(final) {
				cut = len(final)
			}
			if err := s.Push(final[:cut]); err != nil {
				t.Fatalf("push: %v", err)
			}
		}
		_ = s.Finish(StatusCompleted, nil)
		var b strings.Builder
		for _, f := range c.got {
			if !f.Final && f.Delta == "" {
				t.Fatalf("empty delta forwarded")
			}
			b.WriteString(f.Delta)
		}
		if b.String() != final {
			t.Fatalf("trial %d: concatenated deltas differ from final snapshot", trial)
		}
		if s.Cursor() != len(final) {
			t.Fatalf("cursor=%d want %d", s.Cursor(), len(final))
		}
	}
}

func TestStreamer_RejectsNonExtendingSnapshot(t *testing.T) {
	s, c := newTestStreamer(t)
	_ = s.Push("abc")
	if err := s.Push("abX1"); err == nil {
		t.Fatalf("expected error for rewritten prefix")
	}
	if err := s.Push("ab"); err == nil {
		t.Fatalf("expected error for shrinking snapshot")
	}
	if s.Cursor() != 3 || len(c.got) != 1 {
		t.Fatalf("cursor must not move on rejected snapshots: cursor=%d fragments=%d", s.Cursor(), len(c.got))
	}
}

func TestStreamer_FinishOnce(t *testing.T) {
	s, c := newTestStreamer(t)
	_ = s.Finish(StatusFailed, errBoom)
	_ = s.Finish(StatusCompleted, nil)
	if err := s.Push("late"); err != nil {
		t.Fatalf("push after finish should be ignored: %v", err)
	}
	if len(c.got) != 1 || c.got[0].Status != StatusFailed || c.got[0].Err != errBoom {
		t.Fatalf("expected exactly one failed terminal fragment, got %+v", c.got)
	}
}

func TestStreamer_DetachedPushDoesNotAdvance(t *testing.T) {
	s, c := newTestStreamer(t)
	c.detached = true
	if err := s.Push("abc"); !IsStreamDetached(err) {
		t.Fatalf("expected detached, got %v", err)
	}
	if s.Cursor() != 0 {
		t.Fatalf("cursor advanced without delivery")
	}
	if err := s.Finish(StatusCancelled, nil); err != nil {
		t.Fatalf("finish on detached stream should not error: %v", err)
	}
}
