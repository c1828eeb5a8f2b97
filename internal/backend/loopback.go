package backend

import (
	"context"
	"strings"
	"time"

	"streamgen/internal/engine"
)

// Loopback echoes the prompt back word by word. It exists for demos and
// for exercising the streaming pipeline without a model.
type Loopback struct {
	delay  time.Duration
	buffer int
}

var _ Backend = (*Loopback)(nil)

// NewLoopback creates a Loopback backend.
func NewLoopback(cfg LoopbackConfig, snapshotBuffer int) *Loopback {
	return &Loopback{delay: cfg.TokenDelay, buffer: snapshotBuffer}
}

// Reply returns the full text Loopback generates for prompt, one word per
// token, truncated to maxTokens words.
func Reply(prompt string, maxTokens int) (text string, finishReason string) {
	words := append([]string{"[loopback]"}, strings.Fields(prompt)...)
	finishReason = "stop"
	if maxTokens > 0 && len(words) > maxTokens {
		words = words[:maxTokens]
		finishReason = "length"
	}
	return strings.Join(words, " "), finishReason
}

func (l *Loopback) StartSession(ctx context.Context, prompt string, cfg engine.SamplingConfig) (engine.Session, error) {
	full, reason := Reply(prompt, cfg.MaxTokens)
	words := strings.Split(full, " ")
	return engine.NewSession(ctx, l.buffer, func(ctx context.Context, emit func(string) error) (string, error) {
		var b strings.Builder
		for i, w := range words {
			if l.delay > 0 {
				t := time.NewTimer(l.delay)
				select {
				case <-t.C:
				case <-ctx.Done():
					t.Stop()
					return "", ctx.Err()
				}
			}
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(w)
			if err := emit(b.String()); err != nil {
				return "", err
			}
		}
		return reason, nil
	}), nil
}

func (l *Loopback) Close() error { return nil }
