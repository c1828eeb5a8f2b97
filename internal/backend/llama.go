//go:build llama

package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
	"github.com/rs/zerolog"

	"streamgen/internal/engine"
	"streamgen/internal/registry"
)

// llamaBuilt indicates this binary was compiled with real llama support.
const llamaBuilt = true

// Llama runs go-llama.cpp in process. The model is loaded once in
// NewLlama. A llama context is single-threaded, so sessions take turns:
// waiting sessions leave as soon as their request ends.
type Llama struct {
	turn    turn
	model   *llama.LLama
	threads int
	buffer  int
	log     zerolog.Logger
}

var _ Backend = (*Llama)(nil)

// NewLlama resolves the weights file and loads it.
func NewLlama(cfg LlamaConfig, snapshotBuffer int, log zerolog.Logger) (Backend, error) {
	path := strings.TrimSpace(cfg.ModelPath)
	if path == "" {
		if strings.TrimSpace(cfg.ModelsDir) == "" {
			return nil, errors.New("llama: model_path or models_dir is required")
		}
		m, err := registry.Resolve(cfg.ModelsDir, cfg.ModelID)
		if err != nil {
			return nil, fmt.Errorf("llama: %w", err)
		}
		path = m.Path
	}
	ctxSize := cfg.ContextSize
	if ctxSize <= 0 {
		ctxSize = 2048
	}
	m, err := llama.New(path, llama.SetContext(ctxSize))
	if err != nil {
		return nil, fmt.Errorf("llama: load %s: %w", path, err)
	}
	log = log.With().Str("backend", NameLlama).Logger()
	log.Info().Str("model_path", path).Int("ctx_size", ctxSize).Msg("model loaded")
	return &Llama{turn: newTurn(), model: m, threads: max(1, cfg.Threads), buffer: snapshotBuffer, log: log}, nil
}

func (l *Llama) StartSession(ctx context.Context, prompt string, cfg engine.SamplingConfig) (engine.Session, error) {
	if l.model == nil {
		return nil, errors.New("llama model not initialized")
	}
	return engine.NewSession(ctx, l.buffer, func(ctx context.Context, emit func(string) error) (string, error) {
		if err := l.turn.acquire(ctx); err != nil {
			return "", err
		}
		defer l.turn.release()
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if l.model == nil {
			return "", errors.New("llama model closed")
		}
		var (
			text    strings.Builder
			emitErr error
			tokens  int
		)
		l.model.SetTokenCallback(func(tok string) bool {
			if ctx.Err() != nil {
				emitErr = ctx.Err()
				return false
			}
			tokens++
			if tok == "" {
				return true
			}
			text.WriteString(tok)
			if err := emit(text.String()); err != nil {
				emitErr = err
				return false
			}
			return true
		})
		_, err := l.model.Predict(prompt,
			llama.SetTokens(cfg.MaxTokens),
			llama.SetThreads(l.threads),
			llama.SetTopP(llama.DefaultOptions.TopP),
			llama.SetTopK(llama.DefaultOptions.TopK),
			llama.SetTemperature(llama.DefaultOptions.Temperature),
			llama.SetPenalty(llama.DefaultOptions.Penalty),
		)
		if emitErr != nil {
			return "", emitErr
		}
		if err != nil {
			return "", err
		}
		if tokens >= cfg.MaxTokens {
			return "length", nil
		}
		return "stop", nil
	}), nil
}

func (l *Llama) Close() error {
	_ = l.turn.acquire(context.Background())
	defer l.turn.release()
	if l.model != nil {
		l.model.Free()
		l.model = nil
	}
	return nil
}
