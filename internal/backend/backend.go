// Package backend provides the inference backends the scheduler drives:
// a deterministic loopback generator, a streaming client for a running
// llama.cpp server, and an in-process go-llama.cpp runtime (build tag llama).
package backend

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"streamgen/internal/engine"
)

// Backend names accepted by New.
const (
	NameLoopback    = "loopback"
	NameLlamaServer = "llama-server"
	NameLlama       = "llama"
)

// Backend is an engine.Backend that may hold resources (a loaded model,
// idle HTTP connections) released by Close.
type Backend interface {
	engine.Backend
	Close() error
}

// LoopbackConfig configures the loopback generator.
type LoopbackConfig struct {
	// TokenDelay is the pause before each emitted word.
	TokenDelay time.Duration
}

// ServerConfig configures the llama-server backend.
type ServerConfig struct {
	URL            string
	APIKey         string
	ModelID        string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	// HeaderTimeout bounds the wait for response headers, which is the
	// whole of StartSession for a server that accepts but never answers.
	HeaderTimeout time.Duration
}

// LlamaConfig configures the in-process backend. ModelPath wins over
// ModelsDir + ModelID.
type LlamaConfig struct {
	ModelPath   string
	ModelsDir   string
	ModelID     string
	ContextSize int
	Threads     int
}

// Config selects and configures one backend.
type Config struct {
	Name string
	// SnapshotBuffer sizes each session's snapshot channel.
	SnapshotBuffer int
	Logger         *zerolog.Logger

	Loopback LoopbackConfig
	Server   ServerConfig
	Llama    LlamaConfig
}

// New builds the backend named by cfg.Name. An empty name selects loopback.
func New(cfg Config) (Backend, error) {
	if cfg.Logger == nil {
		l := zerolog.Nop()
		cfg.Logger = &l
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "", NameLoopback:
		return NewLoopback(cfg.Loopback, cfg.SnapshotBuffer), nil
	case NameLlamaServer:
		if strings.TrimSpace(cfg.Server.URL) == "" {
			return nil, fmt.Errorf("backend %s: url is required", NameLlamaServer)
		}
		return NewLlamaServer(cfg.Server, cfg.SnapshotBuffer, *cfg.Logger), nil
	case NameLlama:
		return NewLlama(cfg.Llama, cfg.SnapshotBuffer, *cfg.Logger)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Name)
	}
}

// dependencyUnavailableError signals a runtime that is not compiled in or
// cannot be reached, so callers can report it distinctly from bad input.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	_, ok := err.(dependencyUnavailableError)
	return ok
}
