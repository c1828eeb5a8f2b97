package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"streamgen/internal/backend"
	"streamgen/internal/config"
	"streamgen/internal/engine"
	"streamgen/internal/httpapi"
	"streamgen/internal/journal"
	"streamgen/internal/pubsub"
	"streamgen/internal/service"
	"streamgen/pkg/types"
)

// app owns every long-lived component of a running server.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	handler http.Handler

	baseCancel context.CancelFunc
	sched      *engine.Scheduler
	backend    backend.Backend
	journal    *journal.Store
	redis      *pubsub.RedisPublisher
}

func runServe(cmd *cobra.Command, opts *options) error {
	cfg, err := resolveConfig(cmd.Flags(), opts)
	if err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: generations stream for as long as request_timeout allows.
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("backend", cfg.Backend).
			Int("max_concurrent", cfg.MaxConcurrent).Int("max_queue_depth", cfg.MaxQueueDepth).
			Msg("streamgen listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	case serveErr = <-errCh:
		if serveErr != nil {
			log.Error().Err(serveErr).Msg("server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Std())
	defer cancel()
	// Ends in-flight streams so Shutdown is not held open by them.
	a.baseCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	a.close(shutdownCtx)
	return serveErr
}

// newApp builds the backend, the optional journal and event publishers, the
// scheduler and the HTTP handler.
func newApp(ctx context.Context, cfg config.Config, log zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	be, err := backend.New(backend.Config{
		Name:           cfg.Backend,
		SnapshotBuffer: cfg.SnapshotBuffer,
		Logger:         &log,
		Loopback:       backend.LoopbackConfig{TokenDelay: cfg.Loopback.TokenDelay.Std()},
		Server: backend.ServerConfig{
			URL:            cfg.LlamaServer.URL,
			APIKey:         cfg.LlamaServer.APIKey,
			ModelID:        cfg.LlamaServer.ModelID,
			RequestTimeout: cfg.LlamaServer.RequestTimeout.Std(),
			ConnectTimeout: cfg.LlamaServer.ConnectTimeout.Std(),
			HeaderTimeout:  cfg.LlamaServer.HeaderTimeout.Std(),
		},
		Llama: backend.LlamaConfig{
			ModelPath:   cfg.Llama.ModelPath,
			ModelsDir:   cfg.Llama.ModelsDir,
			ModelID:     cfg.Llama.ModelID,
			ContextSize: cfg.Llama.ContextSize,
			Threads:     cfg.Llama.Threads,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", cfg.Backend, err)
	}
	a.backend = be

	publishers := pubsub.Multi{pubsub.LogPublisher{Log: log}}
	if cfg.Redis.Addr != "" {
		a.redis = pubsub.NewRedisPublisher(pubsub.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		}, log)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := a.redis.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable at startup")
		}
		cancel()
		publishers = append(publishers, a.redis)
	}

	var (
		rec engine.Recorder
		jrn service.Journal
	)
	if cfg.JournalPath != "" {
		store, err := journal.Open(cfg.JournalPath)
		if err != nil {
			a.closeDeps()
			return nil, fmt.Errorf("journal: %w", err)
		}
		a.journal = store
		rec, jrn = store, store
	}

	sched, err := engine.New(engine.Config{
		Backend:          be,
		MaxConcurrent:    cfg.MaxConcurrent,
		MaxQueueDepth:    cfg.MaxQueueDepth,
		RequestTimeout:   cfg.RequestTimeout.Std(),
		InterruptTimeout: cfg.InterruptTimeout.Std(),
		StreamBuffer:     cfg.StreamBuffer,
		HistoryTTL:       cfg.HistoryTTL.Std(),
		Logger:           &log,
		Publisher:        publishers,
		Recorder:         rec,
	})
	if err != nil {
		a.closeDeps()
		return nil, err
	}
	a.sched = sched

	card := types.ModelCard{
		ModelID:     cfg.ModelCard.ModelID,
		Description: cfg.ModelCard.Description,
		License:     cfg.ModelCard.License,
		Author:      cfg.ModelCard.Author,
	}
	svc := service.New(sched, card, cfg.Backend, jrn)

	baseCtx, baseCancel := context.WithCancel(ctx)
	a.baseCancel = baseCancel
	httpapi.SetLogger(log)
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.Origins, nil, nil)
	a.handler = httpapi.NewMux(svc)
	return a, nil
}

// close stops the scheduler first so terminal records reach the journal
// before it is closed.
func (a *app) close(ctx context.Context) {
	if a.baseCancel != nil {
		a.baseCancel()
	}
	if a.sched != nil {
		if err := a.sched.Close(ctx); err != nil {
			a.log.Warn().Err(err).Msg("scheduler close")
		}
	}
	a.closeDeps()
}

func (a *app) closeDeps() {
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.log.Warn().Err(err).Msg("backend close")
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.Warn().Err(err).Msg("journal close")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("redis close")
		}
	}
}
