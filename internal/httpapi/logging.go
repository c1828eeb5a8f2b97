package httpapi

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is the structured logger used by the HTTP layer.
var zlog = zerolog.New(os.Stderr).With().Timestamp().Logger()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// global default, read once
var defaultLogLevel = parseLevel(os.Getenv("STREAMGEN_HTTP_LOG"))

func requestLogLevel(r *http.Request) LogLevel {
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// requestLog carries the per-request level and the fields every line shares.
type requestLog struct {
	lvl   LogLevel
	log   zerolog.Logger
	start time.Time
}

func newRequestLog(r *http.Request) *requestLog {
	ctx := zlog.With().Str("path", r.URL.Path)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		ctx = ctx.Str("http_request_id", rid)
	}
	return &requestLog{lvl: requestLogLevel(r), log: ctx.Logger(), start: time.Now()}
}

func (l *requestLog) with(key, val string) {
	l.log = l.log.With().Str(key, val).Logger()
}

func (l *requestLog) started(maxTokens, promptBytes int) {
	if l.lvl >= LevelInfo {
		l.log.Info().Int("max_tokens", maxTokens).Int("prompt_bytes", promptBytes).Msg("generate start")
	}
}

func (l *requestLog) delta(d string) {
	if l.lvl >= LevelDebug {
		l.log.Debug().Str("delta", d).Msg("generate>")
	}
}

// finished logs the end of a request: always at error level for failures
// when any logging is enabled, at info level otherwise.
func (l *requestLog) finished(httpStatus int, genStatus string, err error) {
	failed := err != nil || httpStatus >= 500 || genStatus == "failed"
	if l.lvl < LevelInfo && !(failed && l.lvl >= LevelError) {
		return
	}
	ev := l.log.Info()
	if failed {
		ev = l.log.Error()
	}
	if genStatus != "" {
		ev = ev.Str("generation_status", genStatus)
	}
	ev.Int("status", httpStatus).Dur("dur", time.Since(l.start)).Err(err).Msg("generate end")
}
