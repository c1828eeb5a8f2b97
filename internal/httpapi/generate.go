package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"streamgen/internal/engine"
	"streamgen/pkg/types"
)

// Defaults applied to omitted /generate fields.
const (
	DefaultPrompt    = "Explain superconductors like I'm five years old"
	DefaultMaxTokens = engine.MaxMaxTokens
)

const (
	contentTypeNDJSON = "application/x-ndjson"
	statusTrailer     = "X-Generation-Status"
)

// generateHandler godoc
// @Summary      Generate text
// @Description  Streams generated text as it is produced. The response is text/plain deltas,
// @Description  or NDJSON lines when the client sends Accept: application/x-ndjson.
// @Description  X-Request-ID carries the generation id; the X-Generation-Status trailer its terminal status.
// @Tags         generation
// @Accept       json
// @Produce      plain
// @Produce      x-ndjson
// @Param        request  body      types.GenerateRequest  false  "prompt and max_tokens (128..512)"
// @Success      200      {string}  string                 "streamed text"
// @Failure      400      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /generate [post]
func generateHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rl := newRequestLog(r)
		req, ok := decodeGenerate(w, r)
		if !ok {
			return
		}
		prompt := DefaultPrompt
		if req.Prompt != nil {
			prompt = *req.Prompt
		}
		maxTokens := DefaultMaxTokens
		if req.MaxTokens != nil {
			maxTokens = *req.MaxTokens
		}

		gen, err := svc.Generate(prompt, maxTokens)
		if err != nil {
			code := writeServiceError(w, err)
			rl.finished(code, "", err)
			return
		}
		rl.with("request_id", gen.ID())
		rl.started(maxTokens, len(prompt))

		ndjson := strings.Contains(strings.ToLower(r.Header.Get("Accept")), contentTypeNDJSON)
		var sw streamWriter = textStream{w: w}
		h := w.Header()
		if ndjson {
			sw = ndjsonStream{enc: json.NewEncoder(w)}
			h.Set("Content-Type", contentTypeNDJSON)
		} else {
			h.Set("Content-Type", "text/plain; charset=utf-8")
		}
		h.Set("X-Request-ID", gen.ID())
		h.Set("Cache-Control", "no-cache")
		h.Set("X-Accel-Buffering", "no")
		h.Set("Trailer", statusTrailer)
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		flush := func() {
			if flusher != nil {
				flusher.Flush()
			}
		}
		flush()

		// Shutdown or client disconnect abandons the stream.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		first := true
		for {
			select {
			case <-ctx.Done():
				gen.Detach()
				clientDisconnectsTotal.Inc()
				rl.finished(http.StatusOK, "detached", nil)
				return
			case f, ok := <-gen.Fragments():
				if !ok {
					rl.finished(http.StatusOK, "", errors.New("stream closed without terminal marker"))
					return
				}
				if f.Final {
					reason := finalReason(svc, gen.ID(), f)
					_ = sw.end(f.Status, reason)
					h.Set(statusTrailer, string(f.Status))
					flush()
					rl.finished(http.StatusOK, string(f.Status), f.Err)
					return
				}
				if first {
					firstDeltaSeconds.Observe(time.Since(rl.start).Seconds())
					first = false
				}
				rl.delta(f.Delta)
				if err := sw.delta(f.Delta); err != nil {
					gen.Detach()
					clientDisconnectsTotal.Inc()
					rl.finished(http.StatusOK, "detached", nil)
					return
				}
				flush()
			}
		}
	}
}

// decodeGenerate validates the content type and parses the body. An empty
// body is accepted and means "all defaults".
func decodeGenerate(w http.ResponseWriter, r *http.Request) (types.GenerateRequest, bool) {
	var req types.GenerateRequest
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return req, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		// Oversized bodies also land here; the message does not reveal the limit.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	return req, true
}

// finalReason explains a non-completed terminal fragment.
func finalReason(svc Service, id string, f engine.Fragment) string {
	if f.Status == engine.StatusCompleted {
		return ""
	}
	if f.Err != nil {
		return f.Err.Error()
	}
	if st, err := svc.Lookup(id); err == nil && st.Reason != "" {
		return st.Reason
	}
	return string(f.Status)
}

// streamWriter renders deltas and the terminal marker in one wire format.
type streamWriter interface {
	delta(text string) error
	end(status engine.Status, reason string) error
}

// textStream writes raw deltas; only unsuccessful generations get an
// explicit terminal line.
type textStream struct{ w io.Writer }

func (t textStream) delta(text string) error {
	_, err := io.WriteString(t.w, text)
	return err
}

func (t textStream) end(status engine.Status, reason string) error {
	if status == engine.StatusCompleted {
		return nil
	}
	_, err := fmt.Fprintf(t.w, "\n[error] %s\n", reason)
	return err
}

type ndjsonStream struct{ enc *json.Encoder }

func (n ndjsonStream) delta(text string) error {
	return n.enc.Encode(types.StreamLine{Delta: text})
}

func (n ndjsonStream) end(status engine.Status, reason string) error {
	if status == engine.StatusCompleted {
		return n.enc.Encode(types.StreamLine{Done: true, Status: string(status)})
	}
	return n.enc.Encode(types.StreamLine{Status: string(status), Error: reason})
}
