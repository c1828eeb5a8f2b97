package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"streamgen/internal/engine"
)

// LlamaServer streams completions from a running llama.cpp server through
// its OpenAI-compatible /v1/completions endpoint and turns the incremental
// SSE fragments into cumulative snapshots.
type LlamaServer struct {
	baseURL    string
	apiKey     string
	modelID    string
	reqTimeout time.Duration
	buffer     int
	httpClient *http.Client
	log        zerolog.Logger
}

var _ Backend = (*LlamaServer)(nil)

const defaultHeaderTimeout = 60 * time.Second

// NewLlamaServer constructs a server-backed backend.
func NewLlamaServer(cfg ServerConfig, snapshotBuffer int, log zerolog.Logger) *LlamaServer {
	connect := cfg.ConnectTimeout
	if connect <= 0 {
		connect = 5 * time.Second
	}
	header := cfg.HeaderTimeout
	if header <= 0 {
		header = defaultHeaderTimeout
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connect,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: header,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &LlamaServer{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		modelID:    strings.TrimSpace(cfg.ModelID),
		reqTimeout: cfg.RequestTimeout,
		buffer:     snapshotBuffer,
		// Deadlines come from the request context.
		httpClient: &http.Client{Transport: tr, Timeout: 0},
		log:        log.With().Str("backend", NameLlamaServer).Logger(),
	}
}

type completionRequest struct {
	Model     string `json:"model,omitempty"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"`
	Stream    bool   `json:"stream"`
}

type streamChoice struct {
	Text  string `json:"text"`
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

type streamResponse struct {
	Choices []streamChoice `json:"choices"`
	// Native llama.cpp servers stream {"content": "...", "stop": bool}.
	Content string `json:"content"`
	Stop    bool   `json:"stop"`
}

// StartSession opens the streaming HTTP request before returning so that
// an unreachable or failing server surfaces as a start failure.
func (s *LlamaServer) StartSession(ctx context.Context, prompt string, cfg engine.SamplingConfig) (engine.Session, error) {
	var (
		httpCtx context.Context
		cancel  context.CancelFunc
	)
	if s.reqTimeout > 0 {
		httpCtx, cancel = context.WithTimeout(ctx, s.reqTimeout)
	} else {
		httpCtx, cancel = context.WithCancel(ctx)
	}
	body, err := s.open(httpCtx, prompt, cfg.MaxTokens)
	if err != nil {
		cancel()
		return nil, err
	}
	return engine.NewSession(ctx, s.buffer, func(sessCtx context.Context, emit func(string) error) (string, error) {
		defer cancel()
		defer body.Close()
		stop := context.AfterFunc(sessCtx, cancel)
		defer stop()
		reason, err := s.read(body, emit)
		if err != nil && httpCtx.Err() != nil {
			return reason, httpCtx.Err()
		}
		return reason, err
	}), nil
}

func (s *LlamaServer) open(ctx context.Context, prompt string, maxTokens int) (io.ReadCloser, error) {
	payload, err := json.Marshal(completionRequest{Model: s.modelID, Prompt: prompt, MaxTokens: maxTokens, Stream: true})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("llama server request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("llama server http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	return resp.Body, nil
}

// read consumes SSE "data:" lines until [DONE] or EOF, emitting the
// accumulated text after each non-empty fragment.
func (s *LlamaServer) read(body io.Reader, emit func(string) error) (string, error) {
	var (
		text   strings.Builder
		reason string
	)
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(line), "data:") {
			continue
		}
		data := strings.TrimSpace(line[len("data:"):])
		if data == "[DONE]" {
			break
		}
		var msg streamResponse
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			s.log.Debug().Str("line", line).Msg("unknown stream line")
			continue
		}
		frag := msg.Content
		if len(msg.Choices) > 0 {
			c := msg.Choices[0]
			frag = c.Text + c.Delta.Content
			if c.FinishReason != "" {
				reason = c.FinishReason
			}
		}
		if frag != "" {
			text.WriteString(frag)
			if err := emit(text.String()); err != nil {
				return reason, err
			}
		}
		if msg.Stop {
			if reason == "" {
				reason = "stop"
			}
			break
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
		return reason, fmt.Errorf("llama server stream: %w", err)
	}
	if reason == "" {
		reason = "stop"
	}
	return reason, nil
}

func (s *LlamaServer) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}
