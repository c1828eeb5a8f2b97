package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"streamgen/internal/backend"
	"streamgen/internal/engine"
	"streamgen/internal/httpapi"
	"streamgen/internal/service"
	"streamgen/pkg/types"
)

// newServer wires a loopback backend, a scheduler and the HTTP mux the way
// the binary does.
func newServer(t *testing.T, cfg engine.Config, tokenDelay time.Duration) (*httptest.Server, *engine.Scheduler) {
	t.Helper()
	be := backend.NewLoopback(backend.LoopbackConfig{TokenDelay: tokenDelay}, 0)
	cfg.Backend = be
	sched, err := engine.New(cfg)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	card := types.ModelCard{ModelID: "facebook/opt-350m", Description: "test", License: "MIT", Author: "OpenAI"}
	srv := httptest.NewServer(httpapi.NewMux(service.New(sched, card, backend.NameLoopback, nil)))
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sched.Close(ctx)
		_ = be.Close()
	})
	return srv, sched
}

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = "w"
	}
	return strings.Join(w, " ")
}

func generateBody(prompt string, maxTokens int) []byte {
	b, _ := json.Marshal(map[string]any{"prompt": prompt, "max_tokens": maxTokens})
	return b
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	return do(t, req)
}

func httpDelete(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	return do(t, req)
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return do(t, req)
}

func do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// openStream starts a generation and returns the response with its body
// still open, plus a reader over it.
func openStream(t *testing.T, url string, payload []byte) (*http.Response, *bufio.Reader) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url+"/generate", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("generate: status %d: %s", resp.StatusCode, b)
	}
	return resp, bufio.NewReader(resp.Body)
}

func status(t *testing.T, url string) types.StatusResponse {
	t.Helper()
	resp, body := httpGet(t, url+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d %s", resp.StatusCode, body)
	}
	var st types.StatusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
