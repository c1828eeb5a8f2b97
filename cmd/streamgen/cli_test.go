package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := buildRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "streamgen ") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func parseServeFlags(t *testing.T, args ...string) (*pflag.FlagSet, *options) {
	t.Helper()
	opts := &options{}
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	addServeFlags(fs, opts)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse: %v", err)
	}
	return fs, opts
}

func TestResolveConfig_FlagsOverrideFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(p, []byte("addr: \":7000\"\nmax_concurrent: 2\nmax_queue_depth: 9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs, opts := parseServeFlags(t, "--config", p, "--max-concurrent", "6", "--cors-origins", "http://a, http://b")
	cfg, err := resolveConfig(fs, opts)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Addr != ":7000" || cfg.MaxQueueDepth != 9 {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.MaxConcurrent != 6 {
		t.Fatalf("flag did not override file: %d", cfg.MaxConcurrent)
	}
	if !cfg.CORS.Enabled || len(cfg.CORS.Origins) != 2 {
		t.Fatalf("cors: %+v", cfg.CORS)
	}
	if cfg.Backend != "loopback" || cfg.RequestTimeout.Std() != 300*time.Second {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestResolveConfig_UnsetFlagsKeepFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "cfg.json")
	if err := os.WriteFile(p, []byte(`{"backend":"llama-server","llama_server":{"url":"http://x"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	fs, opts := parseServeFlags(t, "-c", p)
	cfg, err := resolveConfig(fs, opts)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Backend != "llama-server" || cfg.LlamaServer.URL != "http://x" {
		t.Fatalf("flag defaults clobbered file: %+v", cfg)
	}
}

func TestResolveConfig_Errors(t *testing.T) {
	fs, opts := parseServeFlags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := resolveConfig(fs, opts); err == nil {
		t.Fatalf("expected error for missing config file")
	}
	fs, opts = parseServeFlags(t, "--backend", "llama-server")
	if _, err := resolveConfig(fs, opts); err == nil {
		t.Fatalf("expected error for llama-server without url")
	}
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger("warn", "json", &buf)
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"message":"shown"`) {
		t.Fatalf("unexpected log output %q", out)
	}
	if newLogger("bogus", "json", &buf).GetLevel() != zerolog.InfoLevel {
		t.Fatalf("unknown level should fall back to info")
	}
}

func TestNewApp_ServesAndJournals(t *testing.T) {
	fs, opts := parseServeFlags(t, "--journal", filepath.Join(t.TempDir(), "j.db"), "--max-concurrent", "1")
	cfg, err := resolveConfig(fs, opts)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	a, err := newApp(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv := httptest.NewServer(a.handler)
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/generate", "application/json", strings.NewReader(`{"prompt":"one two three","max_tokens":128}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || body.String() != "[loopback] one two three" {
		t.Fatalf("got %d %q", resp.StatusCode, body.String())
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		r, err := http.Get(srv.URL + "/requests")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		var b bytes.Buffer
		_, _ = b.ReadFrom(r.Body)
		r.Body.Close()
		if r.StatusCode == http.StatusOK && strings.Contains(b.String(), `"status":"completed"`) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("journal never listed the request: %d %s", r.StatusCode, b.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	a.close(ctx)
	if a.sched.Ready() {
		t.Fatalf("scheduler still ready after close")
	}
}
