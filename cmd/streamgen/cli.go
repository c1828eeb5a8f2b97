package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"streamgen/internal/config"
)

// options holds command-line flag values. Only flags the user actually set
// override the config file.
type options struct {
	configPath string

	addr             string
	backend          string
	maxConcurrent    int
	maxQueueDepth    int
	requestTimeout   time.Duration
	interruptTimeout time.Duration
	maxBodyBytes     int64
	corsOrigins      string
	logLevel         string
	logFormat        string
	serverURL        string
	modelPath        string
	modelsDir        string
	modelID          string
	tokenDelay       time.Duration
	journalPath      string
	redisAddr        string
}

func buildRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "streamgen",
		Short:         "Queued, streamed text generation over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	serve := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP server (default)",
		Example: "  streamgen serve --config streamgen.yaml\n  streamgen serve --backend llama-server --server-url http://127.0.0.1:8081",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "streamgen", version)
		},
	}
	addServeFlags(root.Flags(), opts)
	addServeFlags(serve.Flags(), opts)
	root.AddCommand(serve, versionCmd)
	return root
}

func addServeFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVarP(&o.configPath, "config", "c", "", "Config file (.yaml, .yml, .json or .toml)")
	fs.StringVar(&o.addr, "addr", config.DefaultAddr, "HTTP listen address")
	fs.StringVar(&o.backend, "backend", config.DefaultBackend, "Inference backend: loopback|llama-server|llama")
	fs.IntVar(&o.maxConcurrent, "max-concurrent", config.DefaultMaxConcurrent, "Concurrently running generations")
	fs.IntVar(&o.maxQueueDepth, "max-queue-depth", config.DefaultMaxQueueDepth, "Queued requests before 429")
	fs.DurationVar(&o.requestTimeout, "request-timeout", config.DefaultRequestTimeout, "Per-request deadline from submission")
	fs.DurationVar(&o.interruptTimeout, "interrupt-timeout", config.DefaultInterruptTimeout, "Grace period for a cancelled session before its slot is reclaimed")
	fs.Int64Var(&o.maxBodyBytes, "max-body-bytes", config.DefaultMaxBodyBytes, "Request body limit")
	fs.StringVar(&o.corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins; enables CORS")
	fs.StringVar(&o.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug|info|warn|error")
	fs.StringVar(&o.logFormat, "log-format", config.DefaultLogFormat, "Log format: console|json")
	fs.StringVar(&o.serverURL, "server-url", "", "llama-server base URL")
	fs.StringVar(&o.modelPath, "model-path", "", "GGUF model file for the llama backend")
	fs.StringVar(&o.modelsDir, "models-dir", "", "Directory to scan for *.gguf files (llama backend)")
	fs.StringVar(&o.modelID, "model-id", "", "Model id: gguf file name for llama, model field for llama-server")
	fs.DurationVar(&o.tokenDelay, "token-delay", 0, "Pause between loopback words")
	fs.StringVar(&o.journalPath, "journal", "", "SQLite file recording finished requests; empty disables")
	fs.StringVar(&o.redisAddr, "redis-addr", "", "Redis address for lifecycle events; empty disables")
}

// resolveConfig layers defaults < config file < flags.
func resolveConfig(fs *pflag.FlagSet, o *options) (config.Config, error) {
	var cfg config.Config
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("addr", func() { cfg.Addr = o.addr })
	set("backend", func() { cfg.Backend = o.backend })
	set("max-concurrent", func() { cfg.MaxConcurrent = o.maxConcurrent })
	set("max-queue-depth", func() { cfg.MaxQueueDepth = o.maxQueueDepth })
	set("request-timeout", func() { cfg.RequestTimeout = config.Duration(o.requestTimeout) })
	set("interrupt-timeout", func() { cfg.InterruptTimeout = config.Duration(o.interruptTimeout) })
	set("max-body-bytes", func() { cfg.MaxBodyBytes = o.maxBodyBytes })
	set("cors-origins", func() {
		cfg.CORS.Origins = splitCSV(o.corsOrigins)
		cfg.CORS.Enabled = len(cfg.CORS.Origins) > 0
	})
	set("log-level", func() { cfg.LogLevel = o.logLevel })
	set("log-format", func() { cfg.LogFormat = o.logFormat })
	set("server-url", func() { cfg.LlamaServer.URL = o.serverURL })
	set("model-path", func() { cfg.Llama.ModelPath = o.modelPath })
	set("models-dir", func() { cfg.Llama.ModelsDir = o.modelsDir })
	set("model-id", func() {
		cfg.Llama.ModelID = o.modelID
		cfg.LlamaServer.ModelID = o.modelID
	})
	set("token-delay", func() { cfg.Loopback.TokenDelay = config.Duration(o.tokenDelay) })
	set("journal", func() { cfg.JournalPath = o.journalPath })
	set("redis-addr", func() { cfg.Redis.Addr = o.redisAddr })

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
