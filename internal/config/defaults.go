package config

import (
	"fmt"
	"strings"
	"time"
)

// Defaults for fields left unset.
const (
	DefaultAddr             = ":3000"
	DefaultBackend          = "loopback"
	DefaultMaxConcurrent    = 4
	DefaultMaxQueueDepth    = 32
	DefaultRequestTimeout   = 300 * time.Second
	DefaultInterruptTimeout = 2 * time.Second
	DefaultHistoryTTL       = 5 * time.Minute
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultMaxBodyBytes     = 1 << 20
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "console"
)

// DefaultModelCard describes the model the service ships configured for.
var DefaultModelCard = ModelCardConfig{
	ModelID:     "facebook/opt-350m",
	Description: "OpenAI's GPT-3 model fine-tuned on the OpenWebText dataset",
	License:     "MIT",
	Author:      "OpenAI",
}

// WithDefaults returns c with every unset field filled in.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = DefaultMaxQueueDepth
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = Duration(DefaultRequestTimeout)
	}
	if c.InterruptTimeout <= 0 {
		c.InterruptTimeout = Duration(DefaultInterruptTimeout)
	}
	if c.HistoryTTL <= 0 {
		c.HistoryTTL = Duration(DefaultHistoryTTL)
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.ModelCard.ModelID == "" {
		c.ModelCard.ModelID = DefaultModelCard.ModelID
	}
	if c.ModelCard.Description == "" {
		c.ModelCard.Description = DefaultModelCard.Description
	}
	if c.ModelCard.License == "" {
		c.ModelCard.License = DefaultModelCard.License
	}
	if c.ModelCard.Author == "" {
		c.ModelCard.Author = DefaultModelCard.Author
	}
	return c
}

// Validate rejects combinations that cannot start.
func (c Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case "loopback", "llama":
	case "llama-server":
		if strings.TrimSpace(c.LlamaServer.URL) == "" {
			return fmt.Errorf("backend llama-server requires llama_server.url")
		}
	default:
		return fmt.Errorf("unknown backend %q (want loopback, llama-server or llama)", c.Backend)
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log_format %q (want console or json)", c.LogFormat)
	}
	return nil
}
