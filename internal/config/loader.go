package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as a Go duration string ("300s",
// "1m30s") in every supported format.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// CORSConfig enables cross-origin access to the API.
type CORSConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
}

// ModelCardConfig is served verbatim by GET /model_card.
type ModelCardConfig struct {
	ModelID     string `json:"model_id" yaml:"model_id" toml:"model_id"`
	Description string `json:"description" yaml:"description" toml:"description"`
	License     string `json:"license" yaml:"license" toml:"license"`
	Author      string `json:"author" yaml:"author" toml:"author"`
}

// LoopbackConfig configures the loopback backend.
type LoopbackConfig struct {
	TokenDelay Duration `json:"token_delay" yaml:"token_delay" toml:"token_delay"`
}

// LlamaServerConfig configures the llama-server backend.
type LlamaServerConfig struct {
	URL            string   `json:"url" yaml:"url" toml:"url"`
	APIKey         string   `json:"api_key" yaml:"api_key" toml:"api_key"`
	ModelID        string   `json:"model_id" yaml:"model_id" toml:"model_id"`
	RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout" toml:"request_timeout"`
	ConnectTimeout Duration `json:"connect_timeout" yaml:"connect_timeout" toml:"connect_timeout"`
	HeaderTimeout  Duration `json:"header_timeout" yaml:"header_timeout" toml:"header_timeout"`
}

// LlamaConfig configures the in-process llama backend.
type LlamaConfig struct {
	ModelPath   string `json:"model_path" yaml:"model_path" toml:"model_path"`
	ModelsDir   string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	ModelID     string `json:"model_id" yaml:"model_id" toml:"model_id"`
	ContextSize int    `json:"context_size" yaml:"context_size" toml:"context_size"`
	Threads     int    `json:"threads" yaml:"threads" toml:"threads"`
}

// RedisConfig enables publishing lifecycle events to Redis Pub/Sub.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr" toml:"addr"`
	Password string `json:"password" yaml:"password" toml:"password"`
	DB       int    `json:"db" yaml:"db" toml:"db"`
	Channel  string `json:"channel" yaml:"channel" toml:"channel"`
}

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr    string `json:"addr" yaml:"addr" toml:"addr"`
	Backend string `json:"backend" yaml:"backend" toml:"backend"`

	MaxConcurrent    int      `json:"max_concurrent" yaml:"max_concurrent" toml:"max_concurrent"`
	MaxQueueDepth    int      `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	RequestTimeout   Duration `json:"request_timeout" yaml:"request_timeout" toml:"request_timeout"`
	InterruptTimeout Duration `json:"interrupt_timeout" yaml:"interrupt_timeout" toml:"interrupt_timeout"`
	SnapshotBuffer   int      `json:"snapshot_buffer" yaml:"snapshot_buffer" toml:"snapshot_buffer"`
	StreamBuffer     int      `json:"stream_buffer" yaml:"stream_buffer" toml:"stream_buffer"`
	HistoryTTL       Duration `json:"history_ttl" yaml:"history_ttl" toml:"history_ttl"`
	ShutdownTimeout  Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" toml:"shutdown_timeout"`

	MaxBodyBytes int64      `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORS         CORSConfig `json:"cors" yaml:"cors" toml:"cors"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	ModelCard   ModelCardConfig   `json:"model_card" yaml:"model_card" toml:"model_card"`
	Loopback    LoopbackConfig    `json:"loopback" yaml:"loopback" toml:"loopback"`
	LlamaServer LlamaServerConfig `json:"llama_server" yaml:"llama_server" toml:"llama_server"`
	Llama       LlamaConfig       `json:"llama" yaml:"llama" toml:"llama"`

	JournalPath string      `json:"journal_path" yaml:"journal_path" toml:"journal_path"`
	Redis       RedisConfig `json:"redis" yaml:"redis" toml:"redis"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
