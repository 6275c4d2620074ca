// Package config loads service configuration from defaults, an optional
// TOML or YAML file named by KVC_CONFIG, and KVC_* environment variables,
// in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Asia/Shanghai must resolve in minimal containers.

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/kvcomments/internal/comments"
	"github.com/alfredjeanlab/kvcomments/internal/idgen"
	"github.com/alfredjeanlab/kvcomments/internal/model"
)

// Backend names accepted in Config.Backend.
const (
	BackendMemory   = "memory"
	BackendNATS     = "nats"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

type Config struct {
	HTTPAddr string `toml:"http_addr" yaml:"http_addr"` // KVC_HTTP_ADDR (default ":8080")
	GRPCAddr string `toml:"grpc_addr" yaml:"grpc_addr"` // KVC_GRPC_ADDR (optional, empty = no gRPC health)

	// Storage
	Backend     string `toml:"backend" yaml:"backend"`           // KVC_BACKEND (memory|nats|postgres|s3)
	Namespace   string `toml:"namespace" yaml:"namespace"`       // KVC_NAMESPACE (default "birthday-comment-kv")
	ListKey     string `toml:"list_key" yaml:"list_key"`         // KVC_LIST_KEY (default "comment_list")
	DatabaseURL string `toml:"database_url" yaml:"database_url"` // KVC_DATABASE_URL (postgres backend)
	S3Bucket    string `toml:"s3_bucket" yaml:"s3_bucket"`       // KVC_S3_BUCKET (s3 backend)
	S3Region    string `toml:"s3_region" yaml:"s3_region"`       // KVC_S3_REGION (default "us-east-1")
	S3Endpoint  string `toml:"s3_endpoint" yaml:"s3_endpoint"`   // KVC_S3_ENDPOINT (custom endpoint for MinIO)
	S3Prefix    string `toml:"s3_prefix" yaml:"s3_prefix"`       // KVC_S3_PREFIX

	// Comment list behaviour
	BasePath        string `toml:"base_path" yaml:"base_path"`                 // KVC_BASE_PATH (default "/api/comments")
	Policy          string `toml:"policy" yaml:"policy"`                       // KVC_POLICY (newest-first|append)
	MaxComments     int    `toml:"max_comments" yaml:"max_comments"`           // KVC_MAX_COMMENTS (default 100; 0 = unbounded)
	MaxContentBytes int    `toml:"max_content_bytes" yaml:"max_content_bytes"` // KVC_MAX_CONTENT_BYTES (default max_value_bytes - 256)
	MaxValueBytes   int    `toml:"max_value_bytes" yaml:"max_value_bytes"`     // KVC_MAX_VALUE_BYTES (default 1843200)
	IDStyle         string `toml:"id_style" yaml:"id_style"`                   // KVC_ID_STYLE (timestamp|nanoid|uuid)
	TimeFormat      string `toml:"time_format" yaml:"time_format"`             // KVC_TIME_FORMAT (display|epoch)
	TimeZone        string `toml:"time_zone" yaml:"time_zone"`                 // KVC_TIME_ZONE (default "Asia/Shanghai")
	CAS             bool   `toml:"cas" yaml:"cas"`                             // KVC_CAS (default true)
	CASRetries      int    `toml:"cas_retries" yaml:"cas_retries"`             // KVC_CAS_RETRIES (default 8)

	// HTTP surface
	AllowOrigin   string `toml:"allow_origin" yaml:"allow_origin"`     // KVC_ALLOW_ORIGIN (default "*")
	AuthToken     string `toml:"auth_token" yaml:"auth_token"`         // KVC_AUTH_TOKEN (optional, empty = auth disabled)
	ProbesEnabled bool   `toml:"probes_enabled" yaml:"probes_enabled"` // KVC_PROBES_ENABLED (default false)

	// Events
	NATSURL       string `toml:"nats_url" yaml:"nats_url"`             // KVC_NATS_URL (nats backend and events)
	EventsEnabled bool   `toml:"events_enabled" yaml:"events_enabled"` // KVC_EVENTS_ENABLED (default true; needs nats_url)

	// Sync settings
	SyncInterval  time.Duration `toml:"sync_interval" yaml:"sync_interval"`     // KVC_SYNC_INTERVAL (default 0 = disabled)
	SyncS3Bucket  string        `toml:"sync_s3_bucket" yaml:"sync_s3_bucket"`   // KVC_SYNC_S3_BUCKET (enables S3 export when set)
	SyncS3Key     string        `toml:"sync_s3_key" yaml:"sync_s3_key"`         // KVC_SYNC_S3_KEY (default "kvcomments/backup.jsonl")
	SyncGitRepo   string        `toml:"sync_git_repo" yaml:"sync_git_repo"`     // KVC_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile   string        `toml:"sync_git_file" yaml:"sync_git_file"`     // KVC_SYNC_GIT_FILE (default "comments.jsonl")
	SyncGitBranch string        `toml:"sync_git_branch" yaml:"sync_git_branch"` // KVC_SYNC_GIT_BRANCH (default "main")

	HealthInterval time.Duration `toml:"health_interval" yaml:"health_interval"` // KVC_HEALTH_INTERVAL (default 30s)
	LogLevel       string        `toml:"log_level" yaml:"log_level"`             // KVC_LOG_LEVEL (debug|info|warn|error)
	LogFormat      string        `toml:"log_format" yaml:"log_format"`           // KVC_LOG_FORMAT (text|json)
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		HTTPAddr:        ":8080",
		Backend:         BackendMemory,
		Namespace:       "birthday-comment-kv",
		ListKey:         comments.DefaultKey,
		S3Region:        "us-east-1",
		BasePath:        "/api/comments",
		Policy:          string(comments.PolicyNewestFirst),
		MaxComments:     comments.DefaultMaxComments,
		MaxContentBytes: model.DefaultMaxContentBytes,
		MaxValueBytes:   model.DefaultMaxValueBytes,
		IDStyle:         string(idgen.StyleTimestamp),
		TimeFormat:      string(comments.TimeDisplay),
		TimeZone:        "Asia/Shanghai",
		CAS:             true,
		CASRetries:      comments.DefaultCASRetries,
		AllowOrigin:     "*",
		EventsEnabled:   true,
		SyncS3Key:       "kvcomments/backup.jsonl",
		SyncGitFile:     "comments.jsonl",
		SyncGitBranch:   "main",
		HealthInterval:  30 * time.Second,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load builds the configuration from defaults, KVC_CONFIG and the environment.
func Load() (*Config, error) {
	c := Default()
	if path := os.Getenv("KVC_CONFIG"); path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	c.deriveContentLimit()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("parsing config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config %s: unsupported extension (want .toml, .yaml or .yml)", path)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.HTTPAddr = envOrDefault("KVC_HTTP_ADDR", c.HTTPAddr)
	c.GRPCAddr = envOrDefault("KVC_GRPC_ADDR", c.GRPCAddr)
	c.Backend = envOrDefault("KVC_BACKEND", c.Backend)
	c.Namespace = envOrDefault("KVC_NAMESPACE", c.Namespace)
	c.ListKey = envOrDefault("KVC_LIST_KEY", c.ListKey)
	c.DatabaseURL = envOrDefault("KVC_DATABASE_URL", c.DatabaseURL)
	c.S3Bucket = envOrDefault("KVC_S3_BUCKET", c.S3Bucket)
	c.S3Region = envOrDefault("KVC_S3_REGION", c.S3Region)
	c.S3Endpoint = envOrDefault("KVC_S3_ENDPOINT", c.S3Endpoint)
	c.S3Prefix = envOrDefault("KVC_S3_PREFIX", c.S3Prefix)
	c.BasePath = envOrDefault("KVC_BASE_PATH", c.BasePath)
	c.Policy = envOrDefault("KVC_POLICY", c.Policy)
	c.IDStyle = envOrDefault("KVC_ID_STYLE", c.IDStyle)
	c.TimeFormat = envOrDefault("KVC_TIME_FORMAT", c.TimeFormat)
	c.TimeZone = envOrDefault("KVC_TIME_ZONE", c.TimeZone)
	c.AllowOrigin = envOrDefault("KVC_ALLOW_ORIGIN", c.AllowOrigin)
	c.AuthToken = envOrDefault("KVC_AUTH_TOKEN", c.AuthToken)
	c.NATSURL = envOrDefault("KVC_NATS_URL", c.NATSURL)
	c.SyncS3Bucket = envOrDefault("KVC_SYNC_S3_BUCKET", c.SyncS3Bucket)
	c.SyncS3Key = envOrDefault("KVC_SYNC_S3_KEY", c.SyncS3Key)
	c.SyncGitRepo = envOrDefault("KVC_SYNC_GIT_REPO", c.SyncGitRepo)
	c.SyncGitFile = envOrDefault("KVC_SYNC_GIT_FILE", c.SyncGitFile)
	c.SyncGitBranch = envOrDefault("KVC_SYNC_GIT_BRANCH", c.SyncGitBranch)
	c.LogLevel = envOrDefault("KVC_LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOrDefault("KVC_LOG_FORMAT", c.LogFormat)

	return errors.Join(
		envInt("KVC_MAX_COMMENTS", &c.MaxComments),
		envInt("KVC_MAX_CONTENT_BYTES", &c.MaxContentBytes),
		envInt("KVC_MAX_VALUE_BYTES", &c.MaxValueBytes),
		envInt("KVC_CAS_RETRIES", &c.CASRetries),
		envBool("KVC_CAS", &c.CAS),
		envBool("KVC_PROBES_ENABLED", &c.ProbesEnabled),
		envBool("KVC_EVENTS_ENABLED", &c.EventsEnabled),
		envDuration("KVC_SYNC_INTERVAL", &c.SyncInterval),
		envDuration("KVC_HEALTH_INTERVAL", &c.HealthInterval),
	)
}

// deriveContentLimit fits the default content cap to a custom value cap so
// the largest accepted comment is still storable.
func (c *Config) deriveContentLimit() {
	if c.MaxContentBytes == model.DefaultMaxContentBytes && c.MaxValueBytes != model.DefaultMaxValueBytes {
		c.MaxContentBytes = model.ContentLimit(c.MaxValueBytes)
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	switch c.Backend {
	case BackendMemory:
	case BackendNATS:
		if c.NATSURL == "" {
			bad("backend %q requires nats_url", c.Backend)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			bad("backend %q requires database_url", c.Backend)
		}
	case BackendS3:
		if c.S3Bucket == "" {
			bad("backend %q requires s3_bucket", c.Backend)
		}
	default:
		bad("backend: unknown value %q", c.Backend)
	}

	if c.Namespace == "" {
		bad("namespace is required")
	}
	if c.ListKey == "" {
		bad("list_key is required")
	}
	if !strings.HasPrefix(c.BasePath, "/") || (len(c.BasePath) > 1 && strings.HasSuffix(c.BasePath, "/")) {
		bad("base_path %q must start with / and not end with /", c.BasePath)
	}
	switch comments.Policy(c.Policy) {
	case comments.PolicyNewestFirst, comments.PolicyAppend:
	default:
		bad("policy: unknown value %q", c.Policy)
	}
	if !idgen.Style(c.IDStyle).Valid() {
		bad("id_style: unknown value %q", c.IDStyle)
	}
	switch comments.TimeFormat(c.TimeFormat) {
	case comments.TimeDisplay, comments.TimeEpoch:
	default:
		bad("time_format: unknown value %q", c.TimeFormat)
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		bad("time_zone: %w", err)
	}
	for name, v := range map[string]int{
		"max_comments":      c.MaxComments,
		"max_content_bytes": c.MaxContentBytes,
		"max_value_bytes":   c.MaxValueBytes,
		"cas_retries":       c.CASRetries,
	} {
		if v < 0 {
			bad("%s must not be negative, got %d", name, v)
		}
	}
	if limit := model.ContentLimit(c.MaxValueBytes); limit > 0 && c.MaxContentBytes > limit {
		bad("max_content_bytes %d leaves no room in max_value_bytes %d (at most %d)", c.MaxContentBytes, c.MaxValueBytes, limit)
	}
	if c.SyncInterval < 0 {
		bad("sync_interval must not be negative")
	}
	if c.HealthInterval <= 0 {
		bad("health_interval must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		bad("log_level: unknown value %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		bad("log_format: unknown value %q", c.LogFormat)
	}
	return errors.Join(errs...)
}

// Location returns the time zone comment display times are rendered in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// EventsActive reports whether comment events should be published.
func (c *Config) EventsActive() bool {
	return c.EventsEnabled && c.NATSURL != ""
}

// NewLogger returns a slog logger writing to w at the configured level and
// format.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
