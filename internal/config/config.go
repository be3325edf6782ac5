// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/shaharia-lab/mcpchat/internal/chatapi"
	"github.com/shaharia-lab/mcpchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete mcpchat configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Backend   BackendConfig   `toml:"backend" json:"backend"`
	Model     ModelConfig     `toml:"model" json:"model"`
	Streaming StreamingConfig `toml:"streaming" json:"streaming"`
	Tools     ToolsConfig     `toml:"tools" json:"tools"`
	Storage   StorageConfig   `toml:"storage" json:"storage"`
	Log       LogConfig       `toml:"log" json:"log"`
	UI        UIConfig        `toml:"ui" json:"ui"`
}

// BackendConfig describes how to reach the chat backend.
type BackendConfig struct {
	// URL is the backend root, e.g. http://localhost:8081
	URL string `toml:"url" json:"url"`
	// TimeoutSecs bounds single-shot requests
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// StreamConnectTimeoutSecs bounds the wait for stream response headers
	StreamConnectTimeoutSecs int `toml:"stream_connect_timeout_secs" json:"stream_connect_timeout_secs"`
	// IdentityHeader carries the conversation identity on stream responses
	IdentityHeader string `toml:"identity_header" json:"identity_header"`
	// Token is a fixed bearer credential. Prefer TokenEnv.
	Token string `toml:"token,omitempty" json:"token,omitempty"`
	// TokenEnv names an environment variable read on every request
	TokenEnv string `toml:"token_env" json:"token_env"`
}

// ModelConfig holds generation parameters and the provider selection.
type ModelConfig struct {
	Temperature float64 `toml:"temperature" json:"temperature"`
	MaxTokens   int     `toml:"max_tokens" json:"max_tokens"`
	TopP        float64 `toml:"top_p" json:"top_p"`
	TopK        int     `toml:"top_k" json:"top_k"`
	// Provider and ModelID are sent only when Provider is set
	Provider string `toml:"provider" json:"provider"`
	ModelID  string `toml:"model_id" json:"model_id"`
}

// StreamingConfig controls streaming mode and the cadence hint.
type StreamingConfig struct {
	Enabled   bool `toml:"enabled" json:"enabled"`
	ChunkSize int  `toml:"chunk_size" json:"chunk_size"`
	DelayMs   int  `toml:"delay_ms" json:"delay_ms"`
}

// ToolsConfig lists the tools selected by default.
type ToolsConfig struct {
	Selected []string `toml:"selected" json:"selected"`
}

// StorageConfig controls the local transcript cache.
type StorageConfig struct {
	// Dir defaults to ~/.mcpchat/conversations
	Dir              string `toml:"dir" json:"dir"`
	MaxConversations int    `toml:"max_conversations" json:"max_conversations"`
}

// LogConfig controls logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `toml:"level" json:"level"`
	// Format is text or json
	Format string `toml:"format" json:"format"`
	// File receives TUI logs; empty means ~/.mcpchat/mcpchat.log
	File string `toml:"file" json:"file"`
}

// UIConfig controls the terminal UI.
type UIConfig struct {
	// Theme is "dark", "light" or "auto"
	Theme          string `toml:"theme" json:"theme"`
	RenderMarkdown bool   `toml:"render_markdown" json:"render_markdown"`
	// MaxFPS caps how often streamed content is re-rendered
	MaxFPS int `toml:"max_fps" json:"max_fps"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// CurrentVersion is written into saved files.
const CurrentVersion = "1"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Backend: BackendConfig{
			URL:                      "http://localhost:8081",
			TimeoutSecs:              60,
			StreamConnectTimeoutSecs: 15,
			IdentityHeader:           "X-Chat-UUID",
			TokenEnv:                 "MCPCHAT_TOKEN",
		},
		Model: ModelConfig{
			Temperature: 0.5,
			MaxTokens:   2000,
			TopP:        0.5,
			TopK:        50,
		},
		Streaming: StreamingConfig{
			Enabled:   true,
			ChunkSize: 1,
			DelayMs:   10,
		},
		Storage: StorageConfig{
			MaxConversations: 200,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		UI: UIConfig{
			Theme:          "dark",
			RenderMarkdown: true,
			MaxFPS:         30,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the mcpchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".mcpchat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ensureSecurePermissions narrows a config file to 0600; it may hold a token.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.mcpchat/config.toml, falling back to config.json and then
// to defaults. A broken file is reported alongside a usable default config.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg, err := LoadFromPath(path)
		if err != nil {
			fallback, ferr := finish(Default())
			if ferr != nil {
				return nil, ferr
			}
			return fallback, err
		}
		return cfg, nil
	}
	return finish(Default())
}

// LoadFromPath loads a specific file; ".json" selects JSON, anything else TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	var err error
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		err = LoadJSON(cfg, path)
	} else {
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finish(cfg)
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// finish runs the post-load pipeline.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.Migrate()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to ~/.mcpchat/config.toml.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("# mcpchat configuration file\n")
	buf.WriteString("# Generated by mcpchat - edit with care\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as indented JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is a single invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every field and returns ValidateErrors listing all problems.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Backend
	if u, err := url.Parse(c.Backend.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		add("backend.url", "must be an http(s) URL, got %q", c.Backend.URL)
	}
	if c.Backend.TimeoutSecs < 1 || c.Backend.TimeoutSecs > 3600 {
		add("backend.timeout_secs", "must be between 1 and 3600, got %d", c.Backend.TimeoutSecs)
	}
	if c.Backend.StreamConnectTimeoutSecs < 1 || c.Backend.StreamConnectTimeoutSecs > 600 {
		add("backend.stream_connect_timeout_secs", "must be between 1 and 600, got %d", c.Backend.StreamConnectTimeoutSecs)
	}
	if h := c.Backend.IdentityHeader; h == "" || strings.ContainsAny(h, " :\r\n") {
		add("backend.identity_header", "invalid header name %q", h)
	}

	// Model
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		add("model.temperature", "must be between 0 and 2, got %g", c.Model.Temperature)
	}
	if c.Model.MaxTokens < 1 {
		add("model.max_tokens", "must be positive, got %d", c.Model.MaxTokens)
	}
	if c.Model.TopP < 0 || c.Model.TopP > 1 {
		add("model.top_p", "must be between 0 and 1, got %g", c.Model.TopP)
	}
	if c.Model.TopK < 0 {
		add("model.top_k", "must not be negative, got %d", c.Model.TopK)
	}
	if c.Model.ModelID != "" && c.Model.Provider == "" {
		add("model.provider", "required when model_id is set")
	}

	// Streaming
	if c.Streaming.ChunkSize < 0 {
		add("streaming.chunk_size", "must not be negative, got %d", c.Streaming.ChunkSize)
	}
	if c.Streaming.DelayMs < 0 || c.Streaming.DelayMs > 10000 {
		add("streaming.delay_ms", "must be between 0 and 10000, got %d", c.Streaming.DelayMs)
	}

	// Storage
	if c.Storage.MaxConversations < 0 {
		add("storage.max_conversations", "must not be negative, got %d", c.Storage.MaxConversations)
	}

	// Log
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("log.level", "must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		add("log.format", "must be text or json, got %q", c.Log.Format)
	}

	// UI
	switch strings.ToLower(c.UI.Theme) {
	case "dark", "light", "auto":
	default:
		add("ui.theme", "must be dark, light or auto, got %q", c.UI.Theme)
	}
	if c.UI.MaxFPS < 1 || c.UI.MaxFPS > 120 {
		add("ui.max_fps", "must be between 1 and 120, got %d", c.UI.MaxFPS)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values that have no meaningful zero.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Backend.URL == "" {
		c.Backend.URL = d.Backend.URL
	}
	if c.Backend.TimeoutSecs == 0 {
		c.Backend.TimeoutSecs = d.Backend.TimeoutSecs
	}
	if c.Backend.StreamConnectTimeoutSecs == 0 {
		c.Backend.StreamConnectTimeoutSecs = d.Backend.StreamConnectTimeoutSecs
	}
	if c.Backend.IdentityHeader == "" {
		c.Backend.IdentityHeader = d.Backend.IdentityHeader
	}
	if c.Model.MaxTokens == 0 {
		c.Model.MaxTokens = d.Model.MaxTokens
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.MaxFPS == 0 {
		c.UI.MaxFPS = d.UI.MaxFPS
	}
}

// Migrate normalizes older spellings.
func (c *Config) Migrate() {
	c.Backend.URL = strings.TrimRight(strings.TrimSpace(c.Backend.URL), "/")
	c.Log.Level = strings.ToLower(c.Log.Level)
	if c.Log.Level == "warning" {
		c.Log.Level = "warn"
	}
	c.Tools.Selected = dedupe(c.Tools.Selected)
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - MCPCHAT_BACKEND_URL: overrides backend.url
//   - MCPCHAT_TOKEN: overrides backend.token
//   - MCPCHAT_PROVIDER: overrides model.provider
//   - MCPCHAT_MODEL: overrides model.model_id
//   - MCPCHAT_LOG_LEVEL: overrides log.level
//   - MCPCHAT_STREAM: "0"/"false" disables streaming, "1"/"true" enables it
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("MCPCHAT_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("MCPCHAT_TOKEN"); v != "" {
		c.Backend.Token = v
	}
	if v := os.Getenv("MCPCHAT_PROVIDER"); v != "" {
		c.Model.Provider = v
	}
	if v := os.Getenv("MCPCHAT_MODEL"); v != "" {
		c.Model.ModelID = v
	}
	if v := os.Getenv("MCPCHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("MCPCHAT_STREAM"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Streaming.Enabled = b
		}
	}
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// Timeout returns backend.timeout_secs as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSecs) * time.Second
}

// StreamConnectTimeout returns backend.stream_connect_timeout_secs as a duration.
func (c *Config) StreamConnectTimeout() time.Duration {
	return time.Duration(c.Backend.StreamConnectTimeoutSecs) * time.Second
}

// StorageDir returns the transcript cache directory.
func (c *Config) StorageDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "conversations"), nil
}

// UsageDir returns where finished usage sessions are kept.
func (c *Config) UsageDir() (string, error) {
	dir, err := c.StorageDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "usage"), nil
}

// LogFile returns the TUI log file path.
func (c *Config) LogFile() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "mcpchat.log"), nil
}

// ModelSettings returns the generation parameters.
func (c *Config) ModelSettings() chatapi.ModelSettings {
	return chatapi.ModelSettings{
		Temperature: c.Model.Temperature,
		MaxTokens:   c.Model.MaxTokens,
		TopP:        c.Model.TopP,
		TopK:        c.Model.TopK,
	}
}

// StreamingHint returns the cadence hint, or nil when streaming is off.
func (c *Config) StreamingHint() *chatapi.StreamingHint {
	if !c.Streaming.Enabled {
		return nil
	}
	return &chatapi.StreamingHint{
		ChunkSize: c.Streaming.ChunkSize,
		DelayMs:   c.Streaming.DelayMs,
	}
}

// PayloadTemplate returns the request template for new questions.
func (c *Config) PayloadTemplate() chatapi.Template {
	return chatapi.Template{
		Settings: c.ModelSettings(),
		Provider: c.Model.Provider,
		ModelID:  c.Model.ModelID,
		Tools:    append([]string(nil), c.Tools.Selected...),
		Hint:     c.StreamingHint(),
	}
}

// TokenSource returns the fixed token when one is configured, otherwise a
// source reading backend.token_env on every request.
func (c *Config) TokenSource() chatapi.TokenSource {
	if c.Backend.Token != "" {
		return chatapi.StaticToken(c.Backend.Token)
	}
	if c.Backend.TokenEnv != "" {
		return chatapi.EnvToken(c.Backend.TokenEnv)
	}
	return nil
}

// ClientConfig returns a chat client configuration. Sink and Logger are
// left for the caller.
func (c *Config) ClientConfig() *chatapi.ClientConfig {
	cc := chatapi.DefaultConfig()
	cc.BaseURL = c.Backend.URL
	cc.Timeout = c.Timeout()
	cc.StreamConnectTimeout = c.StreamConnectTimeout()
	cc.IdentityHeader = c.Backend.IdentityHeader
	cc.Tokens = c.TokenSource()
	return cc
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Tools.Selected != nil {
		clone.Tools.Selected = append([]string(nil), c.Tools.Selected...)
	}
	return &clone
}

// String renders the config as JSON with the token redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Backend.Token != "" {
		safe.Backend.Token = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
