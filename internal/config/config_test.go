// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/mcpchat/internal/chatapi"
)

// clearEnv unsets every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MCPCHAT_BACKEND_URL", "MCPCHAT_TOKEN", "MCPCHAT_PROVIDER",
		"MCPCHAT_MODEL", "MCPCHAT_LOG_LEVEL", "MCPCHAT_STREAM",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFromPath_TOML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[backend]
url = "https://chat.example.com/"
identity_header = "X-Conversation"

[model]
temperature = 0.9
provider = "Anthropic"
model_id = "claude-3-5-sonnet"

[streaming]
enabled = false

[tools]
selected = ["search", "search", "fetch"]

[log]
level = "WARNING"
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	require.Equal(t, "https://chat.example.com", cfg.Backend.URL)
	require.Equal(t, "X-Conversation", cfg.Backend.IdentityHeader)
	require.Equal(t, 0.9, cfg.Model.Temperature)
	require.Equal(t, 2000, cfg.Model.MaxTokens, "unset keys keep defaults")
	require.Equal(t, "Anthropic", cfg.Model.Provider)
	require.False(t, cfg.Streaming.Enabled)
	require.Equal(t, []string{"search", "fetch"}, cfg.Tools.Selected)
	require.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadFromPath_JSON(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"backend":{"url":"http://127.0.0.1:9000"},"ui":{"theme":"light"}}`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:9000", cfg.Backend.URL)
	require.Equal(t, "light", cfg.UI.Theme)
	require.Equal(t, 60, cfg.Backend.TimeoutSecs)
}

func TestLoadFromPath_Invalid(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[backend]
url = "ftp://nope"
[model]
temperature = 5.0
`)

	_, err := LoadFromPath(path)
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, 0, len(verrs))
	for _, v := range verrs {
		fields = append(fields, v.Field)
	}
	require.ElementsMatch(t, []string{"backend.url", "model.temperature"}, fields)
}

func TestLoadFromPath_BadSyntax(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "this is = = not toml")

	_, err := LoadFromPath(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "TOML")
}

func TestLoadFromPath_FixesPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on Windows")
	}
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ui]\ntheme = \"dark\"\n"), 0644))

	_, err := LoadFromPath(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MCPCHAT_BACKEND_URL", "http://override:1234")
	t.Setenv("MCPCHAT_TOKEN", "tok")
	t.Setenv("MCPCHAT_PROVIDER", "OpenAI")
	t.Setenv("MCPCHAT_MODEL", "gpt-4o")
	t.Setenv("MCPCHAT_LOG_LEVEL", "debug")
	t.Setenv("MCPCHAT_STREAM", "false")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	require.Equal(t, "http://override:1234", cfg.Backend.URL)
	require.Equal(t, "tok", cfg.Backend.Token)
	require.Equal(t, "OpenAI", cfg.Model.Provider)
	require.Equal(t, "gpt-4o", cfg.Model.ModelID)
	require.Equal(t, "debug", cfg.Log.Level)
	require.False(t, cfg.Streaming.Enabled)
}

func TestApplyEnvOverrides_IgnoresBadBool(t *testing.T) {
	clearEnv(t)
	t.Setenv("MCPCHAT_STREAM", "maybe")
	cfg := Default()
	cfg.ApplyEnvOverrides()
	require.True(t, cfg.Streaming.Enabled)
}

func TestValidate_ModelIDNeedsProvider(t *testing.T) {
	cfg := Default()
	cfg.Model.ModelID = "gpt-4o"
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "model.provider")
}

func TestValidate_IdentityHeader(t *testing.T) {
	cfg := Default()
	cfg.Backend.IdentityHeader = "X Bad: header"
	require.Error(t, cfg.Validate())
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Model.Provider = "Anthropic"
	cfg.Tools.Selected = []string{"search"}
	require.NoError(t, SaveTOML(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "# mcpchat configuration file"))
	require.NotContains(t, string(data), "token =", "empty token is omitted")

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, "Anthropic", loaded.Model.Provider)
	require.Equal(t, []string{"search"}, loaded.Tools.Selected)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestSaveJSON(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, SaveJSON(Default(), path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, Default().Backend.URL, loaded.Backend.URL)
}

func TestString_RedactsToken(t *testing.T) {
	cfg := Default()
	cfg.Backend.Token = "super-secret"
	out := cfg.String()
	require.NotContains(t, out, "super-secret")
	require.Contains(t, out, "[REDACTED]")
	require.Equal(t, "super-secret", cfg.Backend.Token, "String must not modify the receiver")
}

func TestClone_IsDeep(t *testing.T) {
	cfg := Default()
	cfg.Tools.Selected = []string{"a"}
	clone := cfg.Clone()
	clone.Tools.Selected[0] = "b"
	require.Equal(t, "a", cfg.Tools.Selected[0])
}

func TestDerivedValues(t *testing.T) {
	cfg := Default()
	require.Equal(t, 60*time.Second, cfg.Timeout())
	require.Equal(t, 15*time.Second, cfg.StreamConnectTimeout())

	cfg.Storage.Dir = "/tmp/convs"
	dir, err := cfg.StorageDir()
	require.NoError(t, err)
	require.Equal(t, "/tmp/convs", dir)
}

func TestPayloadTemplate(t *testing.T) {
	cfg := Default()
	cfg.Model.Provider = "Anthropic"
	cfg.Model.ModelID = "claude-3-5-haiku"
	cfg.Tools.Selected = []string{"search"}

	tpl := cfg.PayloadTemplate()
	require.Equal(t, chatapi.DefaultModelSettings(), tpl.Settings)
	require.Equal(t, "Anthropic", tpl.Provider)
	require.Equal(t, "claude-3-5-haiku", tpl.ModelID)
	require.Equal(t, []string{"search"}, tpl.Tools)
	require.Equal(t, &chatapi.StreamingHint{ChunkSize: 1, DelayMs: 10}, tpl.Hint)

	// The template owns its tool slice.
	tpl.Tools[0] = "changed"
	require.Equal(t, "search", cfg.Tools.Selected[0])

	cfg.Streaming.Enabled = false
	require.Nil(t, cfg.PayloadTemplate().Hint)
}

func TestClientConfig(t *testing.T) {
	cfg := Default()
	cfg.Backend.URL = "http://backend:9000"
	cfg.Backend.IdentityHeader = "X-Conv"

	cc := cfg.ClientConfig()
	require.Equal(t, "http://backend:9000", cc.BaseURL)
	require.Equal(t, 60*time.Second, cc.Timeout)
	require.Equal(t, 15*time.Second, cc.StreamConnectTimeout)
	require.Equal(t, "X-Conv", cc.IdentityHeader)
	require.Equal(t, chatapi.EnvToken("MCPCHAT_TOKEN"), cc.Tokens)

	cfg.Backend.Token = "secret"
	tok, err := cfg.ClientConfig().Tokens.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "secret", tok)

	cfg.Backend.Token = ""
	cfg.Backend.TokenEnv = ""
	require.Nil(t, cfg.TokenSource())
}

// =============================================================================
// WATCHER
// =============================================================================

func TestWatch_ReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[model]\ntemperature = 0.1\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 16)
	w, err := NewWatcher(path, func(c *Config) {
		select {
		case changes <- c:
		default:
		}
	})
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	require.NoError(t, w.Start(ctx))

	writeFile(t, path, "[model]\ntemperature = 0.7\n")

	// A reload may observe the truncated file first; wait for the final content.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.Model.Temperature == 0.7 {
				return
			}
		case <-deadline:
			t.Fatal("no reload after write")
		}
	}
}

func TestWatch_ReportsInvalidFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[model]\ntemperature = 0.1\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 16)
	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	w.OnError = func(err error) {
		select {
		case errs <- err:
		default:
		}
	}
	w.SetDebounce(20 * time.Millisecond)
	require.NoError(t, w.Start(ctx))

	writeFile(t, path, "[model]\ntemperature = 9.0\n")

	select {
	case err := <-errs:
		require.Contains(t, err.Error(), "model.temperature")
	case <-time.After(5 * time.Second):
		t.Fatal("no error reported")
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing", "config.toml"), nil)
	require.Error(t, err)
}
