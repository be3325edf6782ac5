// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves mcpchat configuration.
//
// Configuration file locations (in order of precedence):
//   - ~/.mcpchat/config.toml
//   - ~/.mcpchat/config.json
//   - Built-in defaults
//
// Loading runs defaults, then the file, then MCPCHAT_* environment
// overrides, then SetDefaults and Validate. Watch reloads a file when it
// changes on disk.
//
// Example config.toml:
//
//	[backend]
//	url = "http://localhost:8081"
//	token_env = "MCPCHAT_TOKEN"
//
//	[model]
//	temperature = 0.5
//	provider = "Anthropic"
//	model_id = "claude-3-5-sonnet"
//
//	[streaming]
//	enabled = true
//	chunk_size = 1
//	delay_ms = 10
package config
