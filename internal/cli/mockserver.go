// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/shaharia-lab/mcpchat/internal/server"
)

// MockServerConfig builds the reference backend's config from flags.
func MockServerConfig(args Args, logger logrus.FieldLogger) (server.Config, error) {
	cfg := server.DefaultConfig()
	if args.Addr != "" {
		cfg.Addr = args.Addr
	}
	cfg.Token = args.ServerToken
	if args.ChunkSize > 0 {
		cfg.ChunkSize = args.ChunkSize
	}
	cfg.Logger = logger

	for _, f := range args.Faults {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "malformed":
			cfg.Faults.MalformedFrame = true
		case "omit-done":
			cfg.Faults.OmitDone = true
		case "trailing":
			cfg.Faults.TrailingAfterDone = true
		default:
			return cfg, &UsageError{Command: "mock-server", Message: "unknown fault " + quote(f), Example: "--fault malformed,omit-done,trailing"}
		}
	}
	return cfg, nil
}

// HandleMockServer serves the reference backend until ctx is cancelled.
func HandleMockServer(ctx context.Context, args Args, logger logrus.FieldLogger) error {
	cfg, err := MockServerConfig(args, logger)
	if err != nil {
		return err
	}
	return server.New(cfg).ListenAndServe(ctx)
}
