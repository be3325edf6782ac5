// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shaharia-lab/mcpchat/internal/chatapi"
)

// HandleProviders lists the backend's providers and models. The configured
// selection is marked with "*".
func HandleProviders(ctx context.Context, app *App, args Args) error {
	providers, err := app.Client.ListProviders(ctx)
	if app.JSON {
		return outputJSON(app.Out, CmdProviders.String(), func() (any, error) { return providers, err })
	}
	if err != nil {
		return err
	}
	printProviders(app.Out, providers, app.Config.Model.Provider, app.Config.Model.ModelID)
	return nil
}

// HandleTools lists the backend's tools. Tools selected in the config are
// marked [x].
func HandleTools(ctx context.Context, app *App, args Args) error {
	tools, err := app.Client.ListTools(ctx)
	if app.JSON {
		return outputJSON(app.Out, CmdTools.String(), func() (any, error) { return tools, err })
	}
	if err != nil {
		return err
	}
	printTools(app.Out, tools, app.Config.PayloadTemplate())
	return nil
}

func printProviders(w io.Writer, providers []chatapi.ProviderInfo, provider, modelID string) {
	if len(providers) == 0 {
		fmt.Fprintln(w, "The backend offers no providers.")
		return
	}
	for _, p := range providers {
		selected := strings.EqualFold(p.Name, provider)
		marker := "  "
		if selected {
			marker = "* "
		}
		fmt.Fprintln(w, marker+TitleStyle.Render(p.Name))
		for _, m := range p.Models {
			sel := "    "
			if selected && m == modelID {
				sel = "  * "
			}
			fmt.Fprintln(w, sel+m)
		}
	}
}

func printTools(w io.Writer, tools []chatapi.ToolInfo, tpl chatapi.Template) {
	if len(tools) == 0 {
		fmt.Fprintln(w, "The backend offers no tools.")
		return
	}
	for _, t := range tools {
		box := "[ ]"
		if tpl.HasTool(t.Name) {
			box = "[x]"
		}
		line := box + " " + t.Name
		if t.Description != "" {
			line += "  " + DimStyle.Render(t.Description)
		}
		fmt.Fprintln(w, line)
	}
}
