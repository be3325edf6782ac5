// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/shaharia-lab/mcpchat/internal/chatapi"
	"github.com/shaharia-lab/mcpchat/internal/storage"
	"github.com/shaharia-lab/mcpchat/internal/util"
)

// ConversationView is the --json form of history show.
type ConversationView struct {
	ID       string                   `json:"id"`
	Title    string                   `json:"title,omitempty"`
	Local    bool                     `json:"local"`
	Messages []chatapi.HistoryMessage `json:"messages"`
}

// HandleHistory lists, shows or deletes conversations on the backend, or
// in the local transcript cache with --local. Search and export always use
// the local cache.
func HandleHistory(ctx context.Context, app *App, args Args) error {
	if args.Subcommand == "search" || args.Subcommand == "export" {
		args.Local = true
	}
	if args.Local && app.Store == nil {
		return errNoStore
	}
	command := "history " + args.Subcommand

	switch args.Subcommand {
	case "search":
		metas, err := app.Store.Search(args.Query)
		if app.JSON {
			return outputJSON(app.Out, command, func() (any, error) { return metas, err })
		}
		if err != nil {
			return err
		}
		if len(metas) == 0 {
			fmt.Fprintf(app.Out, "No cached conversations match %s.\n", quote(args.Query))
			return nil
		}
		fmt.Fprint(app.Out, storage.FormatList(metas))
		return nil

	case "export":
		conv, err := app.Store.Load(args.ID)
		if app.JSON {
			return outputJSON(app.Out, command, func() (any, error) {
				if err != nil {
					return nil, err
				}
				return map[string]string{"id": conv.ID, "markdown": conv.ExportMarkdown()}, nil
			})
		}
		if err != nil {
			return err
		}
		fmt.Fprint(app.Out, conv.ExportMarkdown())
		return nil

	case "show":
		if app.JSON {
			return outputJSON(app.Out, command, func() (any, error) {
				return loadConversation(ctx, app, args)
			})
		}
		view, err := loadConversation(ctx, app, args)
		if err != nil {
			return err
		}
		printConversation(app, view)
		return nil

	case "delete":
		del := func() (any, error) {
			if args.Local {
				return nil, app.Store.Delete(args.ID)
			}
			return nil, app.Client.DeleteConversation(ctx, args.ID)
		}
		if app.JSON {
			return outputJSON(app.Out, command, func() (any, error) {
				_, err := del()
				return map[string]string{"deleted": args.ID}, err
			})
		}
		if _, err := del(); err != nil {
			return err
		}
		if !app.Quiet {
			fmt.Fprintln(app.Out, SuccessStyle.Render("Deleted conversation "+args.ID))
		}
		return nil

	default:
		if args.Local {
			metas, err := app.Store.List()
			if app.JSON {
				return outputJSON(app.Out, command, func() (any, error) { return metas, err })
			}
			if err != nil {
				return err
			}
			fmt.Fprint(app.Out, storage.FormatList(metas))
			return nil
		}

		convs, err := app.Client.ListConversations(ctx)
		if app.JSON {
			return outputJSON(app.Out, command, func() (any, error) { return convs, err })
		}
		if err != nil {
			return err
		}
		printConversationList(app.Out, convs)
		return nil
	}
}

func loadConversation(ctx context.Context, app *App, args Args) (*ConversationView, error) {
	if args.Local {
		conv, err := app.Store.Load(args.ID)
		if err != nil {
			return nil, err
		}
		view := &ConversationView{ID: conv.ID, Title: conv.Title, Local: true}
		for _, m := range conv.Messages {
			view.Messages = append(view.Messages, chatapi.HistoryMessage{Text: m.Content, IsUser: m.IsUser})
		}
		return view, nil
	}

	conv, err := app.Client.LoadHistory(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	id := conv.ID
	if id == "" {
		id = args.ID
	}
	return &ConversationView{ID: id, Messages: conv.Messages}, nil
}

func printConversation(app *App, view *ConversationView) {
	w := app.Out
	title := view.Title
	if title == "" {
		title = view.ID
	}
	fmt.Fprintln(w, TitleStyle.Render(util.SingleLine(title)))
	if len(view.Messages) == 0 {
		fmt.Fprintln(w, DimStyle.Render("(no messages)"))
		return
	}
	for _, m := range view.Messages {
		fmt.Fprintln(w)
		if m.IsUser {
			fmt.Fprintln(w, UserStyle.Render("You"))
			fmt.Fprintln(w, m.Text)
		} else {
			fmt.Fprintln(w, AssistantStyle.Render("Assistant"))
			fmt.Fprintln(w, app.renderAnswer(m.Text))
		}
	}
}

// printConversationList prints backend conversations newest first.
func printConversationList(w io.Writer, convs []chatapi.ConversationSummary) {
	if len(convs) == 0 {
		fmt.Fprintln(w, "No conversations.")
		return
	}
	sorted := append([]chatapi.ConversationSummary(nil), convs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	for _, c := range sorted {
		created := "                "
		if !c.CreatedAt.IsZero() {
			created = c.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%-36s  %s  %s\n", c.ID, DimStyle.Render(created), util.TruncateWidth(util.SingleLine(c.Title), 50))
	}
}
