// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/shaharia-lab/mcpchat/internal/telemetry"
)

// UsageReport is the --json output of usage.
type UsageReport struct {
	From         time.Time                 `json:"from"`
	To           time.Time                 `json:"to"`
	Sessions     []*telemetry.SessionUsage `json:"sessions"`
	Exchanges    int                       `json:"exchanges"`
	Streamed     int                       `json:"streamed"`
	InputTokens  int                       `json:"input_tokens"`
	OutputTokens int                       `json:"output_tokens"`
}

// HandleUsage summarizes the sessions recorded in the last --days days.
func HandleUsage(ctx context.Context, app *App, args Args) error {
	days := args.Days
	if days <= 0 {
		days = 7
	}
	now := time.Now()
	report := buildUsageReport(app.Usage, now.AddDate(0, 0, -days), now)

	if app.JSON {
		return outputJSON(app.Out, CmdUsage.String(), func() (any, error) { return report, nil })
	}
	printUsageReport(app.Out, report, days)
	return nil
}

func buildUsageReport(ut *telemetry.UsageTracker, from, to time.Time) *UsageReport {
	report := &UsageReport{From: from, To: to, Sessions: []*telemetry.SessionUsage{}}
	if ut == nil {
		return report
	}
	for _, s := range ut.History(from, to) {
		report.Sessions = append(report.Sessions, s)
		report.Exchanges += s.Exchanges
		report.Streamed += s.Streamed
		report.InputTokens += s.InputTokens
		report.OutputTokens += s.OutputTokens
	}
	return report
}

func printUsageReport(w io.Writer, r *UsageReport, days int) {
	if len(r.Sessions) == 0 {
		fmt.Fprintf(w, "No sessions recorded in the last %d day(s).\n", days)
		return
	}
	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Usage, last %d day(s)", days)))
	for _, s := range r.Sessions {
		fmt.Fprintf(w, "  %s  %3d exchange(s), %3d streamed  %6d in  %6d out\n",
			s.StartTime.Local().Format("2006-01-02 15:04"), s.Exchanges, s.Streamed, s.InputTokens, s.OutputTokens)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s%d\n", LabelStyle.Render("Sessions"), len(r.Sessions))
	fmt.Fprintf(w, "%s%d (%d streamed)\n", LabelStyle.Render("Exchanges"), r.Exchanges, r.Streamed)
	fmt.Fprintf(w, "%s%d\n", LabelStyle.Render("Tokens in"), r.InputTokens)
	fmt.Fprintf(w, "%s%d\n", LabelStyle.Render("Tokens out"), r.OutputTokens)
}
