package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gobwas/glob"
	"golang.org/x/term"

	"github.com/nulifyer/nuglyph/editor"
	"github.com/nulifyer/nuglyph/glyphs"
	"github.com/nulifyer/nuglyph/logger"
)

type reportRow struct {
	id, current, latest, status string
	update                      bool
}

// runCheck resolves every reference once without a terminal UI and writes a
// table to w. It returns the number of references with an update available.
func runCheck(ctx context.Context, w io.Writer, buf *editor.Buffer, catalog *glyphs.Catalog, ignore []glob.Glob, opts []glyphs.Option) (int, error) {
	host := editor.NewHost()
	host.SetViewport(0, buf.LineCount())

	published := make(chan *glyphs.State, 1)
	opts = append(opts, glyphs.WithPublishHook(func(s *glyphs.State) {
		select {
		case published <- s:
		default:
		}
	}))
	ctrl := glyphs.NewController(buf, host, host, catalog, opts...)
	defer ctrl.Close()
	if err := ctrl.Start(ctx); err != nil {
		return 0, err
	}

	var state *glyphs.State
	select {
	case state = <-published:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	text, _ := buf.Text()
	rows := buildReport(glyphs.ParseReferences(text), state, ignore)
	writeReport(w, buf.Path(), rows, terminalWidth())

	updates := 0
	for _, r := range rows {
		if r.update {
			updates++
		}
	}
	logger.Debug("%d of %d reference(s) can be updated", updates, len(rows))
	return updates, nil
}

func buildReport(refs []glyphs.PackageReference, state *glyphs.State, ignore []glob.Glob) []reportRow {
	rows := make([]reportRow, 0, len(refs))
	for _, ref := range refs {
		row := reportRow{id: ref.PackageID, current: ref.DeclaredVersion, latest: "-"}
		resolved, ok := state.Lookup(ref.Line)
		switch {
		case glyphs.Ignored(ignore, ref.PackageID):
			row.status = "ignored"
		case !ok:
			row.status = "❌ not found"
		case resolved.IsUpToDate():
			row.latest = resolved.LatestVersion
			row.status = "✅ up to date"
		default:
			row.latest = resolved.LatestVersion
			row.status = "⬆  update available"
			row.update = true
		}
		rows = append(rows, row)
	}
	return rows
}

func writeReport(w io.Writer, path string, rows []reportRow, width int) {
	idW := 40
	if width > 0 {
		idW = min(max(width-56, 16), 60)
	}

	fmt.Fprintf(w, "\n📦 %s\n", path)
	fmt.Fprintln(w, strings.Repeat("─", min(max(width, 40), idW+56)))
	if len(rows) == 0 {
		fmt.Fprintln(w, "   no package references")
		return
	}
	for _, r := range rows {
		fmt.Fprintf(w, "   %-*s current: %-14s latest: %-14s %s\n", idW, fitWidth(r.id, idW), r.current, r.latest, r.status)
	}
}

func fitWidth(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return w
}
