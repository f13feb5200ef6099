package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/ritzau/circulation/pkg/model"
	"github.com/ritzau/circulation/pkg/pathfind"
)

// PrintSummary prints a nicely formatted graph build report with colors
func PrintSummary(w io.Writer, s model.Summary) {
	// Color definitions
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	// Header
	bold.Fprintf(w, "Circulation Graph - %s\n", s.Label)
	bold.Fprintln(w, strings.Repeat("=", len("Circulation Graph - ")+len(s.Label)))
	fmt.Fprintf(w, "Model: %s\n", s.Model)
	fmt.Fprintf(w, "Spaces: %d\n", s.Nodes)
	fmt.Fprintf(w, "Connections: %d (from %d records)\n", s.Connections, s.Records)

	if s.Skipped == 0 {
		green.Fprintf(w, "Malformed records: 0\n")
	} else {
		yellow.Fprintf(w, "Malformed records: %d (skipped)\n", s.Skipped)
	}
	if s.Duplicates > 0 {
		cyan.Fprintf(w, "Repeated connections merged: %d\n", s.Duplicates)
	}

	if s.Connected {
		green.Fprintln(w, "✓ Every space is reachable from every other space")
		return
	}

	yellow.Fprintf(w, "Disconnected: %d regions\n", len(s.Regions))
	for i, region := range s.Regions {
		cyan.Fprintf(w, "  Region %d (%d spaces): ", i+1, len(region))
		fmt.Fprintln(w, strings.Join(region, ", "))
	}
}

// PrintRoutes prints a search outcome, one line per ranked route
func PrintRoutes(w io.Writer, from, to string, out pathfind.Outcome) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	bold.Fprintf(w, "%s → %s\n", from, to)

	switch out.Status {
	case pathfind.StatusNodeNotFound:
		yellow.Fprintf(w, "No route: unknown space %s\n", strings.Join(quoted(out.Missing), ", "))
		return
	case pathfind.StatusNoPath:
		yellow.Fprintln(w, "No route: the spaces are not connected")
		return
	case pathfind.StatusInvalidRank:
		yellow.Fprintln(w, "No route: at least one route must be requested")
		return
	}

	for i, p := range out.Paths {
		rank := green
		if i > 0 {
			rank = cyan
		}
		rank.Fprintf(w, "#%d ", i+1)
		fmt.Fprintf(w, "%s ", strings.Join(p.Nodes, " → "))
		bold.Fprintf(w, "(%g)\n", p.Weight)
	}
}

// PrintDiagnostics prints pending diagnostics, newest first
func PrintDiagnostics(w io.Writer, messages []string) {
	if len(messages) == 0 {
		return
	}

	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	red.Fprintf(w, "DIAGNOSTICS (%d):\n", len(messages))
	for _, msg := range messages {
		yellow.Fprintf(w, "  %s\n", msg)
	}
}

func quoted(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("%q", n)
	}
	return out
}
