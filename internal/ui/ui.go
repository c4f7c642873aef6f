// Package ui renders command results for the terminal: refactoring
// refusals, applied steps, set listings and journal events.
package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/papapumpkin/buildgraph/internal/ansi"
	"github.com/papapumpkin/buildgraph/internal/journal"
	"github.com/papapumpkin/buildgraph/internal/refactor"
)

// Printer writes human-readable output. Status lines go to the error
// stream; listings go to the output stream.
type Printer struct {
	out   io.Writer
	err   io.Writer
	color bool
}

// New returns a colored Printer on stdout and stderr.
func New() *Printer {
	return &Printer{out: os.Stdout, err: os.Stderr, color: true}
}

// NewPlain returns an uncolored Printer on the given writers.
func NewPlain(out, err io.Writer) *Printer {
	return &Printer{out: out, err: err}
}

func (p *Printer) style(s string, codes ...string) string {
	if !p.color {
		return s
	}
	return ansi.Style(s, codes...)
}

// Error reports a failure.
func (p *Printer) Error(msg string) {
	fmt.Fprintf(p.err, "%s%s\n", p.style("error: ", ansi.Red, ansi.Bold), msg)
}

// Info prints a dim status line.
func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.err, p.style(msg, ansi.Dim))
}

// Applied reports a step that changed the store.
func (p *Printer) Applied(label string, ops int) {
	fmt.Fprintf(p.err, "%s %s %s\n", p.style("✓", ansi.Green, ansi.Bold), label, p.style(fmt.Sprintf("(%d ops)", ops), ansi.Dim))
}

// DryRun reports a step that was applied and rolled back.
func (p *Printer) DryRun(label string, ops int) {
	fmt.Fprintf(p.err, "%s %s %s\n", p.style("dry run", ansi.Yellow, ansi.Bold), label, p.style(fmt.Sprintf("(%d ops, undone)", ops), ansi.Dim))
}

// Refusal renders a refused intent. name, when non-nil, labels path IDs.
func (p *Printer) Refusal(e *refactor.Error, name func(id int) string) {
	fmt.Fprintf(p.err, "%s %s\n", p.style("✗ refused:", ansi.Red, ansi.Bold), p.style(string(e.Cause), ansi.Bold))
	for _, id := range e.PathIDs {
		label := fmt.Sprintf("path %d", id)
		if name != nil {
			label += "  " + name(id)
		}
		fmt.Fprintf(p.err, "  %s\n", label)
	}
	row := func(kind string, ids []int) {
		if len(ids) > 0 {
			fmt.Fprintf(p.err, "  %s %s\n", p.style(kind+":", ansi.Dim), joinInts(ids))
		}
	}
	row("actions", e.ActionIDs)
	row("packages", e.PackageIDs)
	row("groups", e.GroupIDs)
	if len(e.MemberTypes) > 0 {
		types := make([]int, len(e.MemberTypes))
		for i, t := range e.MemberTypes {
			types[i] = int(t)
		}
		row("member types", types)
	}
}

// Paths lists path names, one per line, sorted.
func (p *Printer) Paths(names []string) {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	for _, n := range sorted {
		fmt.Fprintln(p.out, n)
	}
}

// Actions lists actions as "id  command", ordered by ID. Multi-line
// commands show their first line.
func (p *Printer) Actions(commands map[int]string) {
	ids := make([]int, 0, len(commands))
	for id := range commands {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		cmd, _, _ := strings.Cut(commands[id], "\n")
		fmt.Fprintf(p.out, "%6d  %s\n", id, cmd)
	}
}

// Event renders one journal event.
func (p *Printer) Event(e journal.Event) {
	mark := p.style(e.Kind, ansi.Cyan)
	switch e.Kind {
	case journal.KindFailed:
		mark = p.style(e.Kind, ansi.Red, ansi.Bold)
	case journal.KindUndone:
		mark = p.style(e.Kind, ansi.Magenta)
	}
	line := fmt.Sprintf("%s %-8s %s", e.Timestamp.Format("15:04:05"), mark, e.Label)
	if e.Error != "" {
		line += " " + p.style(e.Error, ansi.Red)
	}
	fmt.Fprintln(p.out, line)
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}
