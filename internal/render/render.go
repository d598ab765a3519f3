// Package render draws operations as indented trees and diffs two drawings.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/zjrosen/qcircuit/internal/circuit"
	"github.com/zjrosen/qcircuit/internal/operations"
)

var (
	classColor   = lipgloss.AdaptiveColor{Light: "#8839EF", Dark: "#CBA6F7"}
	gateColor    = lipgloss.AdaptiveColor{Light: "#179299", Dark: "#94E2D5"}
	indexColor   = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}
	addedColor   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	removedColor = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}
)

const indent = "  "

type paint func(string) string

func plain(s string) string { return s }

func styled(style lipgloss.Style) paint {
	return func(s string) string { return style.Render(s) }
}

// Renderer draws operations. The zero value is not usable; see New.
type Renderer struct {
	class   paint
	gate    paint
	index   paint
	added   paint
	removed paint
}

// New returns a Renderer. With color unset every method emits plain text.
func New(color bool) *Renderer {
	if !color {
		return &Renderer{class: plain, gate: plain, index: plain, added: plain, removed: plain}
	}
	return &Renderer{
		class:   styled(lipgloss.NewStyle().Foreground(classColor).Bold(true)),
		gate:    styled(lipgloss.NewStyle().Foreground(gateColor)),
		index:   styled(lipgloss.NewStyle().Foreground(indexColor)),
		added:   styled(lipgloss.NewStyle().Foreground(addedColor)),
		removed: styled(lipgloss.NewStyle().Foreground(removedColor)),
	}
}

// Tree renders op one node per line, children indented under their parent.
// A remapped leaf gate collapses onto one line as "gate @ indices".
func (r *Renderer) Tree(op circuit.Operation) string {
	var b strings.Builder
	r.node(&b, op, 0)
	return b.String()
}

func (r *Renderer) node(b *strings.Builder, op circuit.Operation, depth int) {
	pad := strings.Repeat(indent, depth)
	switch o := op.(type) {
	case *operations.Sequential:
		fmt.Fprintf(b, "%s%s\n", pad, r.heading(o.Class().Name(), o.Name()))
		for _, step := range o.Steps() {
			r.node(b, step, depth+1)
		}
	case *operations.RemappedByIndices:
		if isLeaf(o.Inner()) {
			fmt.Fprintf(b, "%s%s %s\n", pad, r.gate(label(o.Inner())), r.index("@ "+o.String()))
			return
		}
		fmt.Fprintf(b, "%s%s %s\n", pad, r.heading(o.Class().Name(), o.Name()), r.index("@ "+o.String()))
		r.node(b, o.Inner(), depth+1)
	case *operations.RemappedByLambda:
		fmt.Fprintf(b, "%s%s\n", pad, r.heading(o.Class().Name(), o.Name()))
		r.node(b, o.Inner(), depth+1)
	case *operations.Controlled:
		if isLeaf(o) {
			fmt.Fprintf(b, "%s%s\n", pad, r.gate(label(o)))
			return
		}
		fmt.Fprintf(b, "%s%s\n", pad, r.heading(o.Class().Name(), o.Name()))
		r.node(b, o.Inner(), depth+1)
	default:
		fmt.Fprintf(b, "%s%s\n", pad, r.gate(label(op)))
	}
}

func (r *Renderer) heading(class, name string) string {
	if name == "" {
		return r.class(class)
	}
	return r.class(class) + " " + name
}

// isLeaf reports whether op draws on a single line. Named controlled gates such as CX
// count as leaves, as does C(g) for a leaf g.
func isLeaf(op circuit.Operation) bool {
	switch o := op.(type) {
	case *operations.Sequential, *operations.RemappedByIndices, *operations.RemappedByLambda:
		return false
	case *operations.Controlled:
		return o.Name() != "" || isLeaf(o.Inner())
	}
	return true
}

func label(op circuit.Operation) string {
	if c, ok := op.(*operations.Controlled); ok && c.Name() == "" {
		return "C(" + label(c.Inner()) + ")"
	}
	if s, ok := op.(fmt.Stringer); ok {
		return s.String()
	}
	if op.Name() != "" {
		return op.Name()
	}
	return op.Class().Name()
}

// Diff returns a line diff of two renderings. Unchanged lines are prefixed with two
// spaces, removed lines with "- " and added lines with "+ ".
func (r *Renderer) Diff(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(terminate(before), terminate(after))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			line = strings.TrimSuffix(line, "\n")
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				out.WriteString(r.added("+ " + line))
			case diffmatchpatch.DiffDelete:
				out.WriteString(r.removed("- " + line))
			default:
				out.WriteString("  " + line)
			}
			out.WriteByte('\n')
		}
	}
	return out.String()
}

func terminate(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// Tree renders op without color.
func Tree(op circuit.Operation) string {
	return New(false).Tree(op)
}

// Diff diffs two renderings without color.
func Diff(before, after string) string {
	return New(false).Diff(before, after)
}
