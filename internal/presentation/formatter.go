// Package presentation formats command output as JSON or as terminal tables.
package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/zjrosen/qcircuit/internal/dispatch"
)

const barWidth = 20

var headerStyle = lipgloss.NewStyle().Bold(true)

// Formatter handles output formatting.
type Formatter struct {
	writer io.Writer
	json   bool
}

// NewFormatter creates a formatter writing tables to writer.
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{writer: writer}
}

// NewJSONFormatter creates a formatter writing indented JSON to writer.
func NewJSONFormatter(writer io.Writer) *Formatter {
	return &Formatter{writer: writer, json: true}
}

func (f *Formatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (f *Formatter) table(headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...).
		Rows(rows...)
	_, err := fmt.Fprintln(f.writer, t.String())
	return err
}

// FormatRun prints one run: a header line and a histogram of outcomes.
func (f *Formatter) FormatRun(run RunDTO) error {
	if f.json {
		return f.encode(run)
	}
	header := fmt.Sprintf("%s  qubits=%d shots=%d seed=%d", run.Circuit, run.Qubits, run.Shots, run.Seed)
	if run.Pass != "" {
		header += " pass=" + run.Pass
	}
	if run.ID != "" {
		header += " id=" + run.ID
	}
	if _, err := fmt.Fprintln(f.writer, headerStyle.Render(header)); err != nil {
		return err
	}
	rows := make([][]string, len(run.Outcomes))
	for i, o := range run.Outcomes {
		rows[i] = []string{
			o.Bits,
			strconv.Itoa(o.Count),
			fmt.Sprintf("%5.1f%%", 100*o.Fraction),
			strings.Repeat("█", int(o.Fraction*barWidth+0.5)),
		}
	}
	return f.table([]string{"OUTCOME", "COUNT", "SHARE", ""}, rows)
}

// FormatRuns prints a run history, newest first.
func (f *Formatter) FormatRuns(runs []RunDTO) error {
	if f.json {
		return f.encode(runs)
	}
	rows := make([][]string, len(runs))
	for i, r := range runs {
		top := "-"
		if o, ok := r.Top(); ok {
			top = fmt.Sprintf("%s (%.1f%%)", o.Bits, 100*o.Fraction)
		}
		rows[i] = []string{
			shortID(r.ID),
			r.CreatedAt.Local().Format(time.DateTime),
			r.Circuit,
			r.Pass,
			strconv.Itoa(r.Shots),
			top,
		}
	}
	return f.table([]string{"ID", "CREATED", "CIRCUIT", "PASS", "SHOTS", "TOP"}, rows)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// FormatCircuits prints circuit summaries.
func (f *Formatter) FormatCircuits(circuits []CircuitDTO) error {
	if f.json {
		return f.encode(circuits)
	}
	rows := make([][]string, len(circuits))
	for i, c := range circuits {
		rows[i] = []string{c.Name, strconv.Itoa(len(c.Qubits)), strconv.Itoa(c.Steps), c.Description}
	}
	return f.table([]string{"NAME", "QUBITS", "STEPS", "DESCRIPTION"}, rows)
}

// FormatCalls prints a symbolic trace, one call per line.
func (f *Formatter) FormatCalls(calls []CallDTO) error {
	if f.json {
		return f.encode(calls)
	}
	for _, c := range calls {
		if _, err := fmt.Fprintf(f.writer, "%s(%s)\n", c.Operation, strings.Join(c.Args, ", ")); err != nil {
			return err
		}
	}
	return nil
}

// FormatStats prints dispatch counters.
func (f *Formatter) FormatStats(stats []dispatch.CallStat) error {
	if f.json {
		return f.encode(stats)
	}
	rows := make([][]string, len(stats))
	for i, s := range stats {
		rows[i] = []string{s.Facade, s.Outcome, strconv.FormatFloat(s.Count, 'f', -1, 64)}
	}
	return f.table([]string{"FACADE", "OUTCOME", "CALLS"}, rows)
}

// FormatSpans prints dispatch spans read back from a trace file.
func (f *Formatter) FormatSpans(spans []SpanDTO) error {
	if f.json {
		return f.encode(spans)
	}
	rows := make([][]string, len(spans))
	for i, s := range spans {
		rows[i] = []string{
			s.Facade,
			s.Operation,
			s.Outcome,
			strconv.Itoa(s.Declines),
			strconv.FormatFloat(s.DurationMs, 'f', 3, 64),
		}
	}
	return f.table([]string{"FACADE", "OPERATION", "OUTCOME", "DECLINES", "MS"}, rows)
}
