package presentation

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/zjrosen/qcircuit/internal/circuitfile"
	"github.com/zjrosen/qcircuit/internal/runtime/symbolic"
	"github.com/zjrosen/qcircuit/internal/store"
	"github.com/zjrosen/qcircuit/internal/tracing"
)

// OutcomeDTO is one measured bit string.
type OutcomeDTO struct {
	Bits     string  `json:"bits"`
	Count    int     `json:"count"`
	Fraction float64 `json:"fraction"`
}

// RunDTO represents a sampled run for presentation.
type RunDTO struct {
	ID        string       `json:"id,omitempty"`
	Circuit   string       `json:"circuit"`
	Pass      string       `json:"pass,omitempty"`
	Qubits    int          `json:"qubits"`
	Shots     int          `json:"shots"`
	Seed      uint64       `json:"seed"`
	Outcomes  []OutcomeDTO `json:"outcomes"` // sorted by bit string
	CreatedAt time.Time    `json:"created_at,omitzero"`
}

// FromCounts converts raw counts to outcomes sorted by bit string.
func FromCounts(counts map[string]int, shots int) []OutcomeDTO {
	out := make([]OutcomeDTO, 0, len(counts))
	for bits, n := range counts {
		var frac float64
		if shots > 0 {
			frac = float64(n) / float64(shots)
		}
		out = append(out, OutcomeDTO{Bits: bits, Count: n, Fraction: frac})
	}
	slices.SortFunc(out, func(a, b OutcomeDTO) int { return strings.Compare(a.Bits, b.Bits) })
	return out
}

// FromRun converts a stored run.
func FromRun(r *store.Run) RunDTO {
	return RunDTO{
		ID:        r.ID,
		Circuit:   r.Circuit,
		Pass:      r.Pass,
		Qubits:    r.Qubits,
		Shots:     r.Shots,
		Seed:      r.Seed,
		Outcomes:  FromCounts(r.Counts, r.Shots),
		CreatedAt: r.CreatedAt,
	}
}

// Top returns the most frequent outcome, the lexically smallest on ties.
func (r RunDTO) Top() (OutcomeDTO, bool) {
	if len(r.Outcomes) == 0 {
		return OutcomeDTO{}, false
	}
	best := r.Outcomes[0]
	for _, o := range r.Outcomes[1:] {
		if o.Count > best.Count {
			best = o
		}
	}
	return best, true
}

// CircuitDTO summarises a circuit file.
type CircuitDTO struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Qubits      []string `json:"qubits"`
	Definitions []string `json:"definitions,omitempty"`
	Steps       int      `json:"steps"`
}

// FromFile converts a parsed circuit file.
func FromFile(f *circuitfile.File) CircuitDTO {
	defs := make([]string, len(f.Definitions))
	for i, d := range f.Definitions {
		defs[i] = d.Name
	}
	return CircuitDTO{
		Name:        f.Name,
		Description: strings.TrimSpace(f.Description),
		Qubits:      slices.Clone(f.Qubits),
		Definitions: defs,
		Steps:       len(f.Steps),
	}
}

// CallDTO is one call recorded by a symbolic trace.
type CallDTO struct {
	Operation string   `json:"operation"`
	Class     string   `json:"class"`
	Args      []string `json:"args"`
}

// FromCalls converts recorded calls.
func FromCalls(calls []*symbolic.Call) []CallDTO {
	out := make([]CallDTO, len(calls))
	for i, c := range calls {
		args := make([]string, len(c.Args))
		for j, a := range c.Args {
			args[j] = fmt.Sprint(a)
		}
		name := c.Op.Name()
		if s, ok := c.Op.(fmt.Stringer); ok {
			name = s.String()
		}
		out[i] = CallDTO{Operation: name, Class: c.Op.Class().Name(), Args: args}
	}
	return out
}

// SpanDTO summarises one exported dispatch span.
type SpanDTO struct {
	Facade     string  `json:"facade"`
	Operation  string  `json:"operation"`
	Outcome    string  `json:"outcome"`
	Declines   int     `json:"declines"`
	DurationMs float64 `json:"duration_ms"`
}

// FromSpans keeps the dispatch spans of records, in file order.
func FromSpans(records []tracing.SpanRecord) []SpanDTO {
	out := make([]SpanDTO, 0, len(records))
	for _, r := range records {
		facade, ok := strings.CutPrefix(r.Name, tracing.SpanPrefixDispatch)
		if !ok {
			continue
		}
		dto := SpanDTO{
			Facade:     facade,
			Operation:  attrString(r.Attributes, tracing.AttrOperation),
			Outcome:    attrString(r.Attributes, tracing.AttrOutcome),
			DurationMs: r.DurationMs,
		}
		for _, ev := range r.Events {
			if ev.Name == tracing.EventCandidateDeclined {
				dto.Declines++
			}
		}
		out = append(out, dto)
	}
	return out
}

func attrString(attrs map[string]any, key string) string {
	v, ok := attrs[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
