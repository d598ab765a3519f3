package circuit

import (
	"strings"

	"github.com/zjrosen/qcircuit/internal/dispatch"
	"github.com/zjrosen/qcircuit/internal/structure"
)

var (
	SystemClass   = dispatch.NewClass("System", nil)
	ParticleClass = dispatch.NewClass("Particle", SystemClass)
	ComposedClass = dispatch.NewClass("Composed", SystemClass)
)

// System is an opaque handle to a quantum subsystem.
type System interface {
	dispatch.Classed
	Name() string
	Particles() []Particle
}

// Particle is an indivisible system of a fixed dimension.
type Particle interface {
	System
	Dimension() int
}

// SystemAtoms makes every System a leaf when walking argument structs, including
// composed systems that are otherwise iterable.
var SystemAtoms = structure.WithAtoms(structure.AtomType[System]())

// Composed is an ordered composition of systems. It iterates over its components.
type Composed struct {
	name       string
	components []System
}

// NewComposed composes components as given, without flattening.
func NewComposed(name string, components ...System) *Composed {
	return &Composed{name: name, components: append([]System(nil), components...)}
}

func (c *Composed) Class() *dispatch.Class { return ComposedClass }
func (c *Composed) Name() string           { return c.name }
func (c *Composed) Len() int               { return len(c.components) }
func (c *Composed) At(i int) System        { return c.components[i] }

// Components returns a copy of the component list.
func (c *Composed) Components() []System {
	return append([]System(nil), c.components...)
}

// Items lets structure walk a composed system like a sequence.
func (c *Composed) Items() []any {
	out := make([]any, len(c.components))
	for i, s := range c.components {
		out[i] = s
	}
	return out
}

func (c *Composed) Particles() []Particle {
	var out []Particle
	for _, s := range c.components {
		out = append(out, s.Particles()...)
	}
	return out
}

func (c *Composed) String() string {
	if c.name != "" {
		return c.name
	}
	parts := make([]string, len(c.components))
	for i, s := range c.components {
		parts[i] = systemString(s)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func systemString(s System) string {
	if st, ok := s.(interface{ String() string }); ok {
		return st.String()
	}
	return s.Name()
}

// Prod composes a and b. Unnamed composed operands are spliced, so the product is
// associative: Prod(Prod(a, b), c) and Prod(a, Prod(b, c)) have the same components.
func Prod(a, b System) *Composed {
	var components []System
	for _, s := range []System{a, b} {
		if c, ok := s.(*Composed); ok && c.name == "" {
			components = append(components, c.components...)
		} else {
			components = append(components, s)
		}
	}
	return &Composed{components: components}
}

// Compose folds systems with Prod. A single system is returned unchanged; none is nil.
func Compose(systems ...System) System {
	switch len(systems) {
	case 0:
		return nil
	case 1:
		return systems[0]
	}
	acc := Prod(systems[0], systems[1])
	for _, s := range systems[2:] {
		acc = Prod(acc, s)
	}
	return acc
}

// Particles flattens an argument struct of systems into its particles, in order.
func Particles(args ...any) ([]Particle, error) {
	atoms, err := structure.Collect(structure.Tuple(args), SystemAtoms, structure.Strict())
	if err != nil {
		return nil, err
	}
	var out []Particle
	for _, a := range atoms {
		out = append(out, a.(System).Particles()...)
	}
	return out, nil
}
