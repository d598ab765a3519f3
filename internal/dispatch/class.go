// Package dispatch implements multi-key dispatch over an explicit class lattice.
//
// A Registry maps tuples of tag values to implementations. Each position in the tuple is
// matched by its own TagKey strategy: ClassKey matches through the class lattice and
// InstanceKey matches by identity. A Facade turns a Registry into a call protocol that
// tries matching implementations from most to least specific and falls back past
// implementations that decline with ErrNotApplicable.
package dispatch

import (
	"strconv"
	"sync/atomic"
)

var classSeq atomic.Uint64

// Class is a node in a single-inheritance type lattice. Classes are compared by
// pointer; two classes with the same name are unrelated.
type Class struct {
	id     uint64
	name   string
	parent *Class
	depth  int
}

// NewClass declares a class. A nil parent makes a root.
func NewClass(name string, parent *Class) *Class {
	c := &Class{
		id:     classSeq.Add(1),
		name:   name,
		parent: parent,
	}
	if parent != nil {
		c.depth = parent.depth + 1
	}
	return c
}

func (c *Class) Name() string   { return c.name }
func (c *Class) Parent() *Class { return c.parent }

// Depth is the number of ancestors above c.
func (c *Class) Depth() int { return c.depth }

// IsA reports whether c is other or a descendant of other.
func (c *Class) IsA(other *Class) bool {
	if c == nil || other == nil {
		return false
	}
	for k := c; k != nil; k = k.parent {
		if k == other {
			return true
		}
	}
	return false
}

func (c *Class) String() string {
	if c == nil {
		return "<any>"
	}
	return c.name
}

func (c *Class) token() string {
	return strconv.FormatUint(c.id, 36)
}

// Classed is implemented by every value that takes part in dispatch as a subject.
type Classed interface {
	Class() *Class
}

// Resolve splits a registration or query value into its class and instance parts.
// nil resolves to (nil, nil), a *Class to (class, nil) and a Classed value to
// (v.Class(), v). Any other value panics: it is a programming error at the call site.
func Resolve(v any) (*Class, any) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *Class:
		return t, nil
	case Classed:
		return t.Class(), t
	}
	panic("dispatch: cannot resolve " + describe(v) + " to a class or instance")
}
