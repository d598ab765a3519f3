// Package structure walks and rebuilds nested sequences of atoms.
//
// A struct is either an atom or an iterable of structs. Iterables are Tuple values,
// slices and arrays, and anything implementing Itemer. A value is an atom when its type
// is on the caller's allow-list (even if it is iterable) or when it is not iterable at
// all; Strict turns the second case into an error.
package structure

import (
	"errors"
	"fmt"
	"iter"
	"reflect"
)

// ErrNotIterable is returned in strict mode for a value that is neither iterable nor an
// allowed atom.
var ErrNotIterable = errors.New("value is neither iterable nor an atom")

// Tuple is the immutable sequence produced by Freeze and Map.
// Callers must not modify a Tuple they did not build.
type Tuple []any

// Itemer is implemented by composite values that iterate as a sequence of items.
type Itemer interface {
	Items() []any
}

type options struct {
	atoms  []reflect.Type
	strict bool
}

// Option configures a walk.
type Option func(*options)

// WithAtoms marks values of the given types as atoms. An interface type matches every
// value implementing it.
func WithAtoms(types ...reflect.Type) Option {
	return func(o *options) {
		o.atoms = append(o.atoms, types...)
	}
}

// Strict rejects non-iterable values that are not on the atom allow-list.
func Strict() Option {
	return func(o *options) {
		o.strict = true
	}
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) isAtomType(v any) bool {
	if v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	for _, at := range o.atoms {
		if t == at {
			return true
		}
		if at.Kind() == reflect.Interface && t.Implements(at) {
			return true
		}
	}
	return false
}

// items returns the children of v and whether v is iterable.
func (o *options) items(v any) ([]any, bool) {
	if o.isAtomType(v) {
		return nil, false
	}
	switch s := v.(type) {
	case nil:
		return nil, false
	case Tuple:
		return s, true
	case []any:
		return s, true
	case string, []byte:
		return nil, false
	case Itemer:
		return s.Items(), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
	return nil, false
}

func (o *options) atom(v any) error {
	if o.strict && !o.isAtomType(v) {
		return fmt.Errorf("%w: %T", ErrNotIterable, v)
	}
	return nil
}

// Iterate yields every atom of s depth-first, left to right. In strict mode a rejected
// value is yielded as an error and the walk stops. Each range over the returned sequence
// walks s again from the start.
func Iterate(s any, opts ...Option) iter.Seq2[any, error] {
	o := newOptions(opts)
	return func(yield func(any, error) bool) {
		o.walk(s, yield)
	}
}

func (o *options) walk(v any, yield func(any, error) bool) bool {
	children, ok := o.items(v)
	if !ok {
		if err := o.atom(v); err != nil {
			yield(nil, err)
			return false
		}
		return yield(v, nil)
	}
	for _, c := range children {
		if !o.walk(c, yield) {
			return false
		}
	}
	return true
}

// Collect returns the atoms of s in iteration order.
func Collect(s any, opts ...Option) ([]any, error) {
	var out []any
	for v, err := range Iterate(s, opts...) {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Freeze returns s with every iterable level replaced by a Tuple.
func Freeze(s any, opts ...Option) (any, error) {
	return Map(s, func(v any) any { return v }, opts...)
}

// Map returns s with fn applied to every atom. Iterable levels become Tuples.
func Map(s any, fn func(any) any, opts ...Option) (any, error) {
	return MapErr(s, func(v any) (any, error) { return fn(v), nil }, opts...)
}

// MapErr is Map with a fallible fn. The first error aborts the rebuild.
func MapErr(s any, fn func(any) (any, error), opts ...Option) (any, error) {
	return newOptions(opts).mapStruct(s, fn)
}

func (o *options) mapStruct(v any, fn func(any) (any, error)) (any, error) {
	children, ok := o.items(v)
	if !ok {
		if err := o.atom(v); err != nil {
			return nil, err
		}
		return fn(v)
	}
	out := make(Tuple, len(children))
	for i, c := range children {
		m, err := o.mapStruct(c, fn)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

// IsIterable reports whether v would be descended into under opts.
func IsIterable(v any, opts ...Option) bool {
	_, ok := newOptions(opts).items(v)
	return ok
}

// Children returns the items of v when v is iterable under opts.
func Children(v any, opts ...Option) ([]any, bool) {
	return newOptions(opts).items(v)
}

// AtomType is a convenience for WithAtoms arguments.
func AtomType[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}
