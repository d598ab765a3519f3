package dispatch

import (
	"fmt"
	"reflect"
)

// TagKey is one position of a registry key tuple. Registered and queried values are
// already resolved: nil means wildcard on registration and "absent" on query.
type TagKey interface {
	Name() string
	// Validate rejects values that cannot be registered under this key.
	Validate(registered any) error
	// Match reports whether a registered value accepts a query value, and how specific
	// the acceptance is. Wildcards match with specificity 0.
	Match(registered, query any) (specificity int, ok bool)
	// Token returns a stable cache token for a query value. ok is false when matches
	// under this key must be recomputed for every query.
	Token(query any) (token string, ok bool)
}

// ClassKey returns a TagKey matched through the class lattice. A registered class
// accepts queries for itself and its descendants; closer ancestors are more specific.
// A nil query class matches only wildcard entries.
func ClassKey(name string) TagKey {
	return classKey{name: name}
}

type classKey struct{ name string }

func (k classKey) Name() string { return k.name }

func (k classKey) Validate(registered any) error {
	switch registered.(type) {
	case nil, *Class:
		return nil
	}
	return fmt.Errorf("%s: expected *Class, got %T", k.name, registered)
}

func (k classKey) Match(registered, query any) (int, bool) {
	reg, _ := registered.(*Class)
	if reg == nil {
		return 0, true
	}
	q, _ := query.(*Class)
	if q == nil || !q.IsA(reg) {
		return 0, false
	}
	return reg.depth + 1, true
}

func (k classKey) Token(query any) (string, bool) {
	q, _ := query.(*Class)
	if q == nil {
		return "-", true
	}
	return q.token(), true
}

// InstanceKey returns a TagKey matched by identity. A registered instance accepts only
// the same instance; a nil query matches only wildcard entries.
func InstanceKey(name string) TagKey {
	return instanceKey{name: name}
}

type instanceKey struct{ name string }

func (k instanceKey) Name() string { return k.name }

func (k instanceKey) Validate(registered any) error {
	if registered == nil {
		return nil
	}
	if !reflect.TypeOf(registered).Comparable() {
		return fmt.Errorf("%s: instance of %T is not comparable", k.name, registered)
	}
	return nil
}

func (k instanceKey) Match(registered, query any) (int, bool) {
	if registered == nil {
		return 0, true
	}
	if query == nil || !sameInstance(registered, query) {
		return 0, false
	}
	return 1, true
}

func (k instanceKey) Token(any) (string, bool) {
	return "", false
}

func sameInstance(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
