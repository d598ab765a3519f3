package dispatch

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// ErrNotApplicable is returned by an implementation that declines a call. The
	// façade moves on to the next candidate.
	ErrNotApplicable = errors.New("implementation not applicable")

	// ErrNoImplementation means nothing is registered for the query.
	ErrNoImplementation = errors.New("no implementation")

	// ErrNoViableImplementation means several candidates matched and all declined.
	ErrNoViableImplementation = errors.New("no viable implementation")
)

// Decline returns an ErrNotApplicable carrying a reason and a stack.
func Decline(format string, args ...any) error {
	return errors.Wrapf(ErrNotApplicable, format, args...)
}

// IsDecline reports whether err is a decline.
func IsDecline(err error) bool {
	return errors.Is(err, ErrNotApplicable)
}

// Error is a terminal façade failure.
type Error struct {
	// Kind is ErrNoImplementation or ErrNoViableImplementation.
	Kind      error
	Facade    string
	Context   any
	Operation any
	// Causes holds the declines of every candidate tried, most specific first.
	Causes []error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s for %s", e.Facade, e.Kind, describe(e.Operation))
	if e.Context != nil {
		fmt.Fprintf(&b, " on %s", describe(e.Context))
	}
	if len(e.Causes) > 0 {
		fmt.Fprintf(&b, " (%d candidates declined)", len(e.Causes))
	}
	return b.String()
}

// Is matches the failure kind only; Causes stay out of the Is chain.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

type named interface {
	Name() string
}

func describe(v any) string {
	switch t := v.(type) {
	case nil:
		return "<any>"
	case *Class:
		return t.String()
	case fmt.Stringer:
		return t.String()
	case Classed:
		if n, ok := v.(named); ok && n.Name() != "" {
			return fmt.Sprintf("%s(%s)", t.Class(), n.Name())
		}
		return fmt.Sprintf("%s@%p", t.Class(), v)
	}
	return fmt.Sprintf("%T", v)
}

// Describe renders a dispatch subject for logs and messages.
func Describe(v any) string {
	return describe(v)
}

// formatStack renders err with the stack recorded by pkg/errors, if any.
func formatStack(err error) string {
	return fmt.Sprintf("%+v", err)
}
