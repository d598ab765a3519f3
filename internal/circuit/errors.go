package circuit

import "github.com/pkg/errors"

var (
	// ErrNoRuntime is returned when an operation is invoked without a current runtime.
	ErrNoRuntime = errors.New("no runtime in context")

	// ErrMalformedOperation marks structural problems found while freezing or
	// flattening, such as a signature that cannot be traced.
	ErrMalformedOperation = errors.New("malformed operation")

	// ErrShapeMismatch is returned when an operation's size disagrees with its targets.
	ErrShapeMismatch = errors.New("shape mismatch")
)
