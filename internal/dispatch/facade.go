package dispatch

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/qcircuit/internal/log"
	"github.com/zjrosen/qcircuit/internal/tracing"
)

// Query describes one façade call.
type Query struct {
	Facade string
	// Context is the runtime, pass or conversion the call runs under. Nil for façades
	// without a context key.
	Context   any
	Operation any
	Args      int
	// Tags is the full key tuple handed to Registry.Match.
	Tags []any
}

// Handler resolves and runs a query.
type Handler interface {
	Handle(ctx context.Context, q Query) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, q Query) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, q Query) (any, error) {
	return f(ctx, q)
}

// Facade is a named call protocol over a Registry.
type Facade[I any] struct {
	name     string
	registry *Registry[I]

	mu         sync.RWMutex
	middleware []Middleware
}

// FacadeOption configures a Facade.
type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	middleware []Middleware
	registry   []RegistryOption
}

// WithMiddleware wraps every dispatch in mws, outermost first.
func WithMiddleware(mws ...Middleware) FacadeOption {
	return func(o *facadeOptions) {
		o.middleware = append(o.middleware, mws...)
	}
}

// WithRegistryOptions forwards options to the underlying registry.
func WithRegistryOptions(opts ...RegistryOption) FacadeOption {
	return func(o *facadeOptions) {
		o.registry = append(o.registry, opts...)
	}
}

// NewFacade creates a façade and its registry.
func NewFacade[I any](name string, keys []TagKey, opts ...FacadeOption) *Facade[I] {
	o := &facadeOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return &Facade[I]{
		name:       name,
		registry:   NewRegistry[I](name, keys, o.registry...),
		middleware: o.middleware,
	}
}

func (f *Facade[I]) Name() string           { return f.name }
func (f *Facade[I]) Registry() *Registry[I] { return f.registry }

// Use appends middleware; it applies to dispatches started afterwards.
func (f *Facade[I]) Use(mws ...Middleware) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.middleware = append(f.middleware, mws...)
}

// Dispatch matches q.Tags and calls invoke with each candidate, most specific first.
//
// A candidate that returns ErrNotApplicable is skipped. Any other error ends the
// dispatch unchanged. When every candidate declines, a single decline is returned as
// is; several are logged and folded into an *Error of kind ErrNoViableImplementation.
// No candidates at all gives an *Error of kind ErrNoImplementation.
func (f *Facade[I]) Dispatch(ctx context.Context, q Query, invoke func(ctx context.Context, impl I) (any, error)) (any, error) {
	q.Facade = f.name

	core := HandlerFunc(func(ctx context.Context, q Query) (any, error) {
		return f.resolve(ctx, q, invoke)
	})

	f.mu.RLock()
	h := ChainMiddleware(core, f.middleware...)
	f.mu.RUnlock()

	return h.Handle(ctx, q)
}

func (f *Facade[I]) resolve(ctx context.Context, q Query, invoke func(ctx context.Context, impl I) (any, error)) (any, error) {
	candidates := f.registry.Match(q.Tags...)
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int(tracing.AttrCandidates, len(candidates)))

	if len(candidates) == 0 {
		return nil, &Error{
			Kind:      ErrNoImplementation,
			Facade:    f.name,
			Context:   q.Context,
			Operation: q.Operation,
		}
	}

	var declines []error
	for i := len(candidates) - 1; i >= 0; i-- {
		candidatesTried.WithLabelValues(f.name).Inc()

		result, err := invoke(ctx, candidates[i])
		if err == nil {
			return result, nil
		}
		if !IsDecline(err) {
			span.AddEvent(tracing.EventCandidateFailed,
				trace.WithAttributes(attribute.String(tracing.AttrErrorMessage, err.Error())))
			return nil, err
		}

		declinesTotal.WithLabelValues(f.name).Inc()
		span.AddEvent(tracing.EventCandidateDeclined,
			trace.WithAttributes(attribute.String(tracing.AttrErrorMessage, err.Error())))
		declines = append(declines, err)
	}

	if len(declines) == 1 {
		return nil, declines[0]
	}

	for i, err := range declines {
		log.Debug(log.CatDispatch, "candidate declined",
			"facade", f.name,
			"operation", describe(q.Operation),
			"context", describe(q.Context),
			"candidate", i,
			"error", formatStack(err),
		)
	}
	return nil, &Error{
		Kind:      ErrNoViableImplementation,
		Facade:    f.name,
		Context:   q.Context,
		Operation: q.Operation,
		Causes:    declines,
	}
}
