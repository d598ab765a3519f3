package dispatch

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/qcircuit/internal/log"
	"github.com/zjrosen/qcircuit/internal/tracing"
)

// Middleware wraps a Handler to add behaviour around every dispatch.
type Middleware func(Handler) Handler

// ChainMiddleware applies middlewares to a handler in reverse order, so the first
// middleware in the list is the outermost wrapper.
func ChainMiddleware(handler Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// DefaultMiddleware is the stack every built-in façade uses: tracing outermost so the
// span covers logging and metrics.
func DefaultMiddleware() []Middleware {
	return []Middleware{
		NewTracingMiddleware(nil),
		NewLoggingMiddleware(),
		NewMetricsMiddleware(),
	}
}

// Outcome classifies a dispatch result for spans, logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return tracing.OutcomeOK
	case errors.Is(err, ErrNoImplementation):
		return tracing.OutcomeNoImplementation
	case errors.Is(err, ErrNoViableImplementation):
		return tracing.OutcomeNoViable
	case IsDecline(err):
		return tracing.OutcomeDeclined
	default:
		return tracing.OutcomeError
	}
}

// ============================================================================
// Logging Middleware
// ============================================================================

// NewLoggingMiddleware logs every dispatch at debug level and terminal failures at
// warn level.
func NewLoggingMiddleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, q Query) (any, error) {
			start := time.Now()
			result, err := next.Handle(ctx, q)

			fields := []any{
				"facade", q.Facade,
				"operation", describe(q.Operation),
				"context", describe(q.Context),
				"args", q.Args,
				"duration", time.Since(start),
				"outcome", Outcome(err),
			}
			switch Outcome(err) {
			case tracing.OutcomeNoImplementation, tracing.OutcomeNoViable:
				log.Warn(log.CatDispatch, "dispatch failed", append(fields, "error", err.Error())...)
			case tracing.OutcomeOK:
				log.Debug(log.CatDispatch, "dispatch completed", fields...)
			default:
				log.Debug(log.CatDispatch, "dispatch returned error", append(fields, "error", err.Error())...)
			}
			return result, err
		})
	}
}

// ============================================================================
// Tracing Middleware
// ============================================================================

const instrumentationName = "github.com/zjrosen/qcircuit/internal/dispatch"

// NewTracingMiddleware starts one span per dispatch. A nil tracer resolves the otel
// global tracer on every call, so installing a provider later takes effect.
func NewTracingMiddleware(tracer trace.Tracer) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, q Query) (any, error) {
			t := tracer
			if t == nil {
				t = otel.Tracer(instrumentationName)
			}

			ctx, span := t.Start(ctx, tracing.SpanPrefixDispatch+q.Facade,
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(
					attribute.String(tracing.AttrFacade, q.Facade),
					attribute.String(tracing.AttrOperation, describe(q.Operation)),
					attribute.String(tracing.AttrContext, describe(q.Context)),
					attribute.Int(tracing.AttrArgCount, q.Args),
				),
			)
			defer span.End()

			if c, ok := q.Operation.(Classed); ok {
				span.SetAttributes(attribute.String(tracing.AttrOpClass, c.Class().Name()))
			}

			result, err := next.Handle(ctx, q)

			span.SetAttributes(attribute.String(tracing.AttrOutcome, Outcome(err)))
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return result, err
		})
	}
}

// ============================================================================
// Metrics Middleware
// ============================================================================

// NewMetricsMiddleware counts dispatches by outcome and observes their latency.
func NewMetricsMiddleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, q Query) (any, error) {
			start := time.Now()
			result, err := next.Handle(ctx, q)
			dispatchDuration.WithLabelValues(q.Facade).Observe(time.Since(start).Seconds())
			dispatchesTotal.WithLabelValues(q.Facade, Outcome(err)).Inc()
			return result, err
		})
	}
}
