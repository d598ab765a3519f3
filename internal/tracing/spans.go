package tracing

// Span attribute keys for dispatch tracing.
const (
	AttrFacade     = "dispatch.facade"
	AttrContext    = "dispatch.context"
	AttrOperation  = "dispatch.operation"
	AttrOpClass    = "dispatch.operation.class"
	AttrCandidates = "dispatch.candidates"
	AttrOutcome    = "dispatch.outcome"
	AttrArgCount   = "dispatch.args"

	AttrErrorMessage = "error.message"
)

// Span name prefix; the façade name is appended.
const SpanPrefixDispatch = "dispatch."

// Event names for span events.
const (
	EventCandidateDeclined = "candidate.declined"
	EventCandidateFailed   = "candidate.failed"
)

// Outcome values recorded on dispatch spans and metrics.
const (
	OutcomeOK               = "ok"
	OutcomeNoImplementation = "no_implementation"
	OutcomeNoViable         = "no_viable"
	OutcomeDeclined         = "declined"
	OutcomeError            = "error"
)
