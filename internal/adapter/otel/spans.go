package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "kestrel"

// StartInvocationSpan starts a span covering one tool invocation from
// validation through its terminal state.
func StartInvocationSpan(ctx context.Context, callID, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "invocation",
		trace.WithAttributes(
			attribute.String("invocation.call_id", callID),
			attribute.String("invocation.tool", tool),
		),
	)
}

// StartConfirmationSpan starts a span covering the wait for a confirmation
// outcome on the bus.
func StartConfirmationSpan(ctx context.Context, requestID, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "confirmation",
		trace.WithAttributes(
			attribute.String("confirmation.request_id", requestID),
			attribute.String("confirmation.tool", tool),
		),
	)
}

// StartRemoteSendSpan starts a span for one message delegated to a remote agent.
func StartRemoteSendSpan(ctx context.Context, agent string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "remote.send",
		trace.WithAttributes(
			attribute.String("remote.agent", agent),
		),
	)
}
