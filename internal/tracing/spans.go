package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrComponentRole     = "component.role"
	AttrComponentHint     = "component.hint"
	AttrComponentStrategy = "component.strategy"
	AttrComponentImpl     = "component.implementation"
	AttrDependencyCount   = "component.dependency_count"

	AttrEventType      = "event.type"
	AttrListenerCount  = "event.listener_count"
	AttrDispatchFailed = "event.dispatch_failed"
	AttrListenerName   = "listener.name"

	AttrManifestPath = "manifest.path"

	AttrErrorMessage = "error.message"
	AttrErrorType    = "error.type"
)

// Span names.
const (
	SpanComponentConstruct = "component.construct"
	SpanObservationNotify  = "observation.notify"
	SpanManifestInstall    = "manifest.install"
)

// Span event names.
const (
	EventDependenciesResolved = "dependencies.resolved"
	EventListenerFailed       = "listener.failed"
)

// Start opens an internal span on tracer. A nil tracer falls back to a
// no-op tracer.
func Start(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = NoopTracer()
	}
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// Finish records err on span, if any, and ends it.
func Finish(span trace.Span, err error) {
	if err != nil {
		RecordError(span, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// RecordError marks span as failed.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
}
