package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/pitabwire/polyglot/provider"
)

// Common attribute keys.
//
//nolint:gochecknoglobals // OpenTelemetry attribute keys must be global for reuse
var (
	AttrMethodKey  = attribute.Key("polyglot_method")
	AttrPackageKey = attribute.Key("polyglot_package")
	AttrStatusKey  = attribute.Key("polyglot_status")
	AttrErrorKey   = attribute.Key("polyglot_error")
	AttrBundleKey  = attribute.Key("polyglot_bundle")
	AttrLocaleKey  = attribute.Key("polyglot_locale")
	AttrOutcomeKey = attribute.Key("polyglot_outcome")
)

type contextKey string

const (
	startTimeContextKey  contextKey = "spanStartTimeCtxKey"
	methodNameContextKey contextKey = "methodNameCtxKey"
)

// Tracer starts and ends spans and records their latency.
type Tracer interface {
	Start(ctx context.Context, spanName string, options ...trace.SpanStartOption) (context.Context, trace.Span)
	End(ctx context.Context, span trace.Span, err error, options ...trace.SpanEndOption)
}

type tracer struct {
	name           string
	tracer         trace.Tracer
	latencyMeasure metric.Float64Histogram
}

// NewTracerWith creates a tracer on explicit providers.
func NewTracerWith(tp trace.TracerProvider, mp metric.MeterProvider, name string) Tracer {
	return &tracer{
		name:           name,
		tracer:         tp.Tracer(name),
		latencyMeasure: LatencyMeasure(mp, name),
	}
}

// Start creates and starts a new span. The caller must End it.
//
//nolint:spancheck // spans are returned to the caller for lifecycle management
func (t *tracer) Start(
	ctx context.Context,
	spanName string,
	options ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	fullName := t.name + "/" + spanName

	options = append(options, trace.WithAttributes(AttrMethodKey.String(spanName)))

	sCtx, span := t.tracer.Start(ctx, spanName, options...)
	sCtx = context.WithValue(sCtx, startTimeContextKey, time.Now())
	return context.WithValue(sCtx, methodNameContextKey, fullName), span
}

// End completes a span, recording err when set.
func (t *tracer) End(ctx context.Context, span trace.Span, err error, options ...trace.SpanEndOption) {
	startTime, ok := ctx.Value(startTimeContextKey).(time.Time)
	if !ok {
		util.Log(ctx).Error("invalid startTime context value")
		return
	}
	elapsed := time.Since(startTime)

	if err != nil {
		span.SetAttributes(AttrErrorKey.String(err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End(options...)

	methodName, ok := ctx.Value(methodNameContextKey).(string)
	if !ok {
		util.Log(ctx).Error("invalid methodName context value")
		return
	}

	t.latencyMeasure.Record(ctx,
		float64(elapsed.Milliseconds()),
		metric.WithAttributes(
			AttrStatusKey.String(ErrorCode(err)),
			AttrMethodKey.String(methodName)),
	)
}

// ErrorCode condenses err into a low-cardinality status attribute.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, provider.ErrBundleNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline exceeded"
	default:
		return "err"
	}
}
