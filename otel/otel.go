// Package otel traces gateway calls with OpenTelemetry.
package otel

import (
	"context"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/devmarvs/schoolgate/apperr"
	"github.com/devmarvs/schoolgate/httpclient"
)

// DefaultName is the instrumentation scope name.
const DefaultName = "github.com/devmarvs/schoolgate"

// Options configures a Tracer.
type Options struct {
	Provider   trace.TracerProvider
	Propagator propagation.TextMapPropagator
}

// Tracer starts one client span per gateway call and injects the trace
// context into the outgoing headers.
type Tracer struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator

	mu    sync.Mutex
	spans map[*httpclient.Request]trace.Span
}

// NewTracer builds a Tracer from the global provider and propagator unless
// options override them.
func NewTracer(name string, options Options) *Tracer {
	if name == "" {
		name = DefaultName
	}
	provider := options.Provider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	propagator := options.Propagator
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}
	return &Tracer{
		tracer:     provider.Tracer(name),
		propagator: propagator,
		spans:      map[*httpclient.Request]trace.Span{},
	}
}

// Start opens a client span for req and injects it into the headers.
func (t *Tracer) Start(req *httpclient.Request) {
	ctx, span := t.tracer.Start(req.Context(), req.Operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("schoolgate.operation", req.Operation),
			attribute.String("http.request.method", req.Method),
			attribute.String("url.full", req.URL),
			attribute.Bool("schoolgate.requires_auth", req.Descriptor.RequiresAuth()),
			attribute.String("schoolgate.roles", req.Descriptor.Roles.String()),
		),
	)
	t.propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))
	req.SetContext(ctx)

	t.mu.Lock()
	t.spans[req] = span
	t.mu.Unlock()
}

// End closes the span opened for req.
func (t *Tracer) End(req *httpclient.Request, resp *httpclient.Response) {
	t.mu.Lock()
	span, ok := t.spans[req]
	delete(t.spans, req)
	t.mu.Unlock()
	if !ok {
		return
	}
	defer span.End()

	if resp.Status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))
	}
	switch {
	case resp.Err != nil:
		span.RecordError(resp.Err)
		span.SetAttributes(attribute.String("schoolgate.failure", string(apperr.KindOf(resp.Err))))
		span.SetStatus(codes.Error, resp.Err.Error())
	case resp.Status >= http.StatusBadRequest:
		span.SetStatus(codes.Error, http.StatusText(resp.Status))
	default:
		span.SetStatus(codes.Ok, "")
	}
}

// Interceptor wires the tracer into a gateway chain.
func (t *Tracer) Interceptor() httpclient.Interceptor {
	return httpclient.Interceptor{
		Name: "otel",
		Before: func(req *httpclient.Request) error {
			t.Start(req)
			return nil
		},
		After: t.End,
	}
}

// SpanFromContext returns the span carried by ctx.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}
