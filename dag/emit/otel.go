package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns scheduler events into OpenTelemetry spans, one per
// event. Every event becomes a point-in-time span named after its Msg
// and tagged with the run, phase and node id; a span whose event Meta
// carries a string "cause" (node_failed, node_skipped_failed) gets
// error status.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an OTelEmitter backed by tracer. Obtain tracer
// via otel.Tracer("dag-scheduler") after configuring a TracerProvider.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit creates and immediately ends a span named event.Msg.
func (o *OTelEmitter) Emit(event Event) {
	ctx := context.Background()
	_, span := o.tracer.Start(ctx, event.Msg)
	defer span.End()

	o.annotate(span, event)
}

// EmitBatch creates one span per event, in order.
func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		_, span := o.tracer.Start(ctx, event.Msg)
		o.annotate(span, event)
		span.End()
	}
	return nil
}

// Flush force-flushes the active TracerProvider, if it supports it.
func (o *OTelEmitter) Flush(ctx context.Context) error {
	tp := otel.GetTracerProvider()

	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func (o *OTelEmitter) annotate(span trace.Span, event Event) {
	span.SetAttributes(
		attribute.String("dag.run_id", event.RunID),
		attribute.String("dag.phase", event.Phase),
		attribute.String("dag.node_id", event.NodeID),
	)

	for key, value := range event.Meta {
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String("dag."+key, v))
		case int:
			span.SetAttributes(attribute.Int("dag."+key, v))
		case int64:
			span.SetAttributes(attribute.Int64("dag."+key, v))
		case float64:
			span.SetAttributes(attribute.Float64("dag."+key, v))
		case bool:
			span.SetAttributes(attribute.Bool("dag."+key, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64("dag."+key+"_ms", int64(v/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String("dag."+key, fmt.Sprintf("%v", v)))
		}
	}

	if cause, ok := event.Meta["cause"].(string); ok {
		span.SetStatus(codes.Error, cause)
		span.RecordError(fmt.Errorf("%s", cause))
	}
}
