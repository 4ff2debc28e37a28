// Package tracing provides a small span abstraction over OpenTelemetry.
//
// Components depend on the Tracer interface; production wiring uses the OTel
// adapter backed by the global tracer provider, tests use the no-op tracer.
package tracing

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks the span as failed.
	// End must be called exactly once, typically via defer.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int creates an integer attribute.
func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: int64(value)}
}

// Float64 creates a float64 attribute.
func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanAssessmentSubmit = "assessment.submit"
	SpanAIAssessment     = "assessor.assess"
	SpanLLMGenerate      = "llm.generate"
	SpanGuideFetch       = "guides.fetch"
)

// Attribute keys.
const (
	AttrRouteID     = "visa.route_id"
	AttrAnswerCount = "visa.answer_count"
	AttrStatusCode  = "http.status_code"
	AttrErrorKind   = "error.kind"
	AttrProvider    = "llm.provider"
	AttrModel       = "llm.model"
	AttrURL         = "url"
	AttrCacheHit    = "cache.hit"
	AttrScore       = "visa.score"
)
