package services

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/isdelr/teambuilder-be/internal/services")

// endSpan records the outcome of a service call on its span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// now is the creation timestamp stored with new rows, truncated to the
// precision every supported backend keeps.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
