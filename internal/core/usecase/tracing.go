package usecase

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

var tracer = otel.Tracer("github.com/muhshi/demakai-bot/internal/core/usecase")

func modeAttr(mode domain.Mode) attribute.KeyValue {
	return attribute.String("demakai.mode", string(mode))
}

// finishSpan records err on span, if any, and ends it.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
