package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span name and attribute key constants, grounded on
// _examples/kadirpekel-hector/pkg/observability's SpanAgentCall/
// AttrAgentName-style naming convention.
const (
	SpanSchedulerStep = "kagent.scheduler.step"
	SpanToolCall      = "kagent.tool.call"
	SpanLLMGenerate   = "kagent.llm.generate"

	AttrAgentName = "kagent.agent.name"
	AttrToolName  = "kagent.tool.name"
	AttrLLMModel  = "kagent.llm.model"
)

// StartStepSpan begins a span covering one scheduler step for agent.
func StartStepSpan(ctx context.Context, agentName string) (context.Context, trace.Span) {
	tracer := GetTracer("kagent.scheduler")
	return tracer.Start(ctx, SpanSchedulerStep, trace.WithAttributes(attribute.String(AttrAgentName, agentName)))
}

// StartToolSpan begins a span covering a single tool dispatch.
func StartToolSpan(ctx context.Context, toolName string) (context.Context, trace.Span) {
	tracer := GetTracer("kagent.tool")
	return tracer.Start(ctx, SpanToolCall, trace.WithAttributes(attribute.String(AttrToolName, toolName)))
}

// StartLLMSpan begins a span covering a single LLM generation call.
func StartLLMSpan(ctx context.Context, model string) (context.Context, trace.Span) {
	tracer := GetTracer("kagent.llm")
	return tracer.Start(ctx, SpanLLMGenerate, trace.WithAttributes(attribute.String(AttrLLMModel, model)))
}

// EndSpan records err on span, if any, and ends it. Centralizing this
// keeps the status-setting boilerplate out of every call site.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
