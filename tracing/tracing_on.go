//go:build oteltracing

// Package tracing offers support for GC-cycle tracing utilizing OpenTelemetry (OTEL).
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tarok-gc/tarok"

func IsEnabled() bool { return true }

// StartSpan opens a span for one collection cycle or increment; the returned
// func ends it. Spans nest under whatever context the host installed in the
// global tracer provider.
func StartSpan(name string) func() {
	_, span := otel.Tracer(tracerName).Start(
		context.Background(), name,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return func() { span.End() }
}
