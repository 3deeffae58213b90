/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package tooltrace records every tool invocation as an OpenTelemetry
// span plus invocation counters, so an operator can audit exactly what
// the assistant did and when.
package tooltrace

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const instrumentationName = "octoplane.tools"

// Recorder emits spans and counters for tool invocations. The zero
// Recorder is not usable; construct one with NewRecorder.
type Recorder struct {
	tracer oteltrace.Tracer
	calls  metric.Int64Counter
	errs   metric.Int64Counter
}

// NewRecorder builds a Recorder on the global OTel providers. Counter
// creation degrades to no-ops rather than failing.
func NewRecorder(ctx context.Context) *Recorder {
	meter := otel.Meter(instrumentationName, metric.WithInstrumentationVersion("1.0.0"))

	calls, err := meter.Int64Counter("tool.invocations",
		metric.WithDescription("The number of tool invocations dispatched"),
		metric.WithUnit("{calls}"))
	if err != nil {
		clog.FromContext(ctx).Warnf("Failed to create invocation counter, metrics disabled: %v", err)
		calls = noop.Int64Counter{}
	}

	errs, err := meter.Int64Counter("tool.errors",
		metric.WithDescription("The number of tool invocations that returned an error"),
		metric.WithUnit("{calls}"))
	if err != nil {
		clog.FromContext(ctx).Warnf("Failed to create error counter, metrics disabled: %v", err)
		errs = noop.Int64Counter{}
	}

	return &Recorder{
		tracer: otel.Tracer(instrumentationName, oteltrace.WithInstrumentationVersion("1.0.0")),
		calls:  calls,
		errs:   errs,
	}
}

// Invocation is one tool call in flight.
type Invocation struct {
	ID         string
	Name       string
	SideEffect string
	ArgsDigest string
	StartTime  time.Time
	EndTime    time.Time
	ResultSize int
	Err        error

	mu       sync.Mutex
	ctx      context.Context
	span     oteltrace.Span
	recorder *Recorder
}

// Start opens a span and counts the invocation. Arguments are recorded
// only as a digest; their values may hold file contents or tokens.
func (r *Recorder) Start(ctx context.Context, name, sideEffect string, args map[string]any) (context.Context, *Invocation) {
	digest := digestArgs(args)

	ctx, span := r.tracer.Start(ctx, "tool.invoke", oteltrace.WithAttributes(
		attribute.String("tool.name", name),
		attribute.String("tool.side_effect", sideEffect),
		attribute.String("tool.args_digest", digest),
	))

	r.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", name),
		attribute.String("side_effect", sideEffect),
	))

	return ctx, &Invocation{
		ID:         generateID(),
		Name:       name,
		SideEffect: sideEffect,
		ArgsDigest: digest,
		StartTime:  time.Now(),
		ctx:        ctx,
		span:       span,
		recorder:   r,
	}
}

// Complete closes the span, recording the result size and error outcome.
func (inv *Invocation) Complete(resultSize int, err error) {
	inv.mu.Lock()
	inv.ResultSize = resultSize
	inv.Err = err
	inv.EndTime = time.Now()
	span := inv.span
	recorder := inv.recorder
	ctx := inv.ctx
	inv.mu.Unlock()

	if span != nil {
		span.SetAttributes(attribute.Int("tool.result_bytes", resultSize))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}

	if err != nil && recorder != nil {
		recorder.errs.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", inv.Name)))
	}

	clog.FromContext(ctx).With(
		"invocation_id", inv.ID,
		"tool", inv.Name,
		"side_effect", inv.SideEffect,
		"duration_ms", inv.Duration().Milliseconds(),
		"result_bytes", resultSize,
	).Info("Tool invocation completed")
}

// Duration returns how long the invocation has run (or ran).
func (inv *Invocation) Duration() time.Duration {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.EndTime.IsZero() {
		return time.Since(inv.StartTime)
	}
	return inv.EndTime.Sub(inv.StartTime)
}

// digestArgs hashes a canonical JSON rendering of the arguments.
func digestArgs(args map[string]any) string {
	if len(args) == 0 {
		return "empty"
	}
	// json.Marshal sorts map keys, so the digest is stable.
	raw, err := json.Marshal(args)
	if err != nil {
		return "unmarshalable"
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:12]
}

func generateID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return time.Now().Format("20060102-150405.000000")
	}
	return fmt.Sprintf("%s-%s", time.Now().Format("20060102-150405"), hex.EncodeToString(b))
}
