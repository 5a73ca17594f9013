// Copyright 2026 © The Mafiarena Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/mafiarena/pkg/errors"
)

// TurnMetrics tracks generation outcomes for production monitoring.
type TurnMetrics struct {
	// turnCounter tracks generated turns by provider and outcome
	turnCounter metric.Int64Counter

	// errorCounter tracks failures by error code and provider
	errorCounter metric.Int64Counter

	// latencyHistogram tracks backend round-trip latency
	latencyHistogram metric.Float64Histogram
}

// NewTurnMetrics creates a turn metrics tracker with OTEL meters.
func NewTurnMetrics() (*TurnMetrics, error) {
	meter := otel.Meter("mafiarena/dispatch")

	turnCounter, err := meter.Int64Counter(
		"arena.turns.total",
		metric.WithDescription("Turns generated by provider and outcome"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"arena.turns.errors",
		metric.WithDescription("Turn failures by error code and provider"),
	)
	if err != nil {
		return nil, err
	}

	latencyHistogram, err := meter.Float64Histogram(
		"arena.turns.latency_ms",
		metric.WithDescription("Backend round-trip latency in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	return &TurnMetrics{
		turnCounter:      turnCounter,
		errorCounter:     errorCounter,
		latencyHistogram: latencyHistogram,
	}, nil
}

// RecordTurn records one completed generation attempt. A nil TurnMetrics is
// a no-op so callers need not guard.
func (tm *TurnMetrics) RecordTurn(ctx context.Context, provider string, latency time.Duration, err error) {
	if tm == nil {
		return
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
		code := errors.CodeInternal
		if ae := errors.AsArenaError(err); ae != nil {
			code = ae.Code
		}
		tm.errorCounter.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("error.code", string(code)),
				attribute.String(AttrLLMProvider, provider),
			),
		)
	}

	tm.turnCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(AttrLLMProvider, provider),
			attribute.String("outcome", outcome),
		),
	)
	tm.latencyHistogram.Record(ctx, float64(latency.Milliseconds()),
		metric.WithAttributes(
			attribute.String(AttrLLMProvider, provider),
		),
	)
}
