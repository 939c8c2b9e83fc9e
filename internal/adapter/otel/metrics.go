package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "kestrel"

// Metrics holds the orchestrator's metric instruments.
type Metrics struct {
	Invocations        metric.Int64Counter
	Decisions          metric.Int64Counter
	Confirmations      metric.Int64Counter
	AuthRetries        metric.Int64Counter
	InvocationDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Invocations, err = meter.Int64Counter("kestrel.invocations",
		metric.WithDescription("Number of tool invocations by terminal status"))
	if err != nil {
		return nil, err
	}

	m.Decisions, err = meter.Int64Counter("kestrel.policy.decisions",
		metric.WithDescription("Number of policy decisions by outcome"))
	if err != nil {
		return nil, err
	}

	m.Confirmations, err = meter.Int64Counter("kestrel.confirmations",
		metric.WithDescription("Number of confirmation outcomes"))
	if err != nil {
		return nil, err
	}

	m.AuthRetries, err = meter.Int64Counter("kestrel.auth.retries",
		metric.WithDescription("Number of credential retry attempts"))
	if err != nil {
		return nil, err
	}

	m.InvocationDuration, err = meter.Float64Histogram("kestrel.invocation.duration_seconds",
		metric.WithDescription("Tool invocation duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
