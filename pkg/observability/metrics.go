package observability

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var (
	globalMetrics Metrics = NoopMetrics{}
	metricsMu     sync.RWMutex
)

// Metrics records runtime-level measurements. All implementations must be
// safe to call with a nil receiver path disabled.
type Metrics interface {
	RecordTurn(ctx context.Context, agentType string, duration time.Duration, tokens int, err error)
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
}

// InitMetrics sets up the Prometheus-backed meter and installs it globally.
// Returns the HTTP handler for the /metrics endpoint.
func InitMetrics(enabled bool) (http.Handler, error) {
	if !enabled {
		SetGlobalMetrics(NoopMetrics{})
		return promhttp.Handler(), nil
	}

	exporter, err := otelprom.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := meterProvider.Meter("leadflow")

	m, err := newPromMetrics(meter)
	if err != nil {
		return nil, err
	}

	SetGlobalMetrics(m)
	return promhttp.Handler(), nil
}

func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}

type promMetrics struct {
	turnDuration    metric.Float64Histogram
	turnsTotal      metric.Int64Counter
	turnErrorsTotal metric.Int64Counter
	turnTokensTotal metric.Int64Counter

	toolDuration    metric.Float64Histogram
	toolCallsTotal  metric.Int64Counter
	toolErrorsTotal metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrorsTotal  metric.Int64Counter
}

func newPromMetrics(meter metric.Meter) (*promMetrics, error) {
	m := &promMetrics{}
	var err error

	if m.turnDuration, err = meter.Float64Histogram(
		"leadflow_turn_duration_seconds",
		metric.WithDescription("Agent turn duration in seconds"),
	); err != nil {
		return nil, err
	}
	if m.turnsTotal, err = meter.Int64Counter(
		"leadflow_turns_total",
		metric.WithDescription("Total agent turns processed"),
	); err != nil {
		return nil, err
	}
	if m.turnErrorsTotal, err = meter.Int64Counter(
		"leadflow_turn_errors_total",
		metric.WithDescription("Total agent turn failures"),
	); err != nil {
		return nil, err
	}
	if m.turnTokensTotal, err = meter.Int64Counter(
		"leadflow_turn_tokens_total",
		metric.WithDescription("Total tokens used by agent turns"),
	); err != nil {
		return nil, err
	}
	if m.toolDuration, err = meter.Float64Histogram(
		"leadflow_tool_execution_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
	); err != nil {
		return nil, err
	}
	if m.toolCallsTotal, err = meter.Int64Counter(
		"leadflow_tool_calls_total",
		metric.WithDescription("Total tool invocations dispatched"),
	); err != nil {
		return nil, err
	}
	if m.toolErrorsTotal, err = meter.Int64Counter(
		"leadflow_tool_errors_total",
		metric.WithDescription("Total tool handler failures"),
	); err != nil {
		return nil, err
	}
	if m.llmDuration, err = meter.Float64Histogram(
		"leadflow_llm_request_duration_seconds",
		metric.WithDescription("Completion backend request duration in seconds"),
	); err != nil {
		return nil, err
	}
	if m.llmInputTokens, err = meter.Int64Counter(
		"leadflow_llm_tokens_input_total",
		metric.WithDescription("Total input tokens sent to the completion backend"),
	); err != nil {
		return nil, err
	}
	if m.llmOutputTokens, err = meter.Int64Counter(
		"leadflow_llm_tokens_output_total",
		metric.WithDescription("Total output tokens received from the completion backend"),
	); err != nil {
		return nil, err
	}
	if m.llmErrorsTotal, err = meter.Int64Counter(
		"leadflow_llm_errors_total",
		metric.WithDescription("Total completion backend errors"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *promMetrics) RecordTurn(ctx context.Context, agentType string, duration time.Duration, tokens int, err error) {
	attrs := metric.WithAttributes(attribute.String("agent_type", agentType))
	m.turnDuration.Record(ctx, duration.Seconds(), attrs)
	m.turnsTotal.Add(ctx, 1, attrs)
	if tokens > 0 {
		m.turnTokensTotal.Add(ctx, int64(tokens), attrs)
	}
	if err != nil {
		m.turnErrorsTotal.Add(ctx, 1, attrs)
	}
}

func (m *promMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
	m.toolCallsTotal.Add(ctx, 1, attrs)
	if err != nil {
		m.toolErrorsTotal.Add(ctx, 1, attrs)
	}
}

func (m *promMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	if inputTokens > 0 {
		m.llmInputTokens.Add(ctx, int64(inputTokens), attrs)
	}
	if outputTokens > 0 {
		m.llmOutputTokens.Add(ctx, int64(outputTokens), attrs)
	}
	if err != nil {
		m.llmErrorsTotal.Add(ctx, 1, attrs)
	}
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

func (NoopMetrics) RecordTurn(context.Context, string, time.Duration, int, error) {}

func (NoopMetrics) RecordToolExecution(context.Context, string, time.Duration, error) {}

func (NoopMetrics) RecordLLMCall(context.Context, string, time.Duration, int, int, error) {}
