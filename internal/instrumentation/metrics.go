package instrumentation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrStatus    = "status"
	attrOperation = "operation"
	attrProvider  = "provider"
	attrTool      = "tool"
	attrDomain    = "account_domain"
	attrResult    = "result"
)

var durationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}

// Metrics records outreach metrics. A nil *Metrics records nothing.
type Metrics struct {
	pollCyclesTotal   metric.Int64Counter
	pollCycleDuration metric.Float64Histogram
	migratedTotal     metric.Int64Counter
	persistRetries    metric.Int64Counter
	trackerRunning    metric.Int64UpDownCounter

	sendsTotal metric.Int64Counter

	mailOperationsTotal   metric.Int64Counter
	mailOperationDuration metric.Float64Histogram

	suggestTotal metric.Int64Counter

	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	detailedLabels bool
}

// NewMetrics creates all instruments on meter.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}

	var err error
	counter := func(name, desc, unit string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			err = fmt.Errorf("failed to create %s counter: %w", name, err)
		}
		return c
	}
	histogram := func(name, desc string) metric.Float64Histogram {
		if err != nil {
			return nil
		}
		var h metric.Float64Histogram
		h, err = meter.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(durationBuckets...),
		)
		if err != nil {
			err = fmt.Errorf("failed to create %s histogram: %w", name, err)
		}
		return h
	}

	m.pollCyclesTotal = counter("outreach_poll_cycles_total", "Reply tracking cycles by status", "{cycle}")
	m.pollCycleDuration = histogram("outreach_poll_cycle_duration_seconds", "Reply tracking cycle duration in seconds")
	m.migratedTotal = counter("outreach_contacts_migrated_total", "Contacts moved from pending to responded", "{contact}")
	m.persistRetries = counter("outreach_persist_retries_total", "Retried contact file writes by result", "{attempt}")
	m.sendsTotal = counter("outreach_dispatch_sends_total", "Campaign emails sent by status", "{email}")
	m.mailOperationsTotal = counter("outreach_mail_operations_total", "Mail provider calls by provider, operation and status", "{operation}")
	m.mailOperationDuration = histogram("outreach_mail_operation_duration_seconds", "Mail provider call duration in seconds")
	m.suggestTotal = counter("outreach_suggest_requests_total", "Language model suggestion requests by status", "{request}")
	m.toolInvocationsTotal = counter("mcp_tool_invocations_total", "Total number of MCP tool invocations", "{invocation}")
	m.toolDuration = histogram("mcp_tool_duration_seconds", "MCP tool execution duration in seconds")
	if err != nil {
		return nil, err
	}

	m.trackerRunning, err = meter.Int64UpDownCounter("outreach_tracker_running",
		metric.WithDescription("1 while the reply tracking loop is running"),
		metric.WithUnit("{tracker}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create outreach_tracker_running gauge: %w", err)
	}

	return m, nil
}

// RecordPollCycle records one tracking cycle. outcome is CycleReplies,
// CycleNoReplies or CycleError.
func (m *Metrics) RecordPollCycle(ctx context.Context, outcome string, migrated int, duration time.Duration) {
	if m == nil || m.pollCyclesTotal == nil {
		return // Instrumentation not initialized
	}
	attrs := metric.WithAttributes(attribute.String(attrStatus, outcome))
	m.pollCyclesTotal.Add(ctx, 1, attrs)
	m.pollCycleDuration.Record(ctx, duration.Seconds(), attrs)
	if migrated > 0 {
		m.migratedTotal.Add(ctx, int64(migrated))
	}
}

// RecordPersistRetry records a retried contact file write.
func (m *Metrics) RecordPersistRetry(ctx context.Context, result string) {
	if m == nil || m.persistRetries == nil {
		return
	}
	m.persistRetries.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// TrackerStarted marks the tracking loop as running.
func (m *Metrics) TrackerStarted(ctx context.Context) {
	if m == nil || m.trackerRunning == nil {
		return
	}
	m.trackerRunning.Add(ctx, 1)
}

// TrackerStopped marks the tracking loop as stopped.
func (m *Metrics) TrackerStopped(ctx context.Context) {
	if m == nil || m.trackerRunning == nil {
		return
	}
	m.trackerRunning.Add(ctx, -1)
}

// RecordSend records one campaign email.
func (m *Metrics) RecordSend(ctx context.Context, status string) {
	if m == nil || m.sendsTotal == nil {
		return
	}
	m.sendsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordMailOperation records a call to a mail provider. account is only
// used, reduced to its domain, when detailed labels are enabled.
func (m *Metrics) RecordMailOperation(ctx context.Context, provider, operation, status, account string, duration time.Duration) {
	if m == nil || m.mailOperationsTotal == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(attrProvider, provider),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && account != "" {
		attrs = append(attrs, attribute.String(attrDomain, accountDomain(account)))
	}
	m.mailOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.mailOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordSuggest records a suggestion request.
func (m *Metrics) RecordSuggest(ctx context.Context, status string) {
	if m == nil || m.suggestTotal == nil {
		return
	}
	m.suggestTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordToolInvocation records an MCP tool invocation.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	)
	m.toolInvocationsTotal.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}

// accountDomain keeps label cardinality bounded by dropping the local part.
func accountDomain(account string) string {
	if i := strings.LastIndex(account, "@"); i >= 0 && i < len(account)-1 {
		return strings.ToLower(account[i+1:])
	}
	return "unknown"
}
