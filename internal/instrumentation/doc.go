// Package instrumentation wires OpenTelemetry metrics and tracing for outreach.
//
// Metrics:
//   - outreach_poll_cycles_total / outreach_poll_cycle_duration_seconds: reply
//     tracking cycles by status
//   - outreach_contacts_migrated_total: contacts moved from pending to responded
//   - outreach_persist_retries_total: contact file writes that had to be retried
//   - outreach_tracker_running: 1 while the tracking loop runs
//   - outreach_dispatch_sends_total: campaign sends by status
//   - outreach_mail_operations_total / outreach_mail_operation_duration_seconds:
//     calls to the mail provider by provider, operation and status
//   - outreach_suggest_requests_total: language model suggestion requests
//   - mcp_tool_invocations_total / mcp_tool_duration_seconds: MCP tool calls
//
// Spans are created for tracking cycles (tracker.cycle), mail provider calls
// (mail.<provider>.<operation>) and MCP tools (tool.<name>).
//
// Configuration comes from the environment:
//   - INSTRUMENTATION_ENABLED (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
//   - OTEL_TRACES_SAMPLER_ARG (default: 0.1)
//   - OTEL_SERVICE_NAME (default: outreach)
//
// A nil *Metrics is valid and records nothing, so components take it as an
// optional dependency.
package instrumentation
