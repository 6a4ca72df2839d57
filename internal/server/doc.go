// Package server wires the campaign components together for long running
// front ends such as the MCP server.
//
// CampaignContext owns the contact store, the reply tracker, the dispatcher
// and the optional history and suggestion services. The mail provider is
// created lazily on first use so the server can start before the operator
// has authenticated.
//
// HealthChecker and MetricsServer expose /healthz, /readyz and /metrics on a
// dedicated port. Readiness reports the tracker state.
package server
