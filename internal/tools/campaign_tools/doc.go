// Package campaign_tools exposes the campaign operations as MCP tools:
// status, manual reply checks, starting and stopping the tracking loop,
// dispatching the saved selection, asking for suggestions, saving a
// selection, clearing responded contacts and reading the history.
//
// Tools that send email or modify contact files are only registered when
// the server is not read-only.
package campaign_tools
