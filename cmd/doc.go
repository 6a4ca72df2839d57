// Package cmd implements the command-line interface for outreach.
//
// This package provides the following commands:
//   - suggest, select: Draft the subject and message with a language model
//   - send: Send the selected message to every pending contact
//   - track, check, status, clear: Follow up on replies
//   - history: Show recorded sends and replies
//   - auth, credentials: Authorize Gmail and store secrets
//   - serve: Start the MCP server to provide tools for AI assistants
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// The status command is the default command when no subcommand is specified.
package cmd
