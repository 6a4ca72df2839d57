// Package google_tools provides the MCP tools for authorizing the Gmail
// provider.
//
// The flow:
//  1. Call google_get_auth_url to get the consent page URL
//  2. The user visits the URL and grants access
//  3. Call google_save_auth_code with the code shown by Google
//
// The token is stored per account and refreshed automatically. The Gmail
// provider is created on the next reply check or send, so no restart is
// needed after authorizing.
package google_tools
