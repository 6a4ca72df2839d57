// Package google handles the OAuth2 authorization of the Gmail mail provider.
//
// Client credentials come from the OAuth client file downloaded from the Google
// Cloud console (credentials.json). Tokens are stored per account as JSON files
// under the user cache directory (~/.cache/outreach/google-<account>.token) and
// refreshed tokens are written back automatically.
package google
