package google

import gmail "google.golang.org/api/gmail/v1"

// DefaultOAuthScopes are the scopes outreach asks for: reading the inbox to
// detect replies and sending campaign emails.
var DefaultOAuthScopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailSendScope,
}
