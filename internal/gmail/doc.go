// Package gmail implements mail.Service on top of the Gmail API.
//
// Replies are found by listing inbox messages newer than the lookback window
// and reading only their From header (metadata format), so message bodies are
// never downloaded. Campaign emails are sent as plain text RFC 2822 messages
// through users.messages.send.
//
// Authorization is handled by the google package; a Client is bound to one
// account.
package gmail
