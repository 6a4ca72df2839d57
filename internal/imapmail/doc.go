// Package imapmail implements mail.Service for providers without a Gmail API:
// replies are read over IMAP and campaign emails are submitted over SMTP.
//
// Each call opens its own session and logs out when done. Connections are
// closed when the caller's context is canceled.
package imapmail
