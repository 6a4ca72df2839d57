// Package mail defines the contract outreach expects from a mail provider and
// the error taxonomy shared by the tracker and the dispatcher.
//
// Two providers implement Service: internal/gmail (Gmail API) and
// internal/imapmail (IMAP for reading, SMTP for sending). Authentication and
// session lifecycle are owned entirely by the provider.
package mail

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service is the mail collaborator used by the reply tracker and the dispatcher.
type Service interface {
	// ListRecentSenders returns the raw From values of inbox messages received
	// within the lookback window. Values are unvalidated ("Name <addr>" or bare).
	ListRecentSenders(ctx context.Context, lookback time.Duration) ([]string, error)

	// Send delivers one plain-text message and returns a provider receipt (message ID).
	Send(ctx context.Context, recipient, subject, body string) (string, error)
}

// SendError is a per-recipient failure during dispatch.
type SendError struct {
	Recipient string
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send to %s: %v", e.Recipient, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// TransientError wraps any provider failure observed during a poll cycle.
// The tracker logs it, backs off and retries on the next cycle.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("mail %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err (or any error in its chain) is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsSendError reports whether err (or any error in its chain) is a SendError.
func IsSendError(err error) bool {
	var se *SendError
	return errors.As(err, &se)
}
