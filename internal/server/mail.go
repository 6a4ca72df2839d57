package server

import (
	"context"
	"sync"
	"time"

	"github.com/teemow/outreach/internal/mail"
)

// MailFactory creates the mail provider.
type MailFactory func(ctx context.Context) (mail.Service, error)

// lazyMail defers provider creation until the first call. A failed creation
// is retried on the next call.
type lazyMail struct {
	factory MailFactory

	mu  sync.Mutex
	svc mail.Service
}

func (l *lazyMail) get(ctx context.Context) (mail.Service, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.svc != nil {
		return l.svc, nil
	}
	svc, err := l.factory(ctx)
	if err != nil {
		return nil, err
	}
	l.svc = svc
	return svc, nil
}

func (l *lazyMail) ListRecentSenders(ctx context.Context, lookback time.Duration) ([]string, error) {
	svc, err := l.get(ctx)
	if err != nil {
		return nil, &mail.TransientError{Op: "connect", Err: err}
	}
	return svc.ListRecentSenders(ctx, lookback)
}

func (l *lazyMail) Send(ctx context.Context, recipient, subject, body string) (string, error) {
	svc, err := l.get(ctx)
	if err != nil {
		return "", &mail.SendError{Recipient: recipient, Err: err}
	}
	return svc.Send(ctx, recipient, subject, body)
}
