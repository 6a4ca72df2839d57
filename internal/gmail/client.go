package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"mime"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/outreach/internal/google"
	"github.com/teemow/outreach/internal/instrumentation"
	"github.com/teemow/outreach/internal/mail"
)

const (
	userID   = "me"
	pageSize = 500
)

// Client is a mail.Service backed by one Gmail account.
type Client struct {
	svc     *gmail.UsersService
	account string
	metrics *instrumentation.Metrics
}

var _ mail.Service = (*Client)(nil)

// NewClient returns a Client for account, authorized through auth.
func NewClient(ctx context.Context, auth *google.Auth, account string, metrics *instrumentation.Metrics) (*Client, error) {
	httpClient, err := auth.HTTPClient(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("gmail account %s: %w", account, err)
	}
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return NewClientWithService(svc, account, metrics), nil
}

// NewClientWithService wraps an existing Gmail service.
func NewClientWithService(svc *gmail.Service, account string, metrics *instrumentation.Metrics) *Client {
	return &Client{svc: svc.Users, account: account, metrics: metrics}
}

// Account returns the account this client sends and reads as.
func (c *Client) Account() string {
	return c.account
}

// ListRecentSenders returns the From header of every inbox message received
// within lookback. Gmail only searches by whole days, so the window is
// rounded up.
func (c *Client) ListRecentSenders(ctx context.Context, lookback time.Duration) (senders []string, err error) {
	ctx, span := instrumentation.StartMailSpan(ctx, instrumentation.ProviderGmail, instrumentation.OperationList)
	defer span.End()
	start := time.Now()
	defer func() {
		c.record(ctx, instrumentation.OperationList, err, time.Since(start))
		instrumentation.SetSpanError(span, err)
	}()

	q := InboxQuery(lookback)
	pageToken := ""
	for {
		req := c.svc.Messages.List(userID).Q(q).MaxResults(pageSize).Context(ctx)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}
		res, err := req.Do()
		if err != nil {
			return nil, &mail.TransientError{Op: "list", Err: err}
		}

		for _, m := range res.Messages {
			full, err := c.svc.Messages.Get(userID, m.Id).
				Format("metadata").
				MetadataHeaders("From").
				Context(ctx).
				Do()
			if err != nil {
				return nil, &mail.TransientError{Op: "get " + m.Id, Err: err}
			}
			if from := HeaderValue(full, "From"); from != "" {
				senders = append(senders, from)
			}
		}

		if res.NextPageToken == "" {
			return senders, nil
		}
		pageToken = res.NextPageToken
	}
}

// Send delivers a plain text email and returns the Gmail message ID.
func (c *Client) Send(ctx context.Context, recipient, subject, body string) (id string, err error) {
	ctx, span := instrumentation.StartMailSpan(ctx, instrumentation.ProviderGmail, instrumentation.OperationSend)
	defer span.End()
	start := time.Now()
	defer func() {
		c.record(ctx, instrumentation.OperationSend, err, time.Since(start))
		instrumentation.SetSpanError(span, err)
	}()

	raw, err := buildMessage(recipient, subject, body)
	if err != nil {
		return "", &mail.SendError{Recipient: recipient, Err: err}
	}

	sent, err := c.svc.Messages.Send(userID, &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return "", &mail.SendError{Recipient: recipient, Err: err}
	}
	return sent.Id, nil
}

func (c *Client) record(ctx context.Context, op string, err error, d time.Duration) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordMailOperation(ctx, instrumentation.ProviderGmail, op, status, c.account, d)
}

// InboxQuery returns the Gmail search query for inbox messages within lookback.
func InboxQuery(lookback time.Duration) string {
	days := int(math.Ceil(lookback.Hours() / 24))
	if days < 1 {
		days = 1
	}
	return fmt.Sprintf("in:inbox newer_than:%dd", days)
}

// HeaderValue returns the first header of m called name, or "".
func HeaderValue(m *gmail.Message, name string) string {
	if m == nil || m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// buildMessage renders a plain text RFC 2822 message.
func buildMessage(to, subject, body string) ([]byte, error) {
	if to == "" {
		return nil, fmt.Errorf("recipient is required")
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return nil, fmt.Errorf("header values must not contain line breaks")
	}

	var b strings.Builder
	b.WriteString("To: ")
	b.WriteString(to)
	b.WriteString("\r\n")
	b.WriteString("Subject: ")
	b.WriteString(encodeRFC2047(subject))
	b.WriteString("\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String()), nil
}

// encodeRFC2047 encodes non-ASCII header text such as names with umlauts.
func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}
