package imapmail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/teemow/outreach/internal/instrumentation"
	"github.com/teemow/outreach/internal/mail"
)

// Security modes for IMAP and SMTP connections.
const (
	SecurityTLS      = "tls"
	SecurityStartTLS = "starttls"
	SecurityNone     = "none"
)

const dialTimeout = 30 * time.Second

// Config describes the IMAP and SMTP endpoints of one mailbox.
type Config struct {
	IMAPHost string
	IMAPPort int
	SMTPHost string
	SMTPPort int
	Username string
	Password string
	// From defaults to Username.
	From string
	// Mailbox defaults to INBOX.
	Mailbox  string
	Security string
}

// Validate checks that the required endpoints and credentials are set.
func (c Config) Validate() error {
	if c.IMAPHost == "" || c.IMAPPort == 0 {
		return fmt.Errorf("imap host and port are required")
	}
	if c.SMTPHost == "" || c.SMTPPort == 0 {
		return fmt.Errorf("smtp host and port are required")
	}
	if c.Username == "" {
		return fmt.Errorf("imap username is required")
	}
	switch c.Security {
	case "", SecurityTLS, SecurityStartTLS, SecurityNone:
	default:
		return fmt.Errorf("invalid security mode %q (must be tls, starttls or none)", c.Security)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.From == "" {
		c.From = c.Username
	}
	if c.Mailbox == "" {
		c.Mailbox = "INBOX"
	}
	if c.Security == "" {
		c.Security = SecurityTLS
	}
	return c
}

// Client is a mail.Service backed by IMAP and SMTP.
type Client struct {
	cfg     Config
	metrics *instrumentation.Metrics
	now     func() time.Time
}

var _ mail.Service = (*Client)(nil)

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config, metrics *instrumentation.Metrics) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{cfg: cfg.withDefaults(), metrics: metrics, now: time.Now}, nil
}

// ListRecentSenders returns the sender address of every message in the
// mailbox received within lookback.
func (c *Client) ListRecentSenders(ctx context.Context, lookback time.Duration) (senders []string, err error) {
	ctx, span := instrumentation.StartMailSpan(ctx, instrumentation.ProviderIMAP, instrumentation.OperationList)
	defer span.End()
	start := time.Now()
	defer func() {
		c.record(ctx, instrumentation.OperationList, err, time.Since(start))
		instrumentation.SetSpanError(span, err)
	}()

	client, err := c.connect(ctx)
	if err != nil {
		return nil, &mail.TransientError{Op: "connect", Err: err}
	}
	defer func() { _ = client.Logout().Wait() }()
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	if _, err := client.Select(c.cfg.Mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, &mail.TransientError{Op: "select " + c.cfg.Mailbox, Err: err}
	}

	since := c.now().Add(-lookback)
	searchData, err := client.UIDSearch(&imap.SearchCriteria{Since: since}, nil).Wait()
	if err != nil {
		return nil, &mail.TransientError{Op: "search", Err: err}
	}
	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	msgs, err := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope:     true,
		InternalDate: true,
		UID:          true,
	}).Collect()
	if err != nil {
		return nil, &mail.TransientError{Op: "fetch", Err: err}
	}

	for _, msg := range msgs {
		// SINCE only has day granularity.
		if !msg.InternalDate.IsZero() && msg.InternalDate.Before(since) {
			continue
		}
		if msg.Envelope == nil {
			continue
		}
		senders = append(senders, envelopeSenders(msg.Envelope)...)
	}
	return senders, nil
}

// envelopeSenders returns the From addresses of env.
func envelopeSenders(env *imap.Envelope) []string {
	var out []string
	for _, from := range env.From {
		if addr := from.Addr(); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func (c *Client) connect(ctx context.Context) (*imapclient.Client, error) {
	addr := net.JoinHostPort(c.cfg.IMAPHost, strconv.Itoa(c.cfg.IMAPPort))
	opts := &imapclient.Options{TLSConfig: &tls.Config{ServerName: c.cfg.IMAPHost}}

	dialer := &net.Dialer{Timeout: dialTimeout}
	var (
		client *imapclient.Client
		err    error
	)
	switch c.cfg.Security {
	case SecurityTLS:
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: opts.TLSConfig}
		conn, dialErr := tlsDialer.DialContext(ctx, "tcp", addr)
		if dialErr != nil {
			return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, dialErr)
		}
		client = imapclient.New(conn, opts)
	default:
		conn, dialErr := dialer.DialContext(ctx, "tcp", addr)
		if dialErr != nil {
			return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, dialErr)
		}
		if c.cfg.Security == SecurityStartTLS {
			client, err = imapclient.NewStartTLS(conn, opts)
			if err != nil {
				return nil, fmt.Errorf("IMAP STARTTLS %s: %w", addr, err)
			}
		} else {
			client = imapclient.New(conn, opts)
		}
	}

	if err := client.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("authentication failed for %s: %w", c.cfg.Username, err)
	}
	return client, nil
}

func (c *Client) record(ctx context.Context, op string, err error, d time.Duration) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordMailOperation(ctx, instrumentation.ProviderIMAP, op, status, c.cfg.Username, d)
}
