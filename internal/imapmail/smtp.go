package imapmail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	msgmail "github.com/emersion/go-message/mail"

	"github.com/teemow/outreach/internal/instrumentation"
	"github.com/teemow/outreach/internal/mail"
)

// Send submits a plain text message over SMTP and returns its Message-ID.
func (c *Client) Send(ctx context.Context, recipient, subject, body string) (id string, err error) {
	ctx, span := instrumentation.StartMailSpan(ctx, instrumentation.ProviderIMAP, instrumentation.OperationSend)
	defer span.End()
	start := time.Now()
	defer func() {
		c.record(ctx, instrumentation.OperationSend, err, time.Since(start))
		instrumentation.SetSpanError(span, err)
	}()

	to, err := msgmail.ParseAddress(recipient)
	if err != nil {
		return "", &mail.SendError{Recipient: recipient, Err: err}
	}
	from, err := msgmail.ParseAddress(c.cfg.From)
	if err != nil {
		return "", &mail.SendError{Recipient: recipient, Err: fmt.Errorf("invalid sender %q: %w", c.cfg.From, err)}
	}

	raw, id, err := buildMessage(from, to, subject, body, c.now())
	if err != nil {
		return "", &mail.SendError{Recipient: recipient, Err: err}
	}
	if err := c.submit(ctx, from.Address, to.Address, raw); err != nil {
		return "", &mail.SendError{Recipient: recipient, Err: err}
	}
	return id, nil
}

// buildMessage renders a single-part text/plain message.
func buildMessage(from, to *msgmail.Address, subject, body string, date time.Time) ([]byte, string, error) {
	var h msgmail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*msgmail.Address{from})
	h.SetAddressList("To", []*msgmail.Address{to})
	h.SetSubject(subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, "", fmt.Errorf("generating message id: %w", err)
	}
	id, err := h.MessageID()
	if err != nil {
		return nil, "", fmt.Errorf("reading message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := msgmail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, "", fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, "", fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing message body: %w", err)
	}
	return buf.Bytes(), id, nil
}

func (c *Client) submit(ctx context.Context, from, to string, msg []byte) error {
	addr := net.JoinHostPort(c.cfg.SMTPHost, strconv.Itoa(c.cfg.SMTPPort))
	tlsConfig := &tls.Config{ServerName: c.cfg.SMTPHost}
	dialer := &net.Dialer{Timeout: dialTimeout}

	var (
		conn net.Conn
		err  error
	)
	if c.cfg.Security == SecurityTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial to %s: %w", addr, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	client, err := smtp.NewClient(conn, c.cfg.SMTPHost)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if c.cfg.Security == SecurityStartTLS {
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("SMTP STARTTLS: %w", err)
		}
	}
	if c.cfg.Password != "" {
		auth := smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}
	return client.Quit()
}
