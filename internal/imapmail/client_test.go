package imapmail

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	msgmail "github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/outreach/internal/mail"
)

// smtpSession is what the fake server received.
type smtpSession struct {
	auth string
	from string
	rcpt string
	data string
}

// fakeSMTP accepts a single plaintext SMTP session and reports it on the
// returned channel. Recipients listed in reject get a 550.
func fakeSMTP(t *testing.T, reject string) (int, <-chan smtpSession) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	done := make(chan smtpSession, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(done)
			return
		}
		defer conn.Close()

		var s smtpSession
		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 fake ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				done <- s
				return
			}
			cmd := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(cmd, "EHLO"):
				_ = tp.PrintfLine("250-fake")
				_ = tp.PrintfLine("250 AUTH PLAIN")
			case strings.HasPrefix(cmd, "AUTH"):
				s.auth = line
				_ = tp.PrintfLine("235 ok")
			case strings.HasPrefix(cmd, "MAIL FROM"):
				s.from = line
				_ = tp.PrintfLine("250 ok")
			case strings.HasPrefix(cmd, "RCPT TO"):
				s.rcpt = line
				if reject != "" && strings.Contains(line, reject) {
					_ = tp.PrintfLine("550 no such user")
					continue
				}
				_ = tp.PrintfLine("250 ok")
			case cmd == "DATA":
				_ = tp.PrintfLine("354 go ahead")
				lines, err := tp.ReadDotLines()
				if err != nil {
					done <- s
					return
				}
				s.data = strings.Join(lines, "\n")
				_ = tp.PrintfLine("250 queued")
			case cmd == "QUIT":
				_ = tp.PrintfLine("221 bye")
				done <- s
				return
			default:
				_ = tp.PrintfLine("250 ok")
			}
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port, done
}

func testConfig(smtpPort int) Config {
	return Config{
		IMAPHost: "127.0.0.1",
		IMAPPort: 1,
		SMTPHost: "127.0.0.1",
		SMTPPort: smtpPort,
		Username: "me@example.com",
		Password: "secret",
		Security: SecurityNone,
	}
}

func TestConfigValidate(t *testing.T) {
	valid := testConfig(25)
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing imap host", func(c *Config) { c.IMAPHost = "" }},
		{"missing smtp port", func(c *Config) { c.SMTPPort = 0 }},
		{"missing username", func(c *Config) { c.Username = "" }},
		{"bad security", func(c *Config) { c.Security = "ssl3" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(25)
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Username: "me@example.com"}.withDefaults()
	assert.Equal(t, "me@example.com", cfg.From)
	assert.Equal(t, "INBOX", cfg.Mailbox)
	assert.Equal(t, SecurityTLS, cfg.Security)
}

func TestSend(t *testing.T) {
	port, sessions := fakeSMTP(t, "")
	client, err := NewClient(testConfig(port), nil)
	require.NoError(t, err)
	client.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	id, err := client.Send(context.Background(), "Jane <jane@x.com>", "Hello Jane", "Hi Jane,\nlet's talk.")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	s := <-sessions
	assert.True(t, strings.HasPrefix(s.auth, "AUTH PLAIN "))
	assert.Equal(t, "MAIL FROM:<me@example.com>", s.from)
	assert.Equal(t, "RCPT TO:<jane@x.com>", s.rcpt)
	assert.Contains(t, s.data, "Subject: Hello Jane")
	assert.Contains(t, s.data, "jane@x.com")
	assert.Contains(t, s.data, "Hi Jane,")
}

func TestSend_Rejected(t *testing.T) {
	port, sessions := fakeSMTP(t, "gone@x.com")
	client, err := NewClient(testConfig(port), nil)
	require.NoError(t, err)

	_, err = client.Send(context.Background(), "gone@x.com", "Hi", "Body")
	require.Error(t, err)

	var se *mail.SendError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "gone@x.com", se.Recipient)
	assert.Contains(t, err.Error(), "RCPT TO")

	s := <-sessions
	assert.Empty(t, s.data)
}

func TestSend_InvalidRecipient(t *testing.T) {
	client, err := NewClient(testConfig(25), nil)
	require.NoError(t, err)

	_, err = client.Send(context.Background(), "not-an-address", "Hi", "Body")
	require.Error(t, err)
	assert.True(t, mail.IsSendError(err))
}

func TestListRecentSenders_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	cfg := testConfig(25)
	cfg.IMAPPort = port
	client, err := NewClient(cfg, nil)
	require.NoError(t, err)

	_, err = client.ListRecentSenders(context.Background(), 48*time.Hour)
	require.Error(t, err)
	assert.True(t, mail.IsTransient(err))
	assert.Contains(t, err.Error(), "127.0.0.1:"+strconv.Itoa(port))
}

func TestEnvelopeSenders(t *testing.T) {
	env := &imap.Envelope{From: []imap.Address{
		{Name: "Jane Doe", Mailbox: "jane", Host: "x.com"},
		{Mailbox: "ray", Host: "y.com"},
		{Name: "group only"},
	}}
	assert.Equal(t, []string{"jane@x.com", "ray@y.com"}, envelopeSenders(env))
	assert.Empty(t, envelopeSenders(&imap.Envelope{}))
}

func TestBuildMessage(t *testing.T) {
	from := &msgmail.Address{Name: "Me", Address: "me@example.com"}
	to := &msgmail.Address{Address: "jane@x.com"}
	date := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	raw, id, err := buildMessage(from, to, "Grüße", "Hello", date)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	r, err := msgmail.CreateReader(bufio.NewReader(strings.NewReader(string(raw))))
	require.NoError(t, err)
	defer r.Close()

	subject, err := r.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Grüße", subject)

	gotID, err := r.Header.MessageID()
	require.NoError(t, err)
	assert.Equal(t, id, gotID)

	got, err := r.Header.Date()
	require.NoError(t, err)
	assert.True(t, date.Equal(got))
}
