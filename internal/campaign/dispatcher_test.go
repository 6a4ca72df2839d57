package campaign

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/teemow/outreach/internal/contacts"
	"github.com/teemow/outreach/internal/logging"
	"github.com/teemow/outreach/internal/mail"
)

type sentMail struct {
	to, subject, body string
}

type fakeMail struct {
	mu   sync.Mutex
	sent []sentMail
	fail map[string]error
}

func (f *fakeMail) ListRecentSenders(context.Context, time.Duration) ([]string, error) {
	return nil, nil
}

func (f *fakeMail) Send(_ context.Context, to, subject, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[to]; err != nil {
		return "", err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return fmt.Sprintf("msg-%d", len(f.sent)), nil
}

type sendLog struct {
	batches map[string]int
	ids     []string
	errs    int
}

func (s *sendLog) RecordSend(_ context.Context, batchID string, _ contacts.Contact, id string, err error) error {
	if s.batches == nil {
		s.batches = make(map[string]int)
	}
	s.batches[batchID]++
	if err != nil {
		s.errs++
	} else {
		s.ids = append(s.ids, id)
	}
	return nil
}

func loadPending(t *testing.T, data string) *contacts.Set {
	t.Helper()
	set, err := contacts.Load(strings.NewReader(data), "pending.csv")
	require.NoError(t, err)
	return set
}

func newTestDispatcher(svc mail.Service, opts ...Option) *Dispatcher {
	opts = append([]Option{
		WithRate(rate.Inf, 1),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	return NewDispatcher(svc, opts...)
}

var greeting = Template{Subject: "Hi {influencer_name}", Body: "Hello {{influencer_name}}!"}

func TestDispatchAll_InvalidAddressDoesNotAbort(t *testing.T) {
	pending := loadPending(t, "influencer_name,email\nAnn,ann@x.com\nBad,not-an-address\n,cy@x.com\n")
	svc := &fakeMail{}
	log := &sendLog{}

	report := newTestDispatcher(svc, WithRecorder(log)).DispatchAll(context.Background(), pending, greeting)

	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0], "not-an-address")
	assert.NotEmpty(t, report.BatchID)

	require.Len(t, svc.sent, 2)
	assert.Equal(t, sentMail{to: "ann@x.com", subject: "Hi Ann", body: "Hello Ann!"}, svc.sent[0])
	assert.Equal(t, sentMail{to: "cy@x.com", subject: "Hi Unknown", body: "Hello Unknown!"}, svc.sent[1])

	// dispatch never changes the pending collection
	assert.Equal(t, []string{"ann@x.com", "not-an-address", "cy@x.com"}, pending.Emails())

	assert.Equal(t, 3, log.batches[report.BatchID])
	assert.Equal(t, []string{"msg-1", "msg-2"}, log.ids)
	assert.Equal(t, 1, log.errs)
}

func TestDispatchAll_ServiceError(t *testing.T) {
	pending := loadPending(t, "influencer_name,email\nAnn,ann@x.com\nBo,bo@x.com\n")
	svc := &fakeMail{fail: map[string]error{"ann@x.com": errors.New("quota exceeded")}}

	report := newTestDispatcher(svc).DispatchAll(context.Background(), pending, greeting)

	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"failed to send to ann@x.com: quota exceeded"}, report.Failures)
}

func TestDispatchAll_FailureLogsDomain(t *testing.T) {
	pending := loadPending(t, "influencer_name,email\nAnn,ann@x.com\n")
	svc := &fakeMail{fail: map[string]error{"ann@x.com": errors.New("mailbox full")}}
	var buf bytes.Buffer

	report := newTestDispatcher(svc, WithLogger(slog.New(slog.NewTextHandler(&buf, nil)))).
		DispatchAll(context.Background(), pending, greeting)
	require.Equal(t, 1, report.Failed)

	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, "send failed") {
			line = l
		}
	}
	require.NotEmpty(t, line)
	assert.Contains(t, line, "contact_domain=x.com")
	assert.Contains(t, line, logging.AnonymizeEmail("ann@x.com"))
}

func TestDispatchAll_BoundsFailureMessages(t *testing.T) {
	var b strings.Builder
	b.WriteString("influencer_name,email\n")
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, "n%d,bad%d\n", i, i)
	}
	pending := loadPending(t, b.String())

	report := newTestDispatcher(&fakeMail{}).DispatchAll(context.Background(), pending, greeting)

	assert.Equal(t, 8, report.Failed)
	assert.Len(t, report.Failures, DefaultMaxFailures)
	assert.Equal(t, 3, report.Omitted)
	assert.Contains(t, report.Summary(), "... and 3 more")
}

func TestDispatchAll_Canceled(t *testing.T) {
	pending := loadPending(t, "influencer_name,email\nAnn,ann@x.com\nBo,bo@x.com\n")
	svc := &fakeMail{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := newTestDispatcher(svc).DispatchAll(ctx, pending, greeting)

	assert.True(t, report.Canceled)
	assert.Equal(t, 2, report.Skipped)
	assert.Empty(t, svc.sent)
	assert.Contains(t, report.Summary(), "2 skipped")
}

func TestDispatchAll_Paced(t *testing.T) {
	pending := loadPending(t, "influencer_name,email\nAnn,ann@x.com\nBo,bo@x.com\nCy,cy@x.com\n")

	start := time.Now()
	report := newTestDispatcher(&fakeMail{}, WithRate(rate.Every(20*time.Millisecond), 1)).
		DispatchAll(context.Background(), pending, greeting)

	assert.Equal(t, 3, report.Sent)
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestReport_Summary(t *testing.T) {
	r := Report{Sent: 2, Failed: 1, Failures: []string{"failed to send to x: boom"}}
	assert.Equal(t, "Sent 2 email(s), 1 failed\n  failed to send to x: boom", r.Summary())
}
