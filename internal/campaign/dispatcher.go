package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	msgmail "github.com/emersion/go-message/mail"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/teemow/outreach/internal/contacts"
	"github.com/teemow/outreach/internal/instrumentation"
	"github.com/teemow/outreach/internal/logging"
	"github.com/teemow/outreach/internal/mail"
)

// DefaultMaxFailures bounds the failure messages kept in a Report.
const DefaultMaxFailures = 5

// SendRecorder is notified of every attempted send.
type SendRecorder interface {
	RecordSend(ctx context.Context, batchID string, c contacts.Contact, messageID string, sendErr error) error
}

// Report summarizes one dispatch batch.
type Report struct {
	BatchID string
	Sent    int
	Failed  int
	// Failures holds the first failure messages; Omitted counts the rest.
	Failures []string
	Omitted  int
	// Skipped counts contacts not attempted because the batch was canceled.
	Skipped  int
	Canceled bool
}

// Summary renders the report for humans.
func (r Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sent %d email(s), %d failed", r.Sent, r.Failed)
	if r.Canceled {
		fmt.Fprintf(&b, ", %d skipped after cancellation", r.Skipped)
	}
	for _, f := range r.Failures {
		b.WriteString("\n  ")
		b.WriteString(f)
	}
	if r.Omitted > 0 {
		fmt.Fprintf(&b, "\n  ... and %d more", r.Omitted)
	}
	return b.String()
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRate paces sends to r per second with the given burst.
func WithRate(r rate.Limit, burst int) Option {
	return func(d *Dispatcher) { d.limiter = rate.NewLimiter(r, burst) }
}

// WithMaxFailures bounds the failure messages kept in a Report.
func WithMaxFailures(n int) Option {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.maxFailures = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithRecorder sets the send recorder.
func WithRecorder(r SendRecorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// Dispatcher sends the initial campaign email to every pending contact.
// It never changes the pending collection.
type Dispatcher struct {
	mail        mail.Service
	limiter     *rate.Limiter
	maxFailures int
	logger      *slog.Logger
	metrics     *instrumentation.Metrics
	recorder    SendRecorder
}

// NewDispatcher returns a Dispatcher sending one email per second.
func NewDispatcher(svc mail.Service, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		mail:        svc,
		limiter:     rate.NewLimiter(rate.Every(time.Second), 1),
		maxFailures: DefaultMaxFailures,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.WithComponent(d.logger, "dispatcher")
	return d
}

// DispatchAll renders tmpl for each contact of pending, in load order, and
// sends it. A failed contact is recorded and the batch continues. When ctx is
// canceled the remaining contacts are skipped.
func (d *Dispatcher) DispatchAll(ctx context.Context, pending *contacts.Set, tmpl Template) Report {
	report := Report{BatchID: uuid.NewString()}
	logger := d.logger.With(logging.Batch(report.BatchID))
	tmpl = tmpl.Normalize()

	all := pending.Contacts()
	logger.Info("dispatch started", logging.Count("contacts", len(all)))
	start := time.Now()

	for i, c := range all {
		if err := d.limiter.Wait(ctx); err != nil {
			report.Canceled = true
			report.Skipped = len(all) - i
			logger.Warn("dispatch canceled", logging.Err(err), logging.Count("skipped", report.Skipped))
			break
		}

		id, err := d.send(ctx, c, tmpl)
		if d.recorder != nil {
			if rerr := d.recorder.RecordSend(ctx, report.BatchID, c, id, err); rerr != nil {
				logger.Warn("failed to record send", logging.Err(rerr))
			}
		}

		if err != nil {
			d.metrics.RecordSend(ctx, instrumentation.StatusError)
			report.Failed++
			if len(report.Failures) < d.maxFailures {
				report.Failures = append(report.Failures, err.Error())
			} else {
				report.Omitted++
			}
			logger.Warn("send failed", logging.ContactHash(c.Email), logging.Domain(c.Email), logging.Err(err))
			continue
		}
		d.metrics.RecordSend(ctx, instrumentation.StatusSuccess)
		report.Sent++
		logger.Debug("sent", logging.ContactHash(c.Email))
	}

	logger.Info("dispatch finished",
		logging.Count("sent", report.Sent),
		logging.Count("failed", report.Failed),
		logging.Duration(time.Since(start)))
	return report
}

func (d *Dispatcher) send(ctx context.Context, c contacts.Contact, tmpl Template) (string, error) {
	if _, err := msgmail.ParseAddress(c.Email); err != nil {
		return "", &mail.SendError{Recipient: c.Email, Err: fmt.Errorf("invalid address: %w", err)}
	}

	subject, body := tmpl.Render(c.DisplayName())
	id, err := d.mail.Send(ctx, c.Email, subject, body)
	if err != nil {
		var se *mail.SendError
		if errors.As(err, &se) {
			return "", err
		}
		return "", &mail.SendError{Recipient: c.Email, Err: err}
	}
	return id, nil
}
