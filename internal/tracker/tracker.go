package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/teemow/outreach/internal/contacts"
	"github.com/teemow/outreach/internal/instrumentation"
	"github.com/teemow/outreach/internal/logging"
	"github.com/teemow/outreach/internal/mail"
	"github.com/teemow/outreach/internal/replies"
)

// Config controls the tracking loop.
type Config struct {
	// Interval is the pause between successful cycles.
	Interval time.Duration
	// Backoff is the first pause after a failed cycle. It grows
	// exponentially up to Interval.
	Backoff time.Duration
	// Lookback is the mailbox window queried on every cycle.
	Lookback time.Duration
	// PersistAttempts bounds the writes of one migration.
	PersistAttempts int
	// PersistBackoff is the first pause between write attempts.
	PersistBackoff time.Duration
}

// DefaultConfig returns the defaults: check every minute over the last two days.
func DefaultConfig() Config {
	return Config{
		Interval:        60 * time.Second,
		Backoff:         5 * time.Second,
		Lookback:        48 * time.Hour,
		PersistAttempts: 3,
		PersistBackoff:  250 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Backoff <= 0 {
		c.Backoff = d.Backoff
	}
	if c.Backoff > c.Interval {
		c.Backoff = c.Interval
	}
	if c.Lookback <= 0 {
		c.Lookback = d.Lookback
	}
	if c.PersistAttempts <= 0 {
		c.PersistAttempts = d.PersistAttempts
	}
	if c.PersistBackoff <= 0 {
		c.PersistBackoff = d.PersistBackoff
	}
	return c
}

// Store is the persistence the tracker needs. *contacts.Store implements it.
type Store interface {
	LoadPending() (*contacts.Set, error)
	LoadResponded() (*contacts.Set, error)
	Commit(delta []contacts.Contact, pending *contacts.Set) error
}

// Recorder is notified of every committed migration.
type Recorder interface {
	RecordReplies(ctx context.Context, cycle uint64, migrated []contacts.Contact) error
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithConfig sets the loop configuration. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(t *Tracker) { t.cfg = cfg.withDefaults() }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// WithRecorder sets the migration recorder.
func WithRecorder(r Recorder) Option {
	return func(t *Tracker) { t.recorder = r }
}

// Tracker owns the reply tracking loop of one campaign.
// At most one loop runs per Tracker.
type Tracker struct {
	store    Store
	mail     mail.Service
	cfg      Config
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	recorder Recorder

	// cycleMu serializes cycles of the loop and manual checks.
	cycleMu sync.Mutex
	// uncommitted holds contacts matched in an earlier cycle whose migration
	// has not been written yet, and pending the matching in-memory view.
	uncommitted []contacts.Contact
	pending     *contacts.Set

	mu     sync.Mutex
	status Status
	stopCh chan struct{}
	done   chan struct{}
}

// New returns an idle Tracker.
func New(store Store, svc mail.Service, opts ...Option) *Tracker {
	t := &Tracker{
		store:  store,
		mail:   svc,
		cfg:    DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logging.WithComponent(t.logger, "tracker")
	return t
}

// Config returns the effective configuration.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Start launches the tracking loop. It returns false and logs a warning if a
// loop is already running or still stopping. The loop ends on Stop or when ctx
// is done.
func (t *Tracker) Start(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.State != StateIdle {
		t.logger.Warn("reply tracking is already running", logging.Status(t.status.State.String()))
		return false
	}

	t.stopCh = make(chan struct{})
	t.done = make(chan struct{})
	t.status.State = StateRunning
	t.status.Line = "Tracking started"
	t.metrics.TrackerStarted(ctx)
	t.logger.Info("reply tracking started",
		slog.Duration("interval", t.cfg.Interval),
		slog.Duration("lookback", t.cfg.Lookback))

	go t.run(ctx, t.stopCh, t.done)
	return true
}

// Stop asks the loop to exit. A cycle in flight completes first.
// It returns false if no loop was running.
func (t *Tracker) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopCh == nil {
		return false
	}
	close(t.stopCh)
	t.stopCh = nil
	return true
}

// Wait blocks until the loop started last has exited.
func (t *Tracker) Wait() {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Status returns a snapshot of the tracker.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Tracker) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer t.finish(ctx)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = t.cfg.Backoff
	bo.MaxInterval = t.cfg.Interval
	bo.Reset()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		wait := t.cfg.Interval
		if _, err := t.CheckOnce(ctx); err != nil {
			wait = bo.NextBackOff()
		} else {
			bo.Reset()
		}

		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (t *Tracker) finish(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopCh = nil
	t.status.State = StateIdle
	t.status.Line = "Tracking stopped"
	t.metrics.TrackerStopped(context.WithoutCancel(ctx))
	t.logger.Info("reply tracking stopped", logging.Count("cycles", int(t.status.Cycles)))
}

// CheckOnce runs one query-match-migrate cycle and returns its outcome.
// It is used by the loop and for manual checks; concurrent calls run one
// after another.
func (t *Tracker) CheckOnce(ctx context.Context) (CycleResult, error) {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()

	t.mu.Lock()
	t.status.Cycles++
	cycle := t.status.Cycles
	t.mu.Unlock()

	start := time.Now()
	ctx, span := instrumentation.StartCycleSpan(ctx, cycle)
	defer span.End()

	result, err := t.cycle(ctx, cycle)
	duration := time.Since(start)

	logger := t.logger.With(logging.Cycle(cycle), logging.Duration(duration))
	if err != nil {
		instrumentation.SetSpanError(span, err)
		t.metrics.RecordPollCycle(ctx, instrumentation.CycleError, 0, duration)
		result.Line = errorLine(err)
		logger.Warn("reply check failed", logging.Err(err), logging.Count("uncommitted", len(t.uncommitted)))
		t.update(result, err)
		return result, err
	}

	outcome := instrumentation.CycleNoReplies
	if len(result.Migrated) > 0 {
		outcome = instrumentation.CycleReplies
	}
	instrumentation.SetSpanSuccess(span)
	t.metrics.RecordPollCycle(ctx, outcome, len(result.Migrated), duration)
	logger.Info(result.Line,
		logging.Count("senders", result.Senders),
		logging.Count("migrated", len(result.Migrated)),
		logging.Count("remaining", result.Remaining))
	t.update(result, nil)
	return result, nil
}

func (t *Tracker) cycle(ctx context.Context, cycle uint64) (CycleResult, error) {
	result := CycleResult{Cycle: cycle}

	pending := t.pending
	if pending == nil {
		var err error
		pending, err = t.loadPending(ctx)
		if err != nil {
			return result, err
		}
	}
	result.Remaining = pending.Len()

	raw, err := t.mail.ListRecentSenders(ctx, t.cfg.Lookback)
	if err != nil {
		return result, err
	}
	result.Senders = len(replies.Events(raw, cycle))

	remaining, delta := contacts.Migrate(replies.Match(raw, pending), pending)
	delta = append(append([]contacts.Contact(nil), t.uncommitted...), delta...)
	if len(delta) == 0 {
		result.Line = noRepliesLine(pending.Len())
		return result, nil
	}

	if err := t.commit(ctx, delta, remaining); err != nil {
		t.uncommitted = delta
		t.pending = remaining
		result.Remaining = remaining.Len()
		return result, fmt.Errorf("committing %d migrated contact(s): %w", len(delta), err)
	}
	t.uncommitted = nil
	t.pending = nil

	for _, c := range delta {
		result.Migrated = append(result.Migrated, c.Email)
	}
	result.Remaining = remaining.Len()
	result.Line = migratedLine(len(delta), remaining.Len())

	if t.recorder != nil {
		if err := t.recorder.RecordReplies(ctx, cycle, delta); err != nil {
			t.logger.Warn("failed to record replies", logging.Cycle(cycle), logging.Err(err))
		}
	}
	return result, nil
}

// loadPending reads the pending collection from disk and drops contacts that
// are already responded. Those are left behind when a commit stops between
// its two writes; the trimmed collection is written back before use.
func (t *Tracker) loadPending(ctx context.Context) (*contacts.Set, error) {
	pending, err := t.store.LoadPending()
	if err != nil {
		return nil, fmt.Errorf("loading pending contacts: %w", err)
	}
	responded, err := t.store.LoadResponded()
	if err != nil {
		return nil, fmt.Errorf("loading responded contacts: %w", err)
	}

	reconciled, stale := contacts.Migrate(responded.Emails(), pending)
	if len(stale) == 0 {
		return pending, nil
	}
	if err := t.commit(ctx, nil, reconciled); err != nil {
		return nil, fmt.Errorf("reconciling %d responded contact(s): %w", len(stale), err)
	}
	t.logger.Info("dropped responded contacts from pending", logging.Count("contacts", len(stale)))
	return reconciled, nil
}

// commit writes the migration, retrying persistence failures.
func (t *Tracker) commit(ctx context.Context, delta []contacts.Contact, remaining *contacts.Set) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.cfg.PersistBackoff
	b.MaxInterval = t.cfg.Backoff

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := t.store.Commit(delta, remaining)
		if attempt > 1 {
			status := instrumentation.StatusSuccess
			if err != nil {
				status = instrumentation.StatusError
			}
			t.metrics.RecordPersistRetry(ctx, status)
		}
		if err != nil && !contacts.IsPersistence(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(t.cfg.PersistAttempts)))
	return err
}

func (t *Tracker) update(result CycleResult, err error) {
	responded := -1
	if set, rerr := t.store.LoadResponded(); rerr == nil {
		responded = set.Len()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.LastCheck = time.Now()
	t.status.Line = result.Line
	t.status.Pending = result.Remaining
	t.status.Uncommitted = len(t.uncommitted)
	if responded >= 0 {
		t.status.Responded = responded
	}
	if err != nil {
		t.status.LastError = err.Error()
		if t.status.State != StateIdle {
			t.status.State = StateFaulted
		}
		return
	}
	t.status.LastError = ""
	t.status.Migrated += len(result.Migrated)
	if t.status.State != StateIdle {
		t.status.State = StateRunning
	}
}
