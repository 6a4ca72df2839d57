package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/outreach/internal/campaign"
	"github.com/teemow/outreach/internal/contacts"
	"github.com/teemow/outreach/internal/history"
	"github.com/teemow/outreach/internal/instrumentation"
	"github.com/teemow/outreach/internal/logging"
	"github.com/teemow/outreach/internal/suggest"
	"github.com/teemow/outreach/internal/tracker"
)

// ErrShutdown is returned by operations on a CampaignContext after Shutdown.
var ErrShutdown = errors.New("campaign context is shut down")

// ErrDispatchInProgress is returned when a send is requested while another
// batch is still running.
var ErrDispatchInProgress = errors.New("a dispatch batch is already running")

// SuggestFactory creates the suggestion service on first use.
type SuggestFactory func(ctx context.Context) (*suggest.Service, error)

// Config holds the dependencies of a CampaignContext.
type Config struct {
	Store         *contacts.Store
	Mail          MailFactory
	SelectionPath string
	Tracker       tracker.Config
	Dispatch      []campaign.Option
	// History is optional.
	History *history.Store
	// Suggest is optional; without it Suggest returns an error.
	Suggest SuggestFactory
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// CampaignStatus combines the tracker state with the current file counts.
type CampaignStatus struct {
	Tracking    string    `json:"tracking"`
	State       string    `json:"state"`
	Line        string    `json:"status_line,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Pending     int       `json:"pending"`
	Responded   int       `json:"responded"`
	Cycles      uint64    `json:"cycles"`
	LastCheck   time.Time `json:"last_check,omitempty"`
	Uncommitted int       `json:"uncommitted,omitempty"`
}

// CampaignContext holds the long lived campaign components.
type CampaignContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	store         *contacts.Store
	mail          *lazyMail
	tracker       *tracker.Tracker
	dispatcher    *campaign.Dispatcher
	history       *history.Store
	selectionPath string
	logger        *slog.Logger
	metrics       *instrumentation.Metrics

	suggestFactory SuggestFactory
	suggestMu      sync.Mutex
	suggest        *suggest.Service

	// sending guards against overlapping dispatch batches.
	sending sync.Mutex

	mu       sync.RWMutex
	shutdown bool
}

// NewCampaignContext wires the campaign components. The tracker starts idle.
func NewCampaignContext(ctx context.Context, cfg Config) (*CampaignContext, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("contact store is required")
	}
	if cfg.Mail == nil {
		return nil, fmt.Errorf("mail factory is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	lazy := &lazyMail{factory: cfg.Mail}

	trackerOpts := []tracker.Option{
		tracker.WithConfig(cfg.Tracker),
		tracker.WithLogger(logger),
		tracker.WithMetrics(cfg.Metrics),
	}
	dispatchOpts := []campaign.Option{
		campaign.WithLogger(logger),
		campaign.WithMetrics(cfg.Metrics),
	}
	if cfg.History != nil {
		trackerOpts = append(trackerOpts, tracker.WithRecorder(cfg.History))
		dispatchOpts = append(dispatchOpts, campaign.WithRecorder(cfg.History))
	}
	dispatchOpts = append(dispatchOpts, cfg.Dispatch...)

	return &CampaignContext{
		ctx:            shutdownCtx,
		cancel:         cancel,
		store:          cfg.Store,
		mail:           lazy,
		tracker:        tracker.New(cfg.Store, lazy, trackerOpts...),
		dispatcher:     campaign.NewDispatcher(lazy, dispatchOpts...),
		history:        cfg.History,
		selectionPath:  cfg.SelectionPath,
		logger:         logging.WithComponent(logger, "campaign"),
		metrics:        cfg.Metrics,
		suggestFactory: cfg.Suggest,
	}, nil
}

// Context returns the server context; it is canceled by Shutdown.
func (sc *CampaignContext) Context() context.Context {
	return sc.ctx
}

// Logger returns the campaign logger.
func (sc *CampaignContext) Logger() *slog.Logger {
	return sc.logger
}

// Metrics returns the metrics recorder, or nil.
func (sc *CampaignContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// Store returns the contact store.
func (sc *CampaignContext) Store() *contacts.Store {
	return sc.store
}

// Tracker returns the reply tracker.
func (sc *CampaignContext) Tracker() *tracker.Tracker {
	return sc.tracker
}

// History returns the history store, or nil.
func (sc *CampaignContext) History() *history.Store {
	return sc.history
}

// Status reports tracking state and the pending and responded counts.
func (sc *CampaignContext) Status() (CampaignStatus, error) {
	ts := sc.tracker.Status()
	st := CampaignStatus{
		Tracking:    ts.Label(),
		State:       ts.State.String(),
		Line:        ts.Line,
		LastError:   ts.LastError,
		Cycles:      ts.Cycles,
		LastCheck:   ts.LastCheck,
		Uncommitted: ts.Uncommitted,
	}

	pending, err := sc.store.LoadPending()
	if err != nil {
		return st, err
	}
	responded, err := sc.store.LoadResponded()
	if err != nil {
		return st, err
	}
	st.Pending = pending.Len()
	st.Responded = responded.Len()
	return st, nil
}

// CheckReplies runs one manual reply check.
func (sc *CampaignContext) CheckReplies(ctx context.Context) (tracker.CycleResult, error) {
	if sc.IsShutdown() {
		return tracker.CycleResult{}, ErrShutdown
	}
	result, err := sc.tracker.CheckOnce(ctx)
	if err == nil && len(result.Migrated) > 0 {
		logging.WithOperation(sc.logger, "check_replies").Info("manual check migrated contacts",
			logging.Count("migrated", len(result.Migrated)))
	}
	return result, err
}

// StartTracking starts the tracking loop for the lifetime of the context.
// It returns false if tracking is already active.
func (sc *CampaignContext) StartTracking() (bool, error) {
	if sc.IsShutdown() {
		return false, ErrShutdown
	}
	return sc.tracker.Start(sc.ctx), nil
}

// StopTracking stops the loop and waits for it to exit. It returns false if
// tracking was not active.
func (sc *CampaignContext) StopTracking() bool {
	stopped := sc.tracker.Stop()
	sc.tracker.Wait()
	return stopped
}

// Send dispatches the saved selection to every pending contact.
func (sc *CampaignContext) Send(ctx context.Context) (campaign.Report, error) {
	if sc.IsShutdown() {
		return campaign.Report{}, ErrShutdown
	}
	if !sc.sending.TryLock() {
		return campaign.Report{}, ErrDispatchInProgress
	}
	defer sc.sending.Unlock()

	sel, err := campaign.LoadSelection(sc.selectionPath)
	if err != nil {
		return campaign.Report{}, err
	}
	pending, err := sc.store.LoadPending()
	if err != nil {
		return campaign.Report{}, err
	}
	report := sc.dispatcher.DispatchAll(ctx, pending, sel.Template())
	logging.WithOperation(sc.logger, "send").Info("dispatch finished",
		logging.Batch(report.BatchID),
		logging.Count("sent", report.Sent),
		logging.Count("failed", report.Failed))
	return report, nil
}

// Suggest asks the suggestion service for alternatives to the draft.
func (sc *CampaignContext) Suggest(ctx context.Context, subject, message string) (*suggest.Suggestions, error) {
	svc, err := sc.suggestService(ctx)
	if err != nil {
		return nil, err
	}
	out, err := svc.Suggest(ctx, subject, message)
	if err != nil {
		logging.WithOperation(sc.logger, "suggest").Warn("suggestion request failed", logging.Err(err))
		return nil, err
	}
	return out, nil
}

func (sc *CampaignContext) suggestService(ctx context.Context) (*suggest.Service, error) {
	sc.suggestMu.Lock()
	defer sc.suggestMu.Unlock()

	if sc.suggest != nil {
		return sc.suggest, nil
	}
	if sc.suggestFactory == nil {
		return nil, fmt.Errorf("suggestions are not configured")
	}
	svc, err := sc.suggestFactory(ctx)
	if err != nil {
		return nil, err
	}
	sc.suggest = svc
	return svc, nil
}

// Selection returns the saved subject and message.
func (sc *CampaignContext) Selection() (campaign.Selection, error) {
	return campaign.LoadSelection(sc.selectionPath)
}

// SaveSelection stores the chosen subject and message.
func (sc *CampaignContext) SaveSelection(sel campaign.Selection) error {
	if err := campaign.SaveSelection(sc.selectionPath, sel); err != nil {
		return err
	}
	logging.WithOperation(sc.logger, "save_selection").Info("selection saved", slog.String("path", sc.selectionPath))
	return nil
}

// ClearResponded resets the responded file to its header.
func (sc *CampaignContext) ClearResponded() error {
	if err := sc.store.ClearResponded(); err != nil {
		return err
	}
	logging.WithOperation(sc.logger, "clear_responded").Info("responded contacts cleared")
	return nil
}

// IsShutdown returns whether Shutdown has been called.
func (sc *CampaignContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown stops tracking, cancels the context and closes the history.
func (sc *CampaignContext) Shutdown() error {
	sc.mu.Lock()
	if sc.shutdown {
		sc.mu.Unlock()
		return nil
	}
	sc.shutdown = true
	sc.mu.Unlock()

	sc.tracker.Stop()
	sc.cancel()
	sc.tracker.Wait()
	return sc.history.Close()
}
