package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/teemow/outreach/internal/campaign"
	"github.com/teemow/outreach/internal/config"
	"github.com/teemow/outreach/internal/contacts"
	"github.com/teemow/outreach/internal/credential"
	"github.com/teemow/outreach/internal/gmail"
	"github.com/teemow/outreach/internal/google"
	"github.com/teemow/outreach/internal/history"
	"github.com/teemow/outreach/internal/imapmail"
	"github.com/teemow/outreach/internal/instrumentation"
	"github.com/teemow/outreach/internal/logging"
	"github.com/teemow/outreach/internal/mail"
	"github.com/teemow/outreach/internal/server"
	"github.com/teemow/outreach/internal/suggest"
	"github.com/teemow/outreach/internal/tracker"
)

// Environment variables consulted before the keyring.
var (
	geminiKeyEnv    = []string{"OUTREACH_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"}
	imapPasswordEnv = []string{"OUTREACH_IMAP_PASSWORD"}
)

// app holds what every command needs: configuration, logger, secrets and
// telemetry.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	creds    *credential.Store
	provider *instrumentation.Provider
}

// newApp loads the configuration. Logs go to w so that stdout stays free
// for command output and the MCP stdio transport.
func newApp(ctx context.Context, w io.Writer) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	logger := logging.New(w, debugMode)
	if cfg.File != "" {
		logger.Debug("configuration loaded", slog.String("file", cfg.File))
	}

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		creds:    credential.New(),
		provider: provider,
	}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.provider.Shutdown(ctx); err != nil {
		a.logger.Warn("instrumentation shutdown failed", logging.Err(err))
	}
}

func (a *app) metrics() *instrumentation.Metrics {
	if !a.provider.Enabled() {
		return nil
	}
	return a.provider.Metrics()
}

func (a *app) store() *contacts.Store {
	return contacts.NewStore(a.cfg.Paths.Pending, a.cfg.Paths.Responded)
}

func (a *app) googleAuth() (*google.Auth, error) {
	return google.NewAuth(a.cfg.Paths.Credentials, google.NewTokenStore(a.tokenDir()))
}

func (a *app) tokenDir() string {
	if a.cfg.Paths.Tokens != "" {
		return a.cfg.Paths.Tokens
	}
	return google.DefaultTokenDir()
}

// mailFactory creates the configured provider. It runs on first use, so a
// missing token or password surfaces as a failed check or send instead of
// preventing startup.
func (a *app) mailFactory() server.MailFactory {
	return func(ctx context.Context) (mail.Service, error) {
		switch a.cfg.Mail.Provider {
		case config.ProviderIMAP:
			password, err := a.creds.Resolve(credential.IMAPPassword, imapPasswordEnv...)
			if err != nil {
				return nil, fmt.Errorf("imap password: %w", err)
			}
			imapCfg := a.cfg.Mail.IMAP
			client, err := imapmail.NewClient(imapmail.Config{
				IMAPHost: imapCfg.Host,
				IMAPPort: imapCfg.Port,
				SMTPHost: imapCfg.SMTPHost,
				SMTPPort: imapCfg.SMTPPort,
				Username: imapCfg.Username,
				Password: password,
				From:     imapCfg.From,
				Mailbox:  imapCfg.Mailbox,
				Security: imapCfg.Security,
			}, a.metrics())
			if err != nil {
				return nil, err
			}
			return client, nil
		default:
			auth, err := a.googleAuth()
			if err != nil {
				return nil, err
			}
			client, err := gmail.NewClient(ctx, auth, a.cfg.Mail.Account, a.metrics())
			if err != nil {
				return nil, err
			}
			return client, nil
		}
	}
}

func (a *app) suggestFactory() server.SuggestFactory {
	return func(ctx context.Context) (*suggest.Service, error) {
		apiKey, err := a.creds.Resolve(credential.GeminiAPIKey, geminiKeyEnv...)
		if err != nil {
			return nil, fmt.Errorf("gemini api key: %w (run 'outreach credentials set %s')", err, credential.GeminiAPIKey)
		}
		gen, err := suggest.NewGemini(ctx, apiKey, a.cfg.Suggest.Model, a.cfg.Suggest.Temperature)
		if err != nil {
			return nil, err
		}
		return suggest.NewService(gen, a.logger, a.metrics()), nil
	}
}

func (a *app) dispatchOptions() []campaign.Option {
	limit := rate.Limit(a.cfg.Dispatch.Rate)
	if a.cfg.Dispatch.Rate <= 0 {
		limit = rate.Inf
	}
	return []campaign.Option{
		campaign.WithRate(limit, a.cfg.Dispatch.Burst),
		campaign.WithMaxFailures(a.cfg.Dispatch.MaxFailures),
	}
}

// campaignContext wires the campaign components. The history database is
// optional: when it cannot be opened the campaign runs without it.
func (a *app) campaignContext(ctx context.Context) (*server.CampaignContext, error) {
	var hist *history.Store
	if a.cfg.Paths.History != "" {
		h, err := history.Open(a.cfg.Paths.History)
		if err != nil {
			a.logger.Warn("history disabled", slog.String("path", a.cfg.Paths.History), logging.Err(err))
		} else {
			hist = h
		}
	}

	return server.NewCampaignContext(ctx, server.Config{
		Store:         a.store(),
		Mail:          a.mailFactory(),
		SelectionPath: a.cfg.Paths.Selection,
		Tracker: tracker.Config{
			Interval:        a.cfg.Tracker.Interval,
			Backoff:         a.cfg.Tracker.Backoff,
			Lookback:        a.cfg.Tracker.Lookback,
			PersistAttempts: a.cfg.Tracker.PersistAttempts,
		},
		Dispatch: a.dispatchOptions(),
		History:  hist,
		Suggest:  a.suggestFactory(),
		Logger:   a.logger,
		Metrics:  a.metrics(),
	})
}

// withCampaign runs fn with a campaign context and tears everything down
// afterwards.
func withCampaign(ctx context.Context, fn func(a *app, sc *server.CampaignContext) error) error {
	a, err := newApp(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer a.close()

	sc, err := a.campaignContext(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := sc.Shutdown(); err != nil {
			a.logger.Warn("shutdown failed", logging.Err(err))
		}
	}()

	return fn(a, sc)
}
