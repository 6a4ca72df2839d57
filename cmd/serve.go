package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/outreach/internal/config"
	"github.com/teemow/outreach/internal/logging"
	"github.com/teemow/outreach/internal/server"
	"github.com/teemow/outreach/internal/tools/campaign_tools"
	"github.com/teemow/outreach/internal/tools/google_tools"
)

func newServeCmd() *cobra.Command {
	var (
		yolo        bool
		track       bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server on standard input/output so an
AI assistant can run the campaign: check its status, draft messages, send the
campaign and track replies.

Safety Mode:
  By default, the server operates in read-only mode, providing only the
  status, history and suggestion tools. Use --yolo to enable tools that send
  email or change the contact files.

Metrics:
  With --metrics-addr (or server.metrics_addr in the config) /metrics,
  /healthz, /readyz and /health are served on that address. Readiness
  fails while the reply tracker is faulted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), yolo, track, metricsAddr)
		},
	}

	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable write operations (sending email, moving and clearing contacts). Default is read-only mode.")
	cmd.Flags().BoolVar(&track, "track", false, "Start tracking replies when the server starts (requires --yolo)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Metrics and health server address, e.g. :9090 (default: server.metrics_addr from the config)")

	return cmd
}

func runServe(ctx context.Context, yolo, track bool, metricsAddr string) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// stdout carries the MCP protocol; logs go to stderr.
	a, err := newApp(shutdownCtx, os.Stderr)
	if err != nil {
		return err
	}
	defer a.close()
	slog.SetDefault(a.logger)

	if track && !yolo {
		return errors.New("--track moves contacts between files and requires --yolo")
	}

	sc, err := a.campaignContext(shutdownCtx)
	if err != nil {
		return fmt.Errorf("failed to create campaign context: %w", err)
	}
	defer func() {
		if err := sc.Shutdown(); err != nil {
			a.logger.Warn("error during campaign shutdown", logging.Err(err))
		}
	}()

	if metricsAddr == "" {
		metricsAddr = a.cfg.Server.MetricsAddr
	}
	if metricsAddr != "" {
		metricsServer, err := startMetricsServer(a, sc, metricsAddr)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				a.logger.Warn("error during metrics server shutdown", logging.Err(err))
			}
		}()
	}

	// Note: mcp.Implementation has Title field but WithTitle() ServerOption not available in v0.43.0
	mcpSrv := mcpserver.NewMCPServer("outreach", version,
		mcpserver.WithToolCapabilities(true),
	)

	// readOnly is the inverse of yolo
	readOnly := !yolo
	if readOnly {
		a.logger.Info("starting server in READ-ONLY mode (use --yolo to enable write operations)")
	} else {
		a.logger.Info("starting server with WRITE operations enabled")
	}

	if err := registerAllTools(mcpSrv, a, sc, readOnly); err != nil {
		return err
	}

	if track {
		if _, err := sc.StartTracking(); err != nil {
			return err
		}
	}

	return runStdioServer(shutdownCtx, mcpSrv)
}

func startMetricsServer(a *app, sc *server.CampaignContext, addr string) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: a.provider,
		Health:                  server.NewHealthChecker(sc),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}
	if err := metricsServer.Listen(); err != nil {
		return nil, err
	}

	go func() {
		if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", logging.Err(err))
		}
	}()
	a.logger.Info("metrics server started", slog.String("addr", metricsServer.Addr()))
	return metricsServer, nil
}

func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer) error {
	stdio := mcpserver.NewStdioServer(mcpSrv)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			serverDone <- err
		}
	}()

	select {
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
	case <-ctx.Done():
	}
	return nil
}

// registerAllTools registers all MCP tools.
func registerAllTools(mcpSrv *mcpserver.MCPServer, a *app, sc *server.CampaignContext, readOnly bool) error {
	if err := campaign_tools.RegisterCampaignTools(mcpSrv, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register campaign tools: %w", err)
	}

	if a.cfg.Mail.Provider != config.ProviderGmail {
		return nil
	}
	auth, err := a.googleAuth()
	if err != nil {
		// The campaign tools still work once a token exists.
		a.logger.Warn("google auth tools disabled", logging.Err(err))
		return nil
	}
	if err := google_tools.RegisterGoogleTools(mcpSrv, sc, auth); err != nil {
		return fmt.Errorf("failed to register Google tools: %w", err)
	}
	return nil
}
