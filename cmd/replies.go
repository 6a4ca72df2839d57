package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/outreach/internal/campaign"
	"github.com/teemow/outreach/internal/history"
	"github.com/teemow/outreach/internal/logging"
	"github.com/teemow/outreach/internal/server"
)

func newTrackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Check for replies periodically until interrupted",
		Long: `Run the reply tracker in the foreground. Every interval the inbox is
searched for messages from pending contacts; contacts who replied are moved
to the responded file. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return withCampaign(ctx, func(a *app, sc *server.CampaignContext) error {
				if _, err := sc.StartTracking(); err != nil {
					return err
				}
				a.logger.Info("tracking replies, press Ctrl-C to stop",
					slog.Duration("interval", sc.Tracker().Config().Interval))

				<-ctx.Done()
				sc.StopTracking()

				st := sc.Tracker().Status()
				fmt.Fprintf(cmd.OutOrStdout(), "Stopped after %d check(s). %s\n", st.Cycles, st.Line)
				return nil
			})
		},
	}
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check for replies once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCampaign(cmd.Context(), func(a *app, sc *server.CampaignContext) error {
				res, err := sc.CheckReplies(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, res.Line)
				for _, email := range res.Migrated {
					fmt.Fprintf(out, "  %s\n", email)
				}
				return nil
			})
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the number of pending and responded contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCampaign(cmd.Context(), func(a *app, sc *server.CampaignContext) error {
				st, err := sc.Status()
				if err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), a, st)
				return nil
			})
		},
	}
}

func printStatus(w io.Writer, a *app, st server.CampaignStatus) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Pending:\t%d\t(%s)\n", st.Pending, a.cfg.Paths.Pending)
	fmt.Fprintf(tw, "Responded:\t%d\t(%s)\n", st.Responded, a.cfg.Paths.Responded)
	if sel, err := campaign.LoadSelection(a.cfg.Paths.Selection); err == nil {
		fmt.Fprintf(tw, "Subject:\t%s\n", sel.Template().Subject)
	} else {
		fmt.Fprintf(tw, "Subject:\t(none selected)\n")
	}
	fmt.Fprintf(tw, "Provider:\t%s\n", a.cfg.Mail.Provider)
	_ = tw.Flush()
}

func newClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Reset the responded contacts file",
		Long: `Remove all contacts from the responded file, keeping its header. The
pending file is not changed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCampaign(cmd.Context(), func(a *app, sc *server.CampaignContext) error {
				if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Clear all responded contacts?") {
					return fmt.Errorf("aborted")
				}
				if err := sc.ClearResponded(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Responded contacts cleared.")
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var (
		limit int
		kind  string
		email string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded sends and replies, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), os.Stderr)
			if err != nil {
				return err
			}
			defer a.close()

			hist, err := history.Open(a.cfg.Paths.History)
			if err != nil {
				return err
			}
			defer func() {
				if err := hist.Close(); err != nil {
					a.logger.Warn("closing history failed", logging.Err(err))
				}
			}()

			events, err := hist.List(cmd.Context(), history.Filter{
				Kind:  history.Kind(kind),
				Email: email,
				Limit: limit,
			})
			if err != nil {
				return err
			}
			printEvents(cmd.OutOrStdout(), events)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of records (0 for all)")
	cmd.Flags().StringVar(&kind, "kind", "", "Only records of this kind: sent, send_failed or replied")
	cmd.Flags().StringVar(&email, "email", "", "Only records for this contact")
	return cmd
}

func printEvents(w io.Writer, events []history.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No history recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tEMAIL\tDETAIL")
	for _, ev := range events {
		detail := ev.MessageID
		switch ev.Kind {
		case history.KindSendFailed:
			detail = ev.Error
		case history.KindReplied:
			detail = fmt.Sprintf("cycle %d", ev.Cycle)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			ev.CreatedAt.Local().Format(time.DateTime), ev.Kind, ev.Email, detail)
	}
	_ = tw.Flush()
}
