package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/outreach/internal/campaign"
	"github.com/teemow/outreach/internal/server"
	"github.com/teemow/outreach/internal/suggest"
)

// suggestionsPath keeps the last suggestions next to the selection file.
func suggestionsPath(a *app) string {
	return filepath.Join(filepath.Dir(a.cfg.Paths.Selection), "suggestions.json")
}

func newSuggestCmd() *cobra.Command {
	var subject, message string

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Ask the language model for better subject lines and messages",
		Long: `Send a draft subject and message to the language model and print five
alternatives for each. The suggestions are saved so that 'outreach select'
can pick them by number. Messages keep the {{influencer_name}} placeholder.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCampaign(cmd.Context(), func(a *app, sc *server.CampaignContext) error {
				suggestions, err := sc.Suggest(cmd.Context(), subject, message)
				if err != nil {
					return err
				}
				if err := suggest.Save(suggestionsPath(a), suggestions); err != nil {
					return err
				}
				printSuggestions(cmd.OutOrStdout(), suggestions)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Draft subject line")
	cmd.Flags().StringVar(&message, "message", "", "Draft email message")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func printSuggestions(w io.Writer, s *suggest.Suggestions) {
	fmt.Fprintln(w, "Subject suggestions:")
	for i, subject := range s.Subjects {
		fmt.Fprintf(w, "  %d. %s\n", i+1, subject)
	}
	fmt.Fprintln(w, "\nMessage suggestions:")
	for i, message := range s.Messages {
		fmt.Fprintf(w, "  %d. %s\n\n", i+1, strings.ReplaceAll(message, "\n", "\n     "))
	}
	fmt.Fprintln(w, "Choose with: outreach select --subject-number N --message-number M")
}

func newSelectCmd() *cobra.Command {
	var (
		subject, message             string
		subjectNumber, messageNumber int
	)

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Save the subject and message used by send",
		Long: `Save the final subject and message. Pick suggestions by number from the
last 'outreach suggest' run, or pass the text directly. Text passed with
--subject or --message replaces the picked suggestion.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), os.Stderr)
			if err != nil {
				return err
			}
			defer a.close()

			sel, err := buildSelection(suggestionsPath(a), subject, message, subjectNumber, messageNumber)
			if err != nil {
				return err
			}
			if err := campaign.SaveSelection(a.cfg.Paths.Selection, sel); err != nil {
				return err
			}

			tmpl := sel.Template()
			fmt.Fprintf(cmd.OutOrStdout(), "Saved selection to %s\n\nSubject: %s\n\n%s\n",
				a.cfg.Paths.Selection, tmpl.Subject, tmpl.Body)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Subject line text")
	cmd.Flags().StringVar(&message, "message", "", "Message text")
	cmd.Flags().IntVar(&subjectNumber, "subject-number", 0, "Number of the suggested subject")
	cmd.Flags().IntVar(&messageNumber, "message-number", 0, "Number of the suggested message")
	return cmd
}

func buildSelection(path, subject, message string, subjectNumber, messageNumber int) (campaign.Selection, error) {
	var sel campaign.Selection
	if subjectNumber > 0 || messageNumber > 0 {
		suggestions, err := suggest.Load(path)
		if err != nil {
			return sel, err
		}
		if subjectNumber > 0 {
			if subjectNumber > len(suggestions.Subjects) {
				return sel, fmt.Errorf("subject number must be between 1 and %d", len(suggestions.Subjects))
			}
			sel.Subject = suggestions.Subjects[subjectNumber-1]
			sel.SubjectNumber = subjectNumber
		}
		if messageNumber > 0 {
			if messageNumber > len(suggestions.Messages) {
				return sel, fmt.Errorf("message number must be between 1 and %d", len(suggestions.Messages))
			}
			sel.Message = suggestions.Messages[messageNumber-1]
			sel.MessageNumber = messageNumber
		}
	}
	if subject != "" {
		sel.Subject = subject
		sel.SubjectNumber = 0
	}
	if message != "" {
		sel.Message = message
		sel.MessageNumber = 0
	}
	if sel.Subject == "" || sel.Message == "" {
		return sel, errors.New("both a subject and a message are required")
	}
	return sel, nil
}

func newSendCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send the selected message to every pending contact",
		Long: `Send the saved subject and message to every contact in the pending file,
replacing {{influencer_name}} with the contact's name. Interrupting the
command stops the batch after the current email.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return withCampaign(ctx, func(a *app, sc *server.CampaignContext) error {
				sel, err := sc.Selection()
				if err != nil {
					return err
				}
				st, err := sc.Status()
				if err != nil {
					return err
				}
				if st.Pending == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No pending contacts.")
					return nil
				}

				if !yes {
					tmpl := sel.Template()
					prompt := fmt.Sprintf("Send %q to %d contact(s)?", tmpl.Subject, st.Pending)
					if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
						return errors.New("aborted")
					}
				}

				report, err := sc.Send(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), report.Summary())
				if report.Canceled {
					return context.Canceled
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
