package cmd

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/teemow/outreach/internal/credential"
	"github.com/teemow/outreach/internal/google"
	"github.com/teemow/outreach/internal/logging"
)

func newAuthCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail access",
		Long: `Authorize outreach to read the inbox and send email through Gmail.
Run 'outreach auth url', open the printed URL, then pass the code Google
shows to 'outreach auth code'.`,
	}
	cmd.PersistentFlags().StringVar(&account, "account", "", "Google account name (default: mail.account from the config)")

	resolveAccount := func(a *app) string {
		if account != "" {
			return account
		}
		return a.cfg.Mail.Account
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "url",
		Short: "Print the consent page URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), os.Stderr)
			if err != nil {
				return err
			}
			defer a.close()

			auth, err := a.googleAuth()
			if err != nil {
				return err
			}
			acct := resolveAccount(a)
			if err := google.ValidateAccountName(acct); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Visit this URL to authorize account %q:\n\n%s\n\nThen run: outreach auth code <code>\n",
				acct, auth.AuthURL(acct))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "code <authorization-code>",
		Short: "Exchange the authorization code for a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), os.Stderr)
			if err != nil {
				return err
			}
			defer a.close()

			auth, err := a.googleAuth()
			if err != nil {
				return err
			}
			acct := resolveAccount(a)
			code := strings.TrimSpace(args[0])
			logging.WithAccount(a.logger, acct).Debug("exchanging authorization code",
				slog.String("code", logging.SanitizeToken(code)))
			if err := auth.Exchange(cmd.Context(), acct, code); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token saved for account %q.\n", acct)
			return nil
		},
	})

	return cmd
}

func newCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage secrets stored in the system keyring",
		Long: fmt.Sprintf(`Store secrets in the system keyring instead of the environment.

Known keys:
  %s   API key for suggestions (or GEMINI_API_KEY)
  %s    password for the imap provider (or OUTREACH_IMAP_PASSWORD)`,
			credential.GeminiAPIKey, credential.IMAPPassword),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret, reading it from the terminal or stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := readSecret(cmd, args[0])
			if err != nil {
				return err
			}
			if err := credential.New().Set(args[0], value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s.\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := credential.New().Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored secret names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := credential.New().Keys()
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	})

	return cmd
}

func readSecret(cmd *cobra.Command, key string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Enter %s: ", key)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", key, err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return strings.TrimSpace(line), nil
}
