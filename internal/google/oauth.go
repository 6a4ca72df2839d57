package google

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/outreach/internal/logging"
)

// Auth runs the installed-app OAuth flow and hands out authorized HTTP clients.
type Auth struct {
	config *oauth2.Config
	tokens *TokenStore
}

// NewAuth reads the OAuth client file at credentialsFile.
func NewAuth(credentialsFile string, tokens *TokenStore) (*Auth, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading OAuth client file: %w", err)
	}
	return NewAuthFromJSON(data, tokens)
}

// NewAuthFromJSON builds an Auth from the content of an OAuth client file.
func NewAuthFromJSON(data []byte, tokens *TokenStore) (*Auth, error) {
	config, err := google.ConfigFromJSON(data, DefaultOAuthScopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing OAuth client file: %w", err)
	}
	return &Auth{config: config, tokens: tokens}, nil
}

// AuthURL returns the consent page URL for account.
func (a *Auth) AuthURL(account string) string {
	return a.config.AuthCodeURL(account, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and stores it for account.
func (a *Auth) Exchange(ctx context.Context, account, code string) error {
	if err := ValidateAccountName(account); err != nil {
		return err
	}
	tok, err := a.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return a.tokens.Save(account, tok)
}

// HasToken reports whether account has been authorized.
func (a *Auth) HasToken(account string) bool {
	return a.tokens.Has(account)
}

// HTTPClient returns a client authorized as account. Refreshed tokens are
// saved back to the token store.
func (a *Auth) HTTPClient(ctx context.Context, account string) (*http.Client, error) {
	tok, err := a.tokens.Load(account)
	if err != nil {
		return nil, err
	}

	src := &savingTokenSource{
		base:    a.config.TokenSource(ctx, tok),
		tokens:  a.tokens,
		account: account,
		last:    tok.AccessToken,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

type savingTokenSource struct {
	base    oauth2.TokenSource
	tokens  *TokenStore
	account string

	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.tokens.Save(s.account, tok); err != nil {
			slog.Warn("failed to save refreshed token", logging.Account(s.account), logging.Err(err))
		}
	}
	return tok, nil
}
