package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/oauth2"

	"github.com/teemow/outreach/internal/atomicfile"
)

var accountNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ErrNoToken is returned when an account has not been authorized yet.
var ErrNoToken = errors.New("no Google OAuth token found")

// ValidateAccountName checks that account is usable as part of a file name.
func ValidateAccountName(account string) error {
	if account == "" {
		return fmt.Errorf("account name cannot be empty")
	}
	if !accountNamePattern.MatchString(account) {
		return fmt.Errorf("invalid account name %q: only letters, digits, hyphens and underscores are allowed", account)
	}
	return nil
}

// DefaultTokenDir returns the directory tokens are stored in by default.
func DefaultTokenDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "outreach")
}

// TokenStore keeps one OAuth token file per account.
type TokenStore struct {
	dir string
}

// NewTokenStore returns a TokenStore rooted at dir.
func NewTokenStore(dir string) *TokenStore {
	return &TokenStore{dir: dir}
}

func (s *TokenStore) path(account string) string {
	return filepath.Join(s.dir, "google-"+account+".token")
}

// Has reports whether a token exists for account.
func (s *TokenStore) Has(account string) bool {
	if ValidateAccountName(account) != nil {
		return false
	}
	_, err := os.Stat(s.path(account))
	return err == nil
}

// Load reads the token of account.
func (s *TokenStore) Load(account string) (*oauth2.Token, error) {
	if err := ValidateAccountName(account); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(account))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w for account %s; run 'outreach auth url --account %s'", ErrNoToken, account, account)
	}
	if err != nil {
		return nil, err
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("invalid token file for account %s: %w", account, err)
	}
	return &tok, nil
}

// Save writes the token of account with owner-only permissions.
func (s *TokenStore) Save(account string, tok *oauth2.Token) error {
	if err := ValidateAccountName(account); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if err := atomicfile.WriteBytes(s.path(account), data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Delete removes the token of account. A missing token is not an error.
func (s *TokenStore) Delete(account string) error {
	if err := ValidateAccountName(account); err != nil {
		return err
	}
	if err := os.Remove(s.path(account)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
