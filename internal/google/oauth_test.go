package google

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const clientJSON = `{"installed":{
	"client_id":"client-123.apps.googleusercontent.com",
	"client_secret":"secret",
	"redirect_uris":["http://localhost"],
	"auth_uri":"https://accounts.google.com/o/oauth2/auth",
	"token_uri":"https://oauth2.googleapis.com/token"}}`

func TestValidateAccountName(t *testing.T) {
	tests := []struct {
		account string
		wantErr bool
	}{
		{"default", false},
		{"work-email", false},
		{"personal_email", false},
		{"account123", false},
		{"", true},
		{"my account", true},
		{"account@work", true},
		{"work/personal", true},
		{"../escape", true},
	}
	for _, tt := range tests {
		t.Run(tt.account, func(t *testing.T) {
			err := ValidateAccountName(tt.account)
			assert.Equal(t, tt.wantErr, err != nil, "error = %v", err)
		})
	}
}

func TestTokenStore(t *testing.T) {
	dir := t.TempDir()
	store := NewTokenStore(dir)

	assert.False(t, store.Has("default"))
	_, err := store.Load("default")
	require.ErrorIs(t, err, ErrNoToken)

	tok := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}
	require.NoError(t, store.Save("default", tok))
	assert.True(t, store.Has("default"))
	assert.False(t, store.Has("work"))
	assert.False(t, store.Has("bad name"))

	info, err := os.Stat(filepath.Join(dir, "google-default.token"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := store.Load("default")
	require.NoError(t, err)
	assert.Equal(t, "access", loaded.AccessToken)
	assert.Equal(t, "refresh", loaded.RefreshToken)

	require.NoError(t, store.Delete("default"))
	require.NoError(t, store.Delete("default"))
	assert.False(t, store.Has("default"))
}

func TestTokenStore_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "google-default.token"), []byte("access refresh"), 0o600))

	_, err := NewTokenStore(dir).Load("default")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token file")
}

func TestAuth_AuthURL(t *testing.T) {
	auth, err := NewAuthFromJSON([]byte(clientJSON), NewTokenStore(t.TempDir()))
	require.NoError(t, err)

	u, err := url.Parse(auth.AuthURL("work"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "client-123.apps.googleusercontent.com", q.Get("client_id"))
	assert.Equal(t, "work", q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, strings.Join(DefaultOAuthScopes, " "), q.Get("scope"))
}

func TestAuth_HTTPClient(t *testing.T) {
	store := NewTokenStore(t.TempDir())
	auth, err := NewAuthFromJSON([]byte(clientJSON), store)
	require.NoError(t, err)

	_, err = auth.HTTPClient(context.Background(), "default")
	require.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, store.Save("default", &oauth2.Token{
		AccessToken: "access",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}))
	client, err := auth.HTTPClient(context.Background(), "default")
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.True(t, auth.HasToken("default"))
}

func TestNewAuthFromJSON_Invalid(t *testing.T) {
	_, err := NewAuthFromJSON([]byte("{}"), NewTokenStore(t.TempDir()))
	require.Error(t, err)
}

func TestExchange_InvalidAccount(t *testing.T) {
	auth, err := NewAuthFromJSON([]byte(clientJSON), NewTokenStore(t.TempDir()))
	require.NoError(t, err)
	require.Error(t, auth.Exchange(context.Background(), "bad name", "code"))
}
