package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGetDelete(t *testing.T) {
	s := NewWithKeyring(keyring.NewArrayKeyring(nil))

	_, err := s.Get(GeminiAPIKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(GeminiAPIKey, "abc"))
	v, err := s.Get(GeminiAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{GeminiAPIKey}, keys)

	require.NoError(t, s.Delete(GeminiAPIKey))
	_, err = s.Get(GeminiAPIKey)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.Set(IMAPPassword, "  "))
}

func TestStore_Resolve(t *testing.T) {
	s := NewWithKeyring(keyring.NewArrayKeyring([]keyring.Item{{Key: GeminiAPIKey, Data: []byte("from-keyring")}}))

	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	v, err := s.Resolve(GeminiAPIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", v)

	t.Setenv("GOOGLE_API_KEY", "from-env")
	v, err = s.Resolve(GeminiAPIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	_, err = s.Resolve(IMAPPassword, "OUTREACH_IMAP_PASSWORD_UNSET")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "OUTREACH_IMAP_PASSWORD_UNSET")
}

func TestStore_ResolveSkipsKeyringWhenEnvSet(t *testing.T) {
	opened := false
	s := &Store{open: func() (keyring.Keyring, error) {
		opened = true
		return nil, errors.New("no keyring here")
	}}

	t.Setenv("OUTREACH_TEST_SECRET", "value")
	v, err := s.Resolve("anything", "OUTREACH_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.False(t, opened)

	_, err = s.Get("anything")
	assert.Error(t, err)
	assert.True(t, opened)
}
