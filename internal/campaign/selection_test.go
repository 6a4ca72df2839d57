package campaign

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelection_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "final_selection.json")
	ts := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, SaveSelection(path, Selection{
		Subject:       "Hello {influencer_name}",
		Message:       "Dear {influencer_name}, ...",
		SubjectNumber: 2,
		MessageNumber: 4,
		Timestamp:     ts,
	}))

	sel, err := LoadSelection(path)
	require.NoError(t, err)
	assert.Equal(t, 2, sel.SubjectNumber)
	assert.True(t, ts.Equal(sel.Timestamp))
	assert.Equal(t, "Hello {{influencer_name}}", sel.Template().Subject)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"selected_subject": "Hello {influencer_name}"`)
	assert.Contains(t, string(data), `"selected_message_number": 4`)
}

func TestSaveSelection_StampsTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "final_selection.json")
	require.NoError(t, SaveSelection(path, Selection{Subject: "s", Message: "m"}))

	sel, err := LoadSelection(path)
	require.NoError(t, err)
	assert.False(t, sel.Timestamp.IsZero())
	assert.Zero(t, sel.SubjectNumber)
}

func TestSaveSelection_RejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "final_selection.json")
	require.Error(t, SaveSelection(path, Selection{Subject: "only a subject"}))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadSelection_Missing(t *testing.T) {
	_, err := LoadSelection(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestLoadSelection_Invalid(t *testing.T) {
	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{"), 0o644))
	_, err := LoadSelection(broken)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSelection)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"selected_subject": "s"}`), 0o644))
	_, err = LoadSelection(empty)
	assert.ErrorIs(t, err, ErrNoSelection)
}
