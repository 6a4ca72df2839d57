package suggest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suggestions.json")

	_, err := Load(path)
	require.ErrorIs(t, err, ErrNoSuggestions)

	in := &Suggestions{
		Subjects: []string{"One", "Two"},
		Messages: []string{"Hi {{influencer_name}}"},
	}
	require.NoError(t, Save(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	sel, err := out.Pick(2, 1)
	require.NoError(t, err)
	assert.Equal(t, "Two", sel.Subject)
}
