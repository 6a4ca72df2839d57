package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/outreach/internal/history"
	"github.com/teemow/outreach/internal/suggest"
)

func TestGetCategoryFromToolName(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"campaign_send", "Campaign Tools"},
		{"campaign_status", "Campaign Tools"},
		{"google_get_auth_url", "Google Authorization Tools"},
		{"unknown", "Other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, getCategoryFromToolName(tt.name))
		})
	}
}

func TestListTools(t *testing.T) {
	tools, err := listTools()
	require.NoError(t, err)

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"campaign_status",
		"campaign_history",
		"campaign_suggest",
		"campaign_check_replies",
		"campaign_start_tracking",
		"campaign_stop_tracking",
		"campaign_send",
		"campaign_save_selection",
		"campaign_clear_responded",
		"google_get_auth_url",
		"google_save_auth_code",
	}, names)

	markdown := generateToolsMarkdown(tools)
	assert.Contains(t, markdown, "## Campaign Tools")
	assert.Contains(t, markdown, "### campaign_send")
	assert.Contains(t, markdown, "- `confirm` (required)")
}

func TestBuildSelection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suggestions.json")

	_, err := buildSelection(path, "", "", 1, 1)
	require.ErrorIs(t, err, suggest.ErrNoSuggestions)

	require.NoError(t, suggest.Save(path, &suggest.Suggestions{
		Subjects: []string{"S1", "S2"},
		Messages: []string{"M1"},
	}))

	sel, err := buildSelection(path, "", "", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, "S2", sel.Subject)
	assert.Equal(t, "M1", sel.Message)
	assert.Equal(t, 2, sel.SubjectNumber)

	sel, err = buildSelection(path, "", "Own text", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "S1", sel.Subject)
	assert.Equal(t, "Own text", sel.Message)
	assert.Zero(t, sel.MessageNumber)

	_, err = buildSelection(path, "", "", 3, 1)
	assert.Error(t, err)

	_, err = buildSelection(path, "only subject", "", 0, 0)
	assert.Error(t, err)

	sel, err = buildSelection(path, "Hi", "Hello {influencer_name}", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Hello {{influencer_name}}", sel.Template().Body)
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"y", true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		assert.Equal(t, tt.want, confirm(strings.NewReader(tt.input), &out, "Send?"), "input %q", tt.input)
		assert.Equal(t, "Send? [y/N] ", out.String())
	}
}

func TestPrintEvents(t *testing.T) {
	var out bytes.Buffer
	printEvents(&out, nil)
	assert.Equal(t, "No history recorded.\n", out.String())

	out.Reset()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	printEvents(&out, []history.Event{
		{Kind: history.KindSent, Email: "ann@x.com", MessageID: "m-1", CreatedAt: now},
		{Kind: history.KindSendFailed, Email: "bob@y.com", Error: "quota", CreatedAt: now},
		{Kind: history.KindReplied, Email: "ann@x.com", Cycle: 3, CreatedAt: now},
	})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "KIND")
	assert.Contains(t, lines[1], "m-1")
	assert.Contains(t, lines[2], "quota")
	assert.Contains(t, lines[3], "cycle 3")
}
