package campaign_tools

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/teemow/outreach/internal/campaign"
	"github.com/teemow/outreach/internal/contacts"
	"github.com/teemow/outreach/internal/history"
	"github.com/teemow/outreach/internal/mail"
	"github.com/teemow/outreach/internal/server"
	"github.com/teemow/outreach/internal/suggest"
	"github.com/teemow/outreach/internal/tracker"
)

type fakeMail struct {
	mu      sync.Mutex
	senders []string
	sent    []string
}

func (f *fakeMail) ListRecentSenders(context.Context, time.Duration) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.senders, nil
}

func (f *fakeMail) Send(_ context.Context, to, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to)
	return "id-" + to, nil
}

type staticGenerator string

func (g staticGenerator) Generate(context.Context, string) (string, error) {
	return string(g), nil
}

func newTestContext(t *testing.T, fm *fakeMail, withHistory bool) *server.CampaignContext {
	t.Helper()

	dir := t.TempDir()
	pending := filepath.Join(dir, "influencer.csv")
	require.NoError(t, os.WriteFile(pending, []byte("influencer_name,email\nAnn,ann@x.com\nBob,bob@y.com\n"), 0o644))

	cfg := server.Config{
		Store:         contacts.NewStore(pending, filepath.Join(dir, "responded.csv")),
		Mail:          func(context.Context) (mail.Service, error) { return fm, nil },
		SelectionPath: filepath.Join(dir, "final_selection.json"),
		Tracker:       tracker.Config{Interval: time.Hour, Backoff: time.Hour},
		Dispatch:      []campaign.Option{campaign.WithRate(rate.Inf, 1)},
		Suggest: func(context.Context) (*suggest.Service, error) {
			return suggest.NewService(staticGenerator(
				`{"subject_suggestions":["Hi {{influencer_name}}"],"message_suggestions":["Dear {influencer_name}, hello"]}`), nil, nil), nil
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if withHistory {
		hist, err := history.Open(filepath.Join(dir, "history.db"))
		require.NoError(t, err)
		cfg.History = hist
	}

	sc, err := server.NewCampaignContext(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func request(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestRegisterCampaignTools(t *testing.T) {
	sc := newTestContext(t, &fakeMail{}, false)

	tests := []struct {
		readOnly bool
		want     int
	}{
		{readOnly: true, want: 3},
		{readOnly: false, want: 9},
	}
	for _, tt := range tests {
		s := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithToolCapabilities(true))
		require.NoError(t, RegisterCampaignTools(s, sc, tt.readOnly))

		tools := s.ListTools()
		assert.Len(t, tools, tt.want, "readOnly=%v", tt.readOnly)
		_, hasSend := tools["campaign_send"]
		assert.Equal(t, !tt.readOnly, hasSend)
	}
}

func TestHandleStatus(t *testing.T) {
	sc := newTestContext(t, &fakeMail{}, false)

	res, err := handleStatus(context.Background(), request(nil), sc)
	require.NoError(t, err)
	assert.False(t, res.IsError)

	text := resultText(t, res)
	assert.Contains(t, text, `"tracking": "Inactive"`)
	assert.Contains(t, text, `"pending": 2`)
}

func TestHandleCheckReplies(t *testing.T) {
	fm := &fakeMail{senders: []string{"Bob <BOB@y.com>"}}
	sc := newTestContext(t, fm, false)

	res, err := handleCheckReplies(context.Background(), request(nil), sc)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "- bob@y.com")

	st, err := sc.Status()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Pending)
	assert.Equal(t, 1, st.Responded)
}

func TestHandleStartStopTracking(t *testing.T) {
	sc := newTestContext(t, &fakeMail{}, false)

	res, err := handleStartTracking(context.Background(), request(nil), sc)
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "started")

	res, err = handleStartTracking(context.Background(), request(nil), sc)
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "already active")

	res, err = handleStopTracking(context.Background(), request(nil), sc)
	require.NoError(t, err)
	assert.Equal(t, "Reply tracking stopped", resultText(t, res))

	res, err = handleStopTracking(context.Background(), request(nil), sc)
	require.NoError(t, err)
	assert.Equal(t, "Reply tracking is not active", resultText(t, res))
}

func TestHandleSend(t *testing.T) {
	fm := &fakeMail{}
	sc := newTestContext(t, fm, true)

	res, err := handleSend(context.Background(), request(map[string]interface{}{}), sc)
	require.NoError(t, err)
	assert.True(t, res.IsError, "send without confirm must fail")

	res, err = handleSend(context.Background(), request(map[string]interface{}{"confirm": true}), sc)
	require.NoError(t, err)
	assert.True(t, res.IsError, "send without a selection must fail")
	assert.Empty(t, fm.sent)

	res, err = handleSaveSelection(context.Background(), request(map[string]interface{}{
		"subject":       "Hello {{influencer_name}}",
		"message":       "Hi {influencer_name}",
		"subjectNumber": float64(2),
	}), sc)
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	sel, err := sc.Selection()
	require.NoError(t, err)
	assert.Equal(t, 2, sel.SubjectNumber)

	res, err = handleSend(context.Background(), request(map[string]interface{}{"confirm": true}), sc)
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	assert.Contains(t, resultText(t, res), "Sent 2 email(s), 0 failed")
	assert.ElementsMatch(t, []string{"ann@x.com", "bob@y.com"}, fm.sent)

	res, err = handleHistory(context.Background(), request(map[string]interface{}{"kind": "sent"}), sc)
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	assert.Contains(t, resultText(t, res), "ann@x.com")
}

func TestHandleSaveSelection_Empty(t *testing.T) {
	sc := newTestContext(t, &fakeMail{}, false)

	res, err := handleSaveSelection(context.Background(), request(map[string]interface{}{"subject": "x"}), sc)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleSuggest(t *testing.T) {
	sc := newTestContext(t, &fakeMail{}, false)

	res, err := handleSuggest(context.Background(), request(map[string]interface{}{"subject": "s"}), sc)
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = handleSuggest(context.Background(), request(map[string]interface{}{
		"subject": "draft",
		"message": "draft body",
	}), sc)
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	text := resultText(t, res)
	assert.Contains(t, text, "1. Hi {{influencer_name}}")
	assert.Contains(t, text, "1. Dear {{influencer_name}}, hello")
}

func TestHandleClearResponded(t *testing.T) {
	fm := &fakeMail{senders: []string{"ann@x.com"}}
	sc := newTestContext(t, fm, false)
	_, err := sc.CheckReplies(context.Background())
	require.NoError(t, err)

	res, err := handleClearResponded(context.Background(), request(map[string]interface{}{"confirm": false}), sc)
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = handleClearResponded(context.Background(), request(map[string]interface{}{"confirm": true}), sc)
	require.NoError(t, err)
	assert.False(t, res.IsError)

	st, err := sc.Status()
	require.NoError(t, err)
	assert.Equal(t, 0, st.Responded)
}

func TestHandleHistory(t *testing.T) {
	sc := newTestContext(t, &fakeMail{}, false)
	res, err := handleHistory(context.Background(), request(nil), sc)
	require.NoError(t, err)
	assert.True(t, res.IsError, "history disabled")

	sc = newTestContext(t, &fakeMail{}, true)
	res, err = handleHistory(context.Background(), request(map[string]interface{}{"kind": "bogus"}), sc)
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = handleHistory(context.Background(), request(map[string]interface{}{"limit": float64(5)}), sc)
	require.NoError(t, err)
	assert.False(t, res.IsError)
}
