package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/outreach/internal/mail"
)

// fakeGmail serves the subset of the Gmail REST API the client uses.
func fakeGmail(t *testing.T, sent *[]string) *Client {
	t.Helper()

	froms := map[string]string{
		"m1": "Jane Doe <jane@x.com>",
		"m2": "ray@y.com",
		"m3": "Mail Delivery <mailer@z.com>",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "in:inbox newer_than:2d", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = w.Write([]byte(`{"messages":[{"id":"m1"},{"id":"m2"}],"nextPageToken":"p2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"messages":[{"id":"m3"}]}`))
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/send", func(w http.ResponseWriter, r *http.Request) {
		var msg gmail.Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		raw, err := base64.URLEncoding.DecodeString(msg.Raw)
		require.NoError(t, err)
		if strings.Contains(string(raw), "To: blocked@x.com") {
			http.Error(w, `{"error":{"code":400,"message":"Invalid To header"}}`, http.StatusBadRequest)
			return
		}
		*sent = append(*sent, string(raw))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"sent-1"}`))
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/messages/")
		assert.Equal(t, "metadata", r.URL.Query().Get("format"))
		from, ok := froms[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(gmail.Message{
			Id:      id,
			Payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{{Name: "From", Value: from}}},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	svc, err := gmail.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return NewClientWithService(svc, "default", nil)
}

func TestListRecentSenders(t *testing.T) {
	client := fakeGmail(t, nil)

	senders, err := client.ListRecentSenders(context.Background(), 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jane Doe <jane@x.com>", "ray@y.com", "Mail Delivery <mailer@z.com>"}, senders)
}

func TestListRecentSenders_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend error", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc, err := gmail.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	_, err = NewClientWithService(svc, "default", nil).ListRecentSenders(context.Background(), time.Hour)
	require.Error(t, err)
	assert.True(t, mail.IsTransient(err))
}

func TestSend(t *testing.T) {
	var sent []string
	client := fakeGmail(t, &sent)

	id, err := client.Send(context.Background(), "jane@x.com", "Grüße Jane", "Hi Jane,\nthanks!")
	require.NoError(t, err)
	assert.Equal(t, "sent-1", id)

	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "To: jane@x.com\r\n")
	assert.Contains(t, sent[0], "Subject: =?UTF-8?")
	assert.True(t, strings.HasSuffix(sent[0], "\r\n\r\nHi Jane,\r\nthanks!"))
}

func TestSend_Rejected(t *testing.T) {
	var sent []string
	client := fakeGmail(t, &sent)

	_, err := client.Send(context.Background(), "blocked@x.com", "Hi", "Body")
	require.Error(t, err)

	var se *mail.SendError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "blocked@x.com", se.Recipient)
	assert.Empty(t, sent)
}

func TestInboxQuery(t *testing.T) {
	tests := []struct {
		lookback time.Duration
		want     string
	}{
		{48 * time.Hour, "in:inbox newer_than:2d"},
		{49 * time.Hour, "in:inbox newer_than:3d"},
		{time.Hour, "in:inbox newer_than:1d"},
		{0, "in:inbox newer_than:1d"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InboxQuery(tt.lookback))
	}
}

func TestHeaderValue(t *testing.T) {
	msg := &gmail.Message{Payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{
		{Name: "From", Value: "sender@example.com"},
		{Name: "Subject", Value: "Test"},
	}}}

	assert.Equal(t, "sender@example.com", HeaderValue(msg, "From"))
	assert.Equal(t, "sender@example.com", HeaderValue(msg, "from"))
	assert.Empty(t, HeaderValue(msg, "Cc"))
	assert.Empty(t, HeaderValue(&gmail.Message{}, "From"))
	assert.Empty(t, HeaderValue(nil, "From"))
}

func TestBuildMessage(t *testing.T) {
	_, err := buildMessage("", "s", "b")
	require.Error(t, err)

	_, err = buildMessage("a@x.com", "injected\r\nBcc: evil@x.com", "b")
	require.Error(t, err)

	raw, err := buildMessage("a@x.com", "Hello", "line1\nline2")
	require.NoError(t, err)
	assert.Equal(t, "To: a@x.com\r\nSubject: Hello\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\nline1\r\nline2", string(raw))
}

func TestEncodeRFC2047(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantASCII bool
	}{
		{"plain ASCII", "Simple Subject", true},
		{"empty", "", true},
		{"German umlauts", "Rückerstattung €115 - Überweisung", false},
		{"Japanese", "こんにちは", false},
		{"emoji", "Collab 🎉", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := encodeRFC2047(tt.input)
			if tt.wantASCII {
				assert.Equal(t, tt.input, got)
				return
			}
			assert.True(t, strings.HasPrefix(got, "=?UTF-8?"), got)
			assert.True(t, strings.HasSuffix(got, "?="), got)
		})
	}
}
