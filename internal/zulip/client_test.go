package zulip

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{BaseURL: srv.URL, Email: "bot@example.com", APIKey: "secret"})
	require.NoError(t, err)
	return c
}

func TestGetMessagesRequestShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/json/messages", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "800", q.Get("anchor"))
		assert.Equal(t, "0", q.Get("num_before"))
		assert.Equal(t, "1000", q.Get("num_after"))
		assert.Equal(t, "true", q.Get("client_gravatar"))
		assert.Equal(t, `[{"operator":"stream","operand":3}]`, q.Get("narrow"))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "bot@example.com", user)
		assert.Equal(t, "secret", pass)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"success","msg":"","anchor":800,"found_newest":true,
			"messages":[{"id":800,"type":"stream","display_recipient":"design","flags":["read"],"reactions":[]},
			            {"id":801,"type":"private","display_recipient":[{"id":7,"email":"alice@example.com","full_name":"Alice"}]}]}`))
	})

	resp, err := c.GetMessages(context.Background(), MessagesRequest{
		Anchor:         AnchorID(800),
		NumAfter:       1000,
		Narrow:         `[{"operator":"stream","operand":3}]`,
		ClientGravatar: true,
	})
	require.NoError(t, err)
	assert.True(t, resp.FoundNewest)
	assert.False(t, resp.FoundOldest)
	assert.Equal(t, int64(800), resp.Anchor)
	require.Len(t, resp.Messages, 2)

	stream := resp.Messages[0]
	assert.Equal(t, "design", stream.StreamName())
	assert.True(t, stream.HasFlag("read"))
	assert.Contains(t, string(stream.Raw), `"reactions":[]`, "opaque fields are kept")

	pm := resp.Messages[1]
	assert.True(t, pm.IsPrivate())
	assert.Equal(t, []Recipient{{ID: 7, Email: "alice@example.com", FullName: "Alice"}}, pm.Recipients())
}

func TestGetMessagesOmitsEmptyNarrow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, has := r.URL.Query()["narrow"]
		assert.False(t, has)
		_, _ = w.Write([]byte(`{"result":"success","messages":[]}`))
	})
	_, err := c.GetMessages(context.Background(), MessagesRequest{Anchor: AnchorFirstUnread, NumBefore: 200, NumAfter: 200})
	require.NoError(t, err)
}

func TestGetMessagesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "bad request",
			status: http.StatusBadRequest,
			body:   `{"result":"error","msg":"Invalid narrow operator: unknown stream","code":"BAD_NARROW"}`,
			check: func(t *testing.T, err error) {
				assert.True(t, IsBadRequest(err))
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "BAD_NARROW", apiErr.Code)
				assert.Contains(t, err.Error(), "unknown stream")
			},
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
			check: func(t *testing.T, err error) {
				assert.False(t, IsBadRequest(err))
				assert.EqualError(t, err, "HTTP 502")
			},
		},
		{
			name:   "missing messages",
			status: http.StatusOK,
			body:   `{"result":"success","found_newest":true}`,
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, ErrMalformedResponse))
			},
		},
		{
			name:   "not json",
			status: http.StatusOK,
			body:   `nope`,
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, ErrMalformedResponse))
			},
		},
		{
			name:   "message without id",
			status: http.StatusOK,
			body:   `{"result":"success","messages":[{"content":"x"}]}`,
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, ErrMalformedResponse))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.GetMessages(context.Background(), MessagesRequest{Anchor: AnchorNewest, NumBefore: 10})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestGetMessagesRejectsInvalidRequest(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := c.GetMessages(context.Background(), MessagesRequest{Anchor: "latest"})
	assert.Error(t, err)
	_, err = c.GetMessages(context.Background(), MessagesRequest{Anchor: AnchorNewest, NumBefore: -1})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Options{})
	assert.Error(t, err)
	_, err = NewClient(Options{BaseURL: "ftp://chat.example.com"})
	assert.Error(t, err)

	c, err := NewClient(Options{BaseURL: "https://chat.example.com", APIPrefix: "api/v1/"})
	require.NoError(t, err)
	assert.Equal(t, "/api/v1", c.prefix)
}

func TestAnchor(t *testing.T) {
	id, ok := AnchorID(444).ID()
	assert.True(t, ok)
	assert.Equal(t, int64(444), id)

	_, ok = AnchorFirstUnread.ID()
	assert.False(t, ok)

	assert.True(t, AnchorOldest.Valid())
	assert.False(t, Anchor("").Valid())
	assert.False(t, Anchor("-5").Valid())
}
