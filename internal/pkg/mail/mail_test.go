package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledSenderIsNoop(t *testing.T) {
	s := New(Config{})
	assert.False(t, s.Enabled())
	assert.NoError(t, s.Send(context.Background(), Message{}))
}

func TestSendRequiresRecipients(t *testing.T) {
	s := New(Config{Enable: true})
	assert.Error(t, s.Send(context.Background(), Message{Subject: "x"}))
}

func TestSendResend(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer re_key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(Config{Enable: true, UseResend: true, ResendKey: "re_key", From: "site@example.com"})
	s.endpoint = srv.URL
	err := s.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "Hi", HTML: "<p>x</p>"})
	require.NoError(t, err)

	assert.Equal(t, "site@example.com", got["from"])
	assert.Equal(t, "Hi", got["subject"])
	assert.Equal(t, []interface{}{"a@example.com"}, got["to"])
}

func TestSendResendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer srv.Close()

	s := New(Config{Enable: true, UseResend: true, ResendKey: "k"})
	s.endpoint = srv.URL
	err := s.Send(context.Background(), Message{From: "x@example.com", To: []string{"a@example.com"}})
	assert.ErrorContains(t, err, "invalid from")
}

func TestLayout(t *testing.T) {
	html, err := Layout("Example <Site>", "<p>body</p>")
	require.NoError(t, err)
	assert.Contains(t, html, "<p>body</p>")
	assert.Contains(t, html, "Sent by Example &lt;Site&gt;")
}
