package ultramsg_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatdigest/chatdigest/internal/ultramsg"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *ultramsg.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := ultramsg.New(ultramsg.Config{
		BaseURL:    srv.URL,
		InstanceID: "instance42",
		Token:      "secret-token",
	})
	require.NoError(t, err)
	return client
}

func TestSend_RequestShape(t *testing.T) {
	var (
		gotPath        string
		gotContentType string
		gotForm        map[string]string
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"to":    r.PostForm.Get("to"),
			"token": r.PostForm.Get("token"),
			"body":  r.PostForm.Get("body"),
		}
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusOK)
	})

	err := client.Send(context.Background(), "33611111111@c.us", "*_Résumé_*\n\ntexte")
	require.NoError(t, err)

	assert.Equal(t, "/instance42/messages/chat", gotPath)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, map[string]string{
		"to":    "33611111111@c.us",
		"token": "secret-token",
		"body":  "*_Résumé_*\n\ntexte",
	}, gotForm)
}

func TestSend_GatewayError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	})

	err := client.Send(context.Background(), "33611111111@c.us", "texte")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid token")
}

func TestNew_Validation(t *testing.T) {
	_, err := ultramsg.New(ultramsg.Config{Token: "t"})
	assert.Error(t, err)

	_, err = ultramsg.New(ultramsg.Config{InstanceID: "i"})
	assert.Error(t, err)
}
