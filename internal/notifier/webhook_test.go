package notifier_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/datfetch/datfetch/internal/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotify(t *testing.T) {
	var received map[string]string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	n := notifier.NewWebhookNotifier(ts.URL)
	require.NoError(t, n.Notify("run complete"))
	assert.Equal(t, "run complete", received["content"])
}

func TestNotifyErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer ts.Close()

	assert.Error(t, notifier.NewWebhookNotifier(ts.URL).Notify("x"))
	assert.Error(t, notifier.NewWebhookNotifier("").Notify("x"))
}
