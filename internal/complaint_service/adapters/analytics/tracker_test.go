package analytics

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTrackFiling(t *testing.T) {
	var received url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		received, err = url.ParseQuery(string(body))
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tracker := NewTracker("UA-12345-1", "client-1", testLogger())
	tracker.endpoint = server.URL

	tracker.TrackFiling(context.Background(), "6235371600", "4155551234")

	require.NotNil(t, received)
	assert.Equal(t, "1", received.Get("v"))
	assert.Equal(t, "UA-12345-1", received.Get("tid"))
	assert.Equal(t, "client-1", received.Get("cid"))
	assert.Equal(t, "event", received.Get("t"))
	assert.Equal(t, "complaint", received.Get("ec"))
	assert.Equal(t, "file", received.Get("ea"))
	assert.Equal(t, "6235371600", received.Get("el"))
	assert.Equal(t, "4155551234", received.Get("ev"))
}

func TestTrackFiling_DisabledWithoutTrackingID(t *testing.T) {
	hit := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer server.Close()

	tracker := NewTracker("", "client-1", testLogger())
	tracker.endpoint = server.URL

	tracker.TrackFiling(context.Background(), "6235371600", "4155551234")
	assert.False(t, hit, "tracking must be disabled without a tracking ID")
}
