package cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withClient(t *testing.T, c *Client) {
	t.Helper()
	prev := client
	client = c
	t.Cleanup(func() { client = prev })
}

func TestCheckHealthPollsUntilHealthy(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()
	withClient(t, NewClient(srv.URL, ""))

	result, err := checkHealth(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCheckHealthWithoutWaitFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	withClient(t, NewClient(srv.URL, ""))

	_, err := checkHealth(context.Background(), 0)
	assert.ErrorContains(t, err, "HTTP 503")
}

func TestCheckHealthGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	withClient(t, NewClient(srv.URL, ""))

	_, err := checkHealth(context.Background(), 600*time.Millisecond)
	assert.ErrorContains(t, err, "server not healthy after 600ms")
}
