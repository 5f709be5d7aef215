package amfi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string, opts ...ClientOption) *Client {
	base := []ClientOption{
		WithURL(url),
		WithRateLimit(1000),
		WithRetry(2, time.Millisecond),
	}
	return NewClient(append(base, opts...)...)
}

func TestFetchNAVAll_ReturnsBody(t *testing.T) {
	var accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	body, err := newTestClient(srv.URL).FetchNAVAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleFeed, body)
	assert.Equal(t, "text/plain", accept)
}

func TestFetchNAVAll_RetriesServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	body, err := newTestClient(srv.URL).FetchNAVAll(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, body)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchNAVAll_DoesNotRetryClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchNAVAll(context.Background())
	require.Error(t, err)

	var fe *FeedError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchNAVAll_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("  \n"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchNAVAll(context.Background())
	assert.ErrorIs(t, err, ErrEmptyFeed)
}

func TestFetchNAVAll_BodyTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 128)))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, WithMaxBodyBytes(64)).FetchNAVAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "body exceeds 64 bytes")
}

func TestFetchNAVAll_BreakerOpens(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, WithRetry(1, 0), WithBreaker(2, time.Hour))

	for i := 0; i < 2; i++ {
		_, err := client.FetchNAVAll(context.Background())
		require.Error(t, err)
	}

	_, err := client.FetchNAVAll(context.Background())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchNAVAll_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(srv.URL).FetchNAVAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
