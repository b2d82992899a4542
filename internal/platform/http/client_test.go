package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRequestRetriesServerErrors(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{
		Timeout:         2 * time.Second,
		RequestsPerSec:  100,
		MaxRetryElapsed: 5 * time.Second,
	})

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := client.DoRequest(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.GreaterOrEqual(t, requests.Load(), int64(3), "5xx responses should be retried")
}

func TestDoRequestDoesNotRetryClientErrors(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{
		Timeout:         2 * time.Second,
		RequestsPerSec:  100,
		MaxRetryElapsed: 5 * time.Second,
	})

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	_, err = client.DoRequest(context.Background(), req)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "error should carry the status")
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Equal(t, int64(1), requests.Load(), "4xx responses must not be retried")
}

func TestDoRequestGivesUpAfterMaxElapsed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{
		Timeout:         time.Second,
		RequestsPerSec:  100,
		MaxRetryElapsed: 300 * time.Millisecond,
	})

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = client.DoRequest(context.Background(), req)
	require.Error(t, err, "unbroken 429s should exhaust the retry budget")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDoRequestHonorsContextDuringWait(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	// One request per second with no burst headroom forces Wait to block.
	client := NewClient(ClientOptions{
		Timeout:         time.Second,
		RequestsPerSec:  1,
		MaxRetryElapsed: time.Second,
	})
	client.Limiter.AllowN(time.Now(), 1) // drain the bucket

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	_, err = client.DoRequest(ctx, req)
	assert.Error(t, err, "cancelled context should abort the limiter wait")
}

func TestStatusErrorRetryable(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
	}

	for _, tt := range tests {
		e := &StatusError{StatusCode: tt.status}
		assert.Equalf(t, tt.retryable, e.Retryable(), "status %d", tt.status)
	}
}
