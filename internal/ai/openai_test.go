package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/audience-segments/internal/pkg/retry"
)

func TestOpenAIClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "hello", req.Messages[1].Content)
		}
		assert.Equal(t, 20, req.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"VIP Customers"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL+"/", "", time.Second)
	out, err := c.Complete(context.Background(), CompletionRequest{System: "sys", User: "hello", MaxTokens: 20})
	require.NoError(t, err)
	assert.Equal(t, "VIP Customers", out)
}

func TestOpenAIClientClassifiesErrors(t *testing.T) {
	tests := []struct {
		status    int
		permanent bool
	}{
		{http.StatusTooManyRequests, false},
		{http.StatusBadGateway, false},
		{http.StatusServiceUnavailable, false},
		{http.StatusUnauthorized, true},
		{http.StatusBadRequest, true},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"error":{"message":"nope"}}`))
		}))
		c := NewOpenAIClient("k", srv.URL, "m", time.Second)
		_, err := c.Complete(context.Background(), CompletionRequest{User: "x"})
		require.Error(t, err)
		assert.Equal(t, tt.permanent, retry.IsPermanent(err), "status %d", tt.status)
		srv.Close()
	}
}

func TestOpenAIClientNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient("k", srv.URL, "m", time.Second).Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	assert.False(t, retry.IsPermanent(err))
}

func TestOpenAIClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	_, err := NewOpenAIClient("k", srv.URL, "m", 20*time.Millisecond).Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	assert.False(t, retry.IsPermanent(err))
}
