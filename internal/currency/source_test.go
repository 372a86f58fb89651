package currency

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSource_CrossRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rates":{"USD":1.0,"EUR":0.9,"GBP":0.8,"TRY":34.2}}`))
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL)

	rates, err := source.Fetch(context.Background())
	require.NoError(t, err)

	// All rates are re-quoted against TRY
	assert.InDelta(t, 34.2, rates["USD"], 0.0001)
	assert.InDelta(t, 38.0, rates["EUR"], 0.0001)
	assert.InDelta(t, 42.75, rates["GBP"], 0.0001)
	assert.Equal(t, 1.0, rates["TRY"])
}

func TestHTTPSource_MissingBase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rates":{"USD":1.0,"EUR":0.9}}`))
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL)

	_, err := source.Fetch(context.Background())
	assert.Error(t, err, "payload without TRY cannot be cross-rated")
}

func TestHTTPSource_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL)

	_, err := source.Fetch(context.Background())
	assert.Error(t, err)
}

func TestHTTPSource_BreakerOpens(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL)

	for i := 0; i < 3; i++ {
		_, err := source.Fetch(context.Background())
		require.Error(t, err)
	}

	// Three consecutive failures trip the breaker; the upstream is no longer hit
	_, err := source.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState), "expected open breaker, got %v", err)
	assert.Equal(t, int64(3), atomic.LoadInt64(&hits))
}
