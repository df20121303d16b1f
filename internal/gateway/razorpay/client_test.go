package razorpay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirinyoku/cinehold/internal/domain"
	circuit "github.com/rubyist/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	var got createOrderBody

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_key", user)
		assert.Equal(t, "rzp_secret", pass)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_123","status":"created"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, KeyID: "rzp_key", KeySecret: "rzp_secret"})

	id, err := c.CreateOrder(context.Background(), domain.OrderRequest{Amount: 50000, Currency: "INR", Receipt: "booking_x"})
	require.NoError(t, err)

	assert.Equal(t, "order_123", id)
	assert.Equal(t, createOrderBody{Amount: 50000, Currency: "INR", Receipt: "booking_x"}, got)
}

func TestCreateOrder_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR"}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})

	_, err := c.CreateOrder(context.Background(), domain.OrderRequest{Amount: 100, Currency: "INR"})
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestCreateOrder_BreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(50 * time.Millisecond)
		_, _ = w.Write([]byte(`{"id":"order_late"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: 10 * time.Millisecond, BreakerThreshold: 2})

	var err error
	for i := 0; i < 4; i++ {
		_, err = c.CreateOrder(context.Background(), domain.OrderRequest{Amount: 100, Currency: "INR"})
		assert.Error(t, err)
	}

	assert.ErrorIs(t, err, circuit.ErrBreakerOpen)
	assert.LessOrEqual(t, hits.Load(), int32(2))
}

func TestCreateOrder_ConcurrentTimeouts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		_, _ = w.Write([]byte(`{"id":"order_late"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: 5 * time.Millisecond, BreakerThreshold: 100})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := c.CreateOrder(context.Background(), domain.OrderRequest{Amount: 100, Currency: "INR"})
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assert.Empty(t, id)
		}()
	}
	wg.Wait()
}

func TestCreateOrder_RejectionsKeepBreakerClosed(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, BreakerThreshold: 1})

	for i := 0; i < 3; i++ {
		_, err := c.CreateOrder(context.Background(), domain.OrderRequest{Amount: 100, Currency: "INR"})
		assert.ErrorIs(t, err, ErrUnexpectedResponse)
		assert.NotErrorIs(t, err, circuit.ErrBreakerOpen)
	}

	assert.Equal(t, int32(3), hits.Load())
}
