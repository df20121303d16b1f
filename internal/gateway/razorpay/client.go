// Package razorpay creates payment orders on the Razorpay Orders API.
package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kirinyoku/cinehold/internal/domain"
	circuit "github.com/rubyist/circuitbreaker"
)

const DefaultBaseURL = "https://api.razorpay.com/v1"

var ErrUnexpectedResponse = errors.New("unexpected gateway response")

type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	// Timeout bounds a single order creation call.
	Timeout time.Duration
	// BreakerThreshold is the number of consecutive failures that open the breaker.
	BreakerThreshold int64
}

// Client calls the Orders API. Transport errors, timeouts and 5xx answers
// count against the breaker; rejected requests do not.
type Client struct {
	http    *http.Client
	breaker *circuit.Breaker
	baseURL string
	keyID   string
	secret  string
	timeout time.Duration
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}

	return &Client{
		http:    &http.Client{},
		breaker: circuit.NewConsecutiveBreaker(cfg.BreakerThreshold),
		baseURL: cfg.BaseURL,
		keyID:   cfg.KeyID,
		secret:  cfg.KeySecret,
		timeout: cfg.Timeout,
	}
}

type createOrderBody struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateOrder registers an order for req.Amount minor units and returns the
// gateway's order id.
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	const op = "razorpay.Client.CreateOrder"

	body, err := json.Marshal(createOrderBody{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
	})
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.keyID, c.secret)

	var (
		orderID  string
		rejected error
	)

	// a zero breaker timeout runs the call on this goroutine; ctx bounds it
	err = c.breaker.CallContext(ctx, func() error {
		resp, err := c.http.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: status %d: %s", ErrUnexpectedResponse, resp.StatusCode, raw)
		}

		if resp.StatusCode != http.StatusOK {
			rejected = fmt.Errorf("%w: status %d: %s", ErrUnexpectedResponse, resp.StatusCode, raw)
			return nil
		}

		var out orderResponse
		if err := json.Unmarshal(raw, &out); err != nil || out.ID == "" {
			rejected = fmt.Errorf("%w: malformed order: %s", ErrUnexpectedResponse, raw)
			return nil
		}

		orderID = out.ID
		return nil
	}, 0)
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	if rejected != nil {
		return "", fmt.Errorf("%s:%w", op, rejected)
	}

	return orderID, nil
}
