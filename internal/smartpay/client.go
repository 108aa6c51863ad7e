package smartpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrRequestFailed signals a non-200 response from the processor API. The
// upstream response body is logged but never attached to the error, so it can
// not leak into user-facing messages.
var ErrRequestFailed = errors.New("smartpay_request_failed")

// Config configures the processor API client.
type Config struct {
	APIBase   string
	SecretKey string
	Timeout   time.Duration
}

// Client is an authenticated HTTP wrapper around the processor API.
type Client struct {
	base   string
	secret string
	http   *http.Client
	log    *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		base:   strings.TrimRight(cfg.APIBase, "/"),
		secret: cfg.SecretKey,
		http:   &http.Client{Timeout: timeout},
		log:    log.Named("smartpay.client"),
	}
}

// Get issues an authenticated GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues an authenticated POST with a JSON body and decodes the JSON
// response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("smartpay request error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return ErrRequestFailed
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ErrRequestFailed
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Error("smartpay request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", raw),
		)
		return ErrRequestFailed
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.log.Error("smartpay response decode failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return ErrRequestFailed
	}
	return nil
}

// CreateCheckoutSession creates a hosted-checkout session for an order.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	var session CheckoutSession
	if err := c.Post(ctx, "/checkout-sessions", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetCheckoutSession fetches a checkout session, optionally with the embedded
// order expanded.
func (c *Client) GetCheckoutSession(ctx context.Context, id string, expand bool) (*CheckoutSession, error) {
	path := "/checkout-sessions/" + url.PathEscape(id)
	if expand {
		path += "?expand=all"
	}
	var session CheckoutSession
	if err := c.Get(ctx, path, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetOrder fetches the processor's order record.
func (c *Client) GetOrder(ctx context.Context, id string) (*RemoteOrder, error) {
	var order RemoteOrder
	if err := c.Get(ctx, "/orders/"+url.PathEscape(id), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateRefund issues a refund against a payment.
func (c *Client) CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error) {
	var refund Refund
	if err := c.Post(ctx, "/refunds", req, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

// HostedCheckoutURL builds the hosted-checkout login URL for a session.
func HostedCheckoutURL(checkoutBase, sessionID string) string {
	return fmt.Sprintf("%s/login?session-id=%s", strings.TrimRight(checkoutBase, "/"), url.QueryEscape(sessionID))
}
