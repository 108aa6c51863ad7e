package smartpay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		APIBase:   srv.URL,
		SecretKey: "sk_test_secret",
	}, zap.NewNop())
	return c, srv
}

func TestClientSendsAuthHeaders(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Basic sk_test_secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewEncoder(w).Encode(RemoteOrder{ID: "ord_1", Status: "succeeded"})
	})

	order, err := c.GetOrder(context.Background(), "ord_1")
	assert.NoError(t, err)
	assert.Equal(t, "ord_1", order.ID)
}

func TestClientErrorNeverCarriesBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":"card_declined","customer":"sensitive detail"}`))
	})

	_, err := c.GetOrder(context.Background(), "ord_1")
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.NotContains(t, err.Error(), "card_declined")
	assert.NotContains(t, err.Error(), "sensitive")
}

func TestCreateRefundPayload(t *testing.T) {
	var got map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/refunds", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &got))
		_ = json.NewEncoder(w).Encode(Refund{ID: "ref_1"})
	})

	refund, err := c.CreateRefund(context.Background(), RefundRequest{
		Amount:    1000,
		Currency:  "JPY",
		Payment:   "pay_1",
		Reason:    RefundReasonRequestedByCustomer,
		Reference: "42",
	})
	assert.NoError(t, err)
	assert.Equal(t, "ref_1", refund.ID)

	assert.Equal(t, map[string]any{
		"amount":    float64(1000),
		"currency":  "JPY",
		"payment":   "pay_1",
		"reason":    "requested_by_customer",
		"reference": "42",
	}, got)
}

func TestGetCheckoutSessionExpand(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checkout-sessions/cs_1", r.URL.Path)
		assert.Equal(t, "all", r.URL.Query().Get("expand"))
		_ = json.NewEncoder(w).Encode(CheckoutSession{
			ID:    "cs_1",
			Order: RemoteOrder{ID: "ord_1", Status: "succeeded"},
		})
	})

	session, err := c.GetCheckoutSession(context.Background(), "cs_1", true)
	assert.NoError(t, err)
	assert.Equal(t, "ord_1", session.Order.ID)
}

func TestHostedCheckoutURL(t *testing.T) {
	assert.Equal(t,
		"https://checkout.smartpay.co/login?session-id=cs_123",
		HostedCheckoutURL("https://checkout.smartpay.co/", "cs_123"),
	)
}
