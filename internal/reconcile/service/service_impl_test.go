package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/paygate/internal/config"
	orderdomain "github.com/smallbiznis/paygate/internal/order/domain"
	orderrepository "github.com/smallbiznis/paygate/internal/order/repository"
	reconciledomain "github.com/smallbiznis/paygate/internal/reconcile/domain"
	reconcilerepository "github.com/smallbiznis/paygate/internal/reconcile/repository"
	"github.com/smallbiznis/paygate/internal/smartpay"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testWebhookSecret = "whsecTESTsigningKEY42"

type fakeHooks struct {
	confirmed int
}

func (f *fakeHooks) OnPaymentConfirmed(ctx context.Context, order *orderdomain.Order) {
	f.confirmed++
	_ = ctx
	_ = order
}

// fakeRemote emulates the processor API behind a real HTTP server so the
// engine runs against the production client.
type fakeRemote struct {
	requests atomic.Int64

	sessionID     string
	remoteOrderID string
	orderStatus   string
	reference     string
	amount        int64
	currency      string
	paymentID     string

	refundRequests int
}

func (f *fakeRemote) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/checkout-sessions":
			_ = json.NewEncoder(w).Encode(smartpay.CheckoutSession{ID: f.sessionID})
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/checkout-sessions/"):
			_ = json.NewEncoder(w).Encode(smartpay.CheckoutSession{
				ID: f.sessionID,
				Order: smartpay.RemoteOrder{
					ID:        f.remoteOrderID,
					Status:    f.orderStatus,
					Amount:    f.amount,
					Currency:  f.currency,
					Reference: f.reference,
					Payments:  []smartpay.RemotePayment{{ID: f.paymentID}},
				},
			})
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/orders/"):
			_ = json.NewEncoder(w).Encode(smartpay.RemoteOrder{
				ID:        f.remoteOrderID,
				Status:    f.orderStatus,
				Amount:    f.amount,
				Currency:  f.currency,
				Reference: f.reference,
			})
		case r.Method == http.MethodPost && r.URL.Path == "/refunds":
			f.refundRequests++
			_ = json.NewEncoder(w).Encode(smartpay.Refund{ID: "ref_1"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

type testEnv struct {
	svc    reconciledomain.Service
	db     *gorm.DB
	orders orderdomain.Repository
	remote *fakeRemote
	hooks  *fakeHooks
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&reconciledomain.EventRecord{},
	))

	remote := &fakeRemote{
		sessionID:     "cs_1",
		remoteOrderID: "ord_1",
		orderStatus:   smartpay.OrderStatusSucceeded,
		amount:        1000,
		currency:      "JPY",
		paymentID:     "pay_1",
	}
	srv := httptest.NewServer(remote.handler())
	t.Cleanup(srv.Close)

	cfg := config.Config{
		PublicURL: "https://shop.example",
		Smartpay: config.SmartpayConfig{
			APIBase:       srv.URL,
			CheckoutBase:  "https://checkout.smartpay.test",
			PublicKey:     "pk_test_abc123",
			SecretKey:     "sk_test_abc123",
			WebhookID:     "sub_1",
			WebhookSecret: testWebhookSecret,
		},
	}

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	hooks := &fakeHooks{}
	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Cfg:      cfg,
		Checkout: config.NewStaticCheckoutConfigHolder(config.DefaultCheckoutConfig()),
		Client:   smartpay.NewClient(smartpay.Config{APIBase: srv.URL, SecretKey: cfg.Smartpay.SecretKey}, zap.NewNop()),
		Builder:  smartpay.NewSessionBuilder(zap.NewNop()),
		GenID:    node,
		Orders:   orderrepository.Provide(),
		Events:   reconcilerepository.Provide(),
		Hooks:    hooks,
	})

	return &testEnv{
		svc:    svc,
		db:     db,
		orders: orderrepository.Provide(),
		remote: remote,
		hooks:  hooks,
	}
}

func (e *testEnv) seedOrder(t *testing.T, id int64, status orderdomain.PaymentStatus, sessionID string) {
	t.Helper()
	err := e.orders.Insert(context.Background(), e.db, &orderdomain.Order{
		ID:                id,
		Email:             "buyer@example.com",
		FirstName:         "太郎",
		LastName:          "山田",
		Currency:          "JPY",
		PaymentTotal:      1000,
		PaymentStatus:     status,
		CheckoutSessionID: sessionID,
	})
	assert.NoError(t, err)
}

func (e *testEnv) status(t *testing.T, id int64) orderdomain.PaymentStatus {
	t.Helper()
	o, err := e.orders.FindByID(context.Background(), e.db, id)
	assert.NoError(t, err)
	assert.NotNil(t, o)
	return o.PaymentStatus
}

func signWebhook(timestamp string, body []byte) string {
	key, _ := smartpay.DecodeSecret(testWebhookSecret)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookHeaders(timestamp string, body []byte) http.Header {
	h := http.Header{}
	h.Set(reconciledomain.HeaderSignature, signWebhook(timestamp, body))
	h.Set(reconciledomain.HeaderTimestamp, timestamp)
	h.Set(reconciledomain.HeaderSubscriptionID, "sub_1")
	h.Set(reconciledomain.HeaderEventID, "evt_1")
	return h
}

func webhookBody(remoteOrderID string) []byte {
	return []byte(fmt.Sprintf(`{"eventData":{"data":{"id":"%s"}}}`, remoteOrderID))
}

func TestVerify(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder(t, 1, orderdomain.StatusOutstanding, "")

	assert.NoError(t, env.svc.Verify(context.Background(), 1))
	assert.Equal(t, orderdomain.StatusEnabled, env.status(t, 1))

	// Re-verifying an enabled order is a no-op.
	assert.NoError(t, env.svc.Verify(context.Background(), 1))
	assert.Equal(t, orderdomain.StatusEnabled, env.status(t, 1))

	assert.ErrorIs(t, env.svc.Verify(context.Background(), 99), orderdomain.ErrNotFound)

	env.seedOrder(t, 2, orderdomain.StatusActualSales, "cs_1")
	assert.ErrorIs(t, env.svc.Verify(context.Background(), 2), orderdomain.ErrNotAwaitingPayment)
}

func TestVerifyRejectsMalformedKeys(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder(t, 1, orderdomain.StatusOutstanding, "")

	svc := env.svc.(*Service)
	svc.cfg.Smartpay.PublicKey = "not-a-key"
	assert.ErrorIs(t, svc.Verify(context.Background(), 1), config.ErrInvalidPublicKey)

	svc.cfg.Smartpay.PublicKey = "pk_test_abc123"
	svc.cfg.Smartpay.SecretKey = "pk_test_abc123"
	assert.ErrorIs(t, svc.Verify(context.Background(), 1), config.ErrInvalidSecretKey)

	assert.Equal(t, orderdomain.StatusOutstanding, env.status(t, 1))
}

func TestCreateSessionCreatesAndReuses(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder(t, 1, orderdomain.StatusEnabled, "")

	url, err := env.svc.CreateSession(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, "https://checkout.smartpay.test/login?session-id=cs_1", url)

	o, err := env.orders.FindByID(context.Background(), env.db, 1)
	assert.NoError(t, err)
	assert.Equal(t, "cs_1", o.CheckoutSessionID)

	// A second attempt reuses the stored session without another remote call.
	before := env.remote.requests.Load()
	url2, err := env.svc.CreateSession(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, url, url2)
	assert.Equal(t, before, env.remote.requests.Load())
}

func TestCreateSessionRequiresEnabledOrder(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder(t, 1, orderdomain.StatusOutstanding, "")

	_, err := env.svc.CreateSession(context.Background(), 1)
	assert.ErrorIs(t, err, orderdomain.ErrNotAwaitingPayment)

	_, err = env.svc.CreateSession(context.Background(), 42)
	assert.ErrorIs(t, err, orderdomain.ErrNotFound)
}

func TestConfirmRedirectSettlesOnce(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder(t, 1, orderdomain.StatusEnabled, "cs_1")

	assert.NoError(t, env.svc.ConfirmRedirect(context.Background(), 1))
	assert.Equal(t, orderdomain.StatusActualSales, env.status(t, 1))
	assert.Equal(t, 1, env.hooks.confirmed)

	// A repeated landing short-circuits: no remote fetch, no second mail.
	before := env.remote.requests.Load()
	assert.NoError(t, env.svc.ConfirmRedirect(context.Background(), 1))
	assert.Equal(t, before, env.remote.requests.Load())
	assert.Equal(t, 1, env.hooks.confirmed)
}

func TestConfirmRedirectCancelledOrderShortCircuits(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder(t, 7, orderdomain.StatusCancel, "cs_1")

	before := env.remote.requests.Load()
	assert.NoError(t, env.svc.ConfirmRedirect(context.Background(), 7))
	assert.Equal(t, before, env.remote.requests.Load())
	assert.Equal(t, orderdomain.StatusCancel, env.status(t, 7))
	assert.Zero(t, env.hooks.confirmed)
}

func TestConfirmRedirectRejectsUnsettledRemote(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder(t, 1, orderdomain.StatusEnabled, "cs_1")
	env.remote.orderStatus = "requires_authorization"

	assert.ErrorIs(t, env.svc.ConfirmRedirect(context.Background(), 1), orderdomain.ErrNotFound)
	assert.Equal(t, orderdomain.StatusEnabled, env.status(t, 1))
	assert.Zero(t, env.hooks.confirmed)
}

func TestWebhookNotConfigured(t *testing.T) {
	env := newTestEnv(t)
	svc := env.svc.(*Service)
	svc.cfg.Smartpay.WebhookID = ""

	body := webhookBody("ord_1")
	out := svc.HandleWebhook(context.Background(), webhookHeaders("100", body), body)
	assert.Equal(t, http.StatusNotFound, out.Status)
	assert.Equal(t, reconciledomain.ReasonNotConfigured, out.Reason)
}

func TestWebhookMissingHeaders(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder(t, 1, orderdomain.StatusEnabled, "cs_1")
	env.remote.reference = "1"

	body := webhookBody("ord_1")
	headers := webhookHeaders("100", body)
	headers.Del(reconciledomain.HeaderEventID)

	before := env.remote.requests.Load()
	out := env.svc.HandleWebhook(context.Background(), headers, body)
	assert.Equal(t, http.StatusBadRequest, out.Status)
	assert.Equal(t, reconciledomain.ReasonMissingHeaders, out.Reason)
	assert.Equal(t, before, env.remote.requests.Load())
	assert.Equal(t, orderdomain.StatusEnabled, env.status(t, 1))
}

func TestWebhookSubscriptionMismatchBeforeSignature(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder(t, 1, orderdomain.StatusEnabled, "cs_1")
	env.remote.reference = "1"

	body := webhookBody("ord_1")
	headers := webhookHeaders("100", body)
	headers.Set(reconciledomain.HeaderSubscriptionID, "sub_other")
	// Garbage signature: the mismatch must win before verification runs.
	headers.Set(reconciledomain.HeaderSignature, "ffff")

	before := env.remote.requests.Load()
	out := env.svc.HandleWebhook(context.Background(), headers, body)
	assert.Equal(t, http.StatusNotFound, out.Status)
	assert.Equal(t, reconciledomain.ReasonSubscriptionMismatch, out.Reason)
	assert.Equal(t, before, env.remote.requests.Load())
}

func TestWebhookInvalidSignature(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder(t, 1, orderdomain.StatusEnabled, "cs_1")
	env.remote.reference = "1"

	body := webhookBody("ord_1")
	headers := webhookHeaders("100", body)
	headers.Set(reconciledomain.HeaderSignature, signWebhook("100", []byte("tampered")))

	before := env.remote.requests.Load()
	out := env.svc.HandleWebhook(context.Background(), headers, body)
	assert.Equal(t, http.StatusOK, out.Status)
	assert.Equal(t, reconciledomain.ReasonInvalidSignature, out.Reason)
	assert.Equal(t, before, env.remote.requests.Load())
	assert.Equal(t, orderdomain.StatusEnabled, env.status(t, 1))
}

func TestWebhookInvalidPayload(t *testing.T) {
	env := newTestEnv(t)

	body := []byte(`{"eventData":{"data":{}}}`)
	out := env.svc.HandleWebhook(context.Background(), webhookHeaders("100", body), body)
	assert.Equal(t, http.StatusBadRequest, out.Status)
	assert.Equal(t, reconciledomain.ReasonInvalidPayload, out.Reason)
}

func TestWebhookConfirmsOrder(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder(t, 1, orderdomain.StatusEnabled, "cs_1")
	env.remote.reference = "1"

	body := webhookBody("ord_1")
	out := env.svc.HandleWebhook(context.Background(), webhookHeaders("100", body), body)
	assert.Equal(t, http.StatusOK, out.Status)
	assert.Equal(t, reconciledomain.ReasonOK, out.Reason)
	assert.Equal(t, orderdomain.StatusActualSales, env.status(t, 1))
	assert.Equal(t, 1, env.hooks.confirmed)

	var events int64
	assert.NoError(t, env.db.Model(&reconciledomain.EventRecord{}).Count(&events).Error)
	assert.Equal(t, int64(1), events)

	// A retried delivery for the settled order is a safe no-op.
	out = env.svc.HandleWebhook(context.Background(), webhookHeaders("100", body), body)
	assert.Equal(t, http.StatusOK, out.Status)
	assert.Equal(t, reconciledomain.ReasonAlreadyProcessed, out.Reason)
	assert.Equal(t, 1, env.hooks.confirmed)
}

func TestWebhookStatusMismatch(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder(t, 1, orderdomain.StatusEnabled, "cs_1")
	env.remote.reference = "1"
	env.remote.orderStatus = "requires_authorization"

	body := webhookBody("ord_1")
	out := env.svc.HandleWebhook(context.Background(), webhookHeaders("100", body), body)
	assert.Equal(t, http.StatusOK, out.Status)
	assert.Equal(t, reconciledomain.ReasonStatusMismatch, out.Reason)
	assert.Equal(t, orderdomain.StatusEnabled, env.status(t, 1))
}

func TestWebhookUnknownReference(t *testing.T) {
	env := newTestEnv(t)
	env.remote.reference = "404404"

	body := webhookBody("ord_1")
	out := env.svc.HandleWebhook(context.Background(), webhookHeaders("100", body), body)
	assert.Equal(t, http.StatusNotFound, out.Status)
	assert.Equal(t, reconciledomain.ReasonOrderNotFound, out.Reason)
}

func TestWebhookSessionOrderMismatch(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder(t, 1, orderdomain.StatusEnabled, "cs_1")
	env.remote.reference = "1"

	// The stored session points at a different remote order than the event.
	env.remote.remoteOrderID = "ord_other"

	body := webhookBody("ord_other_2")
	headers := webhookHeaders("100", body)

	out := env.svc.HandleWebhook(context.Background(), headers, body)
	assert.Equal(t, http.StatusNotFound, out.Status)
	assert.Equal(t, reconciledomain.ReasonOrderMismatch, out.Reason)
	assert.Equal(t, orderdomain.StatusEnabled, env.status(t, 1))
}

func TestCancelRefundsSettledOrder(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder(t, 42, orderdomain.StatusActualSales, "cs_1")
	env.remote.reference = "42"

	assert.NoError(t, env.svc.Cancel(context.Background(), 42))
	assert.Equal(t, 1, env.remote.refundRequests)
	assert.Equal(t, orderdomain.StatusCancel, env.status(t, 42))
}

func TestCancelSkipsUnsettledOrder(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder(t, 1, orderdomain.StatusEnabled, "cs_1")

	assert.NoError(t, env.svc.Cancel(context.Background(), 1))
	assert.Zero(t, env.remote.refundRequests)
	assert.Equal(t, orderdomain.StatusEnabled, env.status(t, 1))
}

func TestCancelSkipsWhenRemoteUnsettled(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder(t, 1, orderdomain.StatusActualSales, "cs_1")
	env.remote.orderStatus = "canceled"

	assert.NoError(t, env.svc.Cancel(context.Background(), 1))
	assert.Zero(t, env.remote.refundRequests)
	assert.Equal(t, orderdomain.StatusActualSales, env.status(t, 1))
}
