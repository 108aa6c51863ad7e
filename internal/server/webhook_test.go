package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/paygate/internal/config"
	orderdomain "github.com/smallbiznis/paygate/internal/order/domain"
	reconciledomain "github.com/smallbiznis/paygate/internal/reconcile/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeReconcileService struct {
	webhookOutcome reconciledomain.WebhookOutcome
	webhookCalls   int
	lastBody       []byte

	verifyErr  error
	sessionURL string
	confirmErr error
	cancelErr  error
}

func (f *fakeReconcileService) Verify(ctx context.Context, orderID int64) error {
	_ = ctx
	_ = orderID
	return f.verifyErr
}

func (f *fakeReconcileService) CreateSession(ctx context.Context, orderID int64) (string, error) {
	_ = ctx
	_ = orderID
	return f.sessionURL, nil
}

func (f *fakeReconcileService) ConfirmRedirect(ctx context.Context, orderID int64) error {
	_ = ctx
	_ = orderID
	return f.confirmErr
}

func (f *fakeReconcileService) HandleWebhook(ctx context.Context, headers http.Header, body []byte) reconciledomain.WebhookOutcome {
	_ = ctx
	_ = headers
	f.webhookCalls++
	f.lastBody = body
	return f.webhookOutcome
}

func (f *fakeReconcileService) Cancel(ctx context.Context, orderID int64) error {
	_ = ctx
	_ = orderID
	return f.cancelErr
}

func newTestServer(svc reconciledomain.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())

	s := &Server{
		engine:       r,
		cfg:          config.Config{},
		log:          zap.NewNop(),
		reconcileSvc: svc,
	}
	RegisterRoutes(s)
	return r
}

func TestWebhookEndpointPassesOutcomeThrough(t *testing.T) {
	svc := &fakeReconcileService{
		webhookOutcome: reconciledomain.WebhookOutcome{
			Status: http.StatusOK,
			Reason: reconciledomain.ReasonInvalidSignature,
		},
	}
	r := newTestServer(svc)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/smartpay", strings.NewReader(`{"eventData":{"data":{"id":"ord_1"}}}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"invalid_signature"}`, w.Body.String())
	assert.Equal(t, 1, svc.webhookCalls)
	assert.Equal(t, `{"eventData":{"data":{"id":"ord_1"}}}`, string(svc.lastBody))
}

func TestStartPaymentRedirects(t *testing.T) {
	svc := &fakeReconcileService{sessionURL: "https://checkout.smartpay.test/login?session-id=cs_1"}
	r := newTestServer(svc)

	req := httptest.NewRequest(http.MethodPost, "/shopping/smartpay/payment/42", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://checkout.smartpay.test/login?session-id=cs_1", w.Header().Get("Location"))
}

func TestInvalidOrderIDIsBadRequest(t *testing.T) {
	r := newTestServer(&fakeReconcileService{})

	req := httptest.NewRequest(http.MethodPost, "/shopping/smartpay/verify/not-a-number", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompletePaymentMapsConflict(t *testing.T) {
	svc := &fakeReconcileService{confirmErr: orderdomain.ErrNotAwaitingPayment}
	r := newTestServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/shopping/smartpay/payment/complete/42", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}
