package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paygate/internal/config"
	obsmetrics "github.com/smallbiznis/paygate/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/paygate/internal/order/domain"
	"github.com/smallbiznis/paygate/internal/ratelimit"
	reconciledomain "github.com/smallbiznis/paygate/internal/reconcile/domain"
	"github.com/smallbiznis/paygate/internal/smartpay"
	pkgdb "github.com/smallbiznis/paygate/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Cfg      config.Config
	Checkout *config.CheckoutConfigHolder
	Client   *smartpay.Client
	Builder  *smartpay.SessionBuilder
	GenID    *snowflake.Node
	Orders   orderdomain.Repository
	Events   reconciledomain.Repository
	Hooks    reconciledomain.CompletionHooks `optional:"true"`
	Metrics  *obsmetrics.Metrics             `optional:"true"`
	Limiter  *ratelimit.Limiter              `optional:"true"`
}

// Service reconciles local order payment state with the processor. The
// redirect and webhook confirmation paths race; each transition is gated on
// a conditional status update so only one path applies it.
type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      config.Config
	checkout *config.CheckoutConfigHolder
	client   *smartpay.Client
	builder  *smartpay.SessionBuilder
	genID    *snowflake.Node
	orders   orderdomain.Repository
	events   reconciledomain.Repository
	hooks    reconciledomain.CompletionHooks
	metrics  *obsmetrics.Metrics
	limiter  *ratelimit.Limiter
}

func NewService(p Params) reconciledomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("reconcile.service"),
		cfg:      p.Cfg,
		checkout: p.Checkout,
		client:   p.Client,
		builder:  p.Builder,
		genID:    p.GenID,
		orders:   p.Orders,
		events:   p.Events,
		hooks:    p.Hooks,
		metrics:  p.Metrics,
		limiter:  p.Limiter,
	}
}

// Verify checks the configured key formats and moves the order from
// outstanding to enabled, making it eligible for checkout.
func (s *Service) Verify(ctx context.Context, orderID int64) error {
	if err := s.cfg.Smartpay.ValidateKeys(); err != nil {
		s.log.Error("smartpay keys not configured", zap.Error(err))
		return err
	}

	o, err := s.orders.FindByID(ctx, s.db, orderID)
	if err != nil {
		return err
	}
	if o == nil {
		return orderdomain.ErrNotFound
	}
	if o.PaymentStatus == orderdomain.StatusEnabled {
		return nil
	}

	ok, err := s.orders.UpdateStatusIf(ctx, s.db, orderID, orderdomain.StatusOutstanding, orderdomain.StatusEnabled)
	if err != nil {
		return err
	}
	if !ok {
		return orderdomain.ErrNotAwaitingPayment
	}
	return nil
}

// CreateSession creates the checkout session for an enabled order and returns
// the hosted-checkout URL. At most one session is ever created per order: a
// stored session id is reused instead of creating a duplicate.
func (s *Service) CreateSession(ctx context.Context, orderID int64) (string, error) {
	o, err := s.orders.FindByID(ctx, s.db, orderID)
	if err != nil {
		return "", err
	}
	if o == nil {
		return "", orderdomain.ErrNotFound
	}
	if o.PaymentStatus != orderdomain.StatusEnabled {
		return "", orderdomain.ErrNotAwaitingPayment
	}

	if o.CheckoutSessionID != "" {
		return smartpay.HostedCheckoutURL(s.cfg.Smartpay.CheckoutBase, o.CheckoutSessionID), nil
	}

	successURL, cancelURL := s.checkout.Get().Expand(s.cfg.PublicURL, o.ID)
	req := s.builder.Build(o, successURL, cancelURL)

	session, err := s.client.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.log.Error("checkout session create failed", zap.Int64("order_id", o.ID), zap.Error(err))
		s.metrics.RecordRemoteCallFailure("create_checkout_session")
		return "", err
	}

	if err := s.orders.SetCheckoutSessionID(ctx, s.db, o.ID, session.ID); err != nil {
		return "", err
	}

	s.metrics.RecordSessionCreated()
	s.log.Info("checkout session created",
		zap.Int64("order_id", o.ID),
		zap.String("checkout_session_id", session.ID),
	)

	if session.URL != "" {
		return session.URL, nil
	}
	return smartpay.HostedCheckoutURL(s.cfg.Smartpay.CheckoutBase, session.ID), nil
}

// ConfirmRedirect settles an order when the buyer lands on the completion
// endpoint. An order already in a sales state short-circuits without a remote
// fetch so the webhook race can never double-apply side effects.
func (s *Service) ConfirmRedirect(ctx context.Context, orderID int64) error {
	o, err := s.orders.FindByID(ctx, s.db, orderID)
	if err != nil {
		return err
	}
	if o == nil {
		return orderdomain.ErrNotFound
	}

	if o.PaymentStatus.Terminal() {
		// Already settled or cancelled: the side effects already ran (or
		// never will), so no remote fetch and no second confirmation.
		s.log.Info("redirect confirmation for terminal order, skipping",
			zap.Int64("order_id", o.ID),
			zap.String("payment_status", o.PaymentStatus.String()),
		)
		return nil
	}
	if o.PaymentStatus != orderdomain.StatusEnabled {
		return orderdomain.ErrNotAwaitingPayment
	}
	if o.CheckoutSessionID == "" {
		return orderdomain.ErrNotFound
	}

	session, err := s.client.GetCheckoutSession(ctx, o.CheckoutSessionID, true)
	if err != nil {
		s.metrics.RecordRemoteCallFailure("get_checkout_session")
		return orderdomain.ErrNotFound
	}
	if session.Order.Status != smartpay.OrderStatusSucceeded {
		s.log.Warn("redirect confirmation with unsettled remote order",
			zap.Int64("order_id", o.ID),
			zap.String("remote_status", session.Order.Status),
		)
		return orderdomain.ErrNotFound
	}

	ok, err := s.orders.UpdateStatusIf(ctx, s.db, o.ID, orderdomain.StatusEnabled, orderdomain.StatusActualSales)
	if err != nil {
		return err
	}
	if !ok {
		// The webhook path settled the order between our read and write.
		return nil
	}

	s.metrics.RecordConfirmation(obsmetrics.PathRedirect)
	s.log.Info("order settled via redirect", zap.Int64("order_id", o.ID))
	s.completeOrder(ctx, o)
	return nil
}

// webhookEvent is the notification body shape; only the remote order id is
// consumed.
type webhookEvent struct {
	EventData struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	} `json:"eventData"`
}

// HandleWebhook runs the full verification chain on a delivery and settles
// the referenced order when every check passes. It answers with an HTTP
// status only and never mutates order state on a rejection.
func (s *Service) HandleWebhook(ctx context.Context, headers http.Header, body []byte) (out reconciledomain.WebhookOutcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic during webhook processing", zap.Any("panic", r), zap.Stack("stack"))
			out = s.reject(http.StatusInternalServerError, reconciledomain.ReasonInternalError)
		}
	}()

	if !s.cfg.Smartpay.WebhookConfigured() {
		s.log.Warn("webhook delivery but webhook is not configured")
		return s.reject(http.StatusNotFound, reconciledomain.ReasonNotConfigured)
	}

	wh := reconciledomain.ParseWebhookHeaders(headers)
	if !wh.Complete() {
		s.log.Warn("webhook delivery with missing headers")
		return s.reject(http.StatusBadRequest, reconciledomain.ReasonMissingHeaders)
	}
	if wh.SubscriptionID != s.cfg.Smartpay.WebhookID {
		s.log.Warn("webhook subscription mismatch", zap.String("subscription_id", wh.SubscriptionID))
		return s.reject(http.StatusNotFound, reconciledomain.ReasonSubscriptionMismatch)
	}
	if !smartpay.VerifySignature(s.cfg.Smartpay.WebhookSecret, wh.Signature, wh.Timestamp, body) {
		s.log.Warn("webhook signature verification failed", zap.String("event_id", wh.EventID))
		return s.reject(http.StatusOK, reconciledomain.ReasonInvalidSignature)
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil || event.EventData.Data.ID == "" {
		s.log.Warn("webhook payload missing remote order id", zap.String("event_id", wh.EventID))
		return s.reject(http.StatusBadRequest, reconciledomain.ReasonInvalidPayload)
	}
	remoteOrderID := event.EventData.Data.ID

	remote, err := s.client.GetOrder(ctx, remoteOrderID)
	if err != nil {
		s.metrics.RecordRemoteCallFailure("get_order")
		return s.reject(http.StatusNotFound, reconciledomain.ReasonOrderNotFound)
	}
	if remote.Reference == "" {
		s.log.Warn("remote order carries no reference", zap.String("remote_order_id", remoteOrderID))
		return s.reject(http.StatusNotFound, reconciledomain.ReasonOrderNotFound)
	}
	if remote.Status != smartpay.OrderStatusSucceeded {
		s.log.Info("webhook for unsettled remote order",
			zap.String("remote_order_id", remoteOrderID),
			zap.String("remote_status", remote.Status),
		)
		return s.reject(http.StatusOK, reconciledomain.ReasonStatusMismatch)
	}

	orderID, err := strconv.ParseInt(remote.Reference, 10, 64)
	if err != nil {
		s.log.Warn("remote order reference is not a local order id", zap.String("reference", remote.Reference))
		return s.reject(http.StatusNotFound, reconciledomain.ReasonOrderNotFound)
	}

	o, err := s.orders.FindByID(ctx, s.db, orderID)
	if err != nil {
		return s.reject(http.StatusInternalServerError, reconciledomain.ReasonInternalError)
	}
	if o == nil {
		s.log.Warn("webhook references unknown order", zap.Int64("order_id", orderID))
		return s.reject(http.StatusNotFound, reconciledomain.ReasonOrderNotFound)
	}
	if o.PaymentStatus != orderdomain.StatusEnabled {
		// Already settled (or never verified): safe no-op, the delivery
		// may be a retry racing the redirect path.
		s.log.Info("webhook for order not awaiting payment",
			zap.Int64("order_id", o.ID),
			zap.String("payment_status", o.PaymentStatus.String()),
		)
		return s.reject(http.StatusOK, reconciledomain.ReasonAlreadyProcessed)
	}
	if o.CheckoutSessionID == "" {
		return s.reject(http.StatusNotFound, reconciledomain.ReasonOrderNotFound)
	}

	// Cross-check: the order's own stored session must point at the same
	// remote order as the event, so a forged or replayed event cannot
	// settle an unrelated order.
	session, err := s.client.GetCheckoutSession(ctx, o.CheckoutSessionID, true)
	if err != nil {
		s.metrics.RecordRemoteCallFailure("get_checkout_session")
		return s.reject(http.StatusNotFound, reconciledomain.ReasonOrderNotFound)
	}
	if session.Order.ID != remoteOrderID {
		s.log.Warn("webhook remote order does not match stored session",
			zap.Int64("order_id", o.ID),
			zap.String("remote_order_id", remoteOrderID),
			zap.String("session_order_id", session.Order.ID),
		)
		return s.reject(http.StatusNotFound, reconciledomain.ReasonOrderMismatch)
	}

	ok, err := s.orders.UpdateStatusIf(ctx, s.db, o.ID, orderdomain.StatusEnabled, orderdomain.StatusActualSales)
	if err != nil {
		return s.reject(http.StatusInternalServerError, reconciledomain.ReasonInternalError)
	}
	if !ok {
		return s.reject(http.StatusOK, reconciledomain.ReasonAlreadyProcessed)
	}

	s.recordEvent(ctx, wh, remoteOrderID, o.ID, body)
	s.metrics.RecordConfirmation(obsmetrics.PathWebhook)
	s.log.Info("order settled via webhook",
		zap.Int64("order_id", o.ID),
		zap.String("event_id", wh.EventID),
	)
	s.completeOrder(ctx, o)
	return reconciledomain.WebhookOutcome{Status: http.StatusOK, Reason: reconciledomain.ReasonOK}
}

// Cancel is the order-workflow cancellation hook. A settled payment is
// refunded; anything else is a logged no-op. Failures never surface to the
// cancellation workflow.
func (s *Service) Cancel(ctx context.Context, orderID int64) error {
	o, err := s.orders.FindByID(ctx, s.db, orderID)
	if err != nil {
		return err
	}
	if o == nil {
		return orderdomain.ErrNotFound
	}

	s.refund(ctx, o)
	return nil
}

func (s *Service) refund(ctx context.Context, o *orderdomain.Order) {
	if o.CheckoutSessionID == "" {
		s.log.Info("skipping refund, no checkout session", zap.Int64("order_id", o.ID))
		return
	}
	if !o.PaymentStatus.Settled() {
		s.log.Info("skipping refund, payment not settled",
			zap.Int64("order_id", o.ID),
			zap.String("payment_status", o.PaymentStatus.String()),
		)
		return
	}

	token, ok := s.limiter.TryLockRefund(ctx, o.ID)
	if !ok {
		s.log.Warn("skipping refund, another refund in flight", zap.Int64("order_id", o.ID))
		return
	}
	defer s.limiter.ReleaseRefund(ctx, o.ID, token)

	session, err := s.client.GetCheckoutSession(ctx, o.CheckoutSessionID, true)
	if err != nil {
		s.metrics.RecordRemoteCallFailure("get_checkout_session")
		s.log.Error("refund skipped, session fetch failed", zap.Int64("order_id", o.ID), zap.Error(err))
		return
	}
	if session.Order.Status != smartpay.OrderStatusSucceeded {
		s.log.Error("refund skipped, remote order not succeeded",
			zap.Int64("order_id", o.ID),
			zap.String("remote_status", session.Order.Status),
		)
		return
	}
	if len(session.Order.Payments) == 0 {
		s.log.Error("refund skipped, remote order has no payments", zap.Int64("order_id", o.ID))
		return
	}

	refund, err := s.client.CreateRefund(ctx, smartpay.RefundRequest{
		Amount:    session.Order.Amount,
		Currency:  session.Order.Currency,
		Payment:   session.Order.Payments[0].ID,
		Reason:    smartpay.RefundReasonRequestedByCustomer,
		Reference: strconv.FormatInt(o.ID, 10),
	})
	if err != nil {
		s.metrics.RecordRemoteCallFailure("create_refund")
		s.log.Error("refund failed", zap.Int64("order_id", o.ID), zap.Error(err))
		return
	}

	if _, err := s.orders.UpdateStatusIf(ctx, s.db, o.ID, o.PaymentStatus, orderdomain.StatusCancel); err != nil {
		s.log.Error("refund issued but status update failed",
			zap.Int64("order_id", o.ID),
			zap.String("refund_id", refund.ID),
			zap.Error(err),
		)
		return
	}

	s.metrics.RecordRefund()
	s.log.Info("order refunded",
		zap.Int64("order_id", o.ID),
		zap.String("refund_id", refund.ID),
	)
}

func (s *Service) completeOrder(ctx context.Context, o *orderdomain.Order) {
	if s.hooks == nil {
		return
	}
	s.hooks.OnPaymentConfirmed(ctx, o)
}

func (s *Service) reject(status int, reason string) reconciledomain.WebhookOutcome {
	if reason != reconciledomain.ReasonOK {
		s.metrics.RecordWebhookRejection(reason)
	}
	return reconciledomain.WebhookOutcome{Status: status, Reason: reason}
}

func (s *Service) recordEvent(ctx context.Context, wh reconciledomain.WebhookHeaders, remoteOrderID string, orderID int64, body []byte) {
	event := &reconciledomain.EventRecord{
		ID:             s.genID.Generate(),
		EventID:        wh.EventID,
		SubscriptionID: wh.SubscriptionID,
		RemoteOrderID:  remoteOrderID,
		LocalOrderID:   orderID,
		Payload:        datatypes.JSON(body),
		ReceivedAt:     time.Now().UTC(),
	}
	if err := s.events.InsertEvent(ctx, s.db, event); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return
		}
		s.log.Warn("failed to record webhook event", zap.String("event_id", wh.EventID), zap.Error(err))
		return
	}
	if err := s.events.MarkEventProcessed(ctx, s.db, event.ID, time.Now().UTC()); err != nil {
		s.log.Warn("failed to mark webhook event processed", zap.String("event_id", wh.EventID), zap.Error(err))
	}
}
