package domain

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/smallbiznis/paygate/internal/order/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Webhook delivery headers required on every notification.
const (
	HeaderSignature      = "Smartpay-Signature"
	HeaderTimestamp      = "Smartpay-Signature-Timestamp"
	HeaderSubscriptionID = "Smartpay-Subscription-Id"
	HeaderEventID        = "Smartpay-Event-Id"
)

// WebhookHeaders carries the four required delivery headers.
type WebhookHeaders struct {
	Signature      string
	Timestamp      string
	SubscriptionID string
	EventID        string
}

// ParseWebhookHeaders extracts the required headers from a delivery.
func ParseWebhookHeaders(h http.Header) WebhookHeaders {
	return WebhookHeaders{
		Signature:      strings.TrimSpace(h.Get(HeaderSignature)),
		Timestamp:      strings.TrimSpace(h.Get(HeaderTimestamp)),
		SubscriptionID: strings.TrimSpace(h.Get(HeaderSubscriptionID)),
		EventID:        strings.TrimSpace(h.Get(HeaderEventID)),
	}
}

// Complete reports whether all four required headers are present.
func (h WebhookHeaders) Complete() bool {
	return h.Signature != "" && h.Timestamp != "" && h.SubscriptionID != "" && h.EventID != ""
}

// Webhook rejection/acceptance reasons, also used as metric labels.
const (
	ReasonOK                   = "ok"
	ReasonNotConfigured        = "not_configured"
	ReasonMissingHeaders       = "missing_headers"
	ReasonSubscriptionMismatch = "subscription_mismatch"
	ReasonInvalidSignature     = "invalid_signature"
	ReasonInvalidPayload       = "invalid_payload"
	ReasonOrderNotFound        = "order_not_found"
	ReasonStatusMismatch       = "status_mismatch"
	ReasonAlreadyProcessed     = "already_processed"
	ReasonOrderMismatch        = "order_mismatch"
	ReasonInternalError        = "internal_error"
)

// WebhookOutcome is the HTTP-level answer to a webhook delivery. The engine
// never signals webhook failures through errors; a malformed or malicious
// delivery must not propagate past the boundary.
type WebhookOutcome struct {
	Status int
	Reason string
}

// Service is the reconciliation engine: it drives an order's payment status
// through checkout-session creation, the two racing confirmation paths, and
// refund on cancellation.
type Service interface {
	// Verify validates the configured API keys and marks the order ready
	// for payment.
	Verify(ctx context.Context, orderID int64) error
	// CreateSession creates (or reuses) the checkout session and returns
	// the hosted-checkout redirect URL.
	CreateSession(ctx context.Context, orderID int64) (string, error)
	// ConfirmRedirect settles the order when the buyer returns from hosted
	// checkout. Idempotent once the order reached a sales state.
	ConfirmRedirect(ctx context.Context, orderID int64) error
	// HandleWebhook processes an asynchronous payment notification.
	HandleWebhook(ctx context.Context, headers http.Header, body []byte) WebhookOutcome
	// Cancel is invoked by the order workflow on cancellation; it refunds
	// settled payments. Refund failures never block the caller.
	Cancel(ctx context.Context, orderID int64) error
}

// CompletionHooks receives the side effects owed after a confirmed payment:
// confirmation mail, cart clearing, session order record. Invoked exactly
// once per order, by whichever confirmation path wins.
type CompletionHooks interface {
	OnPaymentConfirmed(ctx context.Context, order *orderdomain.Order)
}

// EventRecord is the audit trail of accepted webhook deliveries. It exists
// for diagnostics only; delivery idempotency is enforced through the order's
// payment status, not through this table.
type EventRecord struct {
	ID             snowflake.ID   `json:"id" gorm:"primaryKey"`
	EventID        string         `json:"event_id" gorm:"type:text;not null"`
	SubscriptionID string         `json:"subscription_id" gorm:"type:text;not null"`
	RemoteOrderID  string         `json:"remote_order_id" gorm:"type:text;not null;default:''"`
	LocalOrderID   int64          `json:"local_order_id" gorm:"not null;default:0;index"`
	Payload        datatypes.JSON `json:"payload"`
	ReceivedAt     time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt    *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "webhook_events" }

type Repository interface {
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) error
	MarkEventProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
}
