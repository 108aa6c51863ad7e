package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	reconciledomain "github.com/smallbiznis/paygate/internal/reconcile/domain"
)

const maxWebhookBodyBytes = 1 << 20

// HandleSmartpayWebhook feeds the raw delivery into the reconciliation
// engine. The engine decides the status code; this handler never rejects a
// delivery on its own beyond the body-size cap.
func (s *Server) HandleSmartpayWebhook(c *gin.Context) {
	subscriptionID := c.GetHeader(reconciledomain.HeaderSubscriptionID)
	if !s.limiter.AllowWebhook(c.Request.Context(), subscriptionID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"status": "rate_limited"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid_payload"})
		return
	}

	outcome := s.reconcileSvc.HandleWebhook(c.Request.Context(), c.Request.Header, body)
	c.JSON(outcome.Status, gin.H{"status": outcome.Reason})
}
