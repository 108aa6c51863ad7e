package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// VerifyCheckout validates the configured API keys and moves the order into
// the awaiting-payment state.
func (s *Server) VerifyCheckout(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	if err := s.reconcileSvc.Verify(c.Request.Context(), orderID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "order_id": orderID})
}

// StartPayment creates (or reuses) the checkout session and sends the buyer
// to hosted checkout.
func (s *Server) StartPayment(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	url, err := s.reconcileSvc.CreateSession(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Redirect(http.StatusFound, url)
}

// CompletePayment is the buyer's landing endpoint after hosted checkout.
func (s *Server) CompletePayment(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	if err := s.reconcileSvc.ConfirmRedirect(c.Request.Context(), orderID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "order_id": orderID})
}

// CancelPayment rolls the order back; a settled payment is refunded.
func (s *Server) CancelPayment(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	if err := s.reconcileSvc.Cancel(c.Request.Context(), orderID); err != nil {
		AbortWithError(c, err)
		return
	}

	s.log.Info("payment cancelled", zap.Int64("order_id", orderID))
	c.JSON(http.StatusOK, gin.H{"status": "ok", "order_id": orderID})
}

func orderIDParam(c *gin.Context) (int64, bool) {
	orderID, err := strconv.ParseInt(c.Param("order_id"), 10, 64)
	if err != nil || orderID <= 0 {
		AbortWithError(c, ErrInvalidRequest)
		return 0, false
	}
	return orderID, true
}
