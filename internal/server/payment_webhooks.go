package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	creditdomain "github.com/makestack-ai/makestack/internal/credit/domain"
	"go.uber.org/zap"
)

// paymentWebhookPayload is the provider-agnostic shape of a payment
// confirmation. Signature verification happens at the edge, before this
// service is reached.
type paymentWebhookPayload struct {
	EventType  string `json:"event_type"`
	PaymentID  string `json:"payment_id"`
	CustomerID string `json:"customer_id"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	ProductID  string `json:"product_id"`
	Credits    int64  `json:"credits"`
	User       struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"user"`
}

func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var payload paymentWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	switch payload.EventType {
	case "payment.succeeded", "checkout.completed":
	default:
		// Unknown event types are acknowledged so the provider stops
		// redelivering them.
		s.log.Info("ignoring payment webhook event",
			zap.String("provider", provider),
			zap.String("event_type", payload.EventType),
		)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	result, err := s.creditSvc.ApplyPayment(c.Request.Context(), creditdomain.ApplyPaymentRequest{
		UserID:         payload.User.ID,
		UserName:       payload.User.Name,
		PaymentID:      payload.PaymentID,
		CustomerID:     payload.CustomerID,
		Amount:         payload.Amount,
		Currency:       payload.Currency,
		ProductID:      payload.ProductID,
		CreditsGranted: payload.Credits,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"already_processed": result.AlreadyProcessed,
	})
}
