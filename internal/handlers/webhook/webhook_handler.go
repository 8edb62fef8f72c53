// internal/handlers/webhook/webhook_handler.go
package webhook

import (
	"io"
	"net/http"

	"compatlab-service/internal/pkg/response"
	"compatlab-service/internal/service/billing"

	"github.com/gin-gonic/gin"
)

// Stripe caps webhook payloads well below this.
const maxPayloadBytes = 1 << 20

type WebhookHandler struct {
	webhookService *billing.WebhookService
}

func NewWebhookHandler(webhookService *billing.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService}
}

// Handle receives Stripe webhook deliveries. The raw body is needed
// for signature verification, so this route must not run through any
// body-parsing middleware.
func (h *WebhookHandler) Handle(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "corpo da requisição ilegível")
		return
	}

	status, err := h.webhookService.HandleEvent(
		c.Request.Context(),
		payload,
		c.GetHeader("Stripe-Signature"),
	)
	if err != nil {
		response.Error(c, status, "falha ao processar evento")
		return
	}

	c.JSON(status, gin.H{"received": true})
}
