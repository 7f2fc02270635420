package handler

import (
	"io"
	"net/http"

	"commissionledger/internal/gocardless"
	"commissionledger/internal/service"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	webhookService service.WebhookService
}

func NewWebhookHandler(webhookService service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService}
}

func (h *WebhookHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/webhooks/payments", h.HandlePayments)
}

// HandlePayments receives payment provider events
// @Summary      Payment provider webhook
// @Description  Verifies the signature over the raw body and reconciles mandate and payment events
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        Webhook-Signature  header    string  true  "Hex HMAC-SHA256 of the body"
// @Success      200                {object}  map[string]bool
// @Failure      400                {object}  map[string]string
// @Failure      401                {object}  map[string]string
// @Router       /webhooks/payments [post]
func (h *WebhookHandler) HandlePayments(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	// Sub-event failures are journaled by the service; the provider only needs to know we accepted the delivery.
	if _, err := h.webhookService.HandleDelivery(c.Request.Context(), body, c.GetHeader(gocardless.SignatureHeader)); err != nil {
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			respondError(c, err)
			return
		}
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
