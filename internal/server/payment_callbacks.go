package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	billingdomain "github.com/dirhublabs/dirhub/internal/billing/domain"
)

func (s *Server) stripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "unreadable body"))
		return
	}

	result, err := s.billingSvc.HandleStripeWebhook(c.Request.Context(), payload, c.Request.Header)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, webhookAck(result))
}

func (s *Server) internalWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "unreadable body"))
		return
	}
	signature := strings.TrimSpace(c.GetHeader("X-Webhook-Signature"))

	result, err := s.billingSvc.HandleInternalWebhook(c.Request.Context(), payload, signature)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, webhookAck(result))
}

// sslcommerzCallback handles the browser redirect from SSLCommerz. The
// response is always a 302 to the app's status page; the payment result
// rides in the query string.
func (s *Server) sslcommerzCallback(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			AbortWithError(c, newValidationError("request", "invalid_request", "invalid form payload"))
			return
		}

		result, err := s.billingSvc.HandleSSLCommerzCallback(c.Request.Context(), billingdomain.SSLCommerzCallbackRequest{
			Kind:   kind,
			Values: c.Request.PostForm,
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}

		redirect := result.RedirectURL
		if redirect == "" {
			redirect = s.cfg.FrontendURL + "/billing/status?status=failed"
		}
		c.Redirect(http.StatusFound, redirect)
	}
}

func webhookAck(result *billingdomain.WebhookResult) gin.H {
	ack := gin.H{"received": result.Received}
	if result.Ignored {
		ack["ignored"] = true
	}
	if result.EventType != "" {
		ack["eventType"] = result.EventType
	}
	return ack
}
