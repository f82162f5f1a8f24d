package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	billingdomain "github.com/dirhublabs/dirhub/internal/billing/domain"
)

type createCheckoutRequest struct {
	OrganizationID string `json:"organizationId"`
	PlanType       string `json:"planType"`
	BillingTerm    string `json:"billingTerm"`
	AmountCents    int64  `json:"amountCents"`
	DurationDays   int    `json:"durationDays"`
	IdempotencyKey string `json:"idempotencyKey"`
	CustomerEmail  string `json:"customerEmail"`
	CustomerName   string `json:"customerName"`
}

type checkoutResponse struct {
	RedirectURL      string `json:"redirectUrl"`
	Idempotent       bool   `json:"idempotent"`
	PaymentAttemptID string `json:"paymentAttemptId"`
	InvoiceID        string `json:"invoiceId"`
	InvoiceNumber    string `json:"invoiceNumber"`
	AmountCents      int64  `json:"amountCents"`
	Currency         string `json:"currency"`
}

func (s *Server) createCheckout(c *gin.Context) {
	var req createCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}
	orgID, err := parseID(req.OrganizationID)
	if err != nil {
		AbortWithError(c, newValidationError("organizationId", "invalid_organization_id", "organization id must be a valid id"))
		return
	}

	resp, err := s.billingSvc.CreateCheckout(c.Request.Context(), billingdomain.CreateCheckoutRequest{
		OrganizationID: orgID,
		PlanType:       req.PlanType,
		BillingTerm:    req.BillingTerm,
		AmountCents:    req.AmountCents,
		DurationDays:   req.DurationDays,
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
		CustomerEmail:  strings.TrimSpace(req.CustomerEmail),
		CustomerName:   strings.TrimSpace(req.CustomerName),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, checkoutResponse{
		RedirectURL:      resp.RedirectURL,
		Idempotent:       resp.Idempotent,
		PaymentAttemptID: resp.Attempt.ID.String(),
		InvoiceID:        resp.Invoice.ID.String(),
		InvoiceNumber:    resp.Invoice.InvoiceNumber,
		AmountCents:      resp.Invoice.AmountCents,
		Currency:         resp.Invoice.Currency,
	})
}

type provisionEnterpriseRequest struct {
	OrganizationID string `json:"organizationId"`
	AmountCents    int64  `json:"amountCents"`
	DurationDays   int    `json:"durationDays"`
	IdempotencyKey string `json:"idempotencyKey"`
	CustomerEmail  string `json:"customerEmail"`
	CustomerName   string `json:"customerName"`
}

func (s *Server) provisionEnterprise(c *gin.Context) {
	var req provisionEnterpriseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}
	orgID, err := parseID(req.OrganizationID)
	if err != nil {
		AbortWithError(c, newValidationError("organizationId", "invalid_organization_id", "organization id must be a valid id"))
		return
	}

	resp, err := s.billingSvc.ProvisionEnterprise(c.Request.Context(), billingdomain.ProvisionEnterpriseRequest{
		OrganizationID: orgID,
		AmountCents:    req.AmountCents,
		DurationDays:   req.DurationDays,
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
		CustomerEmail:  strings.TrimSpace(req.CustomerEmail),
		CustomerName:   strings.TrimSpace(req.CustomerName),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, mockCallbackResponseBody(resp))
}

type subscriptionResponse struct {
	ID                 string    `json:"id"`
	OrganizationID     string    `json:"organizationId"`
	PlanType           string    `json:"planType"`
	Status             string    `json:"status"`
	AmountCents        int64     `json:"amountCents"`
	Currency           string    `json:"currency"`
	BillingTerm        string    `json:"billingTerm"`
	DurationDays       int       `json:"durationDays"`
	StartedAt          time.Time `json:"startedAt"`
	CurrentPeriodStart time.Time `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time `json:"currentPeriodEnd"`
}

func (s *Server) getActiveSubscription(c *gin.Context) {
	orgID, err := parseID(c.Query("organization_id"))
	if err != nil {
		AbortWithError(c, newValidationError("organization_id", "invalid_organization_id", "organization id must be a valid id"))
		return
	}

	subscription, err := s.billingSvc.GetActiveSubscription(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, subscriptionBody(subscription))
}

type mockCallbackRequest struct {
	PaymentAttemptID string `json:"paymentAttemptId"`
	Result           string `json:"result"`
}

func (s *Server) mockCallback(c *gin.Context) {
	var req mockCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}
	attemptID, err := parseID(req.PaymentAttemptID)
	if err != nil {
		AbortWithError(c, newValidationError("paymentAttemptId", "invalid_payment_attempt_id", "payment attempt id must be a valid id"))
		return
	}

	resp, err := s.billingSvc.ProcessMockCallback(c.Request.Context(), billingdomain.MockCallbackRequest{
		AttemptID: attemptID,
		Result:    req.Result,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, mockCallbackResponseBody(resp))
}

func mockCallbackResponseBody(resp *billingdomain.MockCallbackResponse) gin.H {
	body := gin.H{}
	if resp.Attempt != nil {
		body["paymentAttempt"] = gin.H{
			"id":     resp.Attempt.ID.String(),
			"status": resp.Attempt.Status,
		}
	}
	if resp.Invoice != nil {
		body["invoice"] = gin.H{
			"id":            resp.Invoice.ID.String(),
			"invoiceNumber": resp.Invoice.InvoiceNumber,
			"status":        resp.Invoice.Status,
		}
	}
	if resp.Subscription != nil {
		body["subscription"] = subscriptionBody(resp.Subscription)
	}
	return body
}

func subscriptionBody(subscription *billingdomain.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:                 subscription.ID.String(),
		OrganizationID:     subscription.OrganizationID.String(),
		PlanType:           subscription.PlanType,
		Status:             string(subscription.Status),
		AmountCents:        subscription.AmountCents,
		Currency:           subscription.Currency,
		BillingTerm:        string(subscription.Metadata.BillingTerm),
		DurationDays:       subscription.Metadata.DurationDays,
		StartedAt:          subscription.StartedAt,
		CurrentPeriodStart: subscription.CurrentPeriodStart,
		CurrentPeriodEnd:   subscription.CurrentPeriodEnd,
	}
}

func parseID(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(raw))
}
