package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	billingdomain "github.com/dirhublabs/dirhub/internal/billing/domain"
	gatewaydomain "github.com/dirhublabs/dirhub/internal/gateway/domain"
)

// ProcessMockCallback applies a simulated gateway result to one attempt.
func (s *Service) ProcessMockCallback(ctx context.Context, req billingdomain.MockCallbackRequest) (*billingdomain.MockCallbackResponse, error) {
	switch strings.ToLower(strings.TrimSpace(req.Result)) {
	case "success":
		activation, err := s.ActivatePayment(ctx, billingdomain.ActivateRequest{AttemptID: req.AttemptID})
		if err != nil {
			return nil, err
		}
		return &billingdomain.MockCallbackResponse{
			Attempt:      activation.Attempt,
			Invoice:      activation.Invoice,
			Subscription: activation.Subscription,
		}, nil
	case "failure":
		failure, err := s.FailPayment(ctx, billingdomain.FailRequest{
			AttemptID: req.AttemptID,
			Status:    billingdomain.AttemptStatusFailed,
			Reason:    "mock gateway reported failure",
		})
		if err != nil {
			return nil, err
		}
		return &billingdomain.MockCallbackResponse{
			Attempt: failure.Attempt,
			Invoice: failure.Invoice,
		}, nil
	default:
		return nil, billingdomain.ErrInvalidMockResult
	}
}

// HandleStripeWebhook verifies one Stripe event and routes it to activation
// or failure. Events that do not belong to this system are acknowledged and
// ignored, never errored: the Stripe account may be shared.
func (s *Service) HandleStripeWebhook(ctx context.Context, payload []byte, headers http.Header) (*billingdomain.WebhookResult, error) {
	adapter, err := s.gateways.AdapterFor(gatewaydomain.ProviderStripe)
	if err != nil {
		return nil, billingdomain.ErrGatewayConfiguration
	}
	webhookAdapter, ok := adapter.(gatewaydomain.WebhookAdapter)
	if !ok {
		return nil, billingdomain.ErrGatewayConfiguration
	}

	outcome, err := webhookAdapter.ParseWebhook(ctx, payload, headers)
	if err != nil {
		if errors.Is(err, gatewaydomain.ErrEventIgnored) {
			return &billingdomain.WebhookResult{Received: true, Ignored: true}, nil
		}
		return nil, err
	}

	return s.dispatchOutcome(ctx, outcome)
}

// HandleSSLCommerzCallback validates a browser callback and answers with the
// status-page redirect the handler 302s the browser to.
func (s *Service) HandleSSLCommerzCallback(ctx context.Context, req billingdomain.SSLCommerzCallbackRequest) (*billingdomain.WebhookResult, error) {
	adapter, err := s.gateways.AdapterFor(gatewaydomain.ProviderSSLCommerz)
	if err != nil {
		return nil, billingdomain.ErrGatewayConfiguration
	}
	callbackAdapter, ok := adapter.(gatewaydomain.CallbackAdapter)
	if !ok {
		return nil, billingdomain.ErrGatewayConfiguration
	}

	tranID := strings.TrimSpace(req.Values.Get("tran_id"))
	attemptID, err := snowflake.ParseString(tranID)
	if err != nil {
		s.log.Warn("sslcommerz callback with unparseable tran_id", zap.String("tran_id", tranID))
		return &billingdomain.WebhookResult{
			Received:    true,
			Ignored:     true,
			RedirectURL: s.statusPageURL("failed", tranID),
		}, nil
	}
	attempt, err := s.repo.FindAttemptByID(ctx, s.db, attemptID)
	if err != nil {
		if errors.Is(err, billingdomain.ErrAttemptNotFound) {
			s.log.Warn("sslcommerz callback for unknown attempt", zap.String("tran_id", tranID))
			return &billingdomain.WebhookResult{
				Received:    true,
				Ignored:     true,
				RedirectURL: s.statusPageURL("failed", tranID),
			}, nil
		}
		return nil, err
	}

	outcome, err := callbackAdapter.ValidateCallback(ctx, gatewaydomain.CallbackValidation{
		Kind:                req.Kind,
		Values:              req.Values,
		ExpectedTranID:      attempt.ID.String(),
		ExpectedAmountCents: attempt.AmountCents,
		ExpectedCurrency:    attempt.Currency,
	})
	if err != nil {
		return nil, err
	}

	result, err := s.dispatchOutcome(ctx, outcome)
	if err != nil {
		return nil, err
	}
	result.RedirectURL = s.statusPageURL(statusForOutcome(outcome.Kind), attempt.ID.String())
	return result, nil
}

// internalEvent is the payload shape of the signed internal payment webhook.
type internalEvent struct {
	PaymentAttemptID string `json:"paymentAttemptId"`
	Result           string `json:"result"`
	AmountCents      int64  `json:"amountCents"`
	Currency         string `json:"currency"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	Reason           string `json:"reason"`
}

// HandleInternalWebhook consumes the generic signed payment webhook.
func (s *Service) HandleInternalWebhook(ctx context.Context, payload []byte, signature string) (*billingdomain.WebhookResult, error) {
	verification, err := s.guard.VerifyWebhookSignature(payload, signature)
	if err != nil {
		return nil, err
	}
	if verification.Placeholder {
		s.log.Warn("internal webhook accepted without signature verification")
	}

	var event internalEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, gatewaydomain.ErrInvalidPayload
	}

	kind := gatewaydomain.OutcomeFailed
	switch strings.ToLower(strings.TrimSpace(event.Result)) {
	case "success":
		kind = gatewaydomain.OutcomeSuccess
	case "failure", "failed":
		kind = gatewaydomain.OutcomeFailed
	case "canceled", "cancelled":
		kind = gatewaydomain.OutcomeCanceled
	default:
		return nil, gatewaydomain.ErrInvalidEvent
	}

	return s.dispatchOutcome(ctx, &gatewaydomain.Outcome{
		Provider:         "internal",
		Kind:             kind,
		AttemptID:        event.PaymentAttemptID,
		GatewayPaymentID: event.GatewayPaymentID,
		AmountCents:      event.AmountCents,
		Currency:         event.Currency,
		Reason:           event.Reason,
		EventType:        "internal." + string(kind),
		RawPayload:       payload,
	})
}

func (s *Service) dispatchOutcome(ctx context.Context, outcome *gatewaydomain.Outcome) (*billingdomain.WebhookResult, error) {
	attemptID, err := snowflake.ParseString(strings.TrimSpace(outcome.AttemptID))
	if err != nil {
		s.log.Warn("gateway outcome with unparseable attempt id",
			zap.String("provider", outcome.Provider),
			zap.String("attempt_id", outcome.AttemptID),
		)
		return &billingdomain.WebhookResult{Received: true, Ignored: true, EventType: outcome.EventType}, nil
	}

	result := &billingdomain.WebhookResult{Received: true, EventType: outcome.EventType}
	switch outcome.Kind {
	case gatewaydomain.OutcomeSuccess:
		activation, err := s.ActivatePayment(ctx, billingdomain.ActivateRequest{
			AttemptID:           attemptID,
			ObservedAmountCents: outcome.AmountCents,
			ObservedCurrency:    outcome.Currency,
			GatewayPaymentID:    outcome.GatewayPaymentID,
			RawPayload:          outcome.RawPayload,
		})
		if err != nil {
			if errors.Is(err, billingdomain.ErrAttemptNotFound) {
				s.log.Warn("gateway outcome for unknown attempt",
					zap.String("provider", outcome.Provider),
					zap.String("attempt_id", outcome.AttemptID),
				)
				result.Ignored = true
				return result, nil
			}
			return nil, err
		}
		result.Activation = activation
	case gatewaydomain.OutcomeFailed, gatewaydomain.OutcomeCanceled:
		status := billingdomain.AttemptStatusFailed
		if outcome.Kind == gatewaydomain.OutcomeCanceled {
			status = billingdomain.AttemptStatusCanceled
		}
		failure, err := s.FailPayment(ctx, billingdomain.FailRequest{
			AttemptID:        attemptID,
			Status:           status,
			Reason:           outcome.Reason,
			GatewayPaymentID: outcome.GatewayPaymentID,
			RawPayload:       outcome.RawPayload,
		})
		if err != nil {
			if errors.Is(err, billingdomain.ErrAttemptNotFound) {
				result.Ignored = true
				return result, nil
			}
			return nil, err
		}
		result.Failure = failure
	default:
		return nil, gatewaydomain.ErrInvalidEvent
	}

	return result, nil
}

func statusForOutcome(kind gatewaydomain.OutcomeKind) string {
	switch kind {
	case gatewaydomain.OutcomeSuccess:
		return "success"
	case gatewaydomain.OutcomeCanceled:
		return "canceled"
	default:
		return "failed"
	}
}

func (s *Service) statusPageURL(status, attemptID string) string {
	return fmt.Sprintf("%s/billing/status?status=%s&attempt=%s", s.cfg.FrontendURL, status, attemptID)
}
