// Package sslcommerz adapts the SSLCommerz hosted checkout. The gateway
// speaks form-encoded HTTP and has no Go SDK; redirect callbacks are never
// trusted until confirmed through the validation API.
package sslcommerz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dirhublabs/dirhub/internal/gateway/domain"
)

const (
	sandboxBaseURL = "https://sandbox.sslcommerz.com"
	liveBaseURL    = "https://securepay.sslcommerz.com"

	initPath     = "/gwprocess/v4/api.php"
	validatePath = "/validator/api/validationserverAPI.php"

	requestTimeout = 15 * time.Second
)

const (
	CallbackSuccess = "success"
	CallbackFail    = "fail"
	CallbackCancel  = "cancel"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return domain.ProviderSSLCommerz
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	storeID, _ := cfg.Config["store_id"].(string)
	storeID = strings.TrimSpace(storeID)
	storePassword, _ := cfg.Config["store_password"].(string)
	storePassword = strings.TrimSpace(storePassword)
	appURL, _ := cfg.Config["app_url"].(string)
	appURL = strings.TrimRight(strings.TrimSpace(appURL), "/")
	if storeID == "" || storePassword == "" || appURL == "" {
		return nil, domain.ErrInvalidConfig
	}

	baseURL := liveBaseURL
	if sandbox, _ := cfg.Config["sandbox"].(bool); sandbox {
		baseURL = sandboxBaseURL
	}
	if override, _ := cfg.Config["base_url"].(string); strings.TrimSpace(override) != "" {
		baseURL = strings.TrimRight(strings.TrimSpace(override), "/")
	}

	return &Adapter{
		storeID:       storeID,
		storePassword: storePassword,
		appURL:        appURL,
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: requestTimeout},
	}, nil
}

type Adapter struct {
	storeID       string
	storePassword string
	appURL        string
	baseURL       string
	httpClient    *http.Client
}

func (a *Adapter) Provider() string {
	return domain.ProviderSSLCommerz
}

type initResponse struct {
	Status         string `json:"status"`
	FailedReason   string `json:"failedreason"`
	SessionKey     string `json:"sessionkey"`
	GatewayPageURL string `json:"GatewayPageURL"`
}

func (a *Adapter) CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	attemptID := req.AttemptID.String()

	form := url.Values{}
	form.Set("store_id", a.storeID)
	form.Set("store_passwd", a.storePassword)
	form.Set("total_amount", formatAmount(req.AmountCents))
	form.Set("currency", strings.ToUpper(req.Currency))
	form.Set("tran_id", attemptID)
	form.Set("success_url", fmt.Sprintf("%s/payments/sslcommerz/success", a.appURL))
	form.Set("fail_url", fmt.Sprintf("%s/payments/sslcommerz/fail", a.appURL))
	form.Set("cancel_url", fmt.Sprintf("%s/payments/sslcommerz/cancel", a.appURL))
	form.Set("product_name", fmt.Sprintf("%s plan (%s)", req.PlanType, strings.ToLower(req.BillingTerm)))
	form.Set("product_category", "subscription")
	form.Set("product_profile", "non-physical-goods")
	form.Set("shipping_method", "NO")
	form.Set("cus_name", defaultString(req.CustomerName, "Customer"))
	form.Set("cus_email", defaultString(req.CustomerEmail, "unknown@example.com"))
	form.Set("cus_add1", "N/A")
	form.Set("cus_city", "N/A")
	form.Set("cus_country", "Bangladesh")
	form.Set("cus_phone", "N/A")
	form.Set("value_a", req.InvoiceID.String())
	form.Set("value_b", req.PlanType)

	var parsed initResponse
	if err := a.postForm(ctx, a.baseURL+initPath, form, &parsed); err != nil {
		return nil, err
	}

	if !strings.EqualFold(parsed.Status, "SUCCESS") || strings.TrimSpace(parsed.GatewayPageURL) == "" {
		reason := strings.TrimSpace(parsed.FailedReason)
		if reason == "" {
			reason = "SSLCommerz session rejected"
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrGatewayRejected, reason)
	}

	return &domain.CheckoutSession{
		Provider:    domain.ProviderSSLCommerz,
		RedirectURL: parsed.GatewayPageURL,
		SessionID:   parsed.SessionKey,
		PaymentID:   attemptID,
	}, nil
}

type validationResponse struct {
	Status      string `json:"status"`
	TranID      string `json:"tran_id"`
	ValID       string `json:"val_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	BankTranID  string `json:"bank_tran_id"`
	CardType    string `json:"card_type"`
	RiskLevel   string `json:"risk_level"`
	APIConnect  string `json:"APIConnect"`
	RiskTitle   string `json:"risk_title"`
	StoreAmount string `json:"store_amount"`
}

// ValidateCallback normalizes an SSLCommerz browser callback. Success
// callbacks are confirmed against the validation API; the redirect alone is
// never trusted.
func (a *Adapter) ValidateCallback(ctx context.Context, req domain.CallbackValidation) (*domain.Outcome, error) {
	tranID := strings.TrimSpace(req.Values.Get("tran_id"))
	if tranID == "" {
		return nil, domain.ErrInvalidPayload
	}

	base := domain.Outcome{
		Provider:         domain.ProviderSSLCommerz,
		AttemptID:        tranID,
		GatewayPaymentID: strings.TrimSpace(req.Values.Get("bank_tran_id")),
		EventType:        req.Kind,
	}

	switch req.Kind {
	case CallbackFail:
		base.Kind = domain.OutcomeFailed
		base.Reason = defaultString(strings.TrimSpace(req.Values.Get("error")), "SSLCommerz payment failed")
		return &base, nil
	case CallbackCancel:
		base.Kind = domain.OutcomeCanceled
		base.Reason = "SSLCommerz payment canceled"
		return &base, nil
	case CallbackSuccess:
		// fallthrough to validation below
	default:
		return nil, domain.ErrInvalidEvent
	}

	valID := strings.TrimSpace(req.Values.Get("val_id"))
	if valID == "" {
		base.Kind = domain.OutcomeFailed
		base.Reason = "SSLCommerz validation failed"
		return &base, nil
	}

	validation, err := a.validate(ctx, valID)
	if err != nil {
		return nil, err
	}

	status := strings.ToUpper(strings.TrimSpace(validation.Status))
	if status != "VALID" && status != "VALIDATED" {
		base.Kind = domain.OutcomeFailed
		base.Reason = "SSLCommerz validation failed"
		return &base, nil
	}

	if strings.TrimSpace(validation.TranID) != strings.TrimSpace(req.ExpectedTranID) {
		base.Kind = domain.OutcomeFailed
		base.Reason = "SSLCommerz transaction mismatch"
		return &base, nil
	}

	amountCents, err := parseAmountCents(validation.Amount)
	if err != nil {
		base.Kind = domain.OutcomeFailed
		base.Reason = "SSLCommerz validation failed"
		return &base, nil
	}
	currency := strings.ToUpper(strings.TrimSpace(validation.Currency))
	if amountCents != req.ExpectedAmountCents || !strings.EqualFold(currency, req.ExpectedCurrency) {
		base.Kind = domain.OutcomeFailed
		base.Reason = "SSLCommerz amount mismatch"
		return &base, nil
	}

	base.Kind = domain.OutcomeSuccess
	base.AmountCents = amountCents
	base.Currency = currency
	if bankTranID := strings.TrimSpace(validation.BankTranID); bankTranID != "" {
		base.GatewayPaymentID = bankTranID
	}
	return &base, nil
}

func (a *Adapter) validate(ctx context.Context, valID string) (*validationResponse, error) {
	query := url.Values{}
	query.Set("val_id", valID)
	query.Set("store_id", a.storeID)
	query.Set("store_passwd", a.storePassword)
	query.Set("format", "json")
	query.Set("v", "1")

	endpoint := fmt.Sprintf("%s%s?%s", a.baseURL, validatePath, query.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: validation status %d", domain.ErrGatewayRejected, resp.StatusCode)
	}

	var parsed validationResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	return &parsed, nil
}

func (a *Adapter) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: init status %d", domain.ErrGatewayRejected, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return domain.ErrInvalidPayload
	}
	return nil
}

func formatAmount(cents int64) string {
	return strconv.FormatFloat(float64(cents)/100, 'f', 2, 64)
}

func parseAmountCents(raw string) (int64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(value * 100)), nil
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
