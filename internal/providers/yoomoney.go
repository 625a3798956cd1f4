// Package providers implements the external payment-provider clients
// behind the payments.Provider boundary.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"

	"github.com/voicelane/backend/internal/payments"
)

const yooMoneyBaseURL = "https://yoomoney.ru/api"

// YooMoney talks to the YooMoney p2p transfer API.
type YooMoney struct {
	token   string
	wallet  string
	baseURL string
	client  *retryablehttp.Client
}

func NewYooMoney(token, wallet string) *YooMoney {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	return &YooMoney{token: token, wallet: wallet, baseURL: yooMoneyBaseURL, client: client}
}

var _ payments.Provider = (*YooMoney)(nil)

func (y *YooMoney) Initiate(ctx context.Context, paymentID uuid.UUID, amount decimal.Decimal) (string, string, error) {
	form := url.Values{
		"pattern_id": {"p2p"},
		"to":         {y.wallet},
		"amount":     {amount.StringFixed(2)},
		"comment":    {fmt.Sprintf("Balance top-up %s", paymentID)},
		"label":      {paymentID.String()},
	}
	var resp struct {
		Status      string `json:"status"`
		RequestID   string `json:"request_id"`
		MoneySource struct {
			PaymentForm string `json:"payment_form"`
		} `json:"money_source"`
	}
	if err := y.post(ctx, "/request-payment", form, &resp); err != nil {
		return "", "", err
	}
	if resp.Status != "success" || resp.RequestID == "" {
		return "", "", fmt.Errorf("yoomoney request-payment status %q", resp.Status)
	}
	return resp.RequestID, resp.MoneySource.PaymentForm, nil
}

func (y *YooMoney) CheckStatus(ctx context.Context, externalID string) (payments.Status, error) {
	form := url.Values{"request_id": {externalID}}
	var resp struct {
		Status string `json:"status"`
	}
	if err := y.post(ctx, "/process-payment", form, &resp); err != nil {
		return "", err
	}
	switch resp.Status {
	case "success":
		return payments.StatusSuccess, nil
	case "refused":
		return payments.StatusFailed, nil
	case "in_progress", "ext_auth_required":
		return payments.StatusPending, nil
	default:
		return "", fmt.Errorf("yoomoney: unexpected payment status %q", resp.Status)
	}
}

func (y *YooMoney) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, y.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+y.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := y.client.Do(req)
	if err != nil {
		return fmt.Errorf("yoomoney %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("yoomoney %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("yoomoney %s: decode response: %w", path, err)
	}
	return nil
}
