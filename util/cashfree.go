package util

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const cashfreeAPIVersion = "2023-08-01"

// The gateway round-trip is the only external blocking call in the
// purchase flow; it must surface failure rather than hang.
var cashfreeHTTPClient = &http.Client{Timeout: 15 * time.Second}

type CashfreeCustomer struct {
	CustomerID    string `json:"customer_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
}

type CashfreeOrderMeta struct {
	ReturnURL string `json:"return_url"`
	NotifyURL string `json:"notify_url"`
}

type CashfreeOrderRequest struct {
	OrderID         string            `json:"order_id"`
	OrderAmount     float64           `json:"order_amount"`
	OrderCurrency   string            `json:"order_currency"`
	CustomerDetails CashfreeCustomer  `json:"customer_details"`
	OrderMeta       CashfreeOrderMeta `json:"order_meta"`
	OrderNote       string            `json:"order_note,omitempty"`
}

type CashfreeOrderStatus struct {
	OrderID        string `json:"order_id"`
	OrderStatus    string `json:"order_status"`
	PaymentDetails struct {
		PaymentID string `json:"payment_id"`
	} `json:"payment_details"`
}

func cashfreeRequest(cfg CashfreeConfig, method, endpoint string, body interface{}, out interface{}) error {
	if cfg.AppID == "" || cfg.SecretKey == "" {
		return errors.New("cashfree credentials are not configured")
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(encoded)
	}

	req, err := http.NewRequest(method, cfg.BaseURL+endpoint, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("x-client-id", cfg.AppID)
	req.Header.Set("x-client-secret", cfg.SecretKey)
	req.Header.Set("x-api-version", cashfreeAPIVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := cashfreeHTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("cashfree request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("cashfree response read failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return errors.New("cashfree authentication failed: check app id and secret key")
		}
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return errors.New(apiErr.Message)
		}
		return fmt.Errorf("cashfree api error: %s", resp.Status)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unexpected cashfree response shape: %w", err)
		}
	}
	return nil
}

// CreateCashfreeOrder creates a gateway order and returns the payment
// session token the client uses to open the checkout.
func CreateCashfreeOrder(cfg CashfreeConfig, order CashfreeOrderRequest) (string, error) {
	var resp struct {
		PaymentSessionID string `json:"payment_session_id"`
	}
	if err := cashfreeRequest(cfg, http.MethodPost, "/pg/orders", order, &resp); err != nil {
		return "", err
	}
	if resp.PaymentSessionID == "" {
		return "", errors.New("payment session id not found in cashfree response")
	}
	return resp.PaymentSessionID, nil
}

// GetCashfreeOrderStatus fetches the gateway's view of an order.
func GetCashfreeOrderStatus(cfg CashfreeConfig, orderID string) (*CashfreeOrderStatus, error) {
	var status CashfreeOrderStatus
	if err := cashfreeRequest(cfg, http.MethodGet, "/pg/orders/"+orderID, nil, &status); err != nil {
		return nil, err
	}
	if status.OrderStatus == "" {
		return nil, errors.New("order status not found in cashfree response")
	}
	return &status, nil
}

// VerifyWebhookSignature checks the x-webhook-signature header:
// base64(HMAC-SHA256(timestamp + rawBody, webhookSecret)).
func VerifyWebhookSignature(cfg CashfreeConfig, timestamp string, rawBody []byte, signature string) bool {
	if cfg.WebhookSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(cfg.WebhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.TrimSpace(signature)), []byte(expected))
}
