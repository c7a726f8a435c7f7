package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testCashfreeConfig(baseURL string) CashfreeConfig {
	return CashfreeConfig{
		BaseURL:       baseURL,
		AppID:         "test-app-id",
		SecretKey:     "test-secret-key",
		WebhookSecret: "test-webhook-secret",
	}
}

func TestCreateCashfreeOrder(t *testing.T) {
	var gotOrder CashfreeOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/pg/orders", r.URL.Path)
		assert.Equal(t, "test-app-id", r.Header.Get("x-client-id"))
		assert.Equal(t, "test-secret-key", r.Header.Get("x-client-secret"))
		assert.Equal(t, "2023-08-01", r.Header.Get("x-api-version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotOrder))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"order_id":           gotOrder.OrderID,
			"payment_session_id": "session_abc123",
		})
	}))
	defer srv.Close()

	sessionID, err := CreateCashfreeOrder(testCashfreeConfig(srv.URL), CashfreeOrderRequest{
		OrderID:       "ORDER_1700000000000_42_abcd1234",
		OrderAmount:   248,
		OrderCurrency: "INR",
		CustomerDetails: CashfreeCustomer{
			CustomerID:    "42",
			CustomerName:  "Asha",
			CustomerEmail: "asha@example.com",
			CustomerPhone: "9999999999",
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, "session_abc123", sessionID)
	assert.Equal(t, "ORDER_1700000000000_42_abcd1234", gotOrder.OrderID)
	assert.Equal(t, 248.0, gotOrder.OrderAmount)
}

func TestCreateCashfreeOrderMissingSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"order_id": "X"})
	}))
	defer srv.Close()

	_, err := CreateCashfreeOrder(testCashfreeConfig(srv.URL), CashfreeOrderRequest{OrderID: "X"})
	assert.ErrorContains(t, err, "payment session id")
}

func TestCreateCashfreeOrderAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := CreateCashfreeOrder(testCashfreeConfig(srv.URL), CashfreeOrderRequest{OrderID: "X"})
	assert.ErrorContains(t, err, "authentication failed")
}

func TestCreateCashfreeOrderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "order_amount below minimum"})
	}))
	defer srv.Close()

	_, err := CreateCashfreeOrder(testCashfreeConfig(srv.URL), CashfreeOrderRequest{OrderID: "X"})
	assert.ErrorContains(t, err, "order_amount below minimum")
}

func TestCreateCashfreeOrderNoCredentials(t *testing.T) {
	_, err := CreateCashfreeOrder(CashfreeConfig{BaseURL: "http://localhost"}, CashfreeOrderRequest{})
	assert.ErrorContains(t, err, "not configured")
}

func TestGetCashfreeOrderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/pg/orders/ORDER_1", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"order_id":     "ORDER_1",
			"order_status": "PAID",
			"payment_details": map[string]string{
				"payment_id": "pay_789",
			},
		})
	}))
	defer srv.Close()

	status, err := GetCashfreeOrderStatus(testCashfreeConfig(srv.URL), "ORDER_1")
	assert.NoError(t, err)
	assert.Equal(t, "PAID", status.OrderStatus)
	assert.Equal(t, "pay_789", status.PaymentDetails.PaymentID)
}

func TestGetCashfreeOrderStatusMissingStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"order_id": "ORDER_1"})
	}))
	defer srv.Close()

	_, err := GetCashfreeOrderStatus(testCashfreeConfig(srv.URL), "ORDER_1")
	assert.ErrorContains(t, err, "order status")
}

func signWebhook(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	cfg := CashfreeConfig{WebhookSecret: "test-webhook-secret"}
	body := []byte(`{"orderId":"ORDER_1","orderStatus":"PAID"}`)
	timestamp := "1700000000"

	t.Run("valid signature", func(t *testing.T) {
		sig := signWebhook("test-webhook-secret", timestamp, body)
		assert.True(t, VerifyWebhookSignature(cfg, timestamp, body, sig))
	})

	t.Run("signature over wrong body", func(t *testing.T) {
		sig := signWebhook("test-webhook-secret", timestamp, []byte(`{"orderId":"ORDER_2"}`))
		assert.False(t, VerifyWebhookSignature(cfg, timestamp, body, sig))
	})

	t.Run("signature with wrong secret", func(t *testing.T) {
		sig := signWebhook("other-secret", timestamp, body)
		assert.False(t, VerifyWebhookSignature(cfg, timestamp, body, sig))
	})

	t.Run("timestamp mismatch", func(t *testing.T) {
		sig := signWebhook("test-webhook-secret", "1700000001", body)
		assert.False(t, VerifyWebhookSignature(cfg, timestamp, body, sig))
	})

	t.Run("empty signature", func(t *testing.T) {
		assert.False(t, VerifyWebhookSignature(cfg, timestamp, body, ""))
	})

	t.Run("no secret configured", func(t *testing.T) {
		sig := signWebhook("test-webhook-secret", timestamp, body)
		assert.False(t, VerifyWebhookSignature(CashfreeConfig{}, timestamp, body, sig))
	})

	t.Run("trailing whitespace tolerated", func(t *testing.T) {
		sig := signWebhook("test-webhook-secret", timestamp, body)
		assert.True(t, VerifyWebhookSignature(cfg, timestamp, body, sig+"\n"))
	})
}
