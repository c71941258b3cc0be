package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// GatewayClient is the outbound HTTP client for the external payment gateway.
// Requests carry amounts in minor currency units; responses are JSON. 5xx and
// transport errors are retried with backoff since order creation is idempotent
// on the gateway side via the receipt label.
type GatewayClient struct {
	baseURL       string
	keyID         string
	secret        string
	webhookSecret string
	client        *http.Client
	maxRetries    int
}

func NewGatewayClient() *GatewayClient {
	url := os.Getenv("GATEWAY_BASE_URL")
	if url == "" {
		url = "https://api.gateway.test"
	}
	webhookSecret := os.Getenv("GATEWAY_WEBHOOK_SECRET")
	if webhookSecret == "" {
		webhookSecret = os.Getenv("GATEWAY_SECRET")
	}
	return &GatewayClient{
		baseURL:       url,
		keyID:         os.Getenv("GATEWAY_KEY_ID"),
		secret:        os.Getenv("GATEWAY_SECRET"),
		webhookSecret: webhookSecret,
		client:        &http.Client{Timeout: 15 * time.Second},
		maxRetries:    3,
	}
}

// CreateOrderRequest is the outbound order intent
type CreateOrderRequest struct {
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Receipt     string            `json:"receipt"`
	Notes       map[string]string `json:"notes,omitempty"`
}

// CreateOrderResponse is the gateway's order handle
type CreateOrderResponse struct {
	OrderID     string `json:"id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
}

// CreateOrder opens an order intent with the gateway
func (g *GatewayClient) CreateOrder(req CreateOrderRequest) (*CreateOrderResponse, error) {
	var resp CreateOrderResponse
	if err := g.makeRequest("POST", "/v1/orders", req, &resp); err != nil {
		return nil, fmt.Errorf("gateway create order: %w", err)
	}
	return &resp, nil
}

// CreateRefundRequest asks the gateway to reverse part of a captured payment
type CreateRefundRequest struct {
	PaymentID   string            `json:"payment_id"`
	AmountMinor int64             `json:"amount"`
	Notes       map[string]string `json:"notes,omitempty"`
}

// CreateRefundResponse is the gateway's refund handle
type CreateRefundResponse struct {
	RefundID    string `json:"id"`
	PaymentID   string `json:"payment_id"`
	AmountMinor int64  `json:"amount"`
	Status      string `json:"status"`
}

// CreateRefund initiates a refund at the gateway
func (g *GatewayClient) CreateRefund(req CreateRefundRequest) (*CreateRefundResponse, error) {
	var resp CreateRefundResponse
	if err := g.makeRequest("POST", "/v1/refunds", req, &resp); err != nil {
		return nil, fmt.Errorf("gateway create refund: %w", err)
	}
	return &resp, nil
}

func (g *GatewayClient) makeRequest(method, endpoint string, payload, out interface{}) error {
	var body []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = data
	}

	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		req, err := http.NewRequest(method, fmt.Sprintf("%s%s", g.baseURL, endpoint), bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(g.keyID, g.secret)

		resp, err := g.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to send request: %w", err)
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("failed to read response: %w", readErr)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
			continue
		}
		if resp.StatusCode >= 400 {
			// Client errors are not retryable
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	}
	return lastErr
}

// PaymentSignature computes the expected client-confirmation signature: hex
// HMAC-SHA256 of the canonical "order_id|payment_id" string under the shared
// secret.
func (g *GatewayClient) PaymentSignature(gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(g.secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPaymentSignature checks a client-supplied confirmation signature in
// constant time
func (g *GatewayClient) VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	expected := g.PaymentSignature(gatewayOrderID, gatewayPaymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks the signature header against the raw webhook
// body in constant time. Webhooks sign the payload bytes, not any canonical
// field string, so the body must be read before JSON decoding.
func (g *GatewayClient) VerifyWebhookSignature(body []byte, signature string) bool {
	return hmac.Equal([]byte(g.webhookSign(body)), []byte(signature))
}

func (g *GatewayClient) webhookSign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
