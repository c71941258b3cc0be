package services

import "testing"

func TestVerifyPaymentSignature(t *testing.T) {
	client := &GatewayClient{secret: "test_secret", webhookSecret: "webhook_secret"}

	sig := client.PaymentSignature("order_abc", "pay_xyz")
	if sig == "" {
		t.Fatal("PaymentSignature returned empty string")
	}

	if !client.VerifyPaymentSignature("order_abc", "pay_xyz", sig) {
		t.Error("valid signature rejected")
	}
	if client.VerifyPaymentSignature("order_abc", "pay_other", sig) {
		t.Error("signature for a different payment id accepted")
	}
	if client.VerifyPaymentSignature("order_other", "pay_xyz", sig) {
		t.Error("signature for a different order id accepted")
	}
	if client.VerifyPaymentSignature("order_abc", "pay_xyz", "deadbeef") {
		t.Error("garbage signature accepted")
	}

	// signing under a different secret must not verify
	other := &GatewayClient{secret: "other_secret"}
	if client.VerifyPaymentSignature("order_abc", "pay_xyz", other.PaymentSignature("order_abc", "pay_xyz")) {
		t.Error("signature under wrong secret accepted")
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	client := &GatewayClient{secret: "test_secret", webhookSecret: "webhook_secret"}
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1"}}}}`)

	peer := &GatewayClient{webhookSecret: "webhook_secret"}
	sig := peer.webhookSign(body)

	if !client.VerifyWebhookSignature(body, sig) {
		t.Error("valid webhook signature rejected")
	}
	if client.VerifyWebhookSignature([]byte(`{"event":"tampered"}`), sig) {
		t.Error("signature over different body accepted")
	}
	if client.VerifyWebhookSignature(body, "") {
		t.Error("empty signature accepted")
	}
}
