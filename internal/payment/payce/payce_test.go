package payce

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pixelmart/internal/payment"
)

func TestSignFiltersEmptyAndSorts(t *testing.T) {
	params := map[string]interface{}{
		"order_no":  "2026-000001",
		"amount":    "24.00",
		"subject":   "",
		"signature": "should-be-ignored",
		"currency":  "USD",
	}
	got := Sign(params, "test-key")
	want := Sign(map[string]interface{}{
		"amount":   "24.00",
		"currency": "USD",
		"order_no": "2026-000001",
	}, "test-key")
	if got != want {
		t.Fatalf("signature should ignore empty values and existing signature field")
	}
	if got != Sign(params, "test-key") {
		t.Fatalf("signature should be deterministic")
	}
	if got == Sign(params, "another-key") {
		t.Fatalf("different keys must produce different signatures")
	}
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{MerchantID: "m1", APIKey: "k"}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("missing base_url should fail, got %v", err)
	}
	if _, err := New(Config{BaseURL: "https://pay.example.com", APIKey: "k"}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("missing merchant_id should fail, got %v", err)
	}
	client, err := New(Config{BaseURL: "https://pay.example.com/", MerchantID: " m1 ", APIKey: "k"})
	if err != nil {
		t.Fatalf("valid config failed: %v", err)
	}
	if client.cfg.BaseURL != "https://pay.example.com" {
		t.Fatalf("base url should be trimmed, got %s", client.cfg.BaseURL)
	}
	if client.cfg.MerchantID != "m1" {
		t.Fatalf("merchant id should be trimmed, got %s", client.cfg.MerchantID)
	}
}

func TestCreateIntent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/intents" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var params map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			t.Errorf("decode request failed: %v", err)
		}
		if params["merchant_id"] != "m1" || params["order_no"] != "2026-000001" {
			t.Errorf("unexpected request params: %v", params)
		}
		sig, _ := params["signature"].(string)
		delete(params, "signature")
		if sig != Sign(params, "test-key") {
			t.Errorf("request signature invalid")
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status_code": 200,
			"data": map[string]interface{}{
				"intent_id":   "pi_123",
				"order_no":    "2026-000001",
				"amount":      "24.00",
				"status":      IntentStatusCreated,
				"payment_url": "https://pay.example.com/checkout/pi_123",
			},
		})
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, MerchantID: "m1", APIKey: "test-key"})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}

	intent, err := client.CreateIntent(context.Background(), payment.CreateIntentInput{
		OrderNo:  "2026-000001",
		Amount:   "24.00",
		Currency: "USD",
	})
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}
	if intent.IntentID != "pi_123" {
		t.Fatalf("intent id want pi_123 got %s", intent.IntentID)
	}
	if intent.PaymentURL == "" {
		t.Fatalf("payment url should be set")
	}
}

func TestCreateIntentRequiresOrderNoAndAmount(t *testing.T) {
	client, err := New(Config{BaseURL: "https://pay.example.com", MerchantID: "m1", APIKey: "k"})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if _, err := client.CreateIntent(context.Background(), payment.CreateIntentInput{}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("empty input should fail, got %v", err)
	}
}

func TestConfirmCaptureDeclined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status_code": 402,
			"message":     "insufficient funds",
		})
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, MerchantID: "m1", APIKey: "test-key"})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}

	_, err = client.ConfirmCapture(context.Background(), payment.CaptureInput{
		IntentID: "pi_123",
		OrderNo:  "2026-000001",
		Amount:   "24.00",
	})
	if !errors.Is(err, ErrDeclined) {
		t.Fatalf("402 should map to ErrDeclined, got %v", err)
	}
}

func TestConfirmCaptureGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, MerchantID: "m1", APIKey: "test-key"})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}

	_, err = client.ConfirmCapture(context.Background(), payment.CaptureInput{IntentID: "pi_123"})
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("5xx should map to ErrRequestFailed, got %v", err)
	}
}

func TestVerifyCallback(t *testing.T) {
	client, err := New(Config{BaseURL: "https://pay.example.com", MerchantID: "m1", APIKey: "test-key"})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}

	data := &CallbackData{
		IntentID: "pi_123",
		OrderNo:  "2026-000001",
		TxnID:    "txn_9",
		Amount:   "24.00",
		Currency: "USD",
		Status:   IntentStatusCaptured,
	}
	data.Signature = Sign(map[string]interface{}{
		"intent_id": data.IntentID,
		"order_no":  data.OrderNo,
		"txn_id":    data.TxnID,
		"amount":    data.Amount,
		"currency":  data.Currency,
		"status":    data.Status,
	}, "test-key")

	if err := client.VerifyCallback(data); err != nil {
		t.Fatalf("valid callback rejected: %v", err)
	}

	data.Amount = "1.00"
	if err := client.VerifyCallback(data); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("tampered callback should fail, got %v", err)
	}
}

func TestParseCallback(t *testing.T) {
	if _, err := ParseCallback(nil); !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("empty body should fail, got %v", err)
	}
	if _, err := ParseCallback([]byte("{bad")); !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("bad json should fail, got %v", err)
	}
	data, err := ParseCallback([]byte(`{"intent_id":"pi_123","order_no":"2026-000001"}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if data.IntentID != "pi_123" {
		t.Fatalf("intent id want pi_123 got %s", data.IntentID)
	}
}
