package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
	paymentsvc "github.com/tunngle1/newversionmusicbot/internal/services/payments"
)

const webhookTestSecret = "tribute-secret"

type ledgerStub struct {
	credited []model.Payment
}

func (l *ledgerStub) CreditInTx(_ context.Context, p model.Payment, days int) (model.Payment, time.Time, error) {
	l.credited = append(l.credited, p)
	return p, time.Now().Add(time.Duration(days) * 24 * time.Hour), nil
}

func newWebhookHandlerForTest(ledger *ledgerStub) *PaymentsHandler {
	svc := paymentsvc.NewService(paymentsvc.Dependencies{Ledger: ledger}, paymentsvc.Config{
		TributeSecret: webhookTestSecret,
	}, nil)
	return NewPaymentsHandler(svc, nil)
}

func signWebhookBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookTestSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestTributeWebhookAcksValidPayload(t *testing.T) {
	ledger := &ledgerStub{}
	h := newWebhookHandlerForTest(ledger)

	body := []byte(`{"name":"order_paid","payload":{"id":"evt-9001","amount":{"value":"10","currency":"eur"},"customer":{"telegram_id":42},"product":{"id":"p1","name":"Premium"},"status":"paid"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/tribute", bytes.NewReader(body))
	req.Header.Set("trbt-signature", signWebhookBody(body))
	rr := httptest.NewRecorder()

	h.TributeWebhook(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}
	if len(ledger.credited) != 1 {
		t.Fatalf("credited %d payments, want 1", len(ledger.credited))
	}
	if ledger.credited[0].UserID != 42 {
		t.Fatalf("credited user %d, want 42", ledger.credited[0].UserID)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["ok"] != true {
		t.Fatalf("unexpected ack body: %v", resp)
	}
}

func TestTributeWebhookAcksBadSignatureWithoutCrediting(t *testing.T) {
	ledger := &ledgerStub{}
	h := newWebhookHandlerForTest(ledger)

	body := []byte(`{"name":"order_paid","payload":{"id":"evt-9002","amount":{"value":"10","currency":"eur"},"customer":{"telegram_id":42},"product":{"id":"p1","name":"Premium"},"status":"paid"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/tribute", bytes.NewReader(body))
	req.Header.Set("trbt-signature", "deadbeef")
	rr := httptest.NewRecorder()

	h.TributeWebhook(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("provider retries on non-200; got %d", rr.Code)
	}
	if len(ledger.credited) != 0 {
		t.Fatal("forged payload must not credit anything")
	}
}
