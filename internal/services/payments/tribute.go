package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tunngle1/newversionmusicbot/internal/domain/enums"
)

// yearAmountThreshold is the legacy fallback for providers that do not carry
// a product id: anything above it is treated as a year plan.
var yearAmountThreshold = decimal.RequireFromString("5")

var tributeCreditEvents = map[string]bool{
	"order_paid":          true,
	"subscription_active": true,
	"payment_succeeded":   true,
}

type tributeEvent struct {
	Name    string `json:"name"`
	Payload struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Amount struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
		} `json:"amount"`
		Customer struct {
			TelegramID int64  `json:"telegram_id"`
			Username   string `json:"username"`
		} `json:"customer"`
		Product struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"product"`
	} `json:"payload"`
}

// VerifyTributeSignature checks the HMAC-SHA256 signature of the raw webhook
// body in constant time.
func (s *Service) VerifyTributeSignature(body []byte, signature string) bool {
	if s.cfg.TributeSecret == "" || strings.TrimSpace(signature) == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.cfg.TributeSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(strings.TrimSpace(signature)), []byte(expected))
}

// HandleTributeWebhook processes one billing event. Unknown event names are
// ignored successfully; a bad signature is a hard reject that the transport
// still acknowledges with 200 to stop provider retries.
func (s *Service) HandleTributeWebhook(ctx context.Context, body []byte, signature string) (CreditResult, error) {
	if !s.VerifyTributeSignature(body, signature) {
		return CreditResult{}, ErrBadSignature
	}

	var event tributeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return CreditResult{}, fmt.Errorf("malformed tribute payload: %w", ErrValidation)
	}

	if !tributeCreditEvents[event.Name] {
		s.log.Info("ignoring tribute event", zap.String("name", event.Name))
		return CreditResult{AlreadyProcessed: true}, nil
	}

	userID := event.Payload.Customer.TelegramID
	if userID <= 0 {
		return CreditResult{}, fmt.Errorf("tribute event has no telegram_id: %w", ErrValidation)
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(event.Payload.Amount.Value))
	if err != nil {
		return CreditResult{}, fmt.Errorf("malformed tribute amount: %w", ErrValidation)
	}

	plan := s.tributePlan(event.Payload.Product.ID, amount)

	eventID := strings.TrimSpace(event.Payload.ID)
	if eventID == "" {
		return CreditResult{}, fmt.Errorf("tribute event has no id: %w", ErrValidation)
	}

	return s.credit(ctx, userID, plan, enums.PaymentMethodTribute, amount, nil, &eventID)
}

// tributePlan resolves the purchased plan. The configured product map is
// authoritative; the amount threshold only covers unmapped products.
func (s *Service) tributePlan(productID string, amount decimal.Decimal) enums.Plan {
	if plan, ok := s.cfg.TributeProducts[strings.TrimSpace(productID)]; ok && plan.Valid() {
		return plan
	}
	if amount.GreaterThan(yearAmountThreshold) {
		return enums.PlanYear
	}
	return enums.PlanMonth
}
