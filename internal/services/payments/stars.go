package payments

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tunngle1/newversionmusicbot/internal/domain/enums"
)

const starsPayloadPrefix = "stars"

// CreateStarsInvoice builds a Telegram Stars invoice link. The payload nonce
// doubles as an idempotency key if the platform omits a charge id.
func (s *Service) CreateStarsInvoice(ctx context.Context, userID int64, plan enums.Plan) (string, error) {
	if userID <= 0 {
		return "", ErrValidation
	}
	if !plan.Valid() {
		return "", ErrUnknownPlan
	}
	if s.invoices == nil {
		return "", fmt.Errorf("invoice creator is not configured")
	}

	amount := s.cfg.StarsPriceMonth
	if plan == enums.PlanYear {
		amount = s.cfg.StarsPriceYear
	}
	if amount <= 0 {
		return "", fmt.Errorf("stars price for plan %s is not configured", plan)
	}

	payload := fmt.Sprintf("%s_%s_%d_%s", starsPayloadPrefix, plan, userID, uuid.NewString())
	title := "Premium subscription"
	description := fmt.Sprintf("Premium access for %d days", plan.Days())

	link, err := s.invoices.CreateInvoiceLink(ctx, title, description, payload, "XTR", amount)
	if err != nil {
		return "", fmt.Errorf("create stars invoice: %w", err)
	}

	return link, nil
}

// ValidateStarsPayload is the pre-checkout gate: the payload must parse and
// name a known plan before the charge is approved.
func (s *Service) ValidateStarsPayload(payload string) error {
	_, _, err := parseStarsPayload(payload)
	return err
}

type StarsPaymentInput struct {
	UserID         int64
	Currency       string
	TotalAmount    int
	InvoicePayload string
	ChargeID       string
}

// HandleStarsPayment credits a successful Stars charge. The input arrives
// either from the bot long-poll loop or the webhook; both funnel here and
// the charge id dedup makes double delivery harmless.
func (s *Service) HandleStarsPayment(ctx context.Context, in StarsPaymentInput) (CreditResult, error) {
	if in.UserID <= 0 || in.TotalAmount <= 0 {
		return CreditResult{}, ErrValidation
	}
	if !strings.EqualFold(in.Currency, "XTR") {
		return CreditResult{}, fmt.Errorf("unexpected currency %q: %w", in.Currency, ErrValidation)
	}

	plan, payloadUserID, err := parseStarsPayload(in.InvoicePayload)
	if err != nil {
		return CreditResult{}, err
	}
	if payloadUserID != in.UserID {
		return CreditResult{}, fmt.Errorf("payload user mismatch: %w", ErrValidation)
	}

	eventID := strings.TrimSpace(in.ChargeID)
	if eventID == "" {
		eventID = in.InvoicePayload
	}

	amount := decimal.NewFromInt(int64(in.TotalAmount))
	return s.credit(ctx, in.UserID, plan, enums.PaymentMethodStars, amount, nil, &eventID)
}

func parseStarsPayload(payload string) (enums.Plan, int64, error) {
	parts := strings.Split(strings.TrimSpace(payload), "_")
	if len(parts) < 3 || parts[0] != starsPayloadPrefix {
		return "", 0, fmt.Errorf("malformed stars payload: %w", ErrValidation)
	}

	plan, ok := enums.ParsePlan(parts[1])
	if !ok {
		return "", 0, ErrUnknownPlan
	}

	userID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || userID <= 0 {
		return "", 0, fmt.Errorf("malformed stars payload user: %w", ErrValidation)
	}

	return plan, userID, nil
}
