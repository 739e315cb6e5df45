package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tunngle1/newversionmusicbot/internal/domain/enums"
	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
	pgrepo "github.com/tunngle1/newversionmusicbot/internal/repo/postgres"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrUnknownPlan      = errors.New("unknown plan")
	ErrBadSignature     = errors.New("bad webhook signature")
	ErrProofNotFound    = errors.New("transaction not found on chain")
	ErrProofRejected    = errors.New("transaction rejected")
	ErrProofStale       = errors.New("transaction is too old")
	ErrAmountMismatch   = errors.New("payment amount mismatch")
	ErrWrongDestination = errors.New("payment destination mismatch")
)

// CreditStore persists one payment and the matching premium extension
// atomically. Duplicate transaction hashes or external event ids must
// surface as pgrepo.ErrDuplicatePayment with no state change.
type CreditStore interface {
	CreditInTx(ctx context.Context, p model.Payment, days int) (model.Payment, time.Time, error)
}

// RewardHook fires after a payment commits so the referral engine can pay
// out a pending referral exactly once.
type RewardHook interface {
	OnPaymentCompleted(ctx context.Context, userID int64) error
}

type InvoiceCreator interface {
	CreateInvoiceLink(ctx context.Context, title, description, payload, currency string, amount int) (string, error)
}

type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Config carries plan prices and provider credentials. TON prices are exact
// decimals parsed once at construction.
type Config struct {
	StarsPriceMonth  int
	StarsPriceYear   int
	TONPriceMonth    decimal.Decimal
	TONPriceYear     decimal.Decimal
	TONWallet        string
	TONFreshness     time.Duration
	TributeSecret    string
	TributeLinkMonth string
	TributeLinkYear  string
	// TributeProducts maps a provider product id to the plan it sells.
	TributeProducts map[string]enums.Plan
}

type Service struct {
	ledger   CreditStore
	rewards  RewardHook
	invoices InvoiceCreator
	decoder  BocDecoder
	indexer  ChainIndexer
	notifier Notifier
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
}

type Dependencies struct {
	Ledger   CreditStore
	Rewards  RewardHook
	Invoices InvoiceCreator
	Decoder  BocDecoder
	Indexer  ChainIndexer
	Notifier Notifier
}

func NewService(deps Dependencies, cfg Config, log *zap.Logger) *Service {
	if cfg.TONFreshness <= 0 {
		cfg.TONFreshness = 10 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		ledger:   deps.Ledger,
		rewards:  deps.Rewards,
		invoices: deps.Invoices,
		decoder:  deps.Decoder,
		indexer:  deps.Indexer,
		notifier: deps.Notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

type CreditResult struct {
	Payment          model.Payment
	PremiumUntil     time.Time
	AlreadyProcessed bool
}

// PublicConfig is what the frontend needs to render payment options.
type PublicConfig struct {
	StarsPriceMonth  int    `json:"stars_price_month"`
	StarsPriceYear   int    `json:"stars_price_year"`
	TONPriceMonth    string `json:"ton_price_month"`
	TONPriceYear     string `json:"ton_price_year"`
	TONWallet        string `json:"ton_wallet"`
	TributeLinkMonth string `json:"tribute_link_month,omitempty"`
	TributeLinkYear  string `json:"tribute_link_year,omitempty"`
}

func (s *Service) PublicConfig() PublicConfig {
	return PublicConfig{
		StarsPriceMonth:  s.cfg.StarsPriceMonth,
		StarsPriceYear:   s.cfg.StarsPriceYear,
		TONPriceMonth:    s.cfg.TONPriceMonth.String(),
		TONPriceYear:     s.cfg.TONPriceYear.String(),
		TONWallet:        s.cfg.TONWallet,
		TributeLinkMonth: s.cfg.TributeLinkMonth,
		TributeLinkYear:  s.cfg.TributeLinkYear,
	}
}

// credit records the payment and extends the subscription in one storage
// transaction. A duplicate delivery is a success-no-op: the first one
// already took effect.
func (s *Service) credit(ctx context.Context, userID int64, plan enums.Plan, method enums.PaymentMethod, amount decimal.Decimal, txHash, externalEventID *string) (CreditResult, error) {
	if userID <= 0 {
		return CreditResult{}, ErrValidation
	}
	if !plan.Valid() {
		return CreditResult{}, ErrUnknownPlan
	}

	payment, until, err := s.ledger.CreditInTx(ctx, model.Payment{
		UserID:          userID,
		Amount:          amount.String(),
		Currency:        method.Currency(),
		Plan:            plan,
		Status:          enums.PaymentStatusCompleted,
		Method:          method,
		TransactionHash: txHash,
		ExternalEventID: externalEventID,
		CreatedAt:       s.now(),
	}, plan.Days())
	if err != nil {
		if errors.Is(err, pgrepo.ErrDuplicatePayment) {
			s.log.Info("duplicate payment ignored",
				zap.Int64("user_id", userID),
				zap.String("method", string(method)))
			return CreditResult{AlreadyProcessed: true}, nil
		}
		return CreditResult{}, fmt.Errorf("credit payment: %w", err)
	}

	if s.rewards != nil {
		if err := s.rewards.OnPaymentCompleted(ctx, userID); err != nil {
			s.log.Error("referral reward failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	}
	s.notify(ctx, userID, plan, until)

	return CreditResult{Payment: payment, PremiumUntil: until}, nil
}

func (s *Service) notify(ctx context.Context, userID int64, plan enums.Plan, until time.Time) {
	if s.notifier == nil {
		return
	}

	text := fmt.Sprintf(
		"✅ Premium activated!\nPlan: %s\nActive until: %s",
		plan, until.Format("02.01.2006"))
	if err := s.notifier.SendText(ctx, userID, text); err != nil {
		s.log.Warn("payment notification failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}
