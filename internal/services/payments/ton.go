package payments

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/tunngle1/newversionmusicbot/internal/domain/enums"
	"github.com/tunngle1/newversionmusicbot/internal/infra/tonapi"
)

// amountTolerance is the maximum accepted difference between the on-chain
// amount and the plan price, in whole TON.
var amountTolerance = decimal.RequireFromString("0.01")

// BocDecoder turns a serialized message cell into its hash, which doubles as
// the transaction lookup key.
type BocDecoder interface {
	DecodeHash(boc []byte) (string, error)
}

type ChainIndexer interface {
	LookupTransaction(ctx context.Context, hash string) (tonapi.Transaction, error)
}

// CellBocDecoder is the production decoder backed by the TON cell codec.
type CellBocDecoder struct{}

func (CellBocDecoder) DecodeHash(boc []byte) (string, error) {
	c, err := cell.FromBOC(boc)
	if err != nil {
		return "", fmt.Errorf("decode boc: %w", err)
	}
	return hex.EncodeToString(c.Hash()), nil
}

type TONProofInput struct {
	UserID    int64
	Plan      enums.Plan
	BocBase64 string
}

// VerifyTONPayment checks an on-chain payment proof end to end: decode the
// submitted message, find the confirmed transaction, validate destination,
// amount and freshness, then credit the plan. Every check is a hard reject;
// only indexer availability errors are retryable.
func (s *Service) VerifyTONPayment(ctx context.Context, in TONProofInput) (CreditResult, error) {
	if in.UserID <= 0 || strings.TrimSpace(in.BocBase64) == "" {
		return CreditResult{}, ErrValidation
	}
	if !in.Plan.Valid() {
		return CreditResult{}, ErrUnknownPlan
	}
	if s.decoder == nil || s.indexer == nil {
		return CreditResult{}, fmt.Errorf("ton verification is not configured")
	}

	boc, err := base64.StdEncoding.DecodeString(strings.TrimSpace(in.BocBase64))
	if err != nil {
		return CreditResult{}, fmt.Errorf("malformed boc: %w", ErrValidation)
	}

	hash, err := s.decoder.DecodeHash(boc)
	if err != nil {
		return CreditResult{}, fmt.Errorf("malformed boc cell: %w", ErrValidation)
	}

	tx, err := s.indexer.LookupTransaction(ctx, hash)
	if err != nil {
		if errors.Is(err, tonapi.ErrTransactionNotFound) {
			return CreditResult{}, ErrProofNotFound
		}
		return CreditResult{}, fmt.Errorf("lookup transaction: %w", err)
	}

	if !tx.Success {
		return CreditResult{}, ErrProofRejected
	}
	if s.now().Sub(time.Unix(tx.UTime, 0)) > s.cfg.TONFreshness {
		return CreditResult{}, ErrProofStale
	}

	price := s.cfg.TONPriceMonth
	if in.Plan == enums.PlanYear {
		price = s.cfg.TONPriceYear
	}

	paid, ok := paymentToWallet(tx, s.cfg.TONWallet)
	if !ok {
		return CreditResult{}, ErrWrongDestination
	}
	if paid.Sub(price).Abs().GreaterThan(amountTolerance) {
		return CreditResult{}, ErrAmountMismatch
	}

	return s.credit(ctx, in.UserID, in.Plan, enums.PaymentMethodTON, paid, &hash, nil)
}

// paymentToWallet finds the outgoing transfer to the configured wallet and
// returns its amount in whole TON.
func paymentToWallet(tx tonapi.Transaction, wallet string) (decimal.Decimal, bool) {
	for _, msg := range tx.OutMsgs {
		if !sameAddress(msg.Destination.Address, wallet) {
			continue
		}
		// nanoton to TON, exact.
		return decimal.New(msg.Value, -9), true
	}
	return decimal.Decimal{}, false
}

// sameAddress compares two TON addresses by workchain and account id, so the
// raw and friendly renderings of one account always match and unrelated
// accounts never do.
func sameAddress(a, b string) bool {
	pa, errA := parseAnyAddress(a)
	pb, errB := parseAnyAddress(b)
	if errA != nil || errB != nil {
		return false
	}
	return pa.Workchain() == pb.Workchain() && bytes.Equal(pa.Data(), pb.Data())
}

func parseAnyAddress(raw string) (*address.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty address")
	}
	if strings.Contains(trimmed, ":") {
		return address.ParseRawAddr(trimmed)
	}
	return address.ParseAddr(trimmed)
}
