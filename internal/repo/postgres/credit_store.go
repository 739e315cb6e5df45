package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
)

// CreditStore commits a payment row and the matching subscription extension
// atomically. A crash between the two leaves nothing applied.
type CreditStore struct {
	pool     *pgxpool.Pool
	payments *PaymentRepo
	users    *UserRepo
}

func NewCreditStore(pool *pgxpool.Pool, payments *PaymentRepo, users *UserRepo) *CreditStore {
	return &CreditStore{pool: pool, payments: payments, users: users}
}

// CreditInTx inserts the payment and extends premium by days in one
// transaction. Duplicate hashes or event ids surface as ErrDuplicatePayment
// with no state change.
func (s *CreditStore) CreditInTx(ctx context.Context, p model.Payment, days int) (model.Payment, time.Time, error) {
	var (
		saved model.Payment
		until time.Time
	)
	err := WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		saved, err = s.payments.RecordTx(ctx, tx, p)
		if err != nil {
			return err
		}
		until, err = s.users.ExtendPremiumTx(ctx, tx, p.UserID, days, p.CreatedAt)
		return err
	})
	if err != nil {
		return model.Payment{}, time.Time{}, err
	}

	return saved, until, nil
}

// RewardStore pays out a pending referral: the completion mark and the
// referrer's bonus extension commit together.
type RewardStore struct {
	pool      *pgxpool.Pool
	referrals *ReferralRepo
	users     *UserRepo
}

func NewRewardStore(pool *pgxpool.Pool, referrals *ReferralRepo, users *UserRepo) *RewardStore {
	return &RewardStore{pool: pool, referrals: referrals, users: users}
}

// RewardPendingReferral completes the referred user's pending referral and
// extends the referrer by bonusDays. It reports rewarded=false when there is
// no pending row, which makes repeated payment events a no-op.
func (s *RewardStore) RewardPendingReferral(ctx context.Context, referredID int64, bonusDays int, now time.Time) (int64, bool, error) {
	var (
		referrerID int64
		rewarded   bool
	)
	err := WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		ref, err := s.referrals.FindPendingByReferredTx(ctx, tx, referredID)
		if err != nil {
			return err
		}

		done, err := s.referrals.CompleteTx(ctx, tx, ref.ID, now)
		if err != nil {
			return err
		}
		if !done {
			return nil
		}

		if _, err := s.users.ExtendPremiumTx(ctx, tx, ref.ReferrerID, bonusDays, now); err != nil {
			return err
		}
		referrerID = ref.ReferrerID
		rewarded = true
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrReferralNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("reward pending referral: %w", err)
	}

	return referrerID, rewarded, nil
}
