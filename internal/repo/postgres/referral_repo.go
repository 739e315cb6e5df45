package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tunngle1/newversionmusicbot/internal/domain/enums"
	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
)

var (
	ErrReferralNotFound = errors.New("referral not found")
	ErrReferralExists   = errors.New("referral already exists")
)

const referralColumns = `id, referrer_id, referred_id, status, reward_given, created_at, completed_at`

type ReferralRepo struct {
	pool *pgxpool.Pool
}

func NewReferralRepo(pool *pgxpool.Pool) *ReferralRepo {
	return &ReferralRepo{pool: pool}
}

func scanReferral(row pgx.Row) (model.Referral, error) {
	var ref model.Referral
	err := row.Scan(
		&ref.ID, &ref.ReferrerID, &ref.ReferredID, &ref.Status,
		&ref.RewardGiven, &ref.CreatedAt, &ref.CompletedAt,
	)
	return ref, err
}

// Create opens a pending referral. referred_id is unique: a user can only
// ever be referred once.
func (r *ReferralRepo) Create(ctx context.Context, referrerID, referredID int64, now time.Time) (model.Referral, error) {
	if r.pool == nil {
		return model.Referral{}, fmt.Errorf("postgres pool is nil")
	}
	if referrerID <= 0 || referredID <= 0 || referrerID == referredID {
		return model.Referral{}, fmt.Errorf("invalid referral pair")
	}

	ref, err := scanReferral(r.pool.QueryRow(ctx, `
INSERT INTO referrals (referrer_id, referred_id, status, reward_given, created_at)
VALUES ($1, $2, $3, FALSE, $4)
RETURNING `+referralColumns,
		referrerID, referredID, enums.ReferralStatusPending, now))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.Referral{}, ErrReferralExists
		}
		return model.Referral{}, fmt.Errorf("create referral: %w", err)
	}

	return ref, nil
}

// FindPendingByReferredTx locks the pending referral row for the referred
// user, if any. The lock serializes concurrent reward attempts.
func (r *ReferralRepo) FindPendingByReferredTx(ctx context.Context, tx pgx.Tx, referredID int64) (model.Referral, error) {
	if tx == nil {
		return model.Referral{}, fmt.Errorf("nil tx")
	}

	ref, err := scanReferral(tx.QueryRow(ctx, `
SELECT `+referralColumns+`
FROM referrals
WHERE referred_id = $1 AND status = $2 AND reward_given = FALSE
FOR UPDATE
`, referredID, enums.ReferralStatusPending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Referral{}, ErrReferralNotFound
		}
		return model.Referral{}, fmt.Errorf("find pending referral: %w", err)
	}

	return ref, nil
}

// CompleteTx marks a locked referral completed with reward_given set. It only
// transitions pending rows, so a raced second caller updates nothing.
func (r *ReferralRepo) CompleteTx(ctx context.Context, tx pgx.Tx, referralID int64, now time.Time) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("nil tx")
	}

	tag, err := tx.Exec(ctx, `
UPDATE referrals
SET status = $2, reward_given = TRUE, completed_at = $3
WHERE id = $1 AND status = $4 AND reward_given = FALSE
`, referralID, enums.ReferralStatusCompleted, now, enums.ReferralStatusPending)
	if err != nil {
		return false, fmt.Errorf("complete referral: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

type ReferralCounts struct {
	Total     int
	Pending   int
	Completed int
}

func (r *ReferralRepo) CountsByReferrer(ctx context.Context, referrerID int64) (ReferralCounts, error) {
	if r.pool == nil {
		return ReferralCounts{}, fmt.Errorf("postgres pool is nil")
	}

	var counts ReferralCounts
	err := r.pool.QueryRow(ctx, `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE status = $2),
	COUNT(*) FILTER (WHERE status = $3)
FROM referrals
WHERE referrer_id = $1
`, referrerID, enums.ReferralStatusPending, enums.ReferralStatusCompleted).
		Scan(&counts.Total, &counts.Pending, &counts.Completed)
	if err != nil {
		return ReferralCounts{}, fmt.Errorf("count referrals: %w", err)
	}

	return counts, nil
}

func (r *ReferralRepo) ListByReferrer(ctx context.Context, referrerID int64, limit int) ([]model.Referral, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+referralColumns+`
FROM referrals
WHERE referrer_id = $1
ORDER BY created_at DESC
LIMIT $2
`, referrerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	defer rows.Close()

	var refs []model.Referral
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, fmt.Errorf("scan referral row: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referral rows: %w", err)
	}

	return refs, nil
}
