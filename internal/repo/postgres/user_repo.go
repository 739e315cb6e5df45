package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

const userColumns = `id, username, first_name, last_name, is_admin, is_premium, is_premium_pro,
	is_blocked, download_count, joined_at, trial_started_at, trial_expires_at,
	premium_expires_at, referral_code, referred_by, subscription_expired_at,
	tracks_deletion_scheduled_at`

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.IsAdmin, &u.IsPremium,
		&u.IsPremiumPro, &u.IsBlocked, &u.DownloadCount, &u.JoinedAt,
		&u.TrialStartedAt, &u.TrialExpiresAt, &u.PremiumExpiresAt,
		&u.ReferralCode, &u.ReferredBy, &u.SubscriptionEnded, &u.DeletionDueAt,
	)
	return u, err
}

func (r *UserRepo) FindByID(ctx context.Context, id int64) (model.User, error) {
	if r.pool == nil {
		return model.User{}, fmt.Errorf("postgres pool is nil")
	}
	if id <= 0 {
		return model.User{}, fmt.Errorf("invalid user id")
	}

	u, err := scanUser(r.pool.QueryRow(ctx, `
SELECT `+userColumns+`
FROM users
WHERE id = $1
`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("find user: %w", err)
	}

	return u, nil
}

func (r *UserRepo) Create(ctx context.Context, u model.User) (model.User, error) {
	if r.pool == nil {
		return model.User{}, fmt.Errorf("postgres pool is nil")
	}
	if u.ID <= 0 {
		return model.User{}, fmt.Errorf("invalid user id")
	}

	created, err := scanUser(r.pool.QueryRow(ctx, `
INSERT INTO users (
	id, username, first_name, last_name, is_admin, joined_at,
	trial_started_at, trial_expires_at, referred_by
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+userColumns+`
`, u.ID, u.Username, u.FirstName, u.LastName, u.IsAdmin, u.JoinedAt,
		u.TrialStartedAt, u.TrialExpiresAt, u.ReferredBy))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.User{}, ErrUserExists
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	return created, nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id int64, username, firstName, lastName string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if id <= 0 {
		return fmt.Errorf("invalid user id")
	}

	if _, err := r.pool.Exec(ctx, `
UPDATE users
SET username = $2, first_name = $3, last_name = $4
WHERE id = $1
`, id, strings.TrimSpace(username), strings.TrimSpace(firstName), strings.TrimSpace(lastName)); err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}

	return nil
}

// ExtendPremium adds days on top of a future expiration or starts a fresh
// window from now, and reports the resulting expiration. The extension also
// clears any pending revocation state.
func (r *UserRepo) ExtendPremium(ctx context.Context, id int64, days int, now time.Time) (time.Time, error) {
	if r.pool == nil {
		return time.Time{}, fmt.Errorf("postgres pool is nil")
	}
	if id <= 0 || days <= 0 {
		return time.Time{}, fmt.Errorf("invalid premium extension")
	}

	var until time.Time
	err := r.pool.QueryRow(ctx, `
UPDATE users
SET is_premium = TRUE,
	premium_expires_at = CASE
		WHEN premium_expires_at IS NOT NULL AND premium_expires_at > $3
			THEN premium_expires_at + make_interval(days => $2)
		ELSE $3 + make_interval(days => $2)
	END,
	subscription_expired_at = NULL,
	tracks_deletion_scheduled_at = NULL
WHERE id = $1
RETURNING premium_expires_at
`, id, days, now).Scan(&until)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrUserNotFound
		}
		return time.Time{}, fmt.Errorf("extend premium: %w", err)
	}

	return until, nil
}

// ExtendPremiumTx is ExtendPremium running inside the caller's transaction,
// used when the extension must commit atomically with other rows.
func (r *UserRepo) ExtendPremiumTx(ctx context.Context, tx pgx.Tx, id int64, days int, now time.Time) (time.Time, error) {
	if tx == nil {
		return time.Time{}, fmt.Errorf("nil tx")
	}
	if id <= 0 || days <= 0 {
		return time.Time{}, fmt.Errorf("invalid premium extension")
	}

	var until time.Time
	err := tx.QueryRow(ctx, `
UPDATE users
SET is_premium = TRUE,
	premium_expires_at = CASE
		WHEN premium_expires_at IS NOT NULL AND premium_expires_at > $3
			THEN premium_expires_at + make_interval(days => $2)
		ELSE $3 + make_interval(days => $2)
	END,
	subscription_expired_at = NULL,
	tracks_deletion_scheduled_at = NULL
WHERE id = $1
RETURNING premium_expires_at
`, id, days, now).Scan(&until)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrUserNotFound
		}
		return time.Time{}, fmt.Errorf("extend premium in tx: %w", err)
	}

	return until, nil
}

func (r *UserRepo) SetReferralCode(ctx context.Context, id int64, code string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if id <= 0 || strings.TrimSpace(code) == "" {
		return fmt.Errorf("invalid referral code assignment")
	}

	if _, err := r.pool.Exec(ctx, `
UPDATE users
SET referral_code = $2
WHERE id = $1 AND referral_code IS NULL
`, id, strings.TrimSpace(code)); err != nil {
		return fmt.Errorf("set referral code: %w", err)
	}

	return nil
}

func (r *UserRepo) FindByReferralCode(ctx context.Context, code string) (model.User, error) {
	if r.pool == nil {
		return model.User{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(code) == "" {
		return model.User{}, ErrUserNotFound
	}

	u, err := scanUser(r.pool.QueryRow(ctx, `
SELECT `+userColumns+`
FROM users
WHERE referral_code = $1
`, strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("find user by referral code: %w", err)
	}

	return u, nil
}

// SetReferrer records who invited the user. It refuses self-referral and
// never overwrites an existing referrer.
func (r *UserRepo) SetReferrer(ctx context.Context, id, referrerID int64) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	if id <= 0 || referrerID <= 0 || id == referrerID {
		return false, nil
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET referred_by = $2
WHERE id = $1 AND referred_by IS NULL
`, id, referrerID)
	if err != nil {
		return false, fmt.Errorf("set referrer: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *UserRepo) IncrementDownloadCount(ctx context.Context, id int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	if _, err := r.pool.Exec(ctx, `
UPDATE users
SET download_count = download_count + 1
WHERE id = $1
`, id); err != nil {
		return fmt.Errorf("increment download count: %w", err)
	}

	return nil
}

// GrantPatch is a sparse flag update: only non-nil fields are applied.
// TrialDays restarts the trial window from now; zero clears it.
type GrantPatch struct {
	IsAdmin      *bool
	IsPremium    *bool
	IsPremiumPro *bool
	IsBlocked    *bool
	TrialDays    *int
}

func (p GrantPatch) Empty() bool {
	return p.flagsEmpty() && p.TrialDays == nil
}

func (p GrantPatch) flagsEmpty() bool {
	return p.IsAdmin == nil && p.IsPremium == nil && p.IsPremiumPro == nil && p.IsBlocked == nil
}

// ApplyGrantTx applies the non-nil patch fields inside the caller's
// transaction and returns the updated row.
func (r *UserRepo) ApplyGrantTx(ctx context.Context, tx pgx.Tx, id int64, patch GrantPatch) (model.User, error) {
	if tx == nil {
		return model.User{}, fmt.Errorf("nil tx")
	}
	if id <= 0 {
		return model.User{}, fmt.Errorf("invalid user id")
	}

	sets := make([]string, 0, 4)
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.IsAdmin != nil {
		add("is_admin", *patch.IsAdmin)
	}
	if patch.IsPremium != nil {
		add("is_premium", *patch.IsPremium)
	}
	if patch.IsPremiumPro != nil {
		add("is_premium_pro", *patch.IsPremiumPro)
	}
	if patch.IsBlocked != nil {
		add("is_blocked", *patch.IsBlocked)
	}
	if len(sets) == 0 {
		return model.User{}, fmt.Errorf("empty grant patch")
	}

	query := fmt.Sprintf(`
UPDATE users
SET %s
WHERE id = $1
RETURNING `+userColumns, strings.Join(sets, ", "))

	u, err := scanUser(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("apply grant: %w", err)
	}

	return u, nil
}

// SetTrialTx restarts the trial window from now for a positive day count
// and clears it for zero or less. It returns the new window bounds.
func (r *UserRepo) SetTrialTx(ctx context.Context, tx pgx.Tx, id int64, days int, now time.Time) (*time.Time, *time.Time, error) {
	if tx == nil {
		return nil, nil, fmt.Errorf("nil tx")
	}

	if days <= 0 {
		if _, err := tx.Exec(ctx, `
UPDATE users
SET trial_started_at = NULL,
	trial_expires_at = NULL
WHERE id = $1
`, id); err != nil {
			return nil, nil, fmt.Errorf("clear trial: %w", err)
		}
		return nil, nil, nil
	}

	until := now.Add(time.Duration(days) * 24 * time.Hour)
	if _, err := tx.Exec(ctx, `
UPDATE users
SET trial_started_at = $2,
	trial_expires_at = $3
WHERE id = $1
`, id, now, until); err != nil {
		return nil, nil, fmt.Errorf("set trial: %w", err)
	}

	return &now, &until, nil
}

// ApplyGrant runs a sparse admin patch in one transaction: flag updates,
// an optional premium extension, and on explicit premium revocation the
// post-expiry deletion schedule. It reports whether premium was revoked.
func (r *UserRepo) ApplyGrant(ctx context.Context, id int64, patch GrantPatch, premiumDays int, now time.Time, deletionGrace time.Duration) (model.User, bool, error) {
	if r.pool == nil {
		return model.User{}, false, fmt.Errorf("postgres pool is nil")
	}
	if id <= 0 {
		return model.User{}, false, fmt.Errorf("invalid user id")
	}
	if patch.Empty() && premiumDays <= 0 {
		return model.User{}, false, fmt.Errorf("empty grant")
	}

	var (
		updated model.User
		revoked bool
	)
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		before, err := scanUser(tx.QueryRow(ctx, `
SELECT `+userColumns+`
FROM users
WHERE id = $1
FOR UPDATE
`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user for grant: %w", err)
		}

		updated = before
		if !patch.flagsEmpty() {
			updated, err = r.ApplyGrantTx(ctx, tx, id, patch)
			if err != nil {
				return err
			}
		}

		if patch.TrialDays != nil {
			start, end, err := r.SetTrialTx(ctx, tx, id, *patch.TrialDays, now)
			if err != nil {
				return err
			}
			updated.TrialStartedAt = start
			updated.TrialExpiresAt = end
		}

		if premiumDays > 0 {
			until, err := r.ExtendPremiumTx(ctx, tx, id, premiumDays, now)
			if err != nil {
				return err
			}
			updated.IsPremium = true
			updated.PremiumExpiresAt = &until
		}

		if patch.IsPremium != nil && !*patch.IsPremium && before.IsPremium {
			deletionAt := now.Add(deletionGrace)
			if err := r.MarkSubscriptionEnded(ctx, tx, id, now, deletionAt); err != nil {
				return err
			}
			updated.IsPremium = false
			updated.IsPremiumPro = false
			updated.PremiumExpiresAt = nil
			updated.SubscriptionEnded = &now
			updated.DeletionDueAt = &deletionAt
			revoked = true
		}

		return nil
	})
	if err != nil {
		return model.User{}, false, err
	}

	return updated, revoked, nil
}

// MarkSubscriptionEnded flags an explicit premium revocation and schedules
// delivered-content deletion for deletionAt.
func (r *UserRepo) MarkSubscriptionEnded(ctx context.Context, tx pgx.Tx, id int64, endedAt, deletionAt time.Time) error {
	if tx == nil {
		return fmt.Errorf("nil tx")
	}

	if _, err := tx.Exec(ctx, `
UPDATE users
SET is_premium = FALSE,
	is_premium_pro = FALSE,
	premium_expires_at = NULL,
	subscription_expired_at = $2,
	tracks_deletion_scheduled_at = $3
WHERE id = $1
`, id, endedAt, deletionAt); err != nil {
		return fmt.Errorf("mark subscription ended: %w", err)
	}

	return nil
}

func (r *UserRepo) DueForCleanup(ctx context.Context, now time.Time) ([]model.User, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+userColumns+`
FROM users
WHERE tracks_deletion_scheduled_at IS NOT NULL AND tracks_deletion_scheduled_at <= $1
ORDER BY tracks_deletion_scheduled_at
`, now)
	if err != nil {
		return nil, fmt.Errorf("select users due for cleanup: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user due for cleanup: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users due for cleanup: %w", err)
	}

	return users, nil
}

func (r *UserRepo) ClearDeletionSchedule(ctx context.Context, id int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	if _, err := r.pool.Exec(ctx, `
UPDATE users
SET tracks_deletion_scheduled_at = NULL
WHERE id = $1
`, id); err != nil {
		return fmt.Errorf("clear deletion schedule: %w", err)
	}

	return nil
}

type UserFilter struct {
	Query   string
	Premium *bool
	Blocked *bool
	Limit   int
	Offset  int
}

func (r *UserRepo) List(ctx context.Context, filter UserFilter) ([]model.User, int, error) {
	if r.pool == nil {
		return nil, 0, fmt.Errorf("postgres pool is nil")
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	where := []string{"TRUE"}
	args := []any{}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		where = append(where, fmt.Sprintf(
			"(username ILIKE $%d OR first_name ILIKE $%d OR CAST(id AS TEXT) LIKE $%d)",
			len(args), len(args), len(args)))
	}
	if filter.Premium != nil {
		args = append(args, *filter.Premium)
		where = append(where, fmt.Sprintf("is_premium = $%d", len(args)))
	}
	if filter.Blocked != nil {
		args = append(args, *filter.Blocked)
		where = append(where, fmt.Sprintf("is_blocked = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
SELECT %s
FROM users
WHERE %s
ORDER BY joined_at DESC
LIMIT $%d OFFSET $%d
`, userColumns, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate user rows: %w", err)
	}

	return users, total, nil
}

type UserStats struct {
	Total       int
	Premium     int
	PremiumPro  int
	Blocked     int
	ActiveTrial int
	NewToday    int
}

func (r *UserRepo) Stats(ctx context.Context, now time.Time) (UserStats, error) {
	if r.pool == nil {
		return UserStats{}, fmt.Errorf("postgres pool is nil")
	}

	var stats UserStats
	err := r.pool.QueryRow(ctx, `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE is_premium),
	COUNT(*) FILTER (WHERE is_premium_pro),
	COUNT(*) FILTER (WHERE is_blocked),
	COUNT(*) FILTER (WHERE trial_expires_at IS NOT NULL AND trial_expires_at > $1
		AND NOT is_premium AND NOT is_blocked),
	COUNT(*) FILTER (WHERE joined_at >= date_trunc('day', $1::timestamptz))
FROM users
`, now).Scan(&stats.Total, &stats.Premium, &stats.PremiumPro, &stats.Blocked,
		&stats.ActiveTrial, &stats.NewToday)
	if err != nil {
		return UserStats{}, fmt.Errorf("user stats: %w", err)
	}

	return stats, nil
}

func (r *UserRepo) TopByDownloads(ctx context.Context, limit int) ([]model.User, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+userColumns+`
FROM users
WHERE download_count > 0
ORDER BY download_count DESC, joined_at
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("top users by downloads: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan top user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top user rows: %w", err)
	}

	return users, nil
}

type ActivityBucket struct {
	Day    time.Time
	Joined int
}

func (r *UserRepo) ActivityByDay(ctx context.Context, since time.Time) ([]ActivityBucket, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT date_trunc('day', joined_at) AS day, COUNT(*)
FROM users
WHERE joined_at >= $1
GROUP BY day
ORDER BY day
`, since)
	if err != nil {
		return nil, fmt.Errorf("user activity by day: %w", err)
	}
	defer rows.Close()

	var buckets []ActivityBucket
	for rows.Next() {
		var b ActivityBucket
		if err := rows.Scan(&b.Day, &b.Joined); err != nil {
			return nil, fmt.Errorf("scan activity bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity buckets: %w", err)
	}

	return buckets, nil
}

func (r *UserRepo) AllChatIDs(ctx context.Context) ([]int64, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id
FROM users
WHERE NOT is_blocked
ORDER BY id
`)
	if err != nil {
		return nil, fmt.Errorf("select chat ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat ids: %w", err)
	}

	return ids, nil
}
