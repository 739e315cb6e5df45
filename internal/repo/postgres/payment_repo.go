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

	"github.com/tunngle1/newversionmusicbot/internal/domain/enums"
	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
)

// ErrDuplicatePayment means a completed row with the same transaction hash
// or external event id already exists. Callers treat it as success-no-op.
var ErrDuplicatePayment = errors.New("duplicate payment")

const paymentColumns = `id, user_id, amount, currency, plan, status, method,
	transaction_hash, external_event_id, created_at`

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

func scanPayment(row pgx.Row) (model.Payment, error) {
	var p model.Payment
	err := row.Scan(
		&p.ID, &p.UserID, &p.Amount, &p.Currency, &p.Plan, &p.Status,
		&p.Method, &p.TransactionHash, &p.ExternalEventID, &p.CreatedAt,
	)
	return p, err
}

// RecordTx inserts one payment row inside the caller's transaction. The
// partial unique indexes on transaction_hash and external_event_id guard
// against double-crediting; a conflict surfaces as ErrDuplicatePayment.
func (r *PaymentRepo) RecordTx(ctx context.Context, tx pgx.Tx, p model.Payment) (model.Payment, error) {
	if tx == nil {
		return model.Payment{}, fmt.Errorf("nil tx")
	}
	if p.UserID <= 0 {
		return model.Payment{}, fmt.Errorf("invalid payment user id")
	}

	saved, err := scanPayment(tx.QueryRow(ctx, `
INSERT INTO payments (user_id, amount, currency, plan, status, method, transaction_hash, external_event_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+paymentColumns,
		p.UserID, p.Amount, p.Currency, p.Plan, p.Status, p.Method,
		p.TransactionHash, p.ExternalEventID, p.CreatedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.Payment{}, ErrDuplicatePayment
		}
		return model.Payment{}, fmt.Errorf("record payment: %w", err)
	}

	return saved, nil
}

type PaymentFilter struct {
	UserID int64
	Status enums.PaymentStatus
	Limit  int
	Offset int
}

func (r *PaymentRepo) List(ctx context.Context, filter PaymentFilter) ([]model.Payment, int, error) {
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
	if filter.UserID > 0 {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM payments WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
SELECT %s
FROM payments
WHERE %s
ORDER BY created_at DESC
LIMIT $%d OFFSET $%d
`, paymentColumns, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate payment rows: %w", err)
	}

	return payments, total, nil
}

type RevenueLine struct {
	Currency string
	Total    string
	Count    int
}

// RevenueByCurrency sums completed payments per currency. Amounts are summed
// as numerics in SQL and returned as exact decimal strings.
func (r *PaymentRepo) RevenueByCurrency(ctx context.Context) ([]RevenueLine, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT currency, COALESCE(SUM(amount::numeric), 0)::text, COUNT(*)
FROM payments
WHERE status = 'completed'
GROUP BY currency
ORDER BY currency
`)
	if err != nil {
		return nil, fmt.Errorf("revenue by currency: %w", err)
	}
	defer rows.Close()

	var lines []RevenueLine
	for rows.Next() {
		var line RevenueLine
		if err := rows.Scan(&line.Currency, &line.Total, &line.Count); err != nil {
			return nil, fmt.Errorf("scan revenue line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revenue lines: %w", err)
	}

	return lines, nil
}

func (r *PaymentRepo) CountSince(ctx context.Context, since time.Time) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var count int
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*)
FROM payments
WHERE status = 'completed' AND created_at >= $1
`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count payments since: %w", err)
	}

	return count, nil
}
