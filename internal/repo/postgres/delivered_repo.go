package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
)

type DeliveredRepo struct {
	pool *pgxpool.Pool
}

func NewDeliveredRepo(pool *pgxpool.Pool) *DeliveredRepo {
	return &DeliveredRepo{pool: pool}
}

func (r *DeliveredRepo) Record(ctx context.Context, d model.DeliveredTrack, now time.Time) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if d.UserID <= 0 || d.ChatID == 0 || d.MessageID <= 0 {
		return fmt.Errorf("invalid delivered track")
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO delivered_tracks (user_id, chat_id, message_id, track_id, created_at)
VALUES ($1, $2, $3, $4, $5)
`, d.UserID, d.ChatID, d.MessageID, d.TrackID, now); err != nil {
		return fmt.Errorf("record delivered track: %w", err)
	}

	return nil
}

func (r *DeliveredRepo) ListByUser(ctx context.Context, userID int64) ([]model.DeliveredTrack, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, chat_id, message_id, track_id, created_at
FROM delivered_tracks
WHERE user_id = $1
ORDER BY created_at
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list delivered tracks: %w", err)
	}
	defer rows.Close()

	var tracks []model.DeliveredTrack
	for rows.Next() {
		var d model.DeliveredTrack
		if err := rows.Scan(&d.ID, &d.UserID, &d.ChatID, &d.MessageID, &d.TrackID, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan delivered track: %w", err)
		}
		tracks = append(tracks, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivered tracks: %w", err)
	}

	return tracks, nil
}

func (r *DeliveredRepo) DeleteByUser(ctx context.Context, userID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	if _, err := r.pool.Exec(ctx, `
DELETE FROM delivered_tracks
WHERE user_id = $1
`, userID); err != nil {
		return fmt.Errorf("delete delivered tracks: %w", err)
	}

	return nil
}
