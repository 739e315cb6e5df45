package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
)

var ErrLyricsNotFound = errors.New("lyrics not found")

type LyricsRepo struct {
	pool *pgxpool.Pool
}

func NewLyricsRepo(pool *pgxpool.Pool) *LyricsRepo {
	return &LyricsRepo{pool: pool}
}

func (r *LyricsRepo) Find(ctx context.Context, artist, title string) (model.Lyrics, error) {
	if r.pool == nil {
		return model.Lyrics{}, fmt.Errorf("postgres pool is nil")
	}

	var l model.Lyrics
	err := r.pool.QueryRow(ctx, `
SELECT id, track_id, title, artist, lyrics_text, source, created_at
FROM lyrics
WHERE lower(artist) = lower($1) AND lower(title) = lower($2)
`, strings.TrimSpace(artist), strings.TrimSpace(title)).Scan(
		&l.ID, &l.TrackID, &l.Title, &l.Artist, &l.Text, &l.Source, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Lyrics{}, ErrLyricsNotFound
		}
		return model.Lyrics{}, fmt.Errorf("find lyrics: %w", err)
	}

	return l, nil
}

// Save upserts by (artist, title); a concurrent fetch of the same song must
// not produce duplicate cache rows.
func (r *LyricsRepo) Save(ctx context.Context, l model.Lyrics, now time.Time) (model.Lyrics, error) {
	if r.pool == nil {
		return model.Lyrics{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(l.Text) == "" {
		return model.Lyrics{}, fmt.Errorf("empty lyrics text")
	}

	var saved model.Lyrics
	err := r.pool.QueryRow(ctx, `
INSERT INTO lyrics (track_id, title, artist, lyrics_text, source, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (lower(artist), lower(title)) DO UPDATE SET
	lyrics_text = EXCLUDED.lyrics_text,
	source = EXCLUDED.source
RETURNING id, track_id, title, artist, lyrics_text, source, created_at
`, l.TrackID, strings.TrimSpace(l.Title), strings.TrimSpace(l.Artist), l.Text, l.Source, now).Scan(
		&saved.ID, &saved.TrackID, &saved.Title, &saved.Artist, &saved.Text, &saved.Source, &saved.CreatedAt)
	if err != nil {
		return model.Lyrics{}, fmt.Errorf("save lyrics: %w", err)
	}

	return saved, nil
}
