package lyrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
	geniusapi "github.com/tunngle1/newversionmusicbot/internal/infra/genius"
	pgrepo "github.com/tunngle1/newversionmusicbot/internal/repo/postgres"
)

var (
	ErrNotFound   = errors.New("lyrics not found")
	ErrBadRequest = errors.New("artist and title are required")
)

type Store interface {
	Find(ctx context.Context, artist, title string) (model.Lyrics, error)
	Save(ctx context.Context, l model.Lyrics, now time.Time) (model.Lyrics, error)
}

type Provider interface {
	FetchLyrics(ctx context.Context, artist, title string) (lyrics, sourceURL string, err error)
}

// Service serves lyrics from the database cache, falling back to the
// external provider and persisting what it finds.
type Service struct {
	store    Store
	provider Provider
	log      *zap.Logger
	now      func() time.Time
}

func NewService(store Store, provider Provider, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, provider: provider, log: log, now: time.Now}
}

func (s *Service) Get(ctx context.Context, artist, title, trackID string) (model.Lyrics, error) {
	artist = strings.TrimSpace(artist)
	title = strings.TrimSpace(title)
	if artist == "" || title == "" {
		return model.Lyrics{}, ErrBadRequest
	}

	cached, err := s.store.Find(ctx, artist, title)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, pgrepo.ErrLyricsNotFound) {
		return model.Lyrics{}, fmt.Errorf("lyrics cache lookup: %w", err)
	}

	if s.provider == nil {
		return model.Lyrics{}, ErrNotFound
	}

	text, source, err := s.provider.FetchLyrics(ctx, artist, title)
	if err != nil {
		if errors.Is(err, geniusapi.ErrLyricsNotFound) {
			return model.Lyrics{}, ErrNotFound
		}
		return model.Lyrics{}, fmt.Errorf("fetch lyrics: %w", err)
	}

	saved, err := s.store.Save(ctx, model.Lyrics{
		TrackID: trackID,
		Title:   title,
		Artist:  artist,
		Text:    text,
		Source:  source,
	}, s.now())
	if err != nil {
		// Serve what we fetched even if caching failed.
		s.log.Warn("lyrics cache write failed",
			zap.String("artist", artist),
			zap.String("title", title),
			zap.Error(err))
		return model.Lyrics{TrackID: trackID, Title: title, Artist: artist, Text: text, Source: source}, nil
	}

	return saved, nil
}
