package music

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
	redisrepo "github.com/tunngle1/newversionmusicbot/internal/repo/redis"
)

const (
	maxDeepSearchPages = 3
	streamPathPrefix   = "/api/stream?url="
)

var ErrEmptyQuery = errors.New("empty query")

// Catalog is the scraper behind the search surface.
type Catalog interface {
	Search(ctx context.Context, query string, page int) ([]model.Track, error)
	GenreTracks(ctx context.Context, genreID string, page int) ([]model.Track, error)
	BaseURL() string
}

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type Service struct {
	catalog  Catalog
	cache    Cache
	cacheTTL time.Duration
	log      *zap.Logger
}

func NewService(catalog Catalog, cache Cache, cacheTTL time.Duration, log *zap.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		catalog:  catalog,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

// CatalogBaseURL is exposed for the stream proxy's Referer header.
func (s *Service) CatalogBaseURL() string {
	return s.catalog.BaseURL()
}

// Search returns one page of results. Track URLs are rewritten to the local
// stream proxy so the frontend never talks to the catalog host directly.
func (s *Service) Search(ctx context.Context, query string, page int) ([]model.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if page < 0 {
		page = 0
	}

	key := fmt.Sprintf("search:%s:%d", strings.ToLower(query), page)
	if tracks, ok := s.cached(ctx, key); ok {
		return tracks, nil
	}

	tracks, err := s.catalog.Search(ctx, query, page)
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}
	tracks = s.rewriteURLs(tracks)

	s.store(ctx, key, tracks)
	return tracks, nil
}

// SearchByArtist walks several result pages and keeps tracks whose artist
// matches the query.
func (s *Service) SearchByArtist(ctx context.Context, artist string) ([]model.Track, error) {
	return s.deepSearch(ctx, artist, "artist", func(t model.Track, q string) bool {
		return strings.Contains(strings.ToLower(t.Artist), q)
	})
}

// SearchByTrack walks several result pages and keeps tracks whose title
// matches the query.
func (s *Service) SearchByTrack(ctx context.Context, title string) ([]model.Track, error) {
	return s.deepSearch(ctx, title, "track", func(t model.Track, q string) bool {
		return strings.Contains(strings.ToLower(t.Title), q)
	})
}

func (s *Service) deepSearch(ctx context.Context, query, kind string, match func(model.Track, string) bool) ([]model.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	key := fmt.Sprintf("deep:%s:%s", kind, strings.ToLower(query))
	if tracks, ok := s.cached(ctx, key); ok {
		return tracks, nil
	}

	lowered := strings.ToLower(query)
	var matched []model.Track
	for page := 0; page < maxDeepSearchPages; page++ {
		tracks, err := s.catalog.Search(ctx, query, page)
		if err != nil {
			if page == 0 {
				return nil, fmt.Errorf("catalog search: %w", err)
			}
			// Later pages are best effort.
			s.log.Warn("deep search page failed", zap.Int("page", page), zap.Error(err))
			break
		}
		if len(tracks) == 0 {
			break
		}
		for _, track := range tracks {
			if match(track, lowered) {
				matched = append(matched, track)
			}
		}
	}
	matched = s.rewriteURLs(matched)

	s.store(ctx, key, matched)
	return matched, nil
}

// GenreTracks lists a genre page from the catalog.
func (s *Service) GenreTracks(ctx context.Context, genreID string, page int) ([]model.Track, error) {
	genreID = strings.TrimSpace(genreID)
	if genreID == "" {
		return nil, ErrEmptyQuery
	}
	if page < 0 {
		page = 0
	}

	key := fmt.Sprintf("genre:%s:%d", strings.ToLower(genreID), page)
	if tracks, ok := s.cached(ctx, key); ok {
		return tracks, nil
	}

	tracks, err := s.catalog.GenreTracks(ctx, genreID, page)
	if err != nil {
		return nil, fmt.Errorf("catalog genre: %w", err)
	}
	tracks = s.rewriteURLs(tracks)

	s.store(ctx, key, tracks)
	return tracks, nil
}

// RadioStations is the curated station list. Stream URLs are public
// broadcast endpoints and are served as-is.
func (s *Service) RadioStations() []model.RadioStation {
	return []model.RadioStation{
		{ID: "record", Name: "Radio Record", Genre: "dance", URL: "https://radiorecord.hostingradio.ru/rr_main96.aacp", Image: "https://www.radiorecord.ru/images/logo.png"},
		{ID: "energy", Name: "NRJ", Genre: "pop", URL: "https://pub0302.101.ru:8443/stream/air/aac/64/99", Image: ""},
		{ID: "chillout", Name: "Record Chill-Out", Genre: "chillout", URL: "https://radiorecord.hostingradio.ru/chil96.aacp", Image: ""},
		{ID: "rock", Name: "Nashe Radio", Genre: "rock", URL: "https://nashe1.hostingradio.ru/nashe-256", Image: ""},
		{ID: "jazz", Name: "Radio Jazz", Genre: "jazz", URL: "https://nashe1.hostingradio.ru/jazz-128.mp3", Image: ""},
	}
}

func (s *Service) rewriteURLs(tracks []model.Track) []model.Track {
	out := make([]model.Track, len(tracks))
	for i, track := range tracks {
		track.URL = streamPathPrefix + url.QueryEscape(track.URL)
		out[i] = track
	}
	return out
}

func (s *Service) cached(ctx context.Context, key string) ([]model.Track, bool) {
	if s.cache == nil {
		return nil, false
	}

	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redisrepo.ErrCacheMiss) {
			s.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var tracks []model.Track
	if err := json.Unmarshal(raw, &tracks); err != nil {
		return nil, false
	}
	return tracks, true
}

func (s *Service) store(ctx context.Context, key string, tracks []model.Track) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(tracks)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
