package music

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
	redisrepo "github.com/tunngle1/newversionmusicbot/internal/repo/redis"
)

type catalogStub struct {
	pages    map[int][]model.Track
	searches int
}

func (c *catalogStub) Search(_ context.Context, _ string, page int) ([]model.Track, error) {
	c.searches++
	return c.pages[page], nil
}

func (c *catalogStub) GenreTracks(_ context.Context, _ string, page int) ([]model.Track, error) {
	return c.pages[page], nil
}

func (c *catalogStub) BaseURL() string {
	return "https://music.example"
}

func newServiceForTest(t *testing.T, catalog *catalogStub) *Service {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return NewService(catalog, redisrepo.NewCacheRepo(client), time.Minute, nil)
}

func TestSearchRewritesURLsAndCaches(t *testing.T) {
	catalog := &catalogStub{pages: map[int][]model.Track{
		0: {{ID: "1", Title: "Intro", Artist: "The xx", URL: "https://cdn.example/get/1"}},
	}}
	svc := newServiceForTest(t, catalog)
	ctx := context.Background()

	tracks, err := svc.Search(ctx, "the xx", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(tracks))
	}
	if !strings.HasPrefix(tracks[0].URL, "/api/stream?url=") {
		t.Fatalf("url not rewritten: %q", tracks[0].URL)
	}

	if _, err := svc.Search(ctx, "the xx", 0); err != nil {
		t.Fatalf("cached search: %v", err)
	}
	if catalog.searches != 1 {
		t.Fatalf("second search should hit the cache, calls=%d", catalog.searches)
	}
}

func TestDeepSearchFiltersByArtist(t *testing.T) {
	catalog := &catalogStub{pages: map[int][]model.Track{
		0: {
			{ID: "1", Title: "Song A", Artist: "Muse", URL: "u1"},
			{ID: "2", Title: "Muse Tribute", Artist: "Cover Band", URL: "u2"},
		},
		1: {
			{ID: "3", Title: "Song B", Artist: "Muse", URL: "u3"},
		},
	}}
	svc := newServiceForTest(t, catalog)

	tracks, err := svc.SearchByArtist(context.Background(), "muse")
	if err != nil {
		t.Fatalf("search by artist: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(tracks))
	}
	for _, track := range tracks {
		if !strings.EqualFold(track.Artist, "Muse") {
			t.Fatalf("non-matching artist in results: %+v", track)
		}
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	svc := newServiceForTest(t, &catalogStub{})

	if _, err := svc.Search(context.Background(), "   ", 0); err != ErrEmptyQuery {
		t.Fatalf("want ErrEmptyQuery, got %v", err)
	}
}
