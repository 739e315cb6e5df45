package lyrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
	geniusapi "github.com/tunngle1/newversionmusicbot/internal/infra/genius"
	pgrepo "github.com/tunngle1/newversionmusicbot/internal/repo/postgres"
)

type storeStub struct {
	saved map[string]model.Lyrics
}

func newStoreStub() *storeStub {
	return &storeStub{saved: make(map[string]model.Lyrics)}
}

func key(artist, title string) string {
	return artist + "|" + title
}

func (s *storeStub) Find(_ context.Context, artist, title string) (model.Lyrics, error) {
	l, ok := s.saved[key(artist, title)]
	if !ok {
		return model.Lyrics{}, pgrepo.ErrLyricsNotFound
	}
	return l, nil
}

func (s *storeStub) Save(_ context.Context, l model.Lyrics, now time.Time) (model.Lyrics, error) {
	l.ID = int64(len(s.saved) + 1)
	l.CreatedAt = now
	s.saved[key(l.Artist, l.Title)] = l
	return l, nil
}

type providerStub struct {
	text  string
	url   string
	err   error
	calls int
}

func (p *providerStub) FetchLyrics(_ context.Context, _, _ string) (string, string, error) {
	p.calls++
	return p.text, p.url, p.err
}

func TestGetFetchesThenServesFromCache(t *testing.T) {
	store := newStoreStub()
	provider := &providerStub{text: "la la la", url: "https://genius.com/song"}
	svc := NewService(store, provider, nil)
	ctx := context.Background()

	got, err := svc.Get(ctx, "Muse", "Uprising", "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Text != "la la la" || got.Source != "https://genius.com/song" {
		t.Fatalf("unexpected lyrics %+v", got)
	}

	if _, err := svc.Get(ctx, "Muse", "Uprising", "t1"); err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("second get must hit the cache, provider calls=%d", provider.calls)
	}
}

func TestGetMapsProviderMiss(t *testing.T) {
	svc := NewService(newStoreStub(), &providerStub{err: geniusapi.ErrLyricsNotFound}, nil)

	if _, err := svc.Get(context.Background(), "Nobody", "Nothing", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestGetValidatesInput(t *testing.T) {
	svc := NewService(newStoreStub(), &providerStub{}, nil)

	if _, err := svc.Get(context.Background(), " ", "Song", ""); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("want ErrBadRequest, got %v", err)
	}
}
