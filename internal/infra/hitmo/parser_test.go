package hitmo

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const listingHTML = `
<ul class="tracks__list">
  <li class="tracks__item">
    <div class="track__img" style="background-image: url('https://img.example/cover1.jpg');"></div>
    <div class="track__info">
      <div class="track__title">Intro</div>
      <div class="track__desc">The xx</div>
      <div class="track__fulltime">2:07</div>
    </div>
    <a class="track__download-btn" href="https://cdn.example/get/1"></a>
  </li>
  <li class="tracks__item">
    <div class="track__info">
      <div class="track__title">No Link</div>
      <div class="track__desc">Nobody</div>
    </div>
  </li>
  <li class="tracks__item">
    <div class="track__info">
      <div class="track__title">Long One</div>
      <div class="track__desc">Orchestra</div>
      <div class="track__fulltime">1:02:03</div>
    </div>
    <a class="track__download-btn" href="https://cdn.example/get/2"></a>
  </li>
</ul>`

func TestParseTracksExtractsFields(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingHTML))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}

	tracks := ParseTracks(doc)
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(tracks))
	}

	first := tracks[0]
	if first.Title != "Intro" || first.Artist != "The xx" {
		t.Fatalf("unexpected first track: %+v", first)
	}
	if first.Duration != 127 {
		t.Fatalf("expected duration 127, got %d", first.Duration)
	}
	if first.URL != "https://cdn.example/get/1" {
		t.Fatalf("unexpected url %q", first.URL)
	}
	if first.Image != "https://img.example/cover1.jpg" {
		t.Fatalf("unexpected image %q", first.Image)
	}
	if first.ID == "" {
		t.Fatal("expected stable track id")
	}

	if tracks[1].Duration != 3723 {
		t.Fatalf("expected h:mm:ss duration 3723, got %d", tracks[1].Duration)
	}
}

func TestParseTracksSkipsItemsWithoutDownloadLink(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingHTML))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}

	for _, track := range ParseTracks(doc) {
		if track.Title == "No Link" {
			t.Fatal("track without download link must be skipped")
		}
	}
}

func TestParseDuration(t *testing.T) {
	cases := map[string]int{
		"2:07":    127,
		"0:59":    59,
		"1:00:00": 3600,
		"":        0,
		"abc":     0,
		"5":       0,
	}
	for in, want := range cases {
		if got := parseDuration(in); got != want {
			t.Errorf("parseDuration(%q) = %d, want %d", in, got, want)
		}
	}
}
