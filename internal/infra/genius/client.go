package genius

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var ErrLyricsNotFound = errors.New("genius: lyrics not found")

// Client searches the Genius song catalog and scrapes lyrics from song pages.
type Client struct {
	token      string
	apiBaseURL string
	httpClient *http.Client
}

type songHit struct {
	Result struct {
		Title         string `json:"title"`
		PrimaryArtist struct {
			Name string `json:"name"`
		} `json:"primary_artist"`
		URL string `json:"url"`
	} `json:"result"`
}

func NewClient(token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		token:      strings.TrimSpace(token),
		apiBaseURL: "https://api.genius.com",
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchLyrics finds the best matching song for the artist and title and
// returns the scraped lyrics text together with the song page URL.
func (c *Client) FetchLyrics(ctx context.Context, artist, title string) (lyrics, sourceURL string, err error) {
	if c == nil || c.token == "" {
		return "", "", fmt.Errorf("genius client is not configured")
	}

	pageURL, err := c.findSongURL(ctx, artist, title)
	if err != nil {
		return "", "", err
	}

	text, err := c.scrapeLyrics(ctx, pageURL)
	if err != nil {
		return "", "", err
	}

	return text, pageURL, nil
}

func (c *Client) findSongURL(ctx context.Context, artist, title string) (string, error) {
	query := strings.TrimSpace(artist + " " + title)
	if query == "" {
		return "", fmt.Errorf("empty lyrics query")
	}

	reqURL := c.apiBaseURL + "/search?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("create genius search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call genius search: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("genius search returned status %d", resp.StatusCode)
	}

	var payload struct {
		Response struct {
			Hits []songHit `json:"hits"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode genius search response: %w", err)
	}

	hits := payload.Response.Hits
	if len(hits) == 0 {
		return "", ErrLyricsNotFound
	}

	wantArtist := strings.ToLower(strings.TrimSpace(artist))
	for _, hit := range hits {
		if strings.Contains(strings.ToLower(hit.Result.PrimaryArtist.Name), wantArtist) {
			return hit.Result.URL, nil
		}
	}

	return hits[0].Result.URL, nil
}

func (c *Client) scrapeLyrics(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create genius page request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch genius page: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("genius page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse genius page: %w", err)
	}

	var parts []string
	doc.Find("div[data-lyrics-container='true']").Each(func(_ int, sel *goquery.Selection) {
		html, err := sel.Html()
		if err != nil {
			return
		}
		parts = append(parts, html)
	})
	if len(parts) == 0 {
		return "", ErrLyricsNotFound
	}

	text := cleanLyricsHTML(strings.Join(parts, "\n"))
	if strings.TrimSpace(text) == "" {
		return "", ErrLyricsNotFound
	}

	return text, nil
}

// cleanLyricsHTML turns the lyrics container markup into plain text,
// preserving line breaks and dropping annotation markup.
func cleanLyricsHTML(raw string) string {
	replaced := strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n").Replace(raw)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<div>" + replaced + "</div>"))
	if err != nil {
		return ""
	}
	text := doc.Text()

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blankRun := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			blankRun++
			if blankRun > 1 {
				continue
			}
		} else {
			blankRun = 0
		}
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}
