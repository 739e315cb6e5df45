package hitmo

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/tunngle1/newversionmusicbot/internal/domain/model"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Client scrapes the music catalog site for track listings.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the catalog root, used by the stream proxy as a Referer.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Search fetches one result page for the query. Page numbering starts at 0.
func (c *Client) Search(ctx context.Context, query string, page int) ([]model.Track, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty search query")
	}

	params := url.Values{}
	params.Set("q", query)
	path := "/search"
	if page > 0 {
		path = fmt.Sprintf("/search/start/%d", page*48)
	}

	return c.fetchTracks(ctx, path+"?"+params.Encode())
}

// GenreTracks fetches the listing for a genre page by its catalog id.
func (c *Client) GenreTracks(ctx context.Context, genreID string, page int) ([]model.Track, error) {
	if strings.TrimSpace(genreID) == "" {
		return nil, fmt.Errorf("empty genre id")
	}

	path := "/genre/" + url.PathEscape(genreID)
	if page > 0 {
		path = fmt.Sprintf("%s/start/%d", path, page*48)
	}

	return c.fetchTracks(ctx, path)
}

func (c *Client) fetchTracks(ctx context.Context, path string) ([]model.Track, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("hitmo client is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create catalog request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog page: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse catalog page: %w", err)
	}

	return ParseTracks(doc), nil
}

// ParseTracks extracts track descriptors from a catalog listing document.
func ParseTracks(doc *goquery.Document) []model.Track {
	var tracks []model.Track

	doc.Find("li.tracks__item").Each(func(_ int, item *goquery.Selection) {
		downloadURL, ok := item.Find("a.track__download-btn").Attr("href")
		if !ok || strings.TrimSpace(downloadURL) == "" {
			return
		}

		title := strings.TrimSpace(item.Find(".track__title").Text())
		artist := strings.TrimSpace(item.Find(".track__desc").Text())
		if title == "" || artist == "" {
			return
		}

		track := model.Track{
			ID:       trackID(downloadURL),
			Title:    title,
			Artist:   artist,
			Duration: parseDuration(item.Find(".track__fulltime").Text()),
			URL:      downloadURL,
			Image:    extractImage(item.Find(".track__img")),
		}
		tracks = append(tracks, track)
	})

	return tracks
}

// trackID derives a stable identifier from the download URL so the same
// track keeps the same id across searches.
func trackID(downloadURL string) string {
	sum := sha1.Sum([]byte(downloadURL))
	return hex.EncodeToString(sum[:8])
}

// parseDuration converts a "m:ss" or "h:mm:ss" label into seconds.
func parseDuration(label string) int {
	parts := strings.Split(strings.TrimSpace(label), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}

	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0
		}
		total = total*60 + n
	}

	return total
}

func extractImage(sel *goquery.Selection) string {
	style, ok := sel.Attr("style")
	if !ok {
		return ""
	}

	start := strings.Index(style, "url(")
	if start < 0 {
		return ""
	}
	rest := style[start+len("url("):]
	end := strings.Index(rest, ")")
	if end < 0 {
		return ""
	}

	return strings.Trim(rest[:end], "'\" ")
}
