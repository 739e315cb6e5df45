package handlers

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	httperrors "github.com/tunngle1/newversionmusicbot/internal/transport/http/errors"
)

// StreamHandler reverse-proxies track audio so the Mini App never talks to
// the catalog host directly. Range requests pass through untouched, which
// is what makes in-app seeking work.
type StreamHandler struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewStreamHandler(baseURL string, timeout time.Duration, log *zap.Logger) *StreamHandler {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &StreamHandler{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

func (h *StreamHandler) Handle(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeBadRequest(w, "MISSING_URL", "url query parameter is required")
		return
	}

	target, err := url.Parse(rawURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
		writeBadRequest(w, "INVALID_URL", "url is not a valid http address")
		return
	}
	// Only the catalog host may be proxied; anything else would make this
	// endpoint an open relay.
	if !h.allowedHost(target.Host) {
		writeForbidden(w, "FORBIDDEN_HOST", "url host is not allowed")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		writeBadRequest(w, "INVALID_URL", "url is not a valid http address")
		return
	}
	req.Header.Set("Referer", h.baseURL+"/")
	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.log.Warn("stream proxy request failed", zap.String("url", target.String()), zap.Error(err))
		httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
			Code:    "UPSTREAM_ERROR",
			Message: "audio source is unavailable",
		})
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	for _, header := range []string{"Content-Type", "Content-Length", "Content-Range", "Accept-Ranges"} {
		if v := resp.Header.Get(header); v != "" {
			w.Header().Set(header, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		// Seek-heavy players abort ranges constantly; not worth more
		// than a debug line.
		h.log.Debug("stream copy interrupted", zap.Error(err))
	}
}

func (h *StreamHandler) allowedHost(host string) bool {
	base, err := url.Parse(h.baseURL)
	if err != nil || base.Host == "" {
		return false
	}
	return strings.EqualFold(host, base.Host)
}
