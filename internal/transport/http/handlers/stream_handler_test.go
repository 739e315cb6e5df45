package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStreamHandlerPassesRangeThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "bytes=0-99" {
			t.Errorf("range header not forwarded: %q", r.Header.Get("Range"))
		}
		if r.Header.Get("Referer") == "" {
			t.Error("referer header missing")
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Range", "bytes 0-99/1000")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(make([]byte, 100))
	}))
	defer upstream.Close()

	h := NewStreamHandler(upstream.URL, time.Second, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/stream?url="+upstream.URL+"/track.mp3", nil)
	req.Header.Set("Range", "bytes=0-99")
	rr := httptest.NewRecorder()
	h.Handle(rr, req)

	if rr.Code != http.StatusPartialContent {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusPartialContent)
	}
	if rr.Header().Get("Content-Range") != "bytes 0-99/1000" {
		t.Fatalf("content-range not forwarded: %q", rr.Header().Get("Content-Range"))
	}
	if rr.Body.Len() != 100 {
		t.Fatalf("proxied %d bytes, want 100", rr.Body.Len())
	}
}

func TestStreamHandlerRejectsForeignHost(t *testing.T) {
	h := NewStreamHandler("https://catalog.example.com", time.Second, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/stream?url=https://evil.example.net/a.mp3", nil)
	rr := httptest.NewRecorder()
	h.Handle(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusForbidden)
	}
}

func TestStreamHandlerRequiresURL(t *testing.T) {
	h := NewStreamHandler("https://catalog.example.com", time.Second, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil)
	rr := httptest.NewRecorder()
	h.Handle(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadRequest)
	}
}
