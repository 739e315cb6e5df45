package handlers

import (
	"errors"
	"net/http"

	lyricssvc "github.com/tunngle1/newversionmusicbot/internal/services/lyrics"
	"github.com/tunngle1/newversionmusicbot/internal/transport/http/dto"
	httperrors "github.com/tunngle1/newversionmusicbot/internal/transport/http/errors"
)

type LyricsHandler struct {
	service *lyricssvc.Service
}

func NewLyricsHandler(service *lyricssvc.Service) *LyricsHandler {
	return &LyricsHandler{service: service}
}

func (h *LyricsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "LYRICS_SERVICE_UNAVAILABLE", "lyrics service is unavailable")
		return
	}

	q := r.URL.Query()
	artist := q.Get("artist")
	title := q.Get("title")

	lyrics, err := h.service.Get(r.Context(), artist, title, q.Get("track_id"))
	if err != nil {
		switch {
		case errors.Is(err, lyricssvc.ErrBadRequest):
			writeBadRequest(w, "INVALID_REQUEST", "artist and title are required")
		case errors.Is(err, lyricssvc.ErrNotFound):
			writeNotFound(w, "LYRICS_NOT_FOUND", "lyrics not found")
		default:
			writeInternal(w, "INTERNAL_ERROR", "internal server error")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.LyricsResponse{
		Artist: lyrics.Artist,
		Title:  lyrics.Title,
		Lyrics: lyrics.Text,
		Source: lyrics.Source,
	})
}
