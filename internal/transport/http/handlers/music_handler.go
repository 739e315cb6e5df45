package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	musicsvc "github.com/tunngle1/newversionmusicbot/internal/services/music"
	"github.com/tunngle1/newversionmusicbot/internal/transport/http/dto"
	httperrors "github.com/tunngle1/newversionmusicbot/internal/transport/http/errors"
)

type MusicHandler struct {
	service *musicsvc.Service
}

func NewMusicHandler(service *musicsvc.Service) *MusicHandler {
	return &MusicHandler{service: service}
}

func (h *MusicHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "MUSIC_SERVICE_UNAVAILABLE", "music service is unavailable")
		return
	}

	query := r.URL.Query().Get("q")
	page := queryInt(r, "page", 0)

	tracks, err := h.service.Search(r.Context(), query, page)
	if err != nil {
		h.handleMusicError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.TracksResponse{Tracks: tracks, Count: len(tracks)})
}

func (h *MusicHandler) SearchByArtist(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "MUSIC_SERVICE_UNAVAILABLE", "music service is unavailable")
		return
	}

	tracks, err := h.service.SearchByArtist(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.handleMusicError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.TracksResponse{Tracks: tracks, Count: len(tracks)})
}

func (h *MusicHandler) SearchByTrack(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "MUSIC_SERVICE_UNAVAILABLE", "music service is unavailable")
		return
	}

	tracks, err := h.service.SearchByTrack(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.handleMusicError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.TracksResponse{Tracks: tracks, Count: len(tracks)})
}

func (h *MusicHandler) GenreTracks(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "MUSIC_SERVICE_UNAVAILABLE", "music service is unavailable")
		return
	}

	genreID := chi.URLParam(r, "id")
	page := queryInt(r, "page", 0)

	tracks, err := h.service.GenreTracks(r.Context(), genreID, page)
	if err != nil {
		h.handleMusicError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.TracksResponse{Tracks: tracks, Count: len(tracks)})
}

func (h *MusicHandler) RadioStations(w http.ResponseWriter, _ *http.Request) {
	if h.service == nil {
		writeInternal(w, "MUSIC_SERVICE_UNAVAILABLE", "music service is unavailable")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.RadioStationsResponse{Stations: h.service.RadioStations()})
}

func (h *MusicHandler) handleMusicError(w http.ResponseWriter, err error) {
	if errors.Is(err, musicsvc.ErrEmptyQuery) {
		writeBadRequest(w, "EMPTY_QUERY", "search query is required")
		return
	}
	writeInternal(w, "CATALOG_ERROR", "music catalog is unavailable")
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
