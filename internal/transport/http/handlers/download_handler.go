package handlers

import (
	"errors"
	"net/http"

	authsvc "github.com/tunngle1/newversionmusicbot/internal/services/auth"
	downloadsvc "github.com/tunngle1/newversionmusicbot/internal/services/downloads"
	"github.com/tunngle1/newversionmusicbot/internal/transport/http/dto"
	httperrors "github.com/tunngle1/newversionmusicbot/internal/transport/http/errors"
)

type DownloadHandler struct {
	service *downloadsvc.Service
}

func NewDownloadHandler(service *downloadsvc.Service) *DownloadHandler {
	return &DownloadHandler{service: service}
}

func (h *DownloadHandler) SendToChat(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "DOWNLOAD_SERVICE_UNAVAILABLE", "download service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	var req dto.DownloadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	res, err := h.service.SendToChat(r.Context(), identity.UserID, downloadsvc.Input{
		URL:      req.URL,
		TrackID:  req.TrackID,
		Title:    req.Title,
		Artist:   req.Artist,
		Duration: req.Duration,
	})
	if err != nil {
		switch {
		case errors.Is(err, downloadsvc.ErrBadRequest):
			writeBadRequest(w, "INVALID_REQUEST", "track url is required")
		case errors.Is(err, downloadsvc.ErrNoAccess):
			writeForbidden(w, "NO_ACCESS", "subscription required")
		case errors.Is(err, downloadsvc.ErrRateLimited):
			httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
				Code:          "RATE_LIMITED",
				Message:       "too many downloads, slow down",
				RetryAfterSec: res.RetryAfter,
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "internal server error")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.DownloadResponse{
		OK:        true,
		MessageID: res.MessageID,
		Protected: res.Protected,
	})
}
