package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/samber/lo"

	"github.com/osa030/19deck/internal/app/notification"
	"github.com/osa030/19deck/internal/domain/track"
)

type selectRequest struct {
	Index *int `json:"index"`
}

type seekRequest struct {
	Seconds *float64 `json:"seconds"`
}

type volumeRequest struct {
	Percent *int `json:"percent"`
}

// PlaylistResponse is the body of GET /v1/playlist.
type PlaylistResponse struct {
	Name                 string                   `json:"name"`
	Tracks               []notification.TrackInfo `json:"tracks"`
	TotalDurationSeconds float64                  `json:"total_duration_seconds"` // Known durations only
}

// GetState handles GET /v1/state
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	h.writeState(w, r)
}

// GetPlaylist handles GET /v1/playlist
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.ctrl.Playlist(r.Context())
	if err != nil {
		writeControllerError(w, err)
		return
	}

	infos := lo.Map(tracks, func(t track.Track, _ int) notification.TrackInfo {
		return notification.NewTrackInfo(t)
	})
	total := lo.SumBy(tracks, func(t track.Track) float64 {
		return t.Duration.Seconds()
	})

	writeJSON(w, http.StatusOK, PlaylistResponse{
		Name:                 h.options.PlaylistName,
		Tracks:               infos,
		TotalDurationSeconds: total,
	})
}

// Select handles POST /v1/select
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
		writeError(w, http.StatusBadRequest, "index is required")
		return
	}

	if err := h.ctrl.Select(r.Context(), *req.Index); err != nil {
		writeControllerError(w, err)
		return
	}
	h.writeState(w, r)
}

// Seek handles POST /v1/seek
func (h *Handler) Seek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Seconds == nil {
		writeError(w, http.StatusBadRequest, "seconds is required")
		return
	}

	pos, ok := track.DurationFromSeconds(*req.Seconds)
	if !ok {
		writeError(w, http.StatusBadRequest, "seconds must be a non-negative number in range")
		return
	}

	if err := h.ctrl.Seek(r.Context(), pos); err != nil {
		writeControllerError(w, err)
		return
	}
	h.writeState(w, r)
}

// SetVolume handles POST /v1/volume
func (h *Handler) SetVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Percent == nil {
		writeError(w, http.StatusBadRequest, "percent is required")
		return
	}

	if err := h.ctrl.SetVolume(r.Context(), *req.Percent); err != nil {
		writeControllerError(w, err)
		return
	}
	h.writeState(w, r)
}
