// Package httpapi provides the HTTP/JSON control surface and the Server-Sent
// Events stream of playback notifications.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/app/notification"
	"github.com/osa030/19deck/internal/app/playback"
	"github.com/osa030/19deck/internal/domain/track"
)

// TokenHeader is the header carrying the control token.
const TokenHeader = "X-Deck-Token"

// Controller is the part of the playback controller driven over HTTP.
type Controller interface {
	TogglePlayPause(ctx context.Context) error
	Select(ctx context.Context, index int) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Seek(ctx context.Context, pos time.Duration) error
	SetVolume(ctx context.Context, percent int) error
	ToggleMute(ctx context.Context) error
	ToggleShuffle(ctx context.Context) error
	CycleRepeat(ctx context.Context) error
	Snapshot(ctx context.Context) (playback.Snapshot, error)
	Playlist(ctx context.Context) ([]track.Track, error)
}

// Subscriptions registers notification streams.
type Subscriptions interface {
	Subscribe(stream notification.Stream) string
	Unsubscribe(subscriptionID string)
}

// Options configures a Handler.
type Options struct {
	Token        string // Required on control endpoints when set
	PlaylistName string
	StreamBuffer int             // Queued notifications per event stream
	Done         <-chan struct{} // Closing it ends open event streams
}

// Handler serves the API.
type Handler struct {
	ctrl    Controller
	subs    Subscriptions
	options Options
	router  *http.ServeMux
}

// NewHandler initializes the handler and sets up routes.
func NewHandler(ctrl Controller, subs Subscriptions, options Options) *Handler {
	if options.StreamBuffer <= 0 {
		options.StreamBuffer = 64
	}
	h := &Handler{
		ctrl:    ctrl,
		subs:    subs,
		options: options,
		router:  http.NewServeMux(),
	}

	h.routes()

	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	h.router.ServeHTTP(rec, r)
	zlog.Debug().Msgf("http: %s %s status=%d duration=%v", r.Method, r.URL.Path, rec.status, time.Since(start))
}

func (h *Handler) routes() {
	// Reads
	h.router.HandleFunc("GET /v1/state", h.GetState)
	h.router.HandleFunc("GET /v1/playlist", h.GetPlaylist)
	h.router.HandleFunc("GET /v1/events", h.StreamEvents)

	// Controls
	h.router.Handle("POST /v1/toggle", h.requireToken(h.intent(h.ctrl.TogglePlayPause)))
	h.router.Handle("POST /v1/next", h.requireToken(h.intent(h.ctrl.Next)))
	h.router.Handle("POST /v1/previous", h.requireToken(h.intent(h.ctrl.Previous)))
	h.router.Handle("POST /v1/mute", h.requireToken(h.intent(h.ctrl.ToggleMute)))
	h.router.Handle("POST /v1/shuffle", h.requireToken(h.intent(h.ctrl.ToggleShuffle)))
	h.router.Handle("POST /v1/repeat", h.requireToken(h.intent(h.ctrl.CycleRepeat)))
	h.router.Handle("POST /v1/select", h.requireToken(http.HandlerFunc(h.Select)))
	h.router.Handle("POST /v1/seek", h.requireToken(http.HandlerFunc(h.Seek)))
	h.router.Handle("POST /v1/volume", h.requireToken(http.HandlerFunc(h.SetVolume)))
}

// requireToken rejects requests without the configured token.
func (h *Handler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.options.Token != "" && r.Header.Get(TokenHeader) != h.options.Token {
			writeError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// intent adapts an argument-less controller intent.
func (h *Handler) intent(fn func(ctx context.Context) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context()); err != nil {
			writeControllerError(w, err)
			return
		}
		h.writeState(w, r)
	})
}

// writeState responds with the state after an intent.
func (h *Handler) writeState(w http.ResponseWriter, r *http.Request) {
	snap, err := h.ctrl.Snapshot(r.Context())
	if err != nil {
		writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notification.NewState(snap))
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Debug().Msgf("http: failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeControllerError maps controller errors to status codes.
func writeControllerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, playback.ErrIndexOutOfRange),
		errors.Is(err, playback.ErrInvalidVolume),
		errors.Is(err, playback.ErrInvalidPosition):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, playback.ErrClosed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		zlog.Error().Msgf("http: controller error: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush passes through so event streams are not buffered.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
