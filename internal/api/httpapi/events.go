package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/app/notification"
)

// StreamEvents handles GET /v1/events
//
// The stream opens with a "state" event carrying the current state, followed
// by one event per notification. The SSE id is the notification sequence
// number; a gap means notifications were dropped for this subscriber.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	stream := notification.NewChannelStream(h.options.StreamBuffer)
	id := h.subs.Subscribe(stream)
	defer h.subs.Unsubscribe(id)

	snap, err := h.ctrl.Snapshot(r.Context())
	if err != nil {
		writeControllerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	initial := &notification.Notification{Type: "state", State: notification.NewState(snap), Time: time.Now()}
	if err := writeEvent(w, initial); err != nil {
		return
	}
	flusher.Flush()

	zlog.Debug().Msgf("http: event stream opened: subscription=%s", id)
	for {
		select {
		case <-r.Context().Done():
			zlog.Debug().Msgf("http: event stream closed: subscription=%s", id)
			return
		case <-h.options.Done:
			return
		case <-stream.Done():
			zlog.Debug().Msgf("http: event stream dropped: subscription=%s", id)
			return
		case n := <-stream.C():
			if err := writeEvent(w, n); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent writes n as one SSE message.
func writeEvent(w http.ResponseWriter, n *notification.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", n.SequenceNo, n.Type, data)
	return err
}
