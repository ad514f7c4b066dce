package playback

import (
	"fmt"
	"time"
)

// Ticket identifies one load request. Every asynchronous engine event carries
// the ticket of the load it belongs to so late events can be told apart from
// current ones.
type Ticket struct {
	Seq     uint64 // Monotonic per controller
	Index   int    // Playlist index the load was issued for
	TrackID string // Track the load was issued for
}

// String returns a compact representation for logs.
func (t Ticket) String() string {
	return fmt.Sprintf("#%d[%d:%s]", t.Seq, t.Index, t.TrackID)
}

// Engine is the media engine the controller commands.
// Commands must not block on audio readiness; results arrive through the Sink.
type Engine interface {
	// Attach registers the sink that receives events. Called once by NewController.
	Attach(sink Sink)
	// Load replaces the current source. An in-flight load is superseded.
	Load(t Ticket, sourceRef string) error
	Play() error
	Pause() error
	SeekTo(pos time.Duration) error
	// SetVolume sets the effective output level in [0, 1].
	SetVolume(fraction float64) error
	Close() error
}

// Sink receives engine events. Implementations must not block the caller.
// Engines must not call a Sink while holding a lock that one of their own
// commands needs.
type Sink interface {
	Ready(t Ticket)
	MetadataLoaded(t Ticket, seconds float64)
	TimeUpdate(t Ticket, seconds float64)
	Ended(t Ticket)
	Failed(t Ticket, err error)
}
