package playback

// EventType represents a playback event type.
type EventType int

const (
	EventTrackChanged     EventType = iota // Current index changed and a new load was issued
	EventStateChanged                      // Playing flipped
	EventPositionChanged                   // Elapsed changed (time update, seek, restart)
	EventDurationChanged                   // A track's duration was reported
	EventVolumeChanged                     // Volume or mute changed
	EventModeChanged                       // Shuffle or repeat changed
	EventPlaybackFailed                    // Engine reported a load or play failure
	EventPlaylistFinished                  // Last track ended with repeat off
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackChanged:
		return "track_changed"
	case EventStateChanged:
		return "state_changed"
	case EventPositionChanged:
		return "position_changed"
	case EventDurationChanged:
		return "duration_changed"
	case EventVolumeChanged:
		return "volume_changed"
	case EventModeChanged:
		return "mode_changed"
	case EventPlaybackFailed:
		return "playback_failed"
	case EventPlaylistFinished:
		return "playlist_finished"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type       EventType
	Snapshot   Snapshot // State after the transition
	TrackIndex int      // Track the event pertains to (differs from Snapshot.Index for late durations)
	Err        error    // Set for EventPlaybackFailed
}
