// Package playlist provides the Playlist store.
package playlist

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/osa030/19deck/internal/domain/track"
)

// Errors
var (
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrEmptyPlaylist    = errors.New("playlist is empty")
	ErrDuplicateTrackID = errors.New("duplicate track id")
)

// Playlist is the ordered, index addressable track list that defines linear
// playback order. It is not safe for concurrent use; the playback controller
// is its only writer.
type Playlist struct {
	name   string
	tracks []track.Track
}

// New creates a playlist from tracks. The slice is copied.
func New(name string, tracks []track.Track) (*Playlist, error) {
	if len(tracks) == 0 {
		return nil, ErrEmptyPlaylist
	}

	seen := make(map[string]bool, len(tracks))
	for _, t := range tracks {
		if seen[t.ID] {
			return nil, errors.Wrapf(ErrDuplicateTrackID, "id=%s", t.ID)
		}
		seen[t.ID] = true
	}

	owned := make([]track.Track, len(tracks))
	copy(owned, tracks)
	return &Playlist{name: name, tracks: owned}, nil
}

// Name returns the playlist name.
func (p *Playlist) Name() string {
	return p.name
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	return len(p.tracks)
}

// Get returns the track at index.
func (p *Playlist) Get(index int) (track.Track, error) {
	if index < 0 || index >= len(p.tracks) {
		return track.Track{}, errors.Wrapf(ErrIndexOutOfRange, "index=%d len=%d", index, len(p.tracks))
	}
	return p.tracks[index], nil
}

// SetDuration records the reported duration of the track at index.
// Last write wins. NaN, infinite and negative values are ignored so an
// engine reporting garbage mid-load cannot corrupt the stored duration.
func (p *Playlist) SetDuration(index int, seconds float64) error {
	if index < 0 || index >= len(p.tracks) {
		return errors.Wrapf(ErrIndexOutOfRange, "index=%d len=%d", index, len(p.tracks))
	}
	d, ok := track.DurationFromSeconds(seconds)
	if !ok {
		return nil
	}
	p.tracks[index].Duration = d
	return nil
}

// IndexOf returns the index of the track with id, or -1.
func (p *Playlist) IndexOf(id string) int {
	_, index, found := lo.FindIndexOf(p.tracks, func(t track.Track) bool {
		return t.ID == id
	})
	if !found {
		return -1
	}
	return index
}

// Tracks returns a copy of all tracks.
func (p *Playlist) Tracks() []track.Track {
	result := make([]track.Track, len(p.tracks))
	copy(result, p.tracks)
	return result
}

// TrackIDs returns all track IDs in playlist order.
func (p *Playlist) TrackIDs() []string {
	return lo.Map(p.tracks, func(t track.Track, _ int) string {
		return t.ID
	})
}

// TotalDuration returns the sum of all known durations.
func (p *Playlist) TotalDuration() time.Duration {
	return lo.SumBy(p.tracks, func(t track.Track) time.Duration {
		return t.Duration
	})
}
