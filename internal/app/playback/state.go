// Package playback provides the playback controller: a single-owner state
// machine that reconciles user intents with media engine events.
package playback

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/19deck/internal/domain/track"
)

// RepeatMode represents the end-of-track policy.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota // Stop after the last track
	RepeatAll                   // Wrap to the first track
	RepeatOne                   // Restart the current track
)

// String returns the string representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "off"
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "unknown"
	}
}

// Next returns the mode that follows m in the cycle off -> all -> one -> off.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatOff
	}
}

// ParseRepeatMode parses "off", "all" or "one" (case insensitive).
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off":
		return RepeatOff, nil
	case "all":
		return RepeatAll, nil
	case "one":
		return RepeatOne, nil
	default:
		return RepeatOff, errors.Newf("unknown repeat mode: %q", s)
	}
}

// Snapshot is a point-in-time copy of the playback state.
type Snapshot struct {
	Index   int           // Current track index
	Track   track.Track   // Current track
	Length  int           // Playlist length
	Playing bool          // Intended state, not the engine's buffering state
	Elapsed time.Duration // Position within the current track
	Volume  int           // Raw volume 0..100, kept while muted
	Muted   bool
	Shuffle bool
	Repeat  RepeatMode
	Ticket  uint64 // Sequence of the current load ticket
}

// EffectiveVolume returns the output level handed to the engine.
func (s Snapshot) EffectiveVolume() float64 {
	return effectiveVolume(s.Volume, s.Muted)
}

func effectiveVolume(volume int, muted bool) float64 {
	if muted {
		return 0
	}
	return float64(volume) / 100
}
