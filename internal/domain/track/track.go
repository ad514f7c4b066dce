// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"
)

// Track represents one playable audio item.
// Display fields are immutable once the playlist is built; Duration stays
// zero until the media engine reports it.
type Track struct {
	ID        string        // Stable identifier
	Title     string        // Display title
	Artist    string        // Display artist
	SourceRef string        // Path or URI handed to the media engine
	CoverRef  string        // Artwork path or URI (display only)
	Duration  time.Duration // Reported duration, 0 while unknown
}

// HasDuration reports whether the engine has reported a duration yet.
func (t *Track) HasDuration() bool {
	return t.Duration > 0
}

// DisplayName returns "Artist - Title", falling back to the source file name
// when the track carries no title.
func (t *Track) DisplayName() string {
	title := t.Title
	if title == "" {
		base := filepath.Base(t.SourceRef)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if t.Artist == "" {
		return title
	}
	return t.Artist + " - " + title
}

// maxSeconds is the first value whose duration overflows int64 nanoseconds.
const maxSeconds = float64(math.MaxInt64) / float64(time.Second)

// DurationFromSeconds converts engine-reported seconds into a duration.
// Returns false for NaN, infinities, negative values and values too large to
// represent.
func DurationFromSeconds(seconds float64) (time.Duration, bool) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 || seconds >= maxSeconds {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

// FormatClock renders d as m:ss. Seconds are floored and zero padded.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
