package filter

import (
	"context"
	"regexp"
	"strings"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/domain/track"
)

// DuplicateTrackConfig represents the configuration for DuplicateTrackFilter.
type DuplicateTrackConfig struct {
	MatchVersions bool `yaml:"match_versions" mapstructure:"match_versions"`
}

// DuplicateTrackFilter rejects entries already admitted to the playlist.
// Detects:
// - Exact track ID matches
// - Source references listed twice
// - Remasters, live and edit versions (normalized title + same artist) when match_versions is set
// Excludes:
// - Cover songs (same title but different artist)
type DuplicateTrackFilter struct {
	config DuplicateTrackConfig
}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter() *DuplicateTrackFilter {
	return &DuplicateTrackFilter{}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Rejects entries whose ID or source is already in the playlist; optionally remaster and live versions too"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// AppliesTo returns which origins this filter applies to.
func (f *DuplicateTrackFilter) AppliesTo(origin Origin) bool {
	return true
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(settings map[string]any) error {
	var config DuplicateTrackConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = config
	zlog.Info().Msgf("duplicate track filter config: %+v", config)
	return nil
}

// Check checks if the entry is a duplicate.
func (f *DuplicateTrackFilter) Check(ctx context.Context, e Entry, accepted []track.Track) Result {
	for _, admitted := range accepted {
		// 1. Exact track ID match
		if admitted.ID == e.Track.ID {
			return Reject("duplicate_track")
		}

		// 2. Same source listed twice
		if admitted.SourceRef != "" && admitted.SourceRef == e.Track.SourceRef {
			return Reject("duplicate_track")
		}

		// 3. Remaster detection: normalized title + same artist
		if f.config.MatchVersions && isSameSong(admitted, e.Track) {
			return Reject("duplicate_track")
		}
	}

	return Accept()
}

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
		regexp.MustCompile(`\s*-?\s*live`),             // "- Live"
		regexp.MustCompile(`\s*\(live\)`),              // "(Live)"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
	}
	whitespace = regexp.MustCompile(`\s+`)
)

// isSameSong checks if two tracks are versions of the same song.
// Returns true if:
// - Normalized titles match
// - Artist is the same
func isSameSong(a, b track.Track) bool {
	if a.Title == "" || b.Title == "" {
		return false
	}
	if normalizeTitle(a.Title) != normalizeTitle(b.Title) {
		return false
	}
	// Same normalized title by a different artist is a cover
	return a.Artist != "" && strings.EqualFold(a.Artist, b.Artist)
}

// normalizeTitle removes remaster information and version details.
func normalizeTitle(title string) string {
	normalized := strings.ToLower(title)

	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = strings.TrimSpace(normalized)
	normalized = whitespace.ReplaceAllString(normalized, " ")

	// Remove trailing dashes
	return strings.TrimRight(normalized, " -")
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return NewDuplicateTrackFilter()
	})
}
