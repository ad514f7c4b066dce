package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19deck/internal/domain/track"
)

func TestDuplicateTrackFilter_ExactIDMatch(t *testing.T) {
	accepted := []track.Track{
		{ID: "track123", Title: "Bohemian Rhapsody", Artist: "Queen", SourceRef: "/music/a.mp3"},
	}

	filter := NewDuplicateTrackFilter()

	// Same track ID should be rejected
	result := filter.Check(context.Background(), Entry{
		Track: track.Track{ID: "track123", Title: "Something Else", SourceRef: "/music/b.mp3"},
	}, accepted)

	assert.False(t, result.Accepted)
	assert.Equal(t, "duplicate_track", result.Code)
}

func TestDuplicateTrackFilter_SameSource(t *testing.T) {
	accepted := []track.Track{
		{ID: "a", SourceRef: "/music/a.mp3"},
	}

	filter := NewDuplicateTrackFilter()

	result := filter.Check(context.Background(), Entry{
		Track: track.Track{ID: "b", SourceRef: "/music/a.mp3"},
	}, accepted)

	assert.False(t, result.Accepted)
	assert.Equal(t, "duplicate_track", result.Code)
}

func TestDuplicateTrackFilter_VersionDetection(t *testing.T) {
	tests := []struct {
		name          string
		admittedTrack track.Track
		entryTrack    track.Track
		shouldReject  bool
		description   string
	}{
		{
			name:          "Standard remaster pattern",
			admittedTrack: track.Track{ID: "original123", Title: "Bohemian Rhapsody", Artist: "Queen"},
			entryTrack:    track.Track{ID: "remaster456", Title: "Bohemian Rhapsody - 2011 Remaster", Artist: "Queen"},
			shouldReject:  true,
			description:   "Should detect '- 2011 Remaster' as duplicate",
		},
		{
			name:          "Remastered in parentheses",
			admittedTrack: track.Track{ID: "original123", Title: "Yesterday", Artist: "The Beatles"},
			entryTrack:    track.Track{ID: "remaster456", Title: "Yesterday (Remastered 2023)", Artist: "The Beatles"},
			shouldReject:  true,
			description:   "Should detect '(Remastered 2023)' as duplicate",
		},
		{
			name:          "Cover song - different artist",
			admittedTrack: track.Track{ID: "original123", Title: "Yesterday", Artist: "The Beatles"},
			entryTrack:    track.Track{ID: "cover789", Title: "Yesterday", Artist: "Paul McCartney"},
			shouldReject:  false,
			description:   "Should allow cover by different artist",
		},
		{
			name:          "Different songs - similar names",
			admittedTrack: track.Track{ID: "track1", Title: "Love", Artist: "John Lennon"},
			entryTrack:    track.Track{ID: "track2", Title: "Love Song", Artist: "John Lennon"},
			shouldReject:  false,
			description:   "Should allow different songs",
		},
		{
			name:          "Radio Edit version",
			admittedTrack: track.Track{ID: "album123", Title: "Stairway to Heaven", Artist: "Led Zeppelin"},
			entryTrack:    track.Track{ID: "radio456", Title: "Stairway to Heaven (Radio Edit)", Artist: "Led Zeppelin"},
			shouldReject:  true,
			description:   "Should detect radio edit as duplicate",
		},
		{
			name:          "Live version",
			admittedTrack: track.Track{ID: "studio123", Title: "Hotel California", Artist: "Eagles"},
			entryTrack:    track.Track{ID: "live456", Title: "Hotel California - Live", Artist: "Eagles"},
			shouldReject:  true,
			description:   "Should detect live version as duplicate",
		},
		{
			name:          "Remix version - should be allowed",
			admittedTrack: track.Track{ID: "original123", Title: "Le Freak", Artist: "CHIC"},
			entryTrack:    track.Track{ID: "remix456", Title: "Le Freak (Oliver Heldens Remix)", Artist: "CHIC"},
			shouldReject:  false,
			description:   "Should allow remix version",
		},
		{
			name:          "Missing titles are never matched",
			admittedTrack: track.Track{ID: "a", Artist: "CHIC"},
			entryTrack:    track.Track{ID: "b", Artist: "CHIC"},
			shouldReject:  false,
			description:   "Untitled entries are told apart by ID only",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := NewDuplicateTrackFilter()
			require.NoError(t, filter.ValidateConfig(map[string]any{"match_versions": true}))

			result := filter.Check(context.Background(), Entry{Track: tt.entryTrack}, []track.Track{tt.admittedTrack})

			if tt.shouldReject {
				assert.False(t, result.Accepted, tt.description)
				assert.Equal(t, "duplicate_track", result.Code)
			} else {
				assert.True(t, result.Accepted, tt.description)
			}
		})
	}
}

func TestDuplicateTrackFilter_VersionsAllowedByDefault(t *testing.T) {
	filter := NewDuplicateTrackFilter()
	require.NoError(t, filter.ValidateConfig(nil))

	result := filter.Check(context.Background(), Entry{
		Track: track.Track{ID: "b", Title: "Imagine - Live", Artist: "John Lennon"},
	}, []track.Track{{ID: "a", Title: "Imagine", Artist: "John Lennon"}})

	assert.True(t, result.Accepted)
}

func TestDuplicateTrackFilter_EmptyPlaylist(t *testing.T) {
	filter := NewDuplicateTrackFilter()

	result := filter.Check(context.Background(), Entry{
		Track: track.Track{ID: "track123", Title: "Any Song", Artist: "Any Artist"},
	}, nil)

	assert.True(t, result.Accepted, "Should accept any track when nothing was admitted yet")
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Bohemian Rhapsody", "bohemian rhapsody"},
		{"Bohemian Rhapsody - 2011 Remaster", "bohemian rhapsody"},
		{"Yesterday (Remastered 2023)", "yesterday"},
		{"Hotel California [Remastered]", "hotel california"},
		{"Stairway to Heaven (Radio Edit)", "stairway to heaven"},
		{"Imagine - Live", "imagine"},
		{"Let It Be (Single Version)", "let it be"},
		{"Hey Jude - Remastered Version", "hey jude"},
		{"Come Together (2019 Mix)", "come together (2019 mix)"},
		{"   Extra   Spaces   ", "extra spaces"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeTitle(tt.input))
		})
	}
}

func TestIsSameSong(t *testing.T) {
	tests := []struct {
		name     string
		track1   track.Track
		track2   track.Track
		expected bool
	}{
		{
			name:     "Same artist",
			track1:   track.Track{Title: "Bicycle Race", Artist: "Queen"},
			track2:   track.Track{Title: "Bicycle Race", Artist: "Queen"},
			expected: true,
		},
		{
			name:     "Same artist - case insensitive",
			track1:   track.Track{Title: "Bicycle Race", Artist: "Queen"},
			track2:   track.Track{Title: "Bicycle Race", Artist: "queen"},
			expected: true,
		},
		{
			name:     "Different artists",
			track1:   track.Track{Title: "Yesterday", Artist: "The Beatles"},
			track2:   track.Track{Title: "Yesterday", Artist: "Paul McCartney"},
			expected: false,
		},
		{
			name:     "Empty artist",
			track1:   track.Track{Title: "Bicycle Race"},
			track2:   track.Track{Title: "Bicycle Race"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isSameSong(tt.track1, tt.track2))
		})
	}
}
