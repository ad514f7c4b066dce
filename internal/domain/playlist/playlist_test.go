package playlist

import (
	"math"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19deck/internal/domain/track"
)

func threeTracks() []track.Track {
	return []track.Track{
		{ID: "track-1", Title: "Sweet Child O' Mine", SourceRef: "/music/1.mp3"},
		{ID: "track-2", Title: "Era Eu", SourceRef: "/music/2.mp3"},
		{ID: "track-3", Title: "Interstellar", SourceRef: "/music/3.mp3"},
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		tracks  []track.Track
		wantErr error
	}{
		{
			name:   "valid playlist",
			tracks: threeTracks(),
		},
		{
			name:    "empty playlist",
			tracks:  []track.Track{},
			wantErr: ErrEmptyPlaylist,
		},
		{
			name: "duplicate ids",
			tracks: []track.Track{
				{ID: "track-1"},
				{ID: "track-1"},
			},
			wantErr: ErrDuplicateTrackID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New("test", tt.tracks)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.tracks), p.Len())
			assert.Equal(t, "test", p.Name())
		})
	}
}

func TestNew_CopiesInput(t *testing.T) {
	tracks := threeTracks()
	p, err := New("test", tracks)
	require.NoError(t, err)

	tracks[0].Title = "mutated"

	got, err := p.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "Sweet Child O' Mine", got.Title)
}

func TestPlaylist_Get(t *testing.T) {
	p, err := New("test", threeTracks())
	require.NoError(t, err)

	got, err := p.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "track-2", got.ID)

	for _, index := range []int{-1, 3, 100} {
		_, err := p.Get(index)
		assert.True(t, errors.Is(err, ErrIndexOutOfRange), "index %d: got %v", index, err)
	}
}

func TestPlaylist_SetDuration(t *testing.T) {
	tests := []struct {
		name     string
		seconds  float64
		expected time.Duration
	}{
		{name: "valid duration", seconds: 215.5, expected: 215500 * time.Millisecond},
		{name: "zero is accepted", seconds: 0, expected: 0},
		{name: "NaN is ignored", seconds: math.NaN(), expected: 90 * time.Second},
		{name: "infinity is ignored", seconds: math.Inf(1), expected: 90 * time.Second},
		{name: "negative is ignored", seconds: -4, expected: 90 * time.Second},
		{name: "overflowing value is ignored", seconds: 1e12, expected: 90 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New("test", threeTracks())
			require.NoError(t, err)
			require.NoError(t, p.SetDuration(0, 90))

			require.NoError(t, p.SetDuration(0, tt.seconds))

			got, err := p.Get(0)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.Duration)
		})
	}
}

func TestPlaylist_SetDuration_LastWriteWins(t *testing.T) {
	p, err := New("test", threeTracks())
	require.NoError(t, err)

	require.NoError(t, p.SetDuration(2, 100))
	require.NoError(t, p.SetDuration(2, 120))

	got, err := p.Get(2)
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, got.Duration)
}

func TestPlaylist_SetDuration_OutOfRange(t *testing.T) {
	p, err := New("test", threeTracks())
	require.NoError(t, err)

	err = p.SetDuration(3, 100)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
	assert.Equal(t, time.Duration(0), p.TotalDuration())
}

func TestPlaylist_IndexOf(t *testing.T) {
	p, err := New("test", threeTracks())
	require.NoError(t, err)

	assert.Equal(t, 0, p.IndexOf("track-1"))
	assert.Equal(t, 2, p.IndexOf("track-3"))
	assert.Equal(t, -1, p.IndexOf("missing"))
}

func TestPlaylist_TrackIDs(t *testing.T) {
	p, err := New("test", threeTracks())
	require.NoError(t, err)

	assert.Equal(t, []string{"track-1", "track-2", "track-3"}, p.TrackIDs())
}

func TestPlaylist_TotalDuration(t *testing.T) {
	p, err := New("test", threeTracks())
	require.NoError(t, err)

	require.NoError(t, p.SetDuration(0, 120))
	require.NoError(t, p.SetDuration(1, 210))

	assert.Equal(t, 330*time.Second, p.TotalDuration())
}

func TestPlaylist_Tracks_ReturnsCopy(t *testing.T) {
	p, err := New("test", threeTracks())
	require.NoError(t, err)

	tracks := p.Tracks()
	tracks[0].ID = "changed"

	assert.Equal(t, "track-1", p.TrackIDs()[0])
}
