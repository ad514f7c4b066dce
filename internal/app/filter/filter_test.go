package filter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19deck/internal/domain/track"
	"github.com/osa030/19deck/internal/infra/config"
)

func TestFormatFilter_Check(t *testing.T) {
	tests := []struct {
		name         string
		settings     map[string]any
		source       string
		wantAccepted bool
	}{
		{name: "default mp3", settings: nil, source: "/music/a.mp3", wantAccepted: true},
		{name: "default flac upper case", settings: nil, source: "/music/a.FLAC", wantAccepted: true},
		{name: "default rejects ogg", settings: nil, source: "/music/a.ogg", wantAccepted: false},
		{name: "no extension", settings: nil, source: "/music/a", wantAccepted: false},
		{
			name:         "custom list",
			settings:     map[string]any{"extensions": []any{".ogg"}},
			source:       "/music/a.ogg",
			wantAccepted: true,
		},
		{
			name:         "custom list excludes defaults",
			settings:     map[string]any{"extensions": []any{".ogg"}},
			source:       "/music/a.mp3",
			wantAccepted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFormatFilter()
			require.NoError(t, f.ValidateConfig(tt.settings))

			result := f.Check(context.Background(), Entry{Track: track.Track{ID: "x", SourceRef: tt.source}}, nil)

			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "unsupported_format", result.Code)
			}
		})
	}
}

func TestFormatFilter_ValidateConfig(t *testing.T) {
	f := NewFormatFilter()
	assert.Error(t, f.ValidateConfig(map[string]any{"extensions": []any{"mp3"}}), "extensions need a leading dot")
	assert.Error(t, f.ValidateConfig(map[string]any{"extensions": "not a list"}))
}

func TestFormatFilter_Unconfigured(t *testing.T) {
	f := NewFormatFilter()
	result := f.Check(context.Background(), Entry{Track: track.Track{SourceRef: "/music/a.xyz"}}, nil)
	assert.True(t, result.Accepted)
}

func TestMissingSourceFilter_Check(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "a.mp3")
	require.NoError(t, os.WriteFile(existing, []byte("id3"), 0o644))

	tests := []struct {
		name         string
		source       string
		wantAccepted bool
	}{
		{name: "existing file", source: existing, wantAccepted: true},
		{name: "missing file", source: filepath.Join(dir, "b.mp3"), wantAccepted: false},
		{name: "directory", source: dir, wantAccepted: false},
		{name: "remote uri", source: "https://example.com/stream.mp3", wantAccepted: true},
	}

	f := &MissingSourceFilter{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(context.Background(), Entry{Track: track.Track{SourceRef: tt.source}}, nil)
			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "missing_source", result.Code)
			}
		})
	}
}

func TestChain_Execute(t *testing.T) {
	format := NewFormatFilter()
	require.NoError(t, format.ValidateConfig(nil))

	chain := NewChain()
	chain.Add(NewDuplicateTrackFilter())
	chain.Add(format)

	accepted := []track.Track{{ID: "a", SourceRef: "/music/a.mp3"}}

	result := chain.Execute(context.Background(), Entry{Track: track.Track{ID: "a", SourceRef: "/music/x.ogg"}}, accepted)
	assert.Equal(t, Reject("duplicate_track"), result, "first rejecting filter wins")

	result = chain.Execute(context.Background(), Entry{Track: track.Track{ID: "b", SourceRef: "/music/b.ogg"}}, accepted)
	assert.Equal(t, Reject("unsupported_format"), result)

	result = chain.Execute(context.Background(), Entry{
		Track:  track.Track{ID: "c", SourceRef: "/music/c.ogg"},
		Origin: OriginScanned,
	}, accepted)
	assert.True(t, result.Accepted, "format filter does not apply to scanned entries")
}

func TestNewChainFromConfig(t *testing.T) {
	chain, err := NewChainFromConfig(map[string]config.FilterConfig{
		"format_filter":          {Enabled: true},
		"duplicate_track_filter": {Enabled: true, Settings: map[string]any{"match_versions": true}},
		"missing_source_filter":  {Enabled: false},
	})
	require.NoError(t, err)

	var names []string
	for _, f := range chain.Filters() {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{"duplicate_track_filter", "format_filter"}, names)

	_, err = NewChainFromConfig(map[string]config.FilterConfig{"kicked_filter": {Enabled: true}})
	assert.Error(t, err)

	_, err = NewChainFromConfig(map[string]config.FilterConfig{
		"format_filter": {Enabled: true, Settings: map[string]any{"extensions": []any{}}},
	})
	assert.Error(t, err)

	empty, err := NewChainFromConfig(nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Filters())
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"duplicate_track_filter", "format_filter", "missing_source_filter"}, Names())
}
