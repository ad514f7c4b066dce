package filter

import (
	"context"
	"path/filepath"
	"strings"

	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/19deck/internal/domain/track"
)

// FormatConfig represents the configuration for FormatFilter.
type FormatConfig struct {
	Extensions []string `yaml:"extensions" mapstructure:"extensions" default:"[\".mp3\",\".flac\",\".wav\"]" validate:"min=1,dive,startswith=."`
}

// FormatFilter rejects sources whose extension the engine cannot decode.
type FormatFilter struct {
	extensions []string
}

// NewFormatFilter creates a new format filter.
func NewFormatFilter() *FormatFilter {
	return &FormatFilter{}
}

func (f *FormatFilter) Name() string {
	return "format_filter"
}

func (f *FormatFilter) Description() string {
	return "Rejects sources with an unsupported file extension"
}

func (f *FormatFilter) ReturnCodes() []string {
	return []string{"unsupported_format"}
}

func (f *FormatFilter) ValidateConfig(settings map[string]any) error {
	var config FormatConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.extensions = lo.Map(config.Extensions, func(ext string, _ int) string {
		return strings.ToLower(ext)
	})
	zlog.Info().Msgf("format filter config: %+v", config)
	return nil
}

func (f *FormatFilter) AppliesTo(origin Origin) bool {
	// Scanned entries are already matched against the extension list
	return origin == OriginDeclared
}

func (f *FormatFilter) Check(ctx context.Context, e Entry, accepted []track.Track) Result {
	// If config is not set, accept all tracks
	if len(f.extensions) == 0 {
		return Accept()
	}

	ext := strings.ToLower(filepath.Ext(e.Track.SourceRef))
	if !lo.Contains(f.extensions, ext) {
		return Reject("unsupported_format")
	}
	return Accept()
}

func init() {
	Register("format_filter", func() Filter {
		return NewFormatFilter()
	})
}
