// Package audio provides media engine implementations for the playback
// controller.
package audio

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/19deck/internal/app/playback"
	"github.com/osa030/19deck/internal/infra/config"
)

// Engine names accepted in configuration.
const (
	EngineSpeaker = "speaker"
	EngineClock   = "clock"
)

// Errors
var (
	ErrUnsupportedFormat  = errors.New("unsupported audio format")
	ErrEngineClosed       = errors.New("audio engine closed")
	ErrSpeakerUnavailable = errors.New("speaker output is not available in this build")
)

// SupportedExtensions lists the source extensions the decoders understand.
var SupportedExtensions = []string{".mp3", ".flac", ".wav"}

// SpeakerSettings configures the speaker engine.
type SpeakerSettings struct {
	SampleRate      int `mapstructure:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs        int `mapstructure:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
	ResampleQuality int `mapstructure:"resample_quality" default:"4" validate:"gte=1,lte=64"`
	TickIntervalMs  int `mapstructure:"tick_interval_ms" default:"250" validate:"gte=10,lte=5000"`
}

// ClockSettings configures the headless clock engine.
type ClockSettings struct {
	TickIntervalMs     int `mapstructure:"tick_interval_ms" default:"250" validate:"gte=10,lte=5000"`
	LoadLatencyMs      int `mapstructure:"load_latency_ms" validate:"gte=0,lte=10000"`
	FallbackDurationMs int `mapstructure:"fallback_duration_ms" validate:"gte=0"` // Used when a source cannot be probed, 0 fails the load
}

// New creates the engine named in cfg.
func New(cfg config.AudioConfig) (playback.Engine, error) {
	zlog.Debug().Msgf("audio: creating engine: type=%s settings=%+v", cfg.Engine, cfg.Settings)

	switch cfg.Engine {
	case EngineSpeaker:
		var s SpeakerSettings
		if err := decodeSettings(cfg.Settings, &s); err != nil {
			return nil, errors.Wrap(err, "invalid speaker settings")
		}
		zlog.Info().Msgf("audio: speaker engine: sample_rate=%d buffer_ms=%d", s.SampleRate, s.BufferMs)
		return newSpeakerEngine(s)

	case EngineClock:
		var s ClockSettings
		if err := decodeSettings(cfg.Settings, &s); err != nil {
			return nil, errors.Wrap(err, "invalid clock settings")
		}
		zlog.Info().Msgf("audio: clock engine: tick_interval_ms=%d", s.TickIntervalMs)
		return NewClockEngine(s), nil

	default:
		return nil, errors.Newf("unsupported audio engine: %s", cfg.Engine)
	}
}

// decodeSettings decodes engine settings into out, then applies defaults and
// validation.
func decodeSettings(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}

// IsSupported reports whether sourceRef has a decodable extension.
func IsSupported(sourceRef string) bool {
	return lo.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(sourceRef)))
}

// openSource opens and decodes the file at path.
// Closing the returned streamer closes the file.
func openSource(path string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !IsSupported(path) {
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFormat, "extension %q", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, errors.Wrap(err, "failed to open source")
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch ext {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, errors.Wrapf(err, "failed to decode %s", filepath.Base(path))
	}
	return streamer, format, nil
}

// Probe returns the duration of the audio file at path.
func Probe(path string) (time.Duration, error) {
	streamer, format, err := openSource(path)
	if err != nil {
		return 0, err
	}
	defer streamer.Close()
	return format.SampleRate.D(streamer.Len()), nil
}

// levelToVolume converts a 0..1 level to beep's base-2 volume.
// 1.0 -> 0, 0.5 -> -1, 0.25 -> -2, 0 -> -10 (silent).
func levelToVolume(level float64) float64 {
	if level <= 0 {
		return -10
	}
	if level >= 1 {
		return 0
	}
	return math.Log2(level)
}

// clampLevel limits level to [0, 1].
func clampLevel(level float64) float64 {
	if math.IsNaN(level) || level < 0 {
		return 0
	}
	if level > 1 {
		return 1
	}
	return level
}
