//go:build !((linux && cgo) || windows || darwin)

package audio

import "github.com/osa030/19deck/internal/app/playback"

// SpeakerAvailable indicates whether speaker output is supported in this build.
// Speaker output requires cgo for the native sound libraries.
const SpeakerAvailable = false

func newSpeakerEngine(SpeakerSettings) (playback.Engine, error) {
	return nil, ErrSpeakerUnavailable
}
