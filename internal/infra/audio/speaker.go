//go:build (linux && cgo) || windows || darwin

package audio

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/app/playback"
)

// SpeakerAvailable indicates whether speaker output is supported in this build.
const SpeakerAvailable = true

// output is the mixer the engine plays into. Play and Clear take the output
// lock themselves.
type output interface {
	Init(sampleRate beep.SampleRate, bufferSize int) error
	Play(s beep.Streamer)
	Clear()
	Lock()
	Unlock()
}

// speakerOutput is the system audio device.
type speakerOutput struct{}

func (speakerOutput) Init(sr beep.SampleRate, bufferSize int) error { return speaker.Init(sr, bufferSize) }
func (speakerOutput) Play(s beep.Streamer)                          { speaker.Play(s) }
func (speakerOutput) Clear()                                        { speaker.Clear() }
func (speakerOutput) Lock()                                         { speaker.Lock() }
func (speakerOutput) Unlock()                                       { speaker.Unlock() }

// speakerEngine plays sources through the system audio device.
type speakerEngine struct {
	settings   SpeakerSettings
	sampleRate beep.SampleRate
	out        output

	mu          sync.Mutex
	sink        playback.Sink
	initialized bool
	ticket      playback.Ticket
	streamer    beep.StreamSeekCloser
	format      beep.Format
	ctrl        *beep.Ctrl
	volume      *effects.Volume
	level       float64
	playing     bool
	ended       bool // The stream reached its end and no seek has happened since
	drained     bool // The chain left the speaker mixer and must be handed back to play
	stopTick    chan struct{}
	closed      bool
}

func newSpeakerEngine(settings SpeakerSettings) (playback.Engine, error) {
	return newOutputEngine(settings, speakerOutput{}), nil
}

func newOutputEngine(settings SpeakerSettings, out output) *speakerEngine {
	e := &speakerEngine{
		settings:   settings,
		sampleRate: beep.SampleRate(settings.SampleRate),
		out:        out,
		level:      1,
		stopTick:   make(chan struct{}),
	}
	go e.reportPosition(time.Duration(settings.TickIntervalMs)*time.Millisecond, e.stopTick)
	return e
}

// Attach implements playback.Engine.
func (e *speakerEngine) Attach(sink playback.Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
}

// Load implements playback.Engine. Decoding runs in the background.
func (e *speakerEngine) Load(t playback.Ticket, sourceRef string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	e.stopLocked()
	e.ticket = t

	go e.open(t, sourceRef)
	return nil
}

func (e *speakerEngine) open(t playback.Ticket, sourceRef string) {
	streamer, format, err := openSource(sourceRef)

	e.mu.Lock()
	if e.closed || e.ticket.Seq != t.Seq {
		e.mu.Unlock()
		if streamer != nil {
			streamer.Close()
		}
		zlog.Debug().Msgf("audio: dropping superseded load: ticket=%s", t)
		return
	}
	sink := e.sink
	if err == nil {
		err = e.initSpeakerLocked()
		if err != nil {
			streamer.Close()
		}
	}
	if err != nil {
		e.mu.Unlock()
		if sink != nil {
			sink.Failed(t, err)
		}
		return
	}

	e.streamer = streamer
	e.format = format

	var stream beep.Streamer = streamer
	if format.SampleRate != e.sampleRate {
		stream = beep.Resample(e.settings.ResampleQuality, format.SampleRate, e.sampleRate, streamer)
	}
	e.ctrl = &beep.Ctrl{Streamer: stream, Paused: !e.playing}
	e.volume = &effects.Volume{
		Streamer: e.ctrl,
		Base:     2,
		Volume:   levelToVolume(e.level),
		Silent:   e.level <= 0,
	}
	e.connectLocked(t)

	duration := format.SampleRate.D(streamer.Len())
	e.mu.Unlock()

	zlog.Debug().Msgf("audio: source loaded: ticket=%s duration=%v sample_rate=%d", t, duration, format.SampleRate)
	if sink != nil {
		sink.MetadataLoaded(t, duration.Seconds())
		sink.Ready(t)
	}
}

// initSpeakerLocked must be called with lock held.
func (e *speakerEngine) initSpeakerLocked() error {
	if e.initialized {
		return nil
	}
	buffer := e.sampleRate.N(time.Duration(e.settings.BufferMs) * time.Millisecond)
	if err := e.out.Init(e.sampleRate, buffer); err != nil {
		return errors.Wrap(err, "failed to initialize speaker")
	}
	e.initialized = true
	return nil
}

// connectLocked hands the volume chain to the output mixer. The mixer drops
// a streamer once it drains, so a finished source is connected again before
// it can replay. Must be called with lock held.
func (e *speakerEngine) connectLocked(t playback.Ticket) {
	e.drained = false
	e.ended = false
	e.out.Play(beep.Seq(e.volume, beep.Callback(func() {
		// Runs under the output lock.
		go e.finished(t)
	})))
}

func (e *speakerEngine) finished(t playback.Ticket) {
	e.mu.Lock()
	if e.ticket.Seq != t.Seq || e.closed {
		e.mu.Unlock()
		return
	}
	e.playing = false
	e.ended = true
	e.drained = true
	if e.ctrl != nil {
		e.out.Lock()
		e.ctrl.Paused = true
		e.out.Unlock()
	}
	sink := e.sink
	e.mu.Unlock()

	if sink != nil {
		sink.Ended(t)
	}
}

// Play implements playback.Engine. Playing a source that ran to its end
// starts it over.
func (e *speakerEngine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	e.playing = true
	if e.ctrl == nil {
		return nil
	}

	e.out.Lock()
	if e.ended {
		if err := e.streamer.Seek(0); err != nil {
			e.out.Unlock()
			return errors.Wrap(err, "failed to rewind source")
		}
	}
	e.ctrl.Paused = false
	e.out.Unlock()

	if e.drained {
		e.connectLocked(e.ticket)
	}
	return nil
}

// Pause implements playback.Engine.
func (e *speakerEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.playing = false
	if e.ctrl != nil {
		e.out.Lock()
		e.ctrl.Paused = true
		e.out.Unlock()
	}
	return nil
}

// SeekTo implements playback.Engine. Positions past the end are clamped to
// the end so the stream finishes and reports Ended.
func (e *speakerEngine) SeekTo(pos time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.streamer == nil {
		return nil
	}
	n := max(e.format.SampleRate.N(pos), 0)
	n = min(n, e.streamer.Len())
	e.ended = false

	e.out.Lock()
	defer e.out.Unlock()
	return e.streamer.Seek(n)
}

// SetVolume implements playback.Engine.
func (e *speakerEngine) SetVolume(fraction float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.level = clampLevel(fraction)
	if e.volume != nil {
		e.out.Lock()
		e.volume.Volume = levelToVolume(e.level)
		e.volume.Silent = e.level <= 0
		e.out.Unlock()
	}
	return nil
}

// Close implements playback.Engine.
func (e *speakerEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	close(e.stopTick)
	e.stopLocked()
	return nil
}

// stopLocked releases the current source. Must be called with lock held.
func (e *speakerEngine) stopLocked() {
	if e.ctrl != nil {
		e.out.Clear()
	}
	if e.streamer != nil {
		if err := e.streamer.Close(); err != nil {
			zlog.Warn().Err(err).Msg("audio: failed to close source")
		}
		e.streamer = nil
	}
	e.ctrl = nil
	e.volume = nil
	e.ended = false
	e.drained = false
}

// reportPosition sends time updates while playing.
func (e *speakerEngine) reportPosition(interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		e.mu.Lock()
		if !e.playing || e.streamer == nil {
			e.mu.Unlock()
			continue
		}
		e.out.Lock()
		pos := e.format.SampleRate.D(e.streamer.Position())
		e.out.Unlock()
		t := e.ticket
		sink := e.sink
		e.mu.Unlock()

		if sink != nil {
			sink.TimeUpdate(t, pos.Seconds())
		}
	}
}
