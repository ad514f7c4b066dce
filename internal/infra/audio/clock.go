package audio

import (
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/app/playback"
)

// ClockEngine is a headless engine. It probes sources for their duration and
// advances a virtual playhead on a ticker instead of producing sound.
type ClockEngine struct {
	settings ClockSettings
	probe    func(sourceRef string) (time.Duration, error)

	mu       sync.Mutex
	sink     playback.Sink
	ticket   playback.Ticket
	ready    bool
	duration time.Duration
	position time.Duration
	playing  bool
	ended    bool
	level    float64
	stopTick chan struct{}
	closed   bool
}

// ClockOption configures a ClockEngine.
type ClockOption func(*ClockEngine)

// WithProbe replaces the duration probe.
func WithProbe(fn func(sourceRef string) (time.Duration, error)) ClockOption {
	return func(e *ClockEngine) {
		e.probe = fn
	}
}

// NewClockEngine creates a clock engine.
func NewClockEngine(settings ClockSettings, opts ...ClockOption) *ClockEngine {
	if settings.TickIntervalMs <= 0 {
		settings.TickIntervalMs = 250
	}
	e := &ClockEngine{
		settings: settings,
		probe:    Probe,
		level:    1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Attach implements playback.Engine.
func (e *ClockEngine) Attach(sink playback.Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
}

// Load implements playback.Engine. Probing happens in the background; the
// sink receives MetadataLoaded and Ready once it completes.
func (e *ClockEngine) Load(t playback.Ticket, sourceRef string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	e.stopTickerLocked()
	e.ticket = t
	e.ready = false
	e.duration = 0
	e.position = 0
	e.ended = false

	go e.prepare(t, sourceRef)
	return nil
}

func (e *ClockEngine) prepare(t playback.Ticket, sourceRef string) {
	if e.settings.LoadLatencyMs > 0 {
		time.Sleep(time.Duration(e.settings.LoadLatencyMs) * time.Millisecond)
	}

	d, err := e.probe(sourceRef)
	if err != nil && e.settings.FallbackDurationMs > 0 {
		zlog.Warn().Err(err).Msgf("audio: probe failed, using fallback duration: source=%s", sourceRef)
		d = time.Duration(e.settings.FallbackDurationMs) * time.Millisecond
		err = nil
	}

	e.mu.Lock()
	if e.closed || e.ticket.Seq != t.Seq {
		e.mu.Unlock()
		zlog.Debug().Msgf("audio: dropping superseded load: ticket=%s", t)
		return
	}
	sink := e.sink
	if err != nil {
		e.mu.Unlock()
		if sink != nil {
			sink.Failed(t, err)
		}
		return
	}
	e.duration = d
	e.ready = true
	if e.playing {
		e.startTickerLocked()
	}
	e.mu.Unlock()

	if sink != nil {
		sink.MetadataLoaded(t, d.Seconds())
		sink.Ready(t)
	}
}

// Play implements playback.Engine. A play issued before the source is ready
// takes effect once it is. Playing a source that ran to its end starts it over.
func (e *ClockEngine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	if e.ended {
		e.position = 0
		e.ended = false
	}
	e.playing = true
	if e.ready {
		e.startTickerLocked()
	}
	return nil
}

// Pause implements playback.Engine.
func (e *ClockEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.playing = false
	e.stopTickerLocked()
	return nil
}

// SeekTo implements playback.Engine. Positions past the end are reported as
// ended on the next tick.
func (e *ClockEngine) SeekTo(pos time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if pos < 0 {
		pos = 0
	}
	e.position = pos
	e.ended = false
	return nil
}

// SetVolume implements playback.Engine.
func (e *ClockEngine) SetVolume(fraction float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.level = clampLevel(fraction)
	return nil
}

// Close implements playback.Engine.
func (e *ClockEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.playing = false
	e.stopTickerLocked()
	return nil
}

// Level returns the effective output level.
func (e *ClockEngine) Level() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.level
}

// Position returns the playhead position.
func (e *ClockEngine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

// startTickerLocked must be called with lock held.
func (e *ClockEngine) startTickerLocked() {
	if e.stopTick != nil {
		return
	}
	stop := make(chan struct{})
	e.stopTick = stop
	go e.tick(e.ticket, stop)
}

// stopTickerLocked must be called with lock held.
func (e *ClockEngine) stopTickerLocked() {
	if e.stopTick != nil {
		close(e.stopTick)
		e.stopTick = nil
	}
}

func (e *ClockEngine) tick(t playback.Ticket, stop chan struct{}) {
	interval := time.Duration(e.settings.TickIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		e.mu.Lock()
		if e.stopTick != stop {
			e.mu.Unlock()
			return
		}
		e.position += interval
		// A zero-length source ends on the first tick.
		ended := e.position >= e.duration
		if ended {
			e.position = e.duration
			e.playing = false
			e.ended = true
			e.stopTick = nil
		}
		pos := e.position
		sink := e.sink
		e.mu.Unlock()

		if sink == nil {
			continue
		}
		sink.TimeUpdate(t, pos.Seconds())
		if ended {
			sink.Ended(t)
			return
		}
	}
}
