package playback

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/domain/playlist"
	"github.com/osa030/19deck/internal/domain/track"
)

// Errors
var (
	ErrIndexOutOfRange = playlist.ErrIndexOutOfRange
	ErrInvalidVolume   = errors.New("volume must be within 0..100")
	ErrInvalidPosition = errors.New("position must be non-negative")
	ErrClosed          = errors.New("controller closed")
	ErrAlreadyRunning  = errors.New("controller already running")
)

const inboxSize = 256

// Config holds controller configuration.
type Config struct {
	DefaultVolume    int           // Initial volume 0..100
	RestartThreshold time.Duration // Previous restarts the track when elapsed exceeds this
	ResumeDelay      time.Duration // Delay between resume attempts after a track switch
	ResumeAttempts   int           // Play retries issued when the engine never reports ready
	EventBuffer      int           // Event channel capacity
}

// DefaultConfig returns the stock controller configuration.
func DefaultConfig() Config {
	return Config{
		DefaultVolume:    70,
		RestartThreshold: 3 * time.Second,
		ResumeDelay:      100 * time.Millisecond,
		ResumeAttempts:   3,
		EventBuffer:      32,
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithRandom sets the index source used by shuffle. fn returns a value in [0, n).
func WithRandom(fn func(n int) int) Option {
	return func(c *Controller) {
		c.random = fn
	}
}

// pendingResume is a Play owed to the engine once the load for seq settles.
type pendingResume struct {
	seq      uint64
	attempts int
	timer    *time.Timer
}

// Controller owns the playback state and the playlist.
// All state is touched only by the goroutine running Run; public methods
// enqueue work on its inbox and wait for the result.
type Controller struct {
	playlist *playlist.Playlist
	engine   Engine
	config   Config
	random   func(n int) int

	inbox   chan func()
	eventCh chan Event
	stop    chan struct{}
	done    chan struct{}

	stopOnce sync.Once
	running  atomic.Bool

	// Engine events that found the inbox full, oldest first
	overflowMu sync.Mutex
	overflow   []func()

	// Owned by the Run goroutine
	index   int
	playing bool
	elapsed time.Duration
	volume  int
	muted   bool
	shuffle bool
	repeat  RepeatMode
	ticket  Ticket
	resume  *pendingResume
}

// NewController creates a controller for pl driving engine.
// The engine is attached to the controller as its event sink.
func NewController(pl *playlist.Playlist, engine Engine, config Config, opts ...Option) (*Controller, error) {
	if pl == nil || pl.Len() == 0 {
		return nil, playlist.ErrEmptyPlaylist
	}
	if config.DefaultVolume < 0 || config.DefaultVolume > 100 {
		return nil, errors.Wrapf(ErrInvalidVolume, "default volume %d", config.DefaultVolume)
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = DefaultConfig().EventBuffer
	}

	c := &Controller{
		playlist: pl,
		engine:   engine,
		config:   config,
		random:   rand.IntN,
		inbox:    make(chan func(), inboxSize),
		eventCh:  make(chan Event, config.EventBuffer),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		volume:   config.DefaultVolume,
		repeat:   RepeatOff,
	}
	for _, opt := range opts {
		opt(c)
	}

	engine.Attach(c)
	return c, nil
}

// Events returns the event channel. It is closed when Run returns.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Run processes intents and engine events until ctx is cancelled or Close is
// called. On start it loads the current track without playing it.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(c.done)
	defer close(c.eventCh)
	defer c.stopOnce.Do(func() { close(c.stop) })
	defer c.clearResume()

	zlog.Info().Msgf("playback: controller started: playlist=%s tracks=%d", c.playlist.Name(), c.playlist.Len())

	c.applyVolume()
	c.load()
	c.emit(EventTrackChanged)

	for {
		select {
		case <-ctx.Done():
			zlog.Info().Msg("playback: controller stopped by context")
			return ctx.Err()
		case <-c.stop:
			zlog.Info().Msg("playback: controller closed")
			return nil
		case msg := <-c.inbox:
			msg()
		}
	}
}

// Close stops the controller loop. Further intents return ErrClosed.
// The engine is not closed; its owner is responsible for that.
func (c *Controller) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Done is closed once Run has returned.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// TogglePlayPause flips the playing state.
func (c *Controller) TogglePlayPause(ctx context.Context) error {
	return c.do(ctx, func() error {
		if c.playing {
			c.playing = false
			c.clearResume()
			if err := c.engine.Pause(); err != nil {
				zlog.Warn().Err(err).Msg("playback: engine pause failed")
			}
			zlog.Debug().Msgf("playback: paused: index=%d elapsed=%v", c.index, c.elapsed)
			c.emit(EventStateChanged)
			return nil
		}

		c.playing = true
		zlog.Debug().Msgf("playback: playing: index=%d elapsed=%v", c.index, c.elapsed)
		c.emit(EventStateChanged)
		c.play()
		return nil
	})
}

// Select switches to the track at index.
func (c *Controller) Select(ctx context.Context, index int) error {
	return c.do(ctx, func() error {
		if index < 0 || index >= c.playlist.Len() {
			return errors.Wrapf(ErrIndexOutOfRange, "index=%d len=%d", index, c.playlist.Len())
		}
		c.switchTo(index)
		return nil
	})
}

// Next switches to the next track per the shuffle policy.
// Repeat mode does not affect a manual skip.
func (c *Controller) Next(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.switchTo(c.nextIndex())
		return nil
	})
}

// Previous restarts the current track when more than the restart threshold
// has elapsed, otherwise switches to the previous track in linear order.
func (c *Controller) Previous(ctx context.Context) error {
	return c.do(ctx, func() error {
		if c.elapsed > c.config.RestartThreshold {
			zlog.Debug().Msgf("playback: restarting track: index=%d elapsed=%v", c.index, c.elapsed)
			c.elapsed = 0
			c.seek(0)
			c.emit(EventPositionChanged)
			return nil
		}
		n := c.playlist.Len()
		c.switchTo((c.index - 1 + n) % n)
		return nil
	})
}

// Seek moves the position within the current track. Positions beyond the
// track's duration are passed through; the engine reports the end itself.
func (c *Controller) Seek(ctx context.Context, pos time.Duration) error {
	if pos < 0 {
		return errors.Wrapf(ErrInvalidPosition, "position=%v", pos)
	}
	return c.do(ctx, func() error {
		c.elapsed = pos
		c.seek(pos)
		c.emit(EventPositionChanged)
		return nil
	})
}

// SetVolume sets the raw volume. While muted the output stays silent.
func (c *Controller) SetVolume(ctx context.Context, percent int) error {
	if percent < 0 || percent > 100 {
		return errors.Wrapf(ErrInvalidVolume, "volume=%d", percent)
	}
	return c.do(ctx, func() error {
		c.volume = percent
		c.applyVolume()
		c.emit(EventVolumeChanged)
		return nil
	})
}

// ToggleMute flips mute without touching the raw volume.
func (c *Controller) ToggleMute(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.muted = !c.muted
		c.applyVolume()
		c.emit(EventVolumeChanged)
		return nil
	})
}

// ToggleShuffle flips shuffle. The current index is unchanged.
func (c *Controller) ToggleShuffle(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.shuffle = !c.shuffle
		c.emit(EventModeChanged)
		return nil
	})
}

// CycleRepeat advances the repeat mode off -> all -> one -> off.
func (c *Controller) CycleRepeat(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.repeat = c.repeat.Next()
		c.emit(EventModeChanged)
		return nil
	})
}

// Snapshot returns the current state.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := c.do(ctx, func() error {
		snap = c.snapshot()
		return nil
	})
	return snap, err
}

// Playlist returns a copy of the tracks, durations included.
func (c *Controller) Playlist(ctx context.Context) ([]track.Track, error) {
	var tracks []track.Track
	err := c.do(ctx, func() error {
		tracks = c.playlist.Tracks()
		return nil
	})
	return tracks, err
}

// Ready implements Sink.
func (c *Controller) Ready(t Ticket) {
	c.post(func() { c.onReady(t) })
}

// MetadataLoaded implements Sink.
func (c *Controller) MetadataLoaded(t Ticket, seconds float64) {
	c.post(func() { c.onMetadataLoaded(t, seconds) })
}

// TimeUpdate implements Sink. Time updates are dropped when the inbox is full.
func (c *Controller) TimeUpdate(t Ticket, seconds float64) {
	c.overflowMu.Lock()
	defer c.overflowMu.Unlock()
	if len(c.overflow) > 0 {
		return
	}
	select {
	case c.inbox <- func() { c.onTimeUpdate(t, seconds) }:
	default:
	}
}

// Ended implements Sink.
func (c *Controller) Ended(t Ticket) {
	c.post(func() { c.onEnded(t) })
}

// Failed implements Sink.
func (c *Controller) Failed(t Ticket, err error) {
	c.post(func() { c.onFailed(t, err) })
}

func (c *Controller) onReady(t Ticket) {
	if !c.isCurrent(t) {
		zlog.Debug().Msgf("playback: ignoring stale ready: ticket=%s current=%s", t, c.ticket)
		return
	}
	if c.resume == nil || c.resume.seq != t.Seq {
		return
	}
	zlog.Debug().Msgf("playback: engine ready, resuming: ticket=%s", t)
	c.play()
}

func (c *Controller) onMetadataLoaded(t Ticket, seconds float64) {
	tr, err := c.playlist.Get(t.Index)
	if err != nil || tr.ID != t.TrackID {
		zlog.Warn().Msgf("playback: metadata for unknown track ignored: ticket=%s", t)
		return
	}
	if _, ok := track.DurationFromSeconds(seconds); !ok {
		zlog.Debug().Msgf("playback: ignoring invalid duration: ticket=%s seconds=%v", t, seconds)
		return
	}
	if err := c.playlist.SetDuration(t.Index, seconds); err != nil {
		zlog.Warn().Err(err).Msgf("playback: failed to record duration: ticket=%s", t)
		return
	}
	zlog.Debug().Msgf("playback: duration recorded: ticket=%s seconds=%.3f", t, seconds)
	c.emitFor(EventDurationChanged, t.Index, nil)
}

func (c *Controller) onTimeUpdate(t Ticket, seconds float64) {
	if !c.isCurrent(t) {
		return
	}
	d, ok := track.DurationFromSeconds(seconds)
	if !ok {
		return
	}
	c.elapsed = d
	if c.resume != nil && c.playing {
		zlog.Debug().Msgf("playback: audio flowing, resume settled: ticket=%s", t)
		c.clearResume()
	}
	c.emit(EventPositionChanged)
}

func (c *Controller) onEnded(t Ticket) {
	if !c.isCurrent(t) {
		zlog.Debug().Msgf("playback: ignoring stale end: ticket=%s current=%s", t, c.ticket)
		return
	}

	switch {
	case c.repeat == RepeatOne:
		zlog.Debug().Msgf("playback: repeating track: index=%d", c.index)
		c.elapsed = 0
		c.seek(0)
		c.emit(EventPositionChanged)
		if !c.playing {
			c.playing = true
			c.emit(EventStateChanged)
		}
		c.play()
	case c.repeat == RepeatAll || c.index < c.playlist.Len()-1:
		c.switchTo(c.nextIndex())
	default:
		zlog.Info().Msgf("playback: playlist finished: index=%d", c.index)
		c.clearResume()
		c.playing = false
		c.emit(EventStateChanged)
		c.emit(EventPlaylistFinished)
	}
}

func (c *Controller) onFailed(t Ticket, err error) {
	if !c.isCurrent(t) {
		zlog.Debug().Err(err).Msgf("playback: ignoring stale failure: ticket=%s current=%s", t, c.ticket)
		return
	}
	c.fail(err)
}

// switchTo applies the track switch: set index, reset elapsed, load, and
// arm a resume when playing.
func (c *Controller) switchTo(index int) {
	c.clearResume()
	c.index = index
	c.elapsed = 0
	zlog.Debug().Msgf("playback: switching track: index=%d playing=%v", index, c.playing)

	loaded := c.load()
	c.emit(EventTrackChanged)

	if loaded && c.playing {
		c.resume = &pendingResume{seq: c.ticket.Seq}
		c.scheduleResume(c.ticket.Seq)
	}
}

// load issues a new ticket for the current index and hands the source to the
// engine. Returns false when the engine rejected the load.
func (c *Controller) load() bool {
	tr, err := c.playlist.Get(c.index)
	if err != nil {
		c.fail(err)
		return false
	}
	c.ticket = Ticket{Seq: c.ticket.Seq + 1, Index: c.index, TrackID: tr.ID}
	if err := c.engine.Load(c.ticket, tr.SourceRef); err != nil {
		c.fail(errors.Wrapf(err, "load %s", tr.SourceRef))
		return false
	}
	return true
}

func (c *Controller) play() {
	if err := c.engine.Play(); err != nil {
		c.fail(errors.Wrap(err, "play"))
	}
}

func (c *Controller) seek(pos time.Duration) {
	if err := c.engine.SeekTo(pos); err != nil {
		zlog.Warn().Err(err).Msgf("playback: engine seek failed: position=%v", pos)
	}
}

func (c *Controller) applyVolume() {
	if err := c.engine.SetVolume(effectiveVolume(c.volume, c.muted)); err != nil {
		zlog.Warn().Err(err).Msgf("playback: engine volume failed: volume=%d muted=%v", c.volume, c.muted)
	}
}

// fail stops playback after an engine failure. Index and elapsed keep their
// last known-good values.
func (c *Controller) fail(err error) {
	zlog.Error().Err(err).Msgf("playback: playback failed: ticket=%s", c.ticket)
	c.clearResume()
	c.playing = false
	c.emitFor(EventPlaybackFailed, c.index, err)
}

func (c *Controller) scheduleResume(seq uint64) {
	if c.config.ResumeAttempts <= 0 {
		return
	}
	r := c.resume
	r.timer = time.AfterFunc(c.config.ResumeDelay, func() {
		c.post(func() { c.retryResume(seq) })
	})
}

func (c *Controller) retryResume(seq uint64) {
	r := c.resume
	if r == nil || r.seq != seq || !c.playing {
		return
	}
	r.attempts++
	zlog.Debug().Msgf("playback: resume attempt: ticket=%s attempt=%d/%d", c.ticket, r.attempts, c.config.ResumeAttempts)
	c.play()
	if c.resume != r {
		return
	}
	if r.attempts >= c.config.ResumeAttempts {
		c.resume = nil
		return
	}
	c.scheduleResume(seq)
}

func (c *Controller) clearResume() {
	if c.resume == nil {
		return
	}
	if c.resume.timer != nil {
		c.resume.timer.Stop()
	}
	c.resume = nil
}

func (c *Controller) nextIndex() int {
	n := c.playlist.Len()
	if c.shuffle {
		return c.random(n)
	}
	return (c.index + 1) % n
}

func (c *Controller) isCurrent(t Ticket) bool {
	return t.Seq == c.ticket.Seq
}

func (c *Controller) snapshot() Snapshot {
	tr, _ := c.playlist.Get(c.index)
	return Snapshot{
		Index:   c.index,
		Track:   tr,
		Length:  c.playlist.Len(),
		Playing: c.playing,
		Elapsed: c.elapsed,
		Volume:  c.volume,
		Muted:   c.muted,
		Shuffle: c.shuffle,
		Repeat:  c.repeat,
		Ticket:  c.ticket.Seq,
	}
}

func (c *Controller) emit(t EventType) {
	c.emitFor(t, c.index, nil)
}

// emitFor sends an event without blocking. Events are dropped when the
// channel is full.
func (c *Controller) emitFor(t EventType, index int, err error) {
	e := Event{Type: t, Snapshot: c.snapshot(), TrackIndex: index, Err: err}
	select {
	case c.eventCh <- e:
	default:
		zlog.Debug().Msgf("playback: event channel full, dropping event: type=%s", t)
	}
}

// do runs fn on the Run goroutine and waits for its result.
func (c *Controller) do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	select {
	case <-c.stop:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case c.inbox <- func() { result <- fn() }:
	}

	select {
	case err := <-result:
		return err
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post enqueues an engine event without blocking the engine. When the inbox
// is full the event joins the overflow queue, and later events queue behind
// it until it drains, so the loop sees engine events in the order they were
// reported.
func (c *Controller) post(msg func()) {
	c.overflowMu.Lock()
	defer c.overflowMu.Unlock()

	if len(c.overflow) == 0 {
		select {
		case c.inbox <- msg:
			return
		case <-c.stop:
			return
		default:
		}
	}
	c.overflow = append(c.overflow, msg)
	if len(c.overflow) == 1 {
		go c.drainOverflow()
	}
}

// drainOverflow feeds queued events to the inbox in order. It exits once the
// queue is empty; the next overflowing post starts a new drainer.
func (c *Controller) drainOverflow() {
	for {
		c.overflowMu.Lock()
		msg := c.overflow[0]
		c.overflowMu.Unlock()

		select {
		case c.inbox <- msg:
		case <-c.stop:
			c.overflowMu.Lock()
			c.overflow = nil
			c.overflowMu.Unlock()
			return
		}

		c.overflowMu.Lock()
		c.overflow = c.overflow[1:]
		empty := len(c.overflow) == 0
		c.overflowMu.Unlock()
		if empty {
			return
		}
	}
}
