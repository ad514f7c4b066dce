// Package session provides the session manager.
package session

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/app/notification"
	"github.com/osa030/19deck/internal/app/playback"
	"github.com/osa030/19deck/internal/domain/playlist"
	"github.com/osa030/19deck/internal/infra/config"
)

var (
	ErrSessionStarted    = errors.New("session has already been started")
	ErrSessionNotRunning = errors.New("session is not running")
)

// Phase represents the session lifecycle phase.
type Phase int

const (
	PhaseIdle       Phase = iota // Created, not started
	PhaseRunning                 // Controller loop is running
	PhaseTerminated              // Controller stopped and engine released
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Manager owns one playback session: the playlist, the media engine, the
// controller driving it and the notification fan-out of its events.
type Manager struct {
	mu sync.RWMutex

	// Components
	playlist     *playlist.Playlist
	engine       playback.Engine
	playback     *playback.Controller
	notification *notification.Manager

	phase  Phase
	cancel context.CancelFunc
	done   chan struct{}
}

// PlaybackConfig converts the configuration section into controller settings.
func PlaybackConfig(cfg config.PlaybackConfig) playback.Config {
	return playback.Config{
		DefaultVolume:    cfg.Volume(),
		RestartThreshold: cfg.RestartThreshold(),
		ResumeDelay:      cfg.ResumeDelay(),
		ResumeAttempts:   cfg.Attempts(),
		EventBuffer:      cfg.EventBuffer,
	}
}

// NewManager creates a new session manager. The manager takes ownership of
// engine and closes it when the session terminates.
func NewManager(
	cfg *config.Config,
	pl *playlist.Playlist,
	engine playback.Engine,
	opts ...playback.Option,
) (*Manager, error) {
	controller, err := playback.NewController(pl, engine, PlaybackConfig(cfg.Playback), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create playback controller")
	}

	notifier := notification.NewManager(
		cfg.Notification.SendTimeout(),
		notification.WithMaxFailures(cfg.Notification.MaxFailures),
	)

	return &Manager{
		playlist:     pl,
		engine:       engine,
		playback:     controller,
		notification: notifier,
		phase:        PhaseIdle,
		done:         make(chan struct{}),
	}, nil
}

// Start starts the controller loop and the notification pump.
// The session terminates when ctx ends or Stop is called.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseIdle {
		return ErrSessionStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.phase = PhaseRunning

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.playbackLoop()
	}()

	go func() {
		err := m.playback.Run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			zlog.Error().Msgf("session: playback controller stopped: %v", err)
		}
		// Events channel is closed by now, so the loop drains and exits
		wg.Wait()
		m.terminate()
	}()

	zlog.Info().Msgf("session started: playlist=%s tracks=%d", m.playlist.Name(), m.playlist.Len())
	return nil
}

// Stop stops the session and waits until the engine has been released.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.RLock()
	phase := m.phase
	m.mu.RUnlock()

	if phase == PhaseIdle {
		return ErrSessionNotRunning
	}

	m.playback.Close()

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// terminate releases the engine and subscribers.
func (m *Manager) terminate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancel()
	if err := m.engine.Close(); err != nil {
		zlog.Warn().Msgf("session: failed to close engine: %v", err)
	}
	m.notification.Close()
	m.phase = PhaseTerminated
	close(m.done)
	zlog.Info().Msg("session terminated")
}

// Done returns a channel closed when the session has terminated.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Phase returns the current lifecycle phase.
func (m *Manager) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// Playback returns the playback controller.
func (m *Manager) Playback() *playback.Controller {
	return m.playback
}

// GetNotificationManager returns the notification manager.
func (m *Manager) GetNotificationManager() *notification.Manager {
	return m.notification
}

// PlaylistName returns the name of the session's playlist.
func (m *Manager) PlaylistName() string {
	return m.playlist.Name()
}

// playbackLoop forwards controller events to subscribers until the events
// channel closes.
func (m *Manager) playbackLoop() {
	for event := range m.playback.Events() {
		m.handlePlaybackEvent(event)
	}
}

// handlePlaybackEvent handles playback events.
func (m *Manager) handlePlaybackEvent(event playback.Event) {
	switch event.Type {
	case playback.EventPositionChanged:
		// Too frequent to log

	case playback.EventPlaybackFailed:
		zlog.Warn().Msgf("playback event: type=%s index=%d err=%v", event.Type, event.TrackIndex, event.Err)

	case playback.EventTrackChanged:
		zlog.Info().Msgf("playback event: type=%s index=%d track=%s", event.Type, event.Snapshot.Index, event.Snapshot.Track.DisplayName())

	default:
		zlog.Debug().Msgf("playback event: type=%s index=%d", event.Type, event.TrackIndex)
	}

	m.notification.Broadcast(notification.FromEvent(event))
}
