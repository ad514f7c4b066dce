package notification

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/19deck/internal/app/playback"
	"github.com/osa030/19deck/internal/domain/track"
)

// Errors returned by ChannelStream.
var (
	ErrStreamFull   = errors.New("notification stream is full")
	ErrStreamClosed = errors.New("notification stream is closed")
)

// Notification is the wire form of a playback event.
type Notification struct {
	SequenceNo uint64    `json:"sequence_no"`
	Type       string    `json:"type"`
	TrackIndex int       `json:"track_index"`
	Error      string    `json:"error,omitempty"`
	State      State     `json:"state"`
	Time       time.Time `json:"time"`
}

// State is the wire form of a playback snapshot.
type State struct {
	Index           int       `json:"index"`
	Length          int       `json:"length"`
	Track           TrackInfo `json:"track"`
	Playing         bool      `json:"playing"`
	ElapsedSeconds  float64   `json:"elapsed_seconds"`
	Volume          int       `json:"volume"`
	Muted           bool      `json:"muted"`
	EffectiveVolume float64   `json:"effective_volume"`
	Shuffle         bool      `json:"shuffle"`
	Repeat          string    `json:"repeat"`
}

// TrackInfo is the wire form of a track.
type TrackInfo struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Artist          string  `json:"artist,omitempty"`
	Source          string  `json:"source"`
	Cover           string  `json:"cover,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"` // 0 while unknown
}

// NewState converts a snapshot.
func NewState(s playback.Snapshot) State {
	return State{
		Index:           s.Index,
		Length:          s.Length,
		Track:           NewTrackInfo(s.Track),
		Playing:         s.Playing,
		ElapsedSeconds:  s.Elapsed.Seconds(),
		Volume:          s.Volume,
		Muted:           s.Muted,
		EffectiveVolume: s.EffectiveVolume(),
		Shuffle:         s.Shuffle,
		Repeat:          s.Repeat.String(),
	}
}

// NewTrackInfo converts a track.
func NewTrackInfo(t track.Track) TrackInfo {
	return TrackInfo{
		ID:              t.ID,
		Title:           t.Title,
		Artist:          t.Artist,
		Source:          t.SourceRef,
		Cover:           t.CoverRef,
		DurationSeconds: t.Duration.Seconds(),
	}
}

// FromEvent builds an unsequenced notification for ev.
func FromEvent(ev playback.Event) *Notification {
	n := &Notification{
		Type:       ev.Type.String(),
		TrackIndex: ev.TrackIndex,
		State:      NewState(ev.Snapshot),
		Time:       time.Now(),
	}
	if ev.Err != nil {
		n.Error = ev.Err.Error()
	}
	return n
}

// ChannelStream queues notifications on a buffered channel.
// Send never blocks; it fails with ErrStreamFull instead.
type ChannelStream struct {
	ch        chan *Notification
	done      chan struct{}
	closeOnce sync.Once
}

// NewChannelStream creates a stream holding up to size notifications.
func NewChannelStream(size int) *ChannelStream {
	return &ChannelStream{
		ch:   make(chan *Notification, size),
		done: make(chan struct{}),
	}
}

// Send implements Stream.
func (s *ChannelStream) Send(n *Notification) error {
	select {
	case <-s.done:
		return ErrStreamClosed
	default:
	}
	select {
	case s.ch <- n:
		return nil
	default:
		return ErrStreamFull
	}
}

// Close implements Closer. The manager closes a stream when it drops the
// subscriber or shuts down.
func (s *ChannelStream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// C returns the receive side of the stream.
func (s *ChannelStream) C() <-chan *Notification {
	return s.ch
}

// Done is closed once the stream is closed.
func (s *ChannelStream) Done() <-chan struct{} {
	return s.done
}
