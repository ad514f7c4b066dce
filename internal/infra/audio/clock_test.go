package audio

import (
	"fmt"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19deck/internal/app/playback"
)

// recordingSink records engine events as strings.
type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) add(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, fmt.Sprintf(format, args...))
}

func (s *recordingSink) Ready(t playback.Ticket) { s.add("ready:%d", t.Seq) }
func (s *recordingSink) MetadataLoaded(t playback.Ticket, seconds float64) {
	s.add("metadata:%d:%.1f", t.Seq, seconds)
}
func (s *recordingSink) TimeUpdate(t playback.Ticket, seconds float64) {
	s.add("time:%d:%.1f", t.Seq, seconds)
}
func (s *recordingSink) Ended(t playback.Ticket)             { s.add("ended:%d", t.Seq) }
func (s *recordingSink) Failed(t playback.Ticket, err error) { s.add("failed:%d", t.Seq) }

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func fixedProbe(d time.Duration) func(string) (time.Duration, error) {
	return func(string) (time.Duration, error) { return d, nil }
}

func ticket(seq uint64) playback.Ticket {
	return playback.Ticket{Seq: seq, Index: int(seq - 1), TrackID: fmt.Sprintf("track-%d", seq)}
}

func TestClockEngine_LoadReportsMetadataAndReady(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sink := &recordingSink{}
		e := NewClockEngine(ClockSettings{TickIntervalMs: 250}, WithProbe(fixedProbe(90*time.Second)))
		e.Attach(sink)
		defer e.Close()

		require.NoError(t, e.Load(ticket(1), "/music/a.mp3"))
		synctest.Wait()

		assert.Equal(t, []string{"metadata:1:90.0", "ready:1"}, sink.snapshot())
	})
}

func TestClockEngine_PlaysToEnd(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sink := &recordingSink{}
		e := NewClockEngine(ClockSettings{TickIntervalMs: 500}, WithProbe(fixedProbe(time.Second)))
		e.Attach(sink)
		defer e.Close()

		require.NoError(t, e.Load(ticket(1), "/music/a.mp3"))
		require.NoError(t, e.Play())
		time.Sleep(2 * time.Second)
		synctest.Wait()

		assert.Equal(t, []string{
			"metadata:1:1.0",
			"ready:1",
			"time:1:0.5",
			"time:1:1.0",
			"ended:1",
		}, sink.snapshot())
		assert.Equal(t, time.Second, e.Position())
	})
}

func TestClockEngine_PauseStopsClock(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sink := &recordingSink{}
		e := NewClockEngine(ClockSettings{TickIntervalMs: 100}, WithProbe(fixedProbe(time.Minute)))
		e.Attach(sink)
		defer e.Close()

		require.NoError(t, e.Load(ticket(1), "/music/a.mp3"))
		require.NoError(t, e.Play())
		time.Sleep(350 * time.Millisecond)
		require.NoError(t, e.Pause())
		pos := e.Position()

		time.Sleep(time.Second)
		synctest.Wait()

		assert.Equal(t, 300*time.Millisecond, pos)
		assert.Equal(t, pos, e.Position())
	})
}

func TestClockEngine_SeekPastEndEnds(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sink := &recordingSink{}
		e := NewClockEngine(ClockSettings{TickIntervalMs: 100}, WithProbe(fixedProbe(10*time.Second)))
		e.Attach(sink)
		defer e.Close()

		require.NoError(t, e.Load(ticket(1), "/music/a.mp3"))
		synctest.Wait()
		require.NoError(t, e.SeekTo(time.Minute))
		require.NoError(t, e.Play())
		time.Sleep(150 * time.Millisecond)
		synctest.Wait()

		events := sink.snapshot()
		assert.Equal(t, "ended:1", events[len(events)-1])
		assert.Equal(t, 10*time.Second, e.Position())
	})
}

func TestClockEngine_SupersededLoadIsDropped(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sink := &recordingSink{}
		e := NewClockEngine(
			ClockSettings{TickIntervalMs: 100, LoadLatencyMs: 200},
			WithProbe(fixedProbe(30*time.Second)),
		)
		e.Attach(sink)
		defer e.Close()

		require.NoError(t, e.Load(ticket(1), "/music/a.mp3"))
		require.NoError(t, e.Load(ticket(2), "/music/b.mp3"))
		time.Sleep(time.Second)
		synctest.Wait()

		assert.Equal(t, []string{"metadata:2:30.0", "ready:2"}, sink.snapshot())
	})
}

func TestClockEngine_ProbeFailure(t *testing.T) {
	failing := func(string) (time.Duration, error) { return 0, errors.New("corrupt header") }

	synctest.Test(t, func(t *testing.T) {
		sink := &recordingSink{}
		e := NewClockEngine(ClockSettings{TickIntervalMs: 100}, WithProbe(failing))
		e.Attach(sink)
		defer e.Close()

		require.NoError(t, e.Load(ticket(1), "/music/a.mp3"))
		synctest.Wait()

		assert.Equal(t, []string{"failed:1"}, sink.snapshot())
	})

	synctest.Test(t, func(t *testing.T) {
		sink := &recordingSink{}
		e := NewClockEngine(ClockSettings{TickIntervalMs: 100, FallbackDurationMs: 5000}, WithProbe(failing))
		e.Attach(sink)
		defer e.Close()

		require.NoError(t, e.Load(ticket(1), "/music/a.mp3"))
		synctest.Wait()

		assert.Equal(t, []string{"metadata:1:5.0", "ready:1"}, sink.snapshot())
	})
}

func TestClockEngine_VolumeAndClose(t *testing.T) {
	e := NewClockEngine(ClockSettings{}, WithProbe(fixedProbe(time.Second)))

	require.NoError(t, e.SetVolume(0.4))
	assert.InDelta(t, 0.4, e.Level(), 1e-9)
	require.NoError(t, e.SetVolume(3))
	assert.InDelta(t, 1.0, e.Level(), 1e-9)

	require.NoError(t, e.Close())
	assert.True(t, errors.Is(e.Load(ticket(1), "/music/a.mp3"), ErrEngineClosed))
	assert.True(t, errors.Is(e.Play(), ErrEngineClosed))
}

func TestClockEngine_ReplayAfterEnd(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sink := &recordingSink{}
		e := NewClockEngine(ClockSettings{TickIntervalMs: 500}, WithProbe(fixedProbe(time.Second)))
		e.Attach(sink)
		defer e.Close()

		require.NoError(t, e.Load(ticket(1), "/music/a.mp3"))
		require.NoError(t, e.Play())
		time.Sleep(2 * time.Second)
		synctest.Wait()
		require.Equal(t, "ended:1", sink.snapshot()[len(sink.snapshot())-1])

		require.NoError(t, e.SeekTo(0))
		require.NoError(t, e.Play())
		time.Sleep(2 * time.Second)
		synctest.Wait()

		assert.Equal(t, []string{
			"metadata:1:1.0",
			"ready:1",
			"time:1:0.5",
			"time:1:1.0",
			"ended:1",
			"time:1:0.5",
			"time:1:1.0",
			"ended:1",
		}, sink.snapshot())
	})
}

func TestClockEngine_PlayAfterEndStartsOver(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sink := &recordingSink{}
		e := NewClockEngine(ClockSettings{TickIntervalMs: 500}, WithProbe(fixedProbe(time.Second)))
		e.Attach(sink)
		defer e.Close()

		require.NoError(t, e.Load(ticket(1), "/music/a.mp3"))
		require.NoError(t, e.Play())
		time.Sleep(2 * time.Second)
		synctest.Wait()

		require.NoError(t, e.Play())
		time.Sleep(600 * time.Millisecond)
		synctest.Wait()

		events := sink.snapshot()
		assert.Equal(t, "time:1:0.5", events[len(events)-1])
		assert.Equal(t, 500*time.Millisecond, e.Position())
	})
}

func TestClockEngine_ZeroLengthSourceEnds(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sink := &recordingSink{}
		e := NewClockEngine(ClockSettings{TickIntervalMs: 100}, WithProbe(fixedProbe(0)))
		e.Attach(sink)
		defer e.Close()

		require.NoError(t, e.Load(ticket(1), "/music/empty.wav"))
		require.NoError(t, e.Play())
		time.Sleep(time.Second)
		synctest.Wait()

		assert.Equal(t, []string{
			"metadata:1:0.0",
			"ready:1",
			"time:1:0.0",
			"ended:1",
		}, sink.snapshot())
		assert.Equal(t, time.Duration(0), e.Position())
	})
}
