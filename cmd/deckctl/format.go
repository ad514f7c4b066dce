package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/osa030/19deck/internal/api/httpapi"
	"github.com/osa030/19deck/internal/app/notification"
	"github.com/osa030/19deck/internal/domain/track"
)

func printState(w io.Writer, s *notification.State) {
	fmt.Fprintf(w, "%s %s\n", formatPlaying(s.Playing), trackName(s.Track))
	fmt.Fprintf(w, "  Track:   %d/%d\n", s.Index+1, s.Length)
	fmt.Fprintf(w, "  Time:    %s / %s\n", clock(s.ElapsedSeconds), formatDuration(s.Track.DurationSeconds))
	volume := fmt.Sprintf("%d%%", s.Volume)
	if s.Muted {
		volume += " (muted)"
	}
	fmt.Fprintf(w, "  Volume:  %s\n", volume)
	fmt.Fprintf(w, "  Shuffle: %s\n", onOff(s.Shuffle))
	fmt.Fprintf(w, "  Repeat:  %s\n", s.Repeat)
}

func printNotification(w io.Writer, event string, n *notification.Notification) {
	at := n.Time.Format(time.TimeOnly)
	switch event {
	case "state":
		fmt.Fprintf(w, "[%s] current state\n", at)
		printState(w, &n.State)
		return
	case "track_changed":
		fmt.Fprintf(w, "[%s] #%d track: %s\n", at, n.SequenceNo, trackName(n.State.Track))
	case "state_changed":
		fmt.Fprintf(w, "[%s] #%d %s\n", at, n.SequenceNo, formatPlaying(n.State.Playing))
	case "position_changed":
		fmt.Fprintf(w, "[%s] #%d position: %s\n", at, n.SequenceNo, clock(n.State.ElapsedSeconds))
	case "duration_changed":
		fmt.Fprintf(w, "[%s] #%d duration: track %d is %s\n", at, n.SequenceNo, n.TrackIndex+1, formatDuration(n.State.Track.DurationSeconds))
	case "volume_changed":
		fmt.Fprintf(w, "[%s] #%d volume: %d%% muted=%v\n", at, n.SequenceNo, n.State.Volume, n.State.Muted)
	case "mode_changed":
		fmt.Fprintf(w, "[%s] #%d shuffle=%s repeat=%s\n", at, n.SequenceNo, onOff(n.State.Shuffle), n.State.Repeat)
	case "playback_failed":
		fmt.Fprintf(w, "[%s] #%d playback failed: track %d: %s\n", at, n.SequenceNo, n.TrackIndex+1, n.Error)
	case "playlist_finished":
		fmt.Fprintf(w, "[%s] #%d playlist finished\n", at, n.SequenceNo)
	default:
		fmt.Fprintf(w, "[%s] #%d %s\n", at, n.SequenceNo, event)
	}
}

func renderTracks(w io.Writer, pl *httpapi.PlaylistResponse, current int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(pl.Name)

	t.AppendHeader(table.Row{"", "#", "Title", "Artist", "Duration"})
	for i, tr := range pl.Tracks {
		marker, colorize := " ", fmt.Sprint
		if i == current {
			marker, colorize = "▶", text.FgGreen.Sprint
		}
		t.AppendRow(table.Row{
			colorize(marker),
			colorize(i + 1),
			colorize(trackTitle(tr)),
			colorize(tr.Artist),
			colorize(formatDuration(tr.DurationSeconds)),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", formatDuration(pl.TotalDurationSeconds)})

	t.Render()
}

func trackTitle(t notification.TrackInfo) string {
	tr := track.Track{Title: t.Title, SourceRef: t.Source}
	return tr.DisplayName()
}

func trackName(t notification.TrackInfo) string {
	tr := track.Track{Title: t.Title, Artist: t.Artist, SourceRef: t.Source}
	return tr.DisplayName()
}

func formatPlaying(playing bool) string {
	if playing {
		return "▶ Playing"
	}
	return "⏸ Paused"
}

// formatDuration renders an unknown (zero) duration as "--:--".
func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "--:--"
	}
	return clock(seconds)
}

func clock(seconds float64) string {
	d, _ := track.DurationFromSeconds(seconds)
	return track.FormatClock(d)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
